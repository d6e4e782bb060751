// =============================
// File: internal/dex/factory.go
// =============================
package dex

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/graph-arbitrage/internal/arbitrage"
	"github.com/rovshanmuradov/graph-arbitrage/internal/wallet"
)

// Deps are the collaborators every venue adapter needs.
type Deps struct {
	Owner    *wallet.Wallet
	Invoker  Invoker
	Balances TokenBalances
	Logger   *zap.Logger
}

func (d Deps) validate() error {
	if d.Owner == nil {
		return fmt.Errorf("owner wallet cannot be nil")
	}
	if d.Invoker == nil {
		return fmt.Errorf("invoker cannot be nil")
	}
	if d.Balances == nil {
		return fmt.Errorf("token balances cannot be nil")
	}
	if d.Logger == nil {
		return fmt.Errorf("logger cannot be nil")
	}
	return nil
}

// GetAdapterByVenue creates the adapter for one venue.
func GetAdapterByVenue(venue arbitrage.Venue, deps Deps) (arbitrage.ExchangeAdapter, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}

	base := baseAdapter{
		venue:    venue,
		owner:    deps.Owner,
		invoker:  deps.Invoker,
		balances: deps.Balances,
	}

	switch venue {
	case arbitrage.VenueJupiter:
		base.name = "Jupiter"
		base.build = buildJupiterInstruction
	case arbitrage.VenueRaydium:
		base.name = "Raydium"
		base.build = buildRaydiumInstruction
	case arbitrage.VenueOrca:
		base.name = "Orca"
		base.build = buildOrcaInstruction
	default:
		return nil, fmt.Errorf("venue %s is not supported", venue)
	}
	base.logger = deps.Logger.Named(string(venue))
	return &base, nil
}

// NewAdapterSet builds and registers an adapter for each venue. With no venues
// given, every known venue is registered.
func NewAdapterSet(deps Deps, venues ...arbitrage.Venue) (*arbitrage.AdapterSet, error) {
	if len(venues) == 0 {
		venues = arbitrage.Venues
	}
	set, err := arbitrage.NewAdapterSet()
	if err != nil {
		return nil, err
	}
	for _, v := range venues {
		adapter, err := GetAdapterByVenue(v, deps)
		if err != nil {
			return nil, fmt.Errorf("could not create adapter for %s: %w", v, err)
		}
		if err := set.Register(adapter); err != nil {
			return nil, err
		}
	}
	return set, nil
}
