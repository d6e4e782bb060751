package dex

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/graph-arbitrage/internal/arbitrage"
)

// SwapInstruction is the decoded form of any venue swap built by this package.
type SwapInstruction struct {
	Venue      arbitrage.Venue
	ProgramID  solana.PublicKey
	AmountIn   uint64
	MinOutput  uint64
	Source     solana.PublicKey
	Dest       solana.PublicKey
	InputMint  solana.PublicKey
	OutputMint solana.PublicKey
	Owner      solana.PublicKey
	Extra      []solana.PublicKey
}

func errShortData(venue arbitrage.Venue, got, want int) error {
	return fmt.Errorf("%s instruction data is %d bytes, want %d", venue, got, want)
}

// DecodeSwapInstruction parses an instruction built by one of the venue
// adapters. venue selects the data layout.
func DecodeSwapInstruction(venue arbitrage.Venue, ix solana.Instruction) (*SwapInstruction, error) {
	data, err := ix.Data()
	if err != nil {
		return nil, fmt.Errorf("failed to read instruction data: %w", err)
	}

	var in, minOut uint64
	switch venue {
	case arbitrage.VenueJupiter:
		in, minOut, err = decodeJupiterAmounts(data)
	case arbitrage.VenueRaydium:
		in, minOut, err = decodeRaydiumAmounts(data)
	case arbitrage.VenueOrca:
		in, minOut, err = decodeOrcaAmounts(data)
	default:
		err = fmt.Errorf("venue %s is not supported", venue)
	}
	if err != nil {
		return nil, err
	}

	metas := ix.Accounts()
	if len(metas) < 5 {
		return nil, fmt.Errorf("swap instruction has %d accounts, want at least 5", len(metas))
	}
	if !metas[4].IsSigner {
		return nil, fmt.Errorf("owner account %s is not a signer", metas[4].PublicKey)
	}

	sw := &SwapInstruction{
		Venue:      venue,
		ProgramID:  ix.ProgramID(),
		AmountIn:   in,
		MinOutput:  minOut,
		Source:     metas[0].PublicKey,
		Dest:       metas[1].PublicKey,
		InputMint:  metas[2].PublicKey,
		OutputMint: metas[3].PublicKey,
		Owner:      metas[4].PublicKey,
	}
	for _, m := range metas[5:] {
		sw.Extra = append(sw.Extra, m.PublicKey)
	}
	return sw, nil
}
