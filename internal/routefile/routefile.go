// internal/routefile/routefile.go
package routefile

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"gopkg.in/yaml.v3"

	"github.com/rovshanmuradov/graph-arbitrage/internal/arbitrage"
	"github.com/rovshanmuradov/graph-arbitrage/internal/dex"
)

// Step is one hop as written in a route file or an API body.
type Step struct {
	Venue        string   `yaml:"venue" json:"venue"`
	InputMint    string   `yaml:"input_mint" json:"input_mint"`
	OutputMint   string   `yaml:"output_mint" json:"output_mint"`
	ExpectedRate uint64   `yaml:"expected_rate" json:"expected_rate"`
	ProgramID    string   `yaml:"program_id,omitempty" json:"program_id,omitempty"`
	RouteData    string   `yaml:"route_data,omitempty" json:"route_data,omitempty"`
	PoolAccounts []string `yaml:"pool_accounts,omitempty" json:"pool_accounts,omitempty"`
}

// Request is the external form of an execution request. Keys are base58.
type Request struct {
	ID             string  `yaml:"id" json:"id"`
	Owner          string  `yaml:"owner,omitempty" json:"owner,omitempty"`
	TrackedAccount string  `yaml:"tracked_account,omitempty" json:"tracked_account,omitempty"`
	MinProfitBps   *uint16 `yaml:"min_profit_bps,omitempty" json:"min_profit_bps,omitempty"`
	MaxSlippageBps *uint16 `yaml:"max_slippage_bps,omitempty" json:"max_slippage_bps,omitempty"`
	Route          []Step  `yaml:"route" json:"route"`
}

// Defaults fill what a request leaves out.
type Defaults struct {
	Programs       dex.Programs
	MinProfitBps   uint16
	MaxSlippageBps uint16
	// Owner is used when the request names none.
	Owner solana.PublicKey
}

// Build converts r into an executor request. A request without an ID gets a
// fresh one. The tracked account defaults to the owner's associated token
// account for the first input mint.
func (r *Request) Build(d Defaults) (*arbitrage.ExecutionRequest, error) {
	if d.Programs == nil {
		d.Programs = dex.DefaultPrograms()
	}

	id := r.ID
	if id == "" {
		id = uuid.NewString()
	}
	req := &arbitrage.ExecutionRequest{
		ID:             id,
		Owner:          d.Owner,
		MinProfitBps:   d.MinProfitBps,
		MaxSlippageBps: d.MaxSlippageBps,
	}
	if r.MinProfitBps != nil {
		req.MinProfitBps = *r.MinProfitBps
	}
	if r.MaxSlippageBps != nil {
		req.MaxSlippageBps = *r.MaxSlippageBps
	}

	var err error
	if r.Owner != "" {
		if req.Owner, err = solana.PublicKeyFromBase58(r.Owner); err != nil {
			return nil, fmt.Errorf("invalid owner: %w", err)
		}
	}
	if req.Owner.IsZero() {
		return nil, errors.New("owner is required")
	}

	req.Route = make(arbitrage.Route, 0, len(r.Route))
	for i, s := range r.Route {
		step, err := s.build(d.Programs)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		req.Route = append(req.Route, step)
	}

	switch {
	case r.TrackedAccount != "":
		if req.TrackedAccount, err = solana.PublicKeyFromBase58(r.TrackedAccount); err != nil {
			return nil, fmt.Errorf("invalid tracked_account: %w", err)
		}
	case len(req.Route) > 0:
		if req.TrackedAccount, _, err = solana.FindAssociatedTokenAddress(req.Owner, req.Route[0].InputMint); err != nil {
			return nil, fmt.Errorf("failed to derive tracked account: %w", err)
		}
	}
	return req, nil
}

func (s Step) build(programs dex.Programs) (arbitrage.SwapStep, error) {
	venue, err := arbitrage.ParseVenue(s.Venue)
	if err != nil {
		return arbitrage.SwapStep{}, err
	}
	in, err := solana.PublicKeyFromBase58(s.InputMint)
	if err != nil {
		return arbitrage.SwapStep{}, fmt.Errorf("invalid input_mint: %w", err)
	}
	out, err := solana.PublicKeyFromBase58(s.OutputMint)
	if err != nil {
		return arbitrage.SwapStep{}, fmt.Errorf("invalid output_mint: %w", err)
	}

	program := programs[venue]
	if s.ProgramID != "" {
		if program, err = solana.PublicKeyFromBase58(s.ProgramID); err != nil {
			return arbitrage.SwapStep{}, fmt.Errorf("invalid program_id: %w", err)
		}
	}

	data, err := DecodeRouteData(s.RouteData)
	if err != nil {
		return arbitrage.SwapStep{}, err
	}
	for _, acct := range s.PoolAccounts {
		key, err := solana.PublicKeyFromBase58(acct)
		if err != nil {
			return arbitrage.SwapStep{}, fmt.Errorf("invalid pool account %q: %w", acct, err)
		}
		data = append(data, key[:]...)
	}

	return arbitrage.SwapStep{
		InputMint:    in,
		OutputMint:   out,
		Venue:        venue,
		ProgramID:    program,
		ExpectedRate: s.ExpectedRate,
		RouteData:    data,
	}, nil
}

// DecodeRouteData decodes "base64:", "hex:" or "base58:" prefixed data. An
// unprefixed value is base64.
func DecodeRouteData(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var (
		out []byte
		err error
	)
	switch {
	case strings.HasPrefix(s, "hex:"):
		out, err = hex.DecodeString(strings.TrimPrefix(s, "hex:"))
	case strings.HasPrefix(s, "base58:"):
		out, err = base58.Decode(strings.TrimPrefix(s, "base58:"))
	default:
		out, err = base64.StdEncoding.DecodeString(strings.TrimPrefix(s, "base64:"))
	}
	if err != nil {
		return nil, fmt.Errorf("invalid route_data: %w", err)
	}
	return out, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// decodeStrict rejects unknown keys so a typo never silently drops a field.
func decodeStrict(data []byte, v any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// ParseRequest parses a request document (YAML or JSON).
func ParseRequest(data []byte) (*Request, error) {
	var r Request
	if err := decodeStrict(data, &r); err != nil {
		return nil, err
	}
	if len(r.Route) == 0 {
		return nil, errors.New("no route steps found")
	}
	return &r, nil
}

// LoadRequest reads a request file.
func LoadRequest(path string) (*Request, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return ParseRequest(data)
}
