package dex

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/graph-arbitrage/internal/arbitrage"
)

const (
	// raydiumSwapBaseIn is the AMM v4 instruction tag for an exact-input swap.
	raydiumSwapBaseIn = 9
	raydiumDataLen    = 17
)

// buildRaydiumInstruction encodes swap_base_in. The route data carries the
// pool accounts (AMM, authority, vaults, market...) as raw 32-byte keys.
func buildRaydiumInstruction(accts swapAccounts, input, minOutput uint64, step arbitrage.SwapStep) (solana.Instruction, error) {
	pool, err := splitKeys(step.RouteData)
	if err != nil {
		return nil, fmt.Errorf("invalid raydium pool accounts: %w", err)
	}

	data := make([]byte, raydiumDataLen)
	data[0] = raydiumSwapBaseIn
	binary.LittleEndian.PutUint64(data[1:9], input)
	binary.LittleEndian.PutUint64(data[9:17], minOutput)

	metas := accts.metas()
	for _, key := range pool {
		metas = append(metas, &solana.AccountMeta{PublicKey: key, IsWritable: true})
	}
	return solana.NewInstruction(step.ProgramID, metas, data), nil
}

func decodeRaydiumAmounts(data []byte) (uint64, uint64, error) {
	if len(data) != raydiumDataLen {
		return 0, 0, errShortData(arbitrage.VenueRaydium, len(data), raydiumDataLen)
	}
	if data[0] != raydiumSwapBaseIn {
		return 0, 0, fmt.Errorf("unexpected raydium instruction tag %d", data[0])
	}
	return binary.LittleEndian.Uint64(data[1:9]), binary.LittleEndian.Uint64(data[9:17]), nil
}
