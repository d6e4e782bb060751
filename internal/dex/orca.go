package dex

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/graph-arbitrage/internal/arbitrage"
)

// Whirlpool swap layout: discriminator, amount, other_amount_threshold,
// sqrt_price_limit (u128), amount_specified_is_input, a_to_b.
const orcaDataLen = 8 + 8 + 8 + 16 + 1 + 1

var orcaSwapDiscriminator = anchorDiscriminator("swap")

// anchorDiscriminator is sha256("global:<name>")[:8].
func anchorDiscriminator(name string) []byte {
	sum := sha256.Sum256([]byte("global:" + name))
	return sum[:8]
}

// buildOrcaInstruction encodes a Whirlpool exact-input swap. RouteData[0] is
// the a_to_b direction flag; the rest are 32-byte pool accounts (whirlpool,
// vaults, tick arrays, oracle). Empty route data swaps a to b.
func buildOrcaInstruction(accts swapAccounts, input, minOutput uint64, step arbitrage.SwapStep) (solana.Instruction, error) {
	aToB := byte(1)
	var pool []solana.PublicKey
	if len(step.RouteData) > 0 {
		if step.RouteData[0] > 1 {
			return nil, fmt.Errorf("invalid a_to_b flag %d", step.RouteData[0])
		}
		aToB = step.RouteData[0]
		var err error
		if pool, err = splitKeys(step.RouteData[1:]); err != nil {
			return nil, fmt.Errorf("invalid whirlpool accounts: %w", err)
		}
	}

	data := make([]byte, orcaDataLen)
	copy(data[0:8], orcaSwapDiscriminator)
	binary.LittleEndian.PutUint64(data[8:16], input)
	binary.LittleEndian.PutUint64(data[16:24], minOutput)
	// data[24:40] sqrt_price_limit stays zero: no price limit.
	data[40] = 1
	data[41] = aToB

	metas := accts.metas()
	for _, key := range pool {
		metas = append(metas, &solana.AccountMeta{PublicKey: key, IsWritable: true})
	}
	return solana.NewInstruction(step.ProgramID, metas, data), nil
}

func decodeOrcaAmounts(data []byte) (uint64, uint64, error) {
	if len(data) != orcaDataLen {
		return 0, 0, errShortData(arbitrage.VenueOrca, len(data), orcaDataLen)
	}
	if !bytes.Equal(data[0:8], orcaSwapDiscriminator) {
		return 0, 0, fmt.Errorf("unexpected whirlpool discriminator %x", data[0:8])
	}
	return binary.LittleEndian.Uint64(data[8:16]), binary.LittleEndian.Uint64(data[16:24]), nil
}
