package dex

import (
	"encoding/binary"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/graph-arbitrage/internal/arbitrage"
)

// jupiterHeaderLen is input amount plus minimum output, both u64 LE.
const jupiterHeaderLen = 16

// BuildJupiterSwapData lays out le64(input) | le64(minOutput) | routeData.
// routeData is the aggregator's own route plan and is appended untouched.
func BuildJupiterSwapData(input, minOutput uint64, routeData []byte) []byte {
	data := make([]byte, jupiterHeaderLen, jupiterHeaderLen+len(routeData))
	binary.LittleEndian.PutUint64(data[0:8], input)
	binary.LittleEndian.PutUint64(data[8:16], minOutput)
	return append(data, routeData...)
}

func buildJupiterInstruction(accts swapAccounts, input, minOutput uint64, step arbitrage.SwapStep) (solana.Instruction, error) {
	data := BuildJupiterSwapData(input, minOutput, step.RouteData)
	return solana.NewInstruction(step.ProgramID, accts.metas(), data), nil
}

func decodeJupiterAmounts(data []byte) (uint64, uint64, error) {
	if len(data) < jupiterHeaderLen {
		return 0, 0, errShortData(arbitrage.VenueJupiter, len(data), jupiterHeaderLen)
	}
	return binary.LittleEndian.Uint64(data[0:8]), binary.LittleEndian.Uint64(data[8:16]), nil
}
