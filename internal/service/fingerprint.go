// internal/service/fingerprint.go
package service

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"

	"github.com/rovshanmuradov/graph-arbitrage/internal/arbitrage"
)

// Fingerprint identifies a request by its ID and everything it asks the
// route to do. Requests that repeat an ID with the same content collide.
func Fingerprint(req *arbitrage.ExecutionRequest) uint64 {
	d := xxhash.New()
	var buf [8]byte
	putUint := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		d.Write(buf[:])
	}

	d.WriteString(req.ID)
	d.Write(req.Owner[:])
	d.Write(req.TrackedAccount[:])
	putUint(uint64(req.MinProfitBps)<<16 | uint64(req.MaxSlippageBps))
	putUint(uint64(len(req.Route)))
	for _, step := range req.Route {
		d.Write(step.InputMint[:])
		d.Write(step.OutputMint[:])
		d.Write(step.ProgramID[:])
		d.WriteString(string(step.Venue))
		putUint(step.ExpectedRate)
		putUint(uint64(len(step.RouteData)))
		d.Write(step.RouteData)
	}
	return d.Sum64()
}
