// internal/service/sink.go
package service

import (
	"context"

	"github.com/rovshanmuradov/graph-arbitrage/internal/arbitrage"
)

// FailureRecorder is implemented by sinks that also keep failed executions.
// audit.Recorder implements it.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, req *arbitrage.ExecutionRequest, err error) error
}

type pendingKey struct{}

// pending holds the record the executor emitted inside a unit until that unit
// commits.
type pending struct {
	req *arbitrage.ExecutionRequest
	res *arbitrage.ExecutionResult
}

func withPending(ctx context.Context, p *pending) context.Context {
	return context.WithValue(ctx, pendingKey{}, p)
}

// deferredSink is handed to the executor in place of the real sink. Inside a
// unit it only parks the record; Service forwards it after a successful
// commit so a rolled back execution never reaches the audit trail.
type deferredSink struct {
	target arbitrage.AuditSink
}

func (d deferredSink) RecordExecution(ctx context.Context, req *arbitrage.ExecutionRequest, res *arbitrage.ExecutionResult) error {
	if p, ok := ctx.Value(pendingKey{}).(*pending); ok {
		p.req, p.res = req, res
		return nil
	}
	if d.target == nil {
		return nil
	}
	return d.target.RecordExecution(ctx, req, res)
}

func (d deferredSink) RecordCancel(ctx context.Context, reason string) error {
	if rec, ok := d.target.(arbitrage.CancelRecorder); ok {
		return rec.RecordCancel(ctx, reason)
	}
	return nil
}

func (d deferredSink) flush(ctx context.Context, p *pending) error {
	if d.target == nil || p.res == nil {
		return nil
	}
	return d.target.RecordExecution(ctx, p.req, p.res)
}

func (d deferredSink) recordFailure(ctx context.Context, req *arbitrage.ExecutionRequest, err error) error {
	if rec, ok := d.target.(FailureRecorder); ok {
		return rec.RecordFailure(ctx, req, err)
	}
	return nil
}
