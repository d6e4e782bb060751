// internal/audit/record.go
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/rovshanmuradov/graph-arbitrage/internal/arbitrage"
)

// Kind tells what a Record describes.
type Kind string

const (
	KindExecuted  Kind = "executed"
	KindFailed    Kind = "failed"
	KindCancelled Kind = "cancelled"
)

// Record is the audit view of an execution, a failure or a cancel. Executed
// records carry the fields of the on-chain ArbitrageExecuted event.
type Record struct {
	Kind           Kind
	Time           time.Time
	RequestID      string
	Owner          string
	TrackedAccount string
	Route          string

	StartAmount   uint64
	FinalAmount   uint64
	Profit        uint64
	ProfitBps     uint64
	StepsExecuted uint8
	Steps         []arbitrage.StepReport

	ErrorCode  arbitrage.ErrorCode
	Error      string
	FailedStep int

	Reason string
}

// Sink consumes records.
type Sink interface {
	Record(ctx context.Context, rec Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, rec Record) error

func (f SinkFunc) Record(ctx context.Context, rec Record) error {
	return f(ctx, rec)
}

// Multi fans a record out to every sink. All sinks are tried; their errors
// are joined.
type Multi []Sink

func (m Multi) Record(ctx context.Context, rec Record) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Executed builds the record of a settled route.
func Executed(req *arbitrage.ExecutionRequest, res *arbitrage.ExecutionResult, at time.Time) Record {
	return Record{
		Kind:           KindExecuted,
		Time:           at,
		RequestID:      res.RequestID,
		Owner:          res.Owner.String(),
		TrackedAccount: req.TrackedAccount.String(),
		Route:          req.Route.String(),
		StartAmount:    res.StartAmount,
		FinalAmount:    res.FinalAmount,
		Profit:         res.Profit,
		ProfitBps:      res.ProfitBps,
		StepsExecuted:  res.StepsExecuted,
		Steps:          res.Steps,
		FailedStep:     arbitrage.NoStep,
	}
}

// Failed builds the record of a rolled back request.
func Failed(req *arbitrage.ExecutionRequest, err error, at time.Time) Record {
	rec := Record{
		Kind:       KindFailed,
		Time:       at,
		FailedStep: arbitrage.NoStep,
	}
	if req != nil {
		rec.RequestID = req.ID
		rec.Owner = req.Owner.String()
		rec.TrackedAccount = req.TrackedAccount.String()
		rec.Route = req.Route.String()
	}
	if err != nil {
		rec.Error = err.Error()
	}
	var aerr *arbitrage.Error
	if errors.As(err, &aerr) {
		rec.ErrorCode = aerr.Code
		rec.FailedStep = aerr.Step
	} else if code, ok := arbitrage.CodeOf(err); ok {
		rec.ErrorCode = code
	}
	return rec
}

// Cancelled builds the record of an explicit cancel.
func Cancelled(reason string, at time.Time) Record {
	return Record{Kind: KindCancelled, Time: at, Reason: reason, FailedStep: arbitrage.NoStep}
}

// Recorder plugs a Sink into the executor. It implements
// arbitrage.AuditSink and arbitrage.CancelRecorder, and records failures for
// the submission service.
type Recorder struct {
	sink Sink
	now  func() time.Time
}

// NewRecorder wraps sink.
func NewRecorder(sink Sink) *Recorder {
	return &Recorder{sink: sink, now: func() time.Time { return time.Now().UTC() }}
}

func (r *Recorder) RecordExecution(ctx context.Context, req *arbitrage.ExecutionRequest, res *arbitrage.ExecutionResult) error {
	return r.sink.Record(ctx, Executed(req, res, r.now()))
}

func (r *Recorder) RecordFailure(ctx context.Context, req *arbitrage.ExecutionRequest, err error) error {
	return r.sink.Record(ctx, Failed(req, err, r.now()))
}

func (r *Recorder) RecordCancel(ctx context.Context, reason string) error {
	return r.sink.Record(ctx, Cancelled(reason, r.now()))
}
