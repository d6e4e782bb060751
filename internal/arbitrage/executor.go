// internal/arbitrage/executor.go
package arbitrage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Observer receives execution telemetry. metrics.Collector implements it.
type Observer interface {
	ObserveStep(venue Venue, d time.Duration, success bool)
	ObserveExecution(res *ExecutionResult, err error, d time.Duration)
	ObserveCancel()
}

// CancelRecorder is implemented by sinks that also keep cancellations.
type CancelRecorder interface {
	RecordCancel(ctx context.Context, reason string) error
}

// Executor validates a route, runs every step through its venue adapter and
// accepts the outcome only when the realized profit clears the threshold.
//
// The executor signals failure but never undoes effects itself: the caller
// runs it inside an all-or-nothing unit of the hosting substrate.
type Executor struct {
	adapters *AdapterSet
	logger   *zap.Logger
	sink     AuditSink
	observer Observer
	now      func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithAuditSink sets the sink invoked once per successful execution.
func WithAuditSink(sink AuditSink) Option {
	return func(e *Executor) { e.sink = sink }
}

// WithObserver attaches a telemetry observer.
func WithObserver(o Observer) Option {
	return func(e *Executor) { e.observer = o }
}

// NewExecutor creates an executor dispatching to adapters.
func NewExecutor(adapters *AdapterSet, logger *zap.Logger, opts ...Option) (*Executor, error) {
	if adapters == nil {
		return nil, fmt.Errorf("adapter set cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	e := &Executor{
		adapters: adapters,
		logger:   logger.Named("executor"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Validate checks the request shape without touching any balance or adapter.
func (e *Executor) Validate(req *ExecutionRequest) error {
	if req == nil {
		return newError(ErrInvalidStep, errors.New("nil request"))
	}
	n := len(req.Route)
	if n < MinRouteSteps {
		return newError(ErrRouteTooShort, fmt.Errorf("got %d steps", n))
	}
	if n > MaxRouteSteps {
		return newError(ErrRouteTooLong, fmt.Errorf("got %d steps", n))
	}
	if req.MinProfitBps == 0 {
		return newError(ErrInvalidMinProfit, nil)
	}
	if req.MaxSlippageBps > BpsDenominator {
		return newError(ErrInvalidSlippage, fmt.Errorf("got %d bps", req.MaxSlippageBps))
	}
	for i, step := range req.Route {
		if step.InputMint.Equals(step.OutputMint) {
			return stepError(ErrInvalidStep, i, step.Venue, fmt.Errorf("mint %s", step.InputMint))
		}
		if _, ok := e.adapters.Lookup(step.Venue); !ok {
			return stepError(ErrUnsupportedVenue, i, step.Venue, nil)
		}
	}
	return nil
}

// Execute runs req atomically from the executor's point of view.
func (e *Executor) Execute(ctx context.Context, req *ExecutionRequest, balance BalanceReader) (res *ExecutionResult, err error) {
	start := e.now()
	defer func() {
		if e.observer != nil {
			e.observer.ObserveExecution(res, err, e.now().Sub(start))
		}
	}()

	if err := e.Validate(req); err != nil {
		e.logger.Warn("Route rejected", zap.Error(err))
		return nil, err
	}
	if balance == nil {
		return nil, newError(ErrBalanceUnavailable, errors.New("no balance reader"))
	}

	log := e.logger.With(
		zap.String("request_id", req.ID),
		zap.Int("steps", len(req.Route)),
		zap.Uint16("min_profit_bps", req.MinProfitBps),
		zap.Uint16("max_slippage_bps", req.MaxSlippageBps))
	log.Info("Starting atomic route execution", zap.Stringer("route", req.Route))

	startBalance, err := balance.Balance(ctx)
	if err != nil {
		return nil, newError(ErrBalanceUnavailable, err)
	}
	if startBalance == 0 {
		return nil, newError(ErrDivisionByZeroBalance, nil)
	}
	log.Debug("Starting balance", zap.Uint64("start_balance", startBalance))

	reports := make([]StepReport, 0, len(req.Route))
	current := startBalance
	for i, step := range req.Route {
		if err := ctx.Err(); err != nil {
			return nil, stepError(ErrSwapFailed, i, step.Venue, err)
		}
		report, err := e.executeStep(ctx, i, step, current, req.MaxSlippageBps)
		if err != nil {
			log.Warn("Route aborted", zap.Error(err))
			return nil, err
		}
		reports = append(reports, report)
		current = report.OutputAmount
	}

	finalBalance, err := balance.Balance(ctx)
	if err != nil {
		return nil, newError(ErrBalanceUnavailable, err)
	}
	profit := SaturatingSub(finalBalance, startBalance)
	profitBps := ProfitBps(profit, startBalance)

	log.Info("Route settled",
		zap.Uint64("final_balance", finalBalance),
		zap.Uint64("reported_amount", current),
		zap.Uint64("profit", profit),
		zap.Uint64("profit_bps", profitBps))

	if profitBps < uint64(req.MinProfitBps) {
		return nil, newError(ErrInsufficientProfit,
			fmt.Errorf("realized %d bps, required %d bps", profitBps, req.MinProfitBps))
	}

	res = &ExecutionResult{
		RequestID:     req.ID,
		Owner:         req.Owner,
		StartAmount:   startBalance,
		FinalAmount:   finalBalance,
		Profit:        profit,
		ProfitBps:     profitBps,
		StepsExecuted: uint8(len(reports)),
		Steps:         reports,
	}

	if e.sink != nil {
		// The route already committed from our side; a sink failure must not
		// turn a settled execution into a reported failure.
		if err := e.sink.RecordExecution(ctx, req, res); err != nil {
			log.Error("Failed to record execution", zap.Error(err))
		}
	}

	log.Info("Arbitrage completed", zap.Uint64("profit_bps", profitBps))
	return res, nil
}

func (e *Executor) executeStep(ctx context.Context, index int, step SwapStep, input uint64, maxSlippageBps uint16) (StepReport, error) {
	adapter, ok := e.adapters.Lookup(step.Venue)
	if !ok {
		return StepReport{}, stepError(ErrUnsupportedVenue, index, step.Venue, nil)
	}

	minOutput := MinOutput(input, step.ExpectedRate, maxSlippageBps)
	e.logger.Debug("Executing step",
		zap.Int("step", index+1),
		zap.String("venue", step.Venue.String()),
		zap.String("input_mint", step.InputMint.String()),
		zap.String("output_mint", step.OutputMint.String()),
		zap.Uint64("input_amount", input),
		zap.Uint64("expected_output", ExpectedOutput(input, step.ExpectedRate)),
		zap.Uint64("min_output", minOutput))

	began := e.now()
	outcome, err := adapter.Swap(ctx, input, minOutput, step)
	ok = err == nil && outcome.Success && outcome.OutputAmount >= minOutput
	if e.observer != nil {
		e.observer.ObserveStep(step.Venue, e.now().Sub(began), ok)
	}

	switch {
	case err != nil:
		return StepReport{}, stepError(ErrSwapFailed, index, step.Venue, err)
	case !outcome.Success:
		return StepReport{}, stepError(ErrSwapFailed, index, step.Venue, errors.New("adapter reported failure"))
	case outcome.OutputAmount < minOutput:
		return StepReport{}, stepError(ErrSwapFailed, index, step.Venue,
			fmt.Errorf("output %d below minimum %d", outcome.OutputAmount, minOutput))
	}

	// Own measurement stays within maxSlippageBps once minOutput is met, so
	// only a venue-reported figure can trip the check below.
	slippage := RealizedSlippageBps(input, step.ExpectedRate, outcome.OutputAmount)
	if outcome.SlippageBps > slippage {
		slippage = outcome.SlippageBps
	}
	if slippage > maxSlippageBps {
		return StepReport{}, stepError(ErrSlippageExceeded, index, step.Venue,
			fmt.Errorf("realized %d bps, allowed %d bps", slippage, maxSlippageBps))
	}

	e.logger.Debug("Step output",
		zap.Int("step", index+1),
		zap.Uint64("output_amount", outcome.OutputAmount),
		zap.Uint16("slippage_bps", slippage))

	return StepReport{
		Index:        index,
		Venue:        step.Venue,
		InputMint:    step.InputMint,
		OutputMint:   step.OutputMint,
		InputAmount:  input,
		MinOutput:    minOutput,
		OutputAmount: outcome.OutputAmount,
		SlippageBps:  slippage,
	}, nil
}

// Cancel is the explicit abort entry point. Any failed execution is already
// void, so this only leaves an audit trail.
func (e *Executor) Cancel(ctx context.Context, reason string) error {
	e.logger.Warn("Emergency cancel triggered", zap.String("reason", reason))
	if e.observer != nil {
		e.observer.ObserveCancel()
	}
	if rec, ok := e.sink.(CancelRecorder); ok {
		if err := rec.RecordCancel(ctx, reason); err != nil {
			return fmt.Errorf("failed to record cancel: %w", err)
		}
	}
	return nil
}
