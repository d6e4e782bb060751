// internal/audit/sinks.go
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/rovshanmuradov/graph-arbitrage/internal/events"
	"github.com/rovshanmuradov/graph-arbitrage/internal/logger"
	"github.com/rovshanmuradov/graph-arbitrage/internal/storage"
	"github.com/rovshanmuradov/graph-arbitrage/internal/storage/models"
)

// LogSink writes records to a zap logger.
type LogSink struct {
	logger *zap.Logger
}

func NewLogSink(l *zap.Logger) *LogSink {
	return &LogSink{logger: l.Named("audit")}
}

func (s *LogSink) Record(_ context.Context, rec Record) error {
	switch rec.Kind {
	case KindExecuted:
		s.logger.Info("ArbitrageExecuted",
			zap.String("request_id", rec.RequestID),
			zap.String("user", rec.Owner),
			zap.Uint64("start_amount", rec.StartAmount),
			zap.Uint64("final_amount", rec.FinalAmount),
			zap.Uint64("profit", rec.Profit),
			zap.Uint64("profit_bps", rec.ProfitBps),
			zap.Uint8("steps_executed", rec.StepsExecuted))
	case KindFailed:
		s.logger.Warn("ArbitrageFailed",
			zap.String("request_id", rec.RequestID),
			zap.String("user", rec.Owner),
			zap.String("code", rec.ErrorCode.Name()),
			zap.Int("step", rec.FailedStep),
			zap.String("error", rec.Error))
	case KindCancelled:
		s.logger.Warn("ArbitrageCancelled", zap.String("reason", rec.Reason))
	}
	return nil
}

// JSONLSink appends one JSON document per record.
type JSONLSink struct {
	w *logger.SafeFileWriter
}

// NewJSONLSink opens path for appending.
func NewJSONLSink(path string, flushInterval time.Duration, l *zap.Logger) (*JSONLSink, error) {
	w, err := logger.NewSafeFileWriter(path, flushInterval, l)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit journal: %w", err)
	}
	return &JSONLSink{w: w}, nil
}

type jsonRecord struct {
	Kind           Kind         `json:"kind"`
	Time           time.Time    `json:"time"`
	RequestID      string       `json:"request_id,omitempty"`
	Owner          string       `json:"owner,omitempty"`
	TrackedAccount string       `json:"tracked_account,omitempty"`
	Route          string       `json:"route,omitempty"`
	StartAmount    uint64       `json:"start_amount,omitempty"`
	FinalAmount    uint64       `json:"final_amount,omitempty"`
	Profit         uint64       `json:"profit,omitempty"`
	ProfitBps      uint64       `json:"profit_bps,omitempty"`
	StepsExecuted  uint8        `json:"steps_executed,omitempty"`
	Steps          []stepRecord `json:"steps,omitempty"`
	Code           string       `json:"code,omitempty"`
	Error          string       `json:"error,omitempty"`
	FailedStep     *int         `json:"failed_step,omitempty"`
	Reason         string       `json:"reason,omitempty"`
}

type stepRecord struct {
	Venue        string `json:"venue"`
	InputMint    string `json:"input_mint"`
	OutputMint   string `json:"output_mint"`
	InputAmount  uint64 `json:"input_amount"`
	MinOutput    uint64 `json:"min_output"`
	OutputAmount uint64 `json:"output_amount"`
	SlippageBps  uint16 `json:"slippage_bps"`
}

func (s *JSONLSink) Record(_ context.Context, rec Record) error {
	doc := jsonRecord{
		Kind:           rec.Kind,
		Time:           rec.Time,
		RequestID:      rec.RequestID,
		Owner:          rec.Owner,
		TrackedAccount: rec.TrackedAccount,
		Route:          rec.Route,
		StartAmount:    rec.StartAmount,
		FinalAmount:    rec.FinalAmount,
		Profit:         rec.Profit,
		ProfitBps:      rec.ProfitBps,
		StepsExecuted:  rec.StepsExecuted,
		Error:          rec.Error,
		Reason:         rec.Reason,
	}
	if rec.ErrorCode != 0 {
		doc.Code = rec.ErrorCode.Name()
	}
	if rec.FailedStep >= 0 {
		step := rec.FailedStep
		doc.FailedStep = &step
	}
	for _, st := range rec.Steps {
		doc.Steps = append(doc.Steps, stepRecord{
			Venue:        st.Venue.String(),
			InputMint:    st.InputMint.String(),
			OutputMint:   st.OutputMint.String(),
			InputAmount:  st.InputAmount,
			MinOutput:    st.MinOutput,
			OutputAmount: st.OutputAmount,
			SlippageBps:  st.SlippageBps,
		})
	}

	line, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode audit record: %w", err)
	}
	return s.w.WriteLine(line)
}

func (s *JSONLSink) Close() error {
	return s.w.Close()
}

// StoreSink persists records.
type StoreSink struct {
	store storage.Store
}

func NewStoreSink(store storage.Store) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Record(ctx context.Context, rec Record) error {
	if err := s.store.SaveExecution(ctx, ToModel(rec)); err != nil {
		return fmt.Errorf("failed to persist %s record: %w", rec.Kind, err)
	}
	return nil
}

// ToModel maps a record onto the storage model.
func ToModel(rec Record) *models.Execution {
	exec := &models.Execution{
		RequestID:      rec.RequestID,
		Owner:          rec.Owner,
		TrackedAccount: rec.TrackedAccount,
		Route:          rec.Route,
		StartAmount:    rec.StartAmount,
		FinalAmount:    rec.FinalAmount,
		Profit:         rec.Profit,
		ProfitBps:      rec.ProfitBps,
		StepsExecuted:  rec.StepsExecuted,
		ErrorMessage:   rec.Error,
		FailedStep:     rec.FailedStep,
		Reason:         rec.Reason,
		ExecutedAt:     rec.Time,
	}
	switch rec.Kind {
	case KindExecuted:
		exec.Status = models.StatusSucceeded
	case KindFailed:
		exec.Status = models.StatusFailed
	case KindCancelled:
		exec.Status = models.StatusCancelled
	}
	if rec.ErrorCode != 0 {
		exec.ErrorCode = uint32(rec.ErrorCode)
		exec.ErrorName = rec.ErrorCode.Name()
	}
	for _, st := range rec.Steps {
		exec.Steps = append(exec.Steps, models.ExecutionStep{
			Index:        st.Index,
			Venue:        st.Venue.String(),
			InputMint:    st.InputMint.String(),
			OutputMint:   st.OutputMint.String(),
			InputAmount:  st.InputAmount,
			MinOutput:    st.MinOutput,
			OutputAmount: st.OutputAmount,
			SlippageBps:  st.SlippageBps,
		})
	}
	return exec
}

// BusSink publishes records as events. Executed records also emit one
// step.executed event per hop, after the execution event.
type BusSink struct {
	bus *events.Bus
}

func NewBusSink(bus *events.Bus) *BusSink {
	return &BusSink{bus: bus}
}

func (s *BusSink) Record(_ context.Context, rec Record) error {
	switch rec.Kind {
	case KindExecuted:
		if err := s.bus.Publish(events.ExecutionSucceededEvent{
			BaseEvent:   events.BaseEvent{EventType: events.ExecutionSucceeded, EventTime: rec.Time},
			RequestID:   rec.RequestID,
			Owner:       rec.Owner,
			Route:       rec.Route,
			StartAmount: rec.StartAmount,
			FinalAmount: rec.FinalAmount,
			Profit:      rec.Profit,
			ProfitBps:   rec.ProfitBps,
			Steps:       rec.StepsExecuted,
		}); err != nil {
			return err
		}
		for _, st := range rec.Steps {
			if err := s.bus.Publish(events.StepExecutedEvent{
				BaseEvent:    events.BaseEvent{EventType: events.StepExecuted, EventTime: rec.Time},
				RequestID:    rec.RequestID,
				Index:        st.Index,
				Venue:        st.Venue.String(),
				InputMint:    st.InputMint.String(),
				OutputMint:   st.OutputMint.String(),
				InputAmount:  st.InputAmount,
				MinOutput:    st.MinOutput,
				OutputAmount: st.OutputAmount,
				SlippageBps:  st.SlippageBps,
			}); err != nil {
				return err
			}
		}
		return nil
	case KindFailed:
		ev := events.ExecutionFailedEvent{
			BaseEvent: events.BaseEvent{EventType: events.ExecutionFailed, EventTime: rec.Time},
			RequestID: rec.RequestID,
			Owner:     rec.Owner,
			Step:      rec.FailedStep,
			Error:     rec.Error,
		}
		if rec.ErrorCode != 0 {
			ev.Code = uint32(rec.ErrorCode)
			ev.Name = rec.ErrorCode.Name()
		}
		return s.bus.Publish(ev)
	case KindCancelled:
		return s.bus.Publish(events.ExecutionCancelledEvent{
			BaseEvent: events.BaseEvent{EventType: events.ExecutionCancelled, EventTime: rec.Time},
			Reason:    rec.Reason,
		})
	}
	return fmt.Errorf("unknown record kind %q", rec.Kind)
}
