// internal/audit/history.go
package audit

import (
	"context"
	"fmt"
	"math/big"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/graph-arbitrage/internal/logger"
)

// csvHeader is the column layout of the execution history file.
var csvHeader = []string{
	"timestamp", "kind", "request_id", "owner", "route", "start_amount",
	"final_amount", "profit", "profit_pct", "steps", "code", "failed_step", "detail",
}

// History is a CSV-backed audit sink that also keeps the most recent records
// and running statistics in memory.
type History struct {
	mu      sync.RWMutex
	csv     *logger.SafeCSVWriter
	recent  []Record
	max     int
	logger  *zap.Logger
	csvPath string

	executed    int
	failed      int
	cancelled   int
	totalProfit uint64
	bestBps     uint64
	sumBps      uint64
}

// NewHistory creates executions_<timestamp>.csv under dir.
func NewHistory(dir string, maxRecent int, flushInterval time.Duration, zapLogger *zap.Logger) (*History, error) {
	if maxRecent <= 0 {
		maxRecent = 100
	}
	path := filepath.Join(dir, fmt.Sprintf("executions_%s.csv", time.Now().Format("20060102_150405")))
	w, err := logger.NewSafeCSVWriter(path, csvHeader, flushInterval, zapLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create CSV writer: %w", err)
	}

	zapLogger.Info("Execution history initialized",
		zap.String("csv_file", path),
		zap.Int("max_memory_records", maxRecent))

	return &History{
		csv:     w,
		recent:  make([]Record, 0, maxRecent),
		max:     maxRecent,
		logger:  zapLogger,
		csvPath: path,
	}, nil
}

// Path is the CSV file being written.
func (h *History) Path() string {
	return h.csvPath
}

func (h *History) Record(_ context.Context, rec Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if rec.Time.IsZero() {
		rec.Time = time.Now().UTC()
	}
	if err := h.csv.WriteRecord(toCSV(rec)); err != nil {
		h.logger.Error("Failed to write execution to CSV",
			zap.String("request_id", rec.RequestID),
			zap.Error(err))
		return fmt.Errorf("failed to write execution: %w", err)
	}

	if len(h.recent) >= h.max {
		h.recent = h.recent[1:]
	}
	h.recent = append(h.recent, rec)

	switch rec.Kind {
	case KindExecuted:
		h.executed++
		h.totalProfit += rec.Profit
		h.sumBps += rec.ProfitBps
		if rec.ProfitBps > h.bestBps {
			h.bestBps = rec.ProfitBps
		}
	case KindFailed:
		h.failed++
	case KindCancelled:
		h.cancelled++
	}
	return nil
}

func toCSV(rec Record) []string {
	code, step := "", ""
	if rec.ErrorCode != 0 {
		code = rec.ErrorCode.Name()
	}
	if rec.FailedStep >= 0 {
		step = strconv.Itoa(rec.FailedStep)
	}
	detail := rec.Error
	if rec.Kind == KindCancelled {
		detail = rec.Reason
	}
	return []string{
		rec.Time.Format(time.RFC3339Nano),
		string(rec.Kind),
		rec.RequestID,
		rec.Owner,
		rec.Route,
		strconv.FormatUint(rec.StartAmount, 10),
		strconv.FormatUint(rec.FinalAmount, 10),
		strconv.FormatUint(rec.Profit, 10),
		BpsToPercent(rec.ProfitBps).StringFixed(2),
		strconv.Itoa(int(rec.StepsExecuted)),
		code,
		step,
		detail,
	}
}

// BpsToPercent converts basis points to a percentage (150 -> 1.50).
func BpsToPercent(bps uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(bps), -2)
}

// Recent returns up to limit of the newest records, oldest first.
func (h *History) Recent(limit int) []Record {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if limit <= 0 || limit > len(h.recent) {
		limit = len(h.recent)
	}
	out := make([]Record, limit)
	copy(out, h.recent[len(h.recent)-limit:])
	return out
}

// Find returns the newest record for requestID.
func (h *History) Find(requestID string) (Record, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for i := len(h.recent) - 1; i >= 0; i-- {
		if h.recent[i].RequestID == requestID {
			return h.recent[i], true
		}
	}
	return Record{}, false
}

// HistoryStats aggregates everything recorded since the history was opened.
type HistoryStats struct {
	Executed     int             `json:"executed"`
	Failed       int             `json:"failed"`
	Cancelled    int             `json:"cancelled"`
	SuccessRate  decimal.Decimal `json:"success_rate"`
	TotalProfit  uint64          `json:"total_profit"`
	AvgProfitPct decimal.Decimal `json:"avg_profit_pct"`
	BestProfit   decimal.Decimal `json:"best_profit_pct"`
}

func (h *History) Stats() HistoryStats {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.stats()
}

func (h *History) stats() HistoryStats {
	s := HistoryStats{
		Executed:     h.executed,
		Failed:       h.failed,
		Cancelled:    h.cancelled,
		SuccessRate:  decimal.Zero,
		TotalProfit:  h.totalProfit,
		AvgProfitPct: decimal.Zero,
		BestProfit:   BpsToPercent(h.bestBps),
	}
	if attempts := h.executed + h.failed; attempts > 0 {
		s.SuccessRate = decimal.NewFromInt(int64(h.executed)).
			Div(decimal.NewFromInt(int64(attempts))).
			Mul(decimal.NewFromInt(100)).Round(2)
	}
	if h.executed > 0 {
		s.AvgProfitPct = BpsToPercent(h.sumBps).Div(decimal.NewFromInt(int64(h.executed))).Round(2)
	}
	return s
}

// Flush forces buffered rows to disk.
func (h *History) Flush() error {
	return h.csv.Flush()
}

// Close logs the final statistics and closes the file.
func (h *History) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := h.stats()
	h.logger.Info("Closing execution history",
		zap.Int("executed", s.Executed),
		zap.Int("failed", s.Failed),
		zap.Uint64("total_profit", s.TotalProfit),
		zap.String("success_rate", s.SuccessRate.String()))

	return h.csv.Close()
}
