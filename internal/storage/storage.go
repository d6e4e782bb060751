// internal/storage/storage.go
package storage

import (
	"context"
	"errors"

	"github.com/rovshanmuradov/graph-arbitrage/internal/storage/models"
)

// ErrNotFound is returned when no execution matches.
var ErrNotFound = errors.New("execution not found")

// ListFilter selects executions. Empty fields match everything.
type ListFilter struct {
	Owner  string
	Status string
	Limit  int
	Offset int
}

// Stats aggregates executions, optionally for one owner.
type Stats struct {
	Total         int64   `json:"total"`
	Succeeded     int64   `json:"succeeded"`
	Failed        int64   `json:"failed"`
	Cancelled     int64   `json:"cancelled"`
	TotalProfit   uint64  `json:"total_profit"`
	AvgProfitBps  float64 `json:"avg_profit_bps"`
	BestProfitBps uint64  `json:"best_profit_bps"`
}

// SuccessRate is the percentage of succeeded executions among executed and
// failed ones. Cancels are not attempts.
func (s Stats) SuccessRate() float64 {
	attempts := s.Succeeded + s.Failed
	if attempts == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(attempts) * 100
}

// Store persists the audit trail.
type Store interface {
	SaveExecution(ctx context.Context, exec *models.Execution) error
	// GetExecution returns the latest execution with requestID.
	GetExecution(ctx context.Context, requestID string) (*models.Execution, error)
	ListExecutions(ctx context.Context, filter ListFilter) ([]*models.Execution, error)
	Stats(ctx context.Context, owner string) (*Stats, error)

	RunMigrations() error
	Close() error
}
