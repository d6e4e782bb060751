package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/graph-arbitrage/internal/audit"
	"github.com/rovshanmuradov/graph-arbitrage/internal/storage/models"
)

// Format represents the export file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// Options configures the export behavior
type Options struct {
	Format    Format
	StartTime time.Time
	EndTime   time.Time
	Owner     string
	Status    string
	OutputDir string
}

// Exporter writes execution history to files.
type Exporter struct {
	logger *zap.Logger
}

func NewExporter(logger *zap.Logger) *Exporter {
	return &Exporter{logger: logger}
}

// Export writes the executions matching options and returns the file path.
func (e *Exporter) Export(execs []*models.Execution, options Options) (string, error) {
	filtered := filter(execs, options)
	if len(filtered) == 0 {
		return "", fmt.Errorf("no executions match the export criteria")
	}
	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].ExecutedAt.Before(filtered[j].ExecutedAt)
	})

	if err := os.MkdirAll(options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	outputPath := filepath.Join(options.OutputDir, filename(options))

	var err error
	switch options.Format {
	case FormatCSV:
		err = exportCSV(filtered, outputPath)
	case FormatJSON:
		err = exportJSON(filtered, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}
	if err != nil {
		return "", err
	}

	e.logger.Info("Executions exported",
		zap.String("file", outputPath),
		zap.Int("count", len(filtered)),
		zap.String("format", string(options.Format)))
	return outputPath, nil
}

func filter(execs []*models.Execution, o Options) []*models.Execution {
	var out []*models.Execution
	for _, exec := range execs {
		if !o.StartTime.IsZero() && exec.ExecutedAt.Before(o.StartTime) {
			continue
		}
		if !o.EndTime.IsZero() && exec.ExecutedAt.After(o.EndTime) {
			continue
		}
		if o.Owner != "" && exec.Owner != o.Owner {
			continue
		}
		if o.Status != "" && exec.Status != o.Status {
			continue
		}
		out = append(out, exec)
	}
	return out
}

func filename(o Options) string {
	prefix := "executions_all"
	if o.Status != "" {
		prefix = "executions_" + o.Status
	}
	if len(o.Owner) >= 8 {
		prefix += "_" + o.Owner[:8]
	}
	return fmt.Sprintf("%s_%s.%s", prefix, time.Now().Format("20060102_150405"), o.Format)
}

var csvHeaders = []string{
	"executed_at", "request_id", "owner", "status", "route",
	"start_amount", "final_amount", "profit", "profit_pct", "steps",
	"error_code", "error_name", "failed_step", "reason",
}

func csvRow(exec *models.Execution) []string {
	return []string{
		exec.ExecutedAt.UTC().Format(time.RFC3339),
		exec.RequestID,
		exec.Owner,
		exec.Status,
		exec.Route,
		strconv.FormatUint(exec.StartAmount, 10),
		strconv.FormatUint(exec.FinalAmount, 10),
		strconv.FormatUint(exec.Profit, 10),
		audit.BpsToPercent(exec.ProfitBps).StringFixed(2),
		strconv.Itoa(int(exec.StepsExecuted)),
		strconv.FormatUint(uint64(exec.ErrorCode), 10),
		exec.ErrorName,
		strconv.Itoa(exec.FailedStep),
		exec.Reason,
	}
}

func exportCSV(execs []*models.Execution, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(csvHeaders); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, exec := range execs {
		if err := writer.Write(csvRow(exec)); err != nil {
			return fmt.Errorf("failed to write execution: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func exportJSON(execs []*models.Execution, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")

	data := struct {
		ExportTime time.Time           `json:"export_time"`
		Count      int                 `json:"count"`
		Summary    Summary             `json:"summary"`
		Executions []*models.Execution `json:"executions"`
	}{
		ExportTime: time.Now(),
		Count:      len(execs),
		Summary:    Summarize(execs),
		Executions: execs,
	}
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// Summary aggregates an exported set.
type Summary struct {
	Total        int             `json:"total"`
	Succeeded    int             `json:"succeeded"`
	Failed       int             `json:"failed"`
	Cancelled    int             `json:"cancelled"`
	TotalProfit  uint64          `json:"total_profit"`
	AvgProfitPct decimal.Decimal `json:"avg_profit_pct"`
	// StepsByVenue counts executed hops of succeeded routes.
	StepsByVenue map[string]int `json:"steps_by_venue"`
	// FailuresByError counts failed executions per error name.
	FailuresByError map[string]int `json:"failures_by_error"`
	StartDate       time.Time      `json:"start_date"`
	EndDate         time.Time      `json:"end_date"`
}

// Summarize aggregates execs, which must be sorted by time.
func Summarize(execs []*models.Execution) Summary {
	s := Summary{
		Total:           len(execs),
		StepsByVenue:    make(map[string]int),
		FailuresByError: make(map[string]int),
	}
	if len(execs) == 0 {
		return s
	}
	s.StartDate = execs[0].ExecutedAt
	s.EndDate = execs[len(execs)-1].ExecutedAt

	var sumBps uint64
	for _, exec := range execs {
		switch exec.Status {
		case models.StatusSucceeded:
			s.Succeeded++
			s.TotalProfit += exec.Profit
			sumBps += exec.ProfitBps
			for _, st := range exec.Steps {
				s.StepsByVenue[st.Venue]++
			}
		case models.StatusFailed:
			s.Failed++
			name := exec.ErrorName
			if name == "" {
				name = "unknown"
			}
			s.FailuresByError[name]++
		case models.StatusCancelled:
			s.Cancelled++
		}
	}
	if s.Succeeded > 0 {
		s.AvgProfitPct = audit.BpsToPercent(sumBps).Div(decimal.NewFromInt(int64(s.Succeeded))).Round(4)
	}
	return s
}
