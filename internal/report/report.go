// internal/report/report.go
package report

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"github.com/rovshanmuradov/graph-arbitrage/internal/arbitrage"
	"github.com/rovshanmuradov/graph-arbitrage/internal/audit"
)

// Renderer formats execution outcomes for the terminal. Amounts are shown in
// UI units of a token with Decimals decimals.
type Renderer struct {
	Styles   Styles
	Decimals int32
}

func NewRenderer(decimals int32) *Renderer {
	return &Renderer{Styles: DefaultStyles(), Decimals: decimals}
}

// Amount formats a raw token amount.
func (r *Renderer) Amount(raw uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(raw), -r.Decimals).StringFixed(r.Decimals)
}

func (r *Renderer) line(label, value string) string {
	return r.Styles.Label.Render(label) + value
}

// Result renders a committed execution.
func (r *Renderer) Result(req *arbitrage.ExecutionRequest, res *arbitrage.ExecutionResult) string {
	s := r.Styles
	pct := audit.BpsToPercent(res.ProfitBps)

	summary := strings.Join([]string{
		s.Title.Render("Route executed"),
		r.line("Request", s.Value.Render(res.RequestID)),
		r.line("Route", s.Value.Render(req.Route.String())),
		r.line("Start", s.Value.Render(r.Amount(res.StartAmount))),
		r.line("Final", s.Value.Render(r.Amount(res.FinalAmount))),
		r.line("Profit", s.Profit.Render(fmt.Sprintf("%s (%s%%, %d bps)", r.Amount(res.Profit), pct.StringFixed(2), res.ProfitBps))),
		r.line("Min profit", s.Value.Render(fmt.Sprintf("%d bps", req.MinProfitBps))),
	}, "\n")

	table := NewTable(s,
		Column{Header: "#", Align: lipgloss.Right},
		Column{Header: "Venue"},
		Column{Header: "In", Align: lipgloss.Right},
		Column{Header: "Min out", Align: lipgloss.Right},
		Column{Header: "Out", Align: lipgloss.Right},
		Column{Header: "Slip bps", Align: lipgloss.Right},
	)
	for _, st := range res.Steps {
		table.AddRow(
			fmt.Sprintf("%d", st.Index+1),
			st.Venue.String(),
			r.Amount(st.InputAmount),
			r.Amount(st.MinOutput),
			r.Amount(st.OutputAmount),
			fmt.Sprintf("%d", st.SlippageBps),
		)
	}

	return s.Box.Render(lipgloss.JoinVertical(lipgloss.Left, summary, "", table.View()))
}

// Failure renders a rejected or rolled back execution.
func (r *Renderer) Failure(req *arbitrage.ExecutionRequest, err error) string {
	s := r.Styles
	lines := []string{s.Loss.Render("Route rejected")}
	if req != nil {
		lines = append(lines, r.line("Request", s.Value.Render(req.ID)))
	}
	var aerr *arbitrage.Error
	if code, ok := arbitrage.CodeOf(err); ok {
		lines = append(lines, r.line("Error", s.Warning.Render(fmt.Sprintf("%s (%d)", code.Name(), uint32(code)))))
	}
	if errors.As(err, &aerr) && aerr.Step != arbitrage.NoStep {
		lines = append(lines, r.line("Step", s.Value.Render(fmt.Sprintf("%d (%s)", aerr.Step+1, aerr.Venue))))
	}
	lines = append(lines, r.line("Detail", s.Value.Render(err.Error())))
	return s.ErrorBox.Render(strings.Join(lines, "\n"))
}

// Validation renders a route that passed validation.
func (r *Renderer) Validation(req *arbitrage.ExecutionRequest) string {
	s := r.Styles
	return s.Box.Render(strings.Join([]string{
		s.Profit.Render("Route is valid"),
		r.line("Request", s.Value.Render(req.ID)),
		r.line("Steps", s.Value.Render(fmt.Sprintf("%d", len(req.Route)))),
		r.line("Route", s.Value.Render(req.Route.String())),
		r.line("Cycle", r.cycle(req.Route)),
		r.line("Tracked", s.Value.Render(req.TrackedAccount.String())),
		r.line("Min profit", s.Value.Render(fmt.Sprintf("%d bps", req.MinProfitBps))),
		r.line("Max slippage", s.Value.Render(fmt.Sprintf("%d bps", req.MaxSlippageBps))),
	}, "\n"))
}

// cycle flags routes that end in a different asset than they start with.
func (r *Renderer) cycle(route arbitrage.Route) string {
	if route.IsCycle() {
		return r.Styles.Value.Render("yes")
	}
	return r.Styles.Warning.Render("no, route ends in a different asset")
}

// Balance renders a token balance read from the chain.
func (r *Renderer) Balance(account string, raw uint64) string {
	s := r.Styles
	return strings.Join([]string{
		r.line("Account", s.Value.Render(account)),
		r.line("Balance", s.Profit.Render(r.Amount(raw))),
	}, "\n")
}

// Stats renders the aggregate of an audit history.
func (r *Renderer) Stats(st audit.HistoryStats) string {
	s := r.Styles
	return strings.Join([]string{
		s.Title.Render("Session"),
		r.line("Executed", s.Value.Render(fmt.Sprintf("%d", st.Executed))),
		r.line("Failed", s.Value.Render(fmt.Sprintf("%d", st.Failed))),
		r.line("Cancelled", s.Value.Render(fmt.Sprintf("%d", st.Cancelled))),
		r.line("Success rate", s.Value.Render(st.SuccessRate.StringFixed(2)+"%")),
		r.line("Total profit", s.Profit.Render(r.Amount(st.TotalProfit))),
	}, "\n")
}
