// internal/api/handlers.go
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/graph-arbitrage/internal/arbitrage"
	"github.com/rovshanmuradov/graph-arbitrage/internal/audit"
	"github.com/rovshanmuradov/graph-arbitrage/internal/routefile"
	"github.com/rovshanmuradov/graph-arbitrage/internal/storage"
	"github.com/rovshanmuradov/graph-arbitrage/internal/storage/models"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Code    uint32 `json:"code,omitempty"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message"`
	Step    *int   `json:"step,omitempty"`
}

func (s *Server) fail(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, errorResponse(err))
}

func errorResponse(err error) ErrorResponse {
	resp := ErrorResponse{Message: err.Error()}
	var aerr *arbitrage.Error
	if errors.As(err, &aerr) {
		resp.Code = uint32(aerr.Code)
		resp.Name = aerr.Code.Name()
		if aerr.Step != arbitrage.NoStep {
			step := aerr.Step
			resp.Step = &step
		}
	} else if code, ok := arbitrage.CodeOf(err); ok {
		resp.Code = uint32(code)
		resp.Name = code.Name()
	}
	return resp
}

// statusFor maps an execution error onto an HTTP status.
func statusFor(err error) int {
	code, ok := arbitrage.CodeOf(err)
	switch {
	case !ok:
		return http.StatusInternalServerError
	case code == arbitrage.ErrDuplicateRequest:
		return http.StatusConflict
	case code.IsValidation():
		return http.StatusBadRequest
	case code == arbitrage.ErrBalanceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}

// StepView is the JSON form of one executed step.
type StepView struct {
	Index        int    `json:"index"`
	Venue        string `json:"venue"`
	InputMint    string `json:"input_mint"`
	OutputMint   string `json:"output_mint"`
	InputAmount  uint64 `json:"input_amount"`
	MinOutput    uint64 `json:"min_output"`
	OutputAmount uint64 `json:"output_amount"`
	SlippageBps  uint16 `json:"slippage_bps"`
}

// ResultView is the JSON form of an execution result.
type ResultView struct {
	RequestID     string          `json:"request_id"`
	Owner         string          `json:"owner"`
	StartAmount   uint64          `json:"start_amount"`
	FinalAmount   uint64          `json:"final_amount"`
	Profit        uint64          `json:"profit"`
	ProfitBps     uint64          `json:"profit_bps"`
	ProfitPct     decimal.Decimal `json:"profit_pct"`
	StepsExecuted uint8           `json:"steps_executed"`
	Steps         []StepView      `json:"steps"`
}

func newResultView(res *arbitrage.ExecutionResult) ResultView {
	v := ResultView{
		RequestID:     res.RequestID,
		Owner:         res.Owner.String(),
		StartAmount:   res.StartAmount,
		FinalAmount:   res.FinalAmount,
		Profit:        res.Profit,
		ProfitBps:     res.ProfitBps,
		ProfitPct:     audit.BpsToPercent(res.ProfitBps),
		StepsExecuted: res.StepsExecuted,
		Steps:         make([]StepView, 0, len(res.Steps)),
	}
	for _, st := range res.Steps {
		v.Steps = append(v.Steps, StepView{
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
	return v
}

func (s *Server) bindRequest(c *gin.Context) (*arbitrage.ExecutionRequest, bool) {
	var body routefile.Request
	if err := c.ShouldBindJSON(&body); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return nil, false
	}
	req, err := body.Build(s.deps.Defaults)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return nil, false
	}
	return req, true
}

func (s *Server) submitExecution(c *gin.Context) {
	req, ok := s.bindRequest(c)
	if !ok {
		return
	}
	res, err := s.deps.Executor.Submit(c.Request.Context(), req)
	if err != nil {
		s.logger.Info("Execution rejected", zap.String("request_id", req.ID), zap.Error(err))
		s.fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, newResultView(res))
}

type batchBody struct {
	Requests []routefile.Request `json:"requests" binding:"required,min=1,max=64"`
}

// BatchItem is the outcome of one request of a batch. Status is the HTTP
// status the request would have received on its own.
type BatchItem struct {
	RequestID string         `json:"request_id"`
	Status    int            `json:"status"`
	Result    *ResultView    `json:"result,omitempty"`
	Error     *ErrorResponse `json:"error,omitempty"`
}

// submitBatch runs unrelated requests concurrently, each in its own unit.
// A body that fails to parse rejects the whole batch before anything runs.
func (s *Server) submitBatch(c *gin.Context) {
	var body batchBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	reqs := make([]*arbitrage.ExecutionRequest, 0, len(body.Requests))
	for i := range body.Requests {
		req, err := body.Requests[i].Build(s.deps.Defaults)
		if err != nil {
			s.fail(c, http.StatusBadRequest, fmt.Errorf("request %d: %w", i, err))
			return
		}
		reqs = append(reqs, req)
	}

	outcomes := s.deps.Executor.SubmitBatch(c.Request.Context(), reqs)
	items := make([]BatchItem, len(outcomes))
	for i, o := range outcomes {
		items[i] = BatchItem{RequestID: reqs[i].ID, Status: http.StatusOK}
		if o.Err != nil {
			resp := errorResponse(o.Err)
			items[i].Status = statusFor(o.Err)
			items[i].Error = &resp
			continue
		}
		view := newResultView(o.Result)
		items[i].Result = &view
	}
	s.logger.Info("Batch processed", zap.Int("requests", len(reqs)))
	c.JSON(http.StatusOK, gin.H{"results": items})
}

func (s *Server) validateRoute(c *gin.Context) {
	req, ok := s.bindRequest(c)
	if !ok {
		return
	}
	if err := s.deps.Executor.Validate(req); err != nil {
		s.fail(c, statusFor(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"valid":           true,
		"steps":           len(req.Route),
		"route":           req.Route.String(),
		"cycle":           req.Route.IsCycle(),
		"tracked_account": req.TrackedAccount.String(),
	})
}

type cancelBody struct {
	Reason string `json:"reason" binding:"required"`
}

func (s *Server) cancel(c *gin.Context) {
	var body cancelBody
	if err := c.ShouldBindJSON(&body); err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	if err := s.deps.Executor.Cancel(c.Request.Context(), body.Reason); err != nil {
		s.fail(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true, "reason": body.Reason})
}

func pageParams(c *gin.Context) (limit, offset int, err error) {
	limit, offset = defaultPageSize, 0
	if v := c.Query("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit <= 0 {
			return 0, 0, errors.New("limit must be a positive integer")
		}
		if limit > maxPageSize {
			limit = maxPageSize
		}
	}
	if v := c.Query("offset"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, errors.New("offset must be a non-negative integer")
		}
	}
	return limit, offset, nil
}

func (s *Server) listExecutions(c *gin.Context) {
	limit, offset, err := pageParams(c)
	if err != nil {
		s.fail(c, http.StatusBadRequest, err)
		return
	}
	filter := storage.ListFilter{
		Owner:  c.Query("owner"),
		Status: c.Query("status"),
		Limit:  limit,
		Offset: offset,
	}

	switch {
	case s.deps.Store != nil:
		execs, err := s.deps.Store.ListExecutions(c.Request.Context(), filter)
		if err != nil {
			s.fail(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"executions": execs})
	case s.deps.History != nil:
		c.JSON(http.StatusOK, gin.H{"executions": filterHistory(s.deps.History.Recent(0), filter)})
	default:
		s.fail(c, http.StatusNotFound, errors.New("execution history is not configured"))
	}
}

// filterHistory applies filter to in-memory records, newest first like the
// database listing.
func filterHistory(recs []audit.Record, f storage.ListFilter) []*models.Execution {
	out := make([]*models.Execution, 0, f.Limit)
	skipped := 0
	for i := len(recs) - 1; i >= 0 && len(out) < f.Limit; i-- {
		exec := audit.ToModel(recs[i])
		if f.Owner != "" && exec.Owner != f.Owner {
			continue
		}
		if f.Status != "" && exec.Status != f.Status {
			continue
		}
		if skipped < f.Offset {
			skipped++
			continue
		}
		out = append(out, exec)
	}
	return out
}

func (s *Server) getExecution(c *gin.Context) {
	id := c.Param("id")
	switch {
	case s.deps.Store != nil:
		exec, err := s.deps.Store.GetExecution(c.Request.Context(), id)
		if errors.Is(err, storage.ErrNotFound) {
			s.fail(c, http.StatusNotFound, err)
			return
		}
		if err != nil {
			s.fail(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, exec)
	case s.deps.History != nil:
		rec, ok := s.deps.History.Find(id)
		if !ok {
			s.fail(c, http.StatusNotFound, storage.ErrNotFound)
			return
		}
		c.JSON(http.StatusOK, audit.ToModel(rec))
	default:
		s.fail(c, http.StatusNotFound, errors.New("execution history is not configured"))
	}
}

func (s *Server) stats(c *gin.Context) {
	switch {
	case s.deps.Store != nil:
		st, err := s.deps.Store.Stats(c.Request.Context(), c.Query("owner"))
		if err != nil {
			s.fail(c, http.StatusInternalServerError, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"stats":        st,
			"success_rate": decimal.NewFromFloat(st.SuccessRate()).Round(2),
		})
	case s.deps.History != nil:
		c.JSON(http.StatusOK, gin.H{"stats": s.deps.History.Stats()})
	default:
		s.fail(c, http.StatusNotFound, errors.New("execution history is not configured"))
	}
}

func (s *Server) health(c *gin.Context) {
	if s.deps.Health != nil {
		if err := s.deps.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
