package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/internal/performance"
	"github.com/wonny/newsquant/pkg/logger"
)

// ExecutionFilter narrows GET /api/executions
type ExecutionFilter struct {
	Ticker string
	Since  *time.Time
	Until  *time.Time
	DryRun *bool
	Failed *bool
	Limit  int
}

// OutcomeFilter narrows GET /api/outcomes
type OutcomeFilter struct {
	Ticker string
	Since  *time.Time
	Limit  int
}

// TradeQuerier reads the audit and outcome tables
type TradeQuerier interface {
	Executions(ctx context.Context, f ExecutionFilter) ([]contracts.Execution, error)
	Outcomes(ctx context.Context, f OutcomeFilter) ([]contracts.Outcome, error)
}

// TradeHandler serves the audit trail and its evaluations
// ⭐ SSOT: 거래 조회 API 핸들러는 이 구조체에서만
type TradeHandler struct {
	store  TradeQuerier
	logger *logger.Logger
}

// NewTradeHandler creates a new trade handler
func NewTradeHandler(store TradeQuerier, log *logger.Logger) *TradeHandler {
	return &TradeHandler{store: store, logger: log}
}

// GetExecutions lists audit rows, newest first
// GET /api/executions?ticker=&since=&until=&dry_run=&failed=&limit=
func (h *TradeHandler) GetExecutions(w http.ResponseWriter, r *http.Request) {
	f := ExecutionFilter{Ticker: queryTicker(r)}

	var err error
	if f.Limit, err = queryLimit(r); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.Since, err = queryTime(r, "since"); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.Until, err = queryTime(r, "until"); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.DryRun, err = queryBool(r, "dry_run"); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.Failed, err = queryBool(r, "failed"); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	list, err := h.store.Executions(r.Context(), f)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list executions")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve executions")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":      len(list),
		"executions": list,
	})
}

// OutcomeView adds the excess return to an outcome
type OutcomeView struct {
	contracts.Outcome
	ExcessT3 float64 `json:"excess_t3"`
	ExcessT7 float64 `json:"excess_t7"`
}

// GetOutcomes lists evaluated executions, newest first
// GET /api/outcomes?ticker=&since=&period=&limit=
func (h *TradeHandler) GetOutcomes(w http.ResponseWriter, r *http.Request) {
	f := OutcomeFilter{Ticker: queryTicker(r)}

	var err error
	if f.Limit, err = queryLimit(r); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if f.Since, err = queryTime(r, "since"); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	period := r.URL.Query().Get("period")
	if period != "" && f.Since == nil {
		if f.Since, err = performance.ParsePeriod(period, time.Now()); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	list, err := h.store.Outcomes(r.Context(), f)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list outcomes")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve outcomes")
		return
	}

	views := make([]OutcomeView, len(list))
	for i, o := range list {
		views[i] = OutcomeView{
			Outcome:  o,
			ExcessT3: o.ExcessT3(),
			ExcessT7: o.ExcessT7(),
		}
	}

	report := performance.Summarize(list)
	report.Period = period
	report.Since = f.Since

	resp := map[string]interface{}{
		"count":       len(views),
		"outcomes":    views,
		"performance": report,
	}
	if len(views) > 0 {
		resp["mean_excess_t7"] = report.MeanExcessT7
	}
	respondJSON(w, http.StatusOK, resp)
}
