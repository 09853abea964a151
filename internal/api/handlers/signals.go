package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/wonny/newsquant/internal/contracts"
	"github.com/wonny/newsquant/pkg/logger"
)

// SignalReader lists stored signals, best first
type SignalReader interface {
	ListSince(ctx context.Context, since time.Time, limit int) ([]contracts.Signal, error)
}

// SignalHandler serves today's signals
type SignalHandler struct {
	reader SignalReader
	now    func() time.Time
	logger *logger.Logger
}

// NewSignalHandler creates a new signal handler
func NewSignalHandler(reader SignalReader, log *logger.Logger) *SignalHandler {
	return &SignalHandler{
		reader: reader,
		now:    time.Now,
		logger: log,
	}
}

// TodayResponse is the body of GET /api/signals/today
type TodayResponse struct {
	DayStart time.Time          `json:"day_start"`
	Top1     *contracts.Signal  `json:"top1"`
	Count    int                `json:"count"`
	Signals  []contracts.Signal `json:"signals"`
}

// GetToday returns the current UTC day's signals and the candidate the selector would pick
// GET /api/signals/today
func (h *SignalHandler) GetToday(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	clock := contracts.NewRunClock(h.now())
	list, err := h.reader.ListSince(r.Context(), clock.DayStart, limit)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list signals")
		respondError(w, http.StatusInternalServerError, "Failed to retrieve signals")
		return
	}

	resp := TodayResponse{DayStart: clock.DayStart, Count: len(list), Signals: list}
	for i := range list {
		if list[i].IsCandidate() {
			top := list[i]
			resp.Top1 = &top
			break
		}
	}

	respondJSON(w, http.StatusOK, resp)
}
