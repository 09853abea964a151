package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/newsquant/internal/contracts"
)

func TestMetrics_OnEvent(t *testing.T) {
	m := NewMetrics()
	now := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)

	m.OnEvent(contracts.Event{
		Type:   contracts.EventStageCompleted,
		Result: &contracts.StageResult{Stage: contracts.StageAnalyze, OutputCount: 12, DurationMs: 1500},
		Data:   map[string]any{"batch_failures": map[string]int{"timeout": 2}},
	})
	m.OnEvent(contracts.Event{Type: contracts.EventGateDecided, Data: map[string]any{"reason": "approved"}})
	m.OnEvent(contracts.Event{Type: contracts.EventExecutionRecorded, Data: map[string]any{"state": "dry_filled"}})
	m.OnEvent(contracts.Event{Type: contracts.EventRunFinished, Time: now, Data: map[string]any{"failed": false}})
	m.OnEvent(contracts.Event{Type: contracts.EventRunFinished, Time: now, Data: map[string]any{"failed": true}})
	m.OnEvent(contracts.Event{Type: contracts.EventOutcomeRecorded, Data: map[string]any{"excess_t7": 0.03}})

	assert.Equal(t, 12.0, testutil.ToFloat64(m.StageItems.WithLabelValues("ANALYZE")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.BatchFailures.WithLabelValues("timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GateDecisions.WithLabelValues("approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Executions.WithLabelValues("dry_filled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("error")))
	assert.Equal(t, float64(now.Unix()), testutil.ToFloat64(m.LastSuccessfulRun))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.OutcomesRecorded))
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics()
	m.GateDecisions.WithLabelValues("below_threshold").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `newsquant_risk_gate_decisions_total{reason="below_threshold"} 1`)
}
