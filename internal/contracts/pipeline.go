package contracts

// Pipeline Stage 정의 (SSOT)
// Every log line, event and metric label uses these constants.
//
// Flow of one daily run:
//   Collect → Ingest → Analyze → Select → Gate → Execute
// Evaluate runs separately, days later.

// Stage represents a pipeline stage
type Stage string

const (
	// StageCollect gathers headlines from RSS and Reddit.
	// Location: internal/collector/
	StageCollect Stage = "COLLECT"

	// StageIngest deduplicates and persists raw items.
	// Location: internal/ingest/
	StageIngest Stage = "INGEST"

	// StageAnalyze turns new titles into normalized signals.
	// Location: internal/analyzer/
	StageAnalyze Stage = "ANALYZE"

	// StageSelect persists signals and picks today's Top1.
	// Location: internal/signals/
	StageSelect Stage = "SELECT"

	// StageGate applies the sentiment threshold and the daily cap.
	// Location: internal/execution/risk_gate.go
	StageGate Stage = "GATE"

	// StageExecute places the order and writes the audit row.
	// Location: internal/execution/coordinator.go
	StageExecute Stage = "EXECUTE"

	// StageEvaluate scores past executions against the benchmark.
	// Location: internal/evaluator/
	StageEvaluate Stage = "EVALUATE"
)

// String returns the stage name
func (s Stage) String() string {
	return string(s)
}

// Description returns a human readable description
func (s Stage) Description() string {
	switch s {
	case StageCollect:
		return "headline collection"
	case StageIngest:
		return "dedup and persist raw items"
	case StageAnalyze:
		return "sentiment analysis"
	case StageSelect:
		return "signal storage and Top1 selection"
	case StageGate:
		return "risk gate"
	case StageExecute:
		return "order execution and audit"
	case StageEvaluate:
		return "outcome evaluation"
	default:
		return "unknown"
	}
}

// AllStages returns all pipeline stages in order
func AllStages() []Stage {
	return []Stage{
		StageCollect,
		StageIngest,
		StageAnalyze,
		StageSelect,
		StageGate,
		StageExecute,
		StageEvaluate,
	}
}

// IsValidStage checks if a stage string is valid
func IsValidStage(s string) bool {
	for _, stage := range AllStages() {
		if string(stage) == s {
			return true
		}
	}
	return false
}

// StageResult records how one stage of a run ended
type StageResult struct {
	Stage       Stage                  `json:"stage"`
	Success     bool                   `json:"success"`
	InputCount  int                    `json:"input_count"`
	OutputCount int                    `json:"output_count"`
	DurationMs  int64                  `json:"duration_ms"`
	Error       string                 `json:"error,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}
