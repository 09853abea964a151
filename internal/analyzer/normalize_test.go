package analyzer

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTicker(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  string // "" means no ticker
	}{
		{"plain", "AAPL", "AAPL"},
		{"class share dot", "BRK.B", "BRK.B"},
		{"class share dash", "RDS-A", "RDS-A"},
		{"single letter", "F", "F"},
		{"surrounding spaces", " NVDA ", ""},
		{"trailing newline", "NVDA\n", ""},
		{"lowercase", "aapl", ""},
		{"digits", "123", ""},
		{"empty", "", ""},
		{"nil", nil, ""},
		{"too long", "ABCDEFG", ""},
		{"suffix too long", "BRK.ABCDE", ""},
		{"exchange prefix", "NASDAQ:AAPL", ""},
		{"number type", 42.0, ""},
		{"dollar sign", "$TSLA", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeTicker(tt.input)
			if tt.want == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestNormalizeSentiment(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  float64
	}{
		{"in range", 0.42, 0.42},
		{"above range", 5.0, 1.0},
		{"below range", -9.0, -1.0},
		{"int", 1, 1.0},
		{"numeric string", "0.5", 0.5},
		{"json number", json.Number("-0.25"), -0.25},
		{"word", "bullish", 0},
		{"nil", nil, 0},
		{"bool", true, 0},
		{"nan", math.NaN(), 0},
		{"positive infinity", math.Inf(1), 1},
		{"negative infinity", math.Inf(-1), -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeSentiment(tt.input)
			assert.InDelta(t, tt.want, got, 1e-12)
			assert.GreaterOrEqual(t, got, -1.0)
			assert.LessOrEqual(t, got, 1.0)
		})
	}
}

func TestNormalizeSummary(t *testing.T) {
	long := strings.Repeat("가", 80)

	assert.Equal(t, "Chipmaker beats estimates", NormalizeSummary("  Chipmaker beats estimates "))
	assert.Equal(t, "", NormalizeSummary(12))
	assert.Equal(t, "", NormalizeSummary(nil))
	assert.Equal(t, strings.Repeat("가", 60), NormalizeSummary(long))
	assert.Len(t, []rune(NormalizeSummary(strings.Repeat("x", 61))), 60)
}

func TestNormalizeRiskTags(t *testing.T) {
	tests := []struct {
		name  string
		input any
		want  []string
	}{
		{"strings", []any{"fraud", "halt"}, []string{"fraud", "halt"}},
		{"mixed types", []any{"fraud", 3, nil, map[string]any{}, "litigation"}, []string{"fraud", "litigation"}},
		{"duplicates and blanks kept", []any{"halt", " ", "halt", ""}, []string{"halt", " ", "halt", ""}},
		{"typed slice", []string{"short-report"}, []string{"short-report"}},
		{"string not array", "fraud", []string{}},
		{"nil", nil, []string{}},
		{"object", map[string]any{"a": "b"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeRiskTags(tt.input))
		})
	}
}

func TestNormalizeElement(t *testing.T) {
	sig := NormalizeElement(map[string]any{
		"ticker":    "NVDA",
		"sentiment": 0.95,
		"summary":   "Record datacenter revenue",
		"risk_tags": []any{},
	})

	require.NotNil(t, sig.Ticker)
	assert.Equal(t, "NVDA", *sig.Ticker)
	assert.Equal(t, 0.95, sig.Sentiment)
	assert.Equal(t, "Record datacenter revenue", sig.Summary)
	assert.Empty(t, sig.RiskTags)
	assert.True(t, sig.IsCandidate())

	blankTag := NormalizeElement(map[string]any{
		"ticker":    "NVDA",
		"sentiment": 0.9,
		"risk_tags": []any{""},
	})
	assert.Equal(t, []string{""}, blankTag.RiskTags)
	assert.False(t, blankTag.IsCandidate(), "a blank risk tag still disqualifies")

	empty := NormalizeElement(map[string]any{})
	assert.Nil(t, empty.Ticker)
	assert.Zero(t, empty.Sentiment)
	assert.Equal(t, []string{}, empty.RiskTags)
}
