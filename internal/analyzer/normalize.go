package analyzer

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/wonny/newsquant/internal/contracts"
)

// tickerPattern accepts "AAPL", "BRK.B", "RDS-A"
var tickerPattern = regexp.MustCompile(`^[A-Z]{1,6}([.-][A-Z]{1,4})?$`)

// NormalizeTicker returns the ticker when v is a string matching tickerPattern
// as-is, nil otherwise. Case and whitespace are never corrected.
func NormalizeTicker(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	if !tickerPattern.MatchString(s) {
		return nil
	}
	return &s
}

// NormalizeSentiment coerces v to a number clamped to [-1, 1].
// Non-numeric input (including NaN and booleans) becomes 0.
func NormalizeSentiment(v any) float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}

	if math.IsNaN(f) {
		return 0
	}
	return math.Max(-1, math.Min(1, f))
}

// NormalizeSummary returns v truncated to SummaryMaxRunes, or "" for non-strings
func NormalizeSummary(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) > contracts.SummaryMaxRunes {
		return string(runes[:contracts.SummaryMaxRunes])
	}
	return s
}

// NormalizeRiskTags keeps every string element of an array, blanks and
// duplicates included, so any flagged tag disqualifies the signal.
// Anything that is not an array yields no tags.
func NormalizeRiskTags(v any) []string {
	var elems []any
	switch x := v.(type) {
	case []any:
		elems = x
	case []string:
		elems = make([]any, len(x))
		for i, s := range x {
			elems[i] = s
		}
	default:
		return []string{}
	}

	tags := make([]string, 0, len(elems))
	for _, e := range elems {
		if s, ok := e.(string); ok {
			tags = append(tags, s)
		}
	}
	return tags
}

// NormalizeElement maps one loosely typed response element to a Signal
func NormalizeElement(elem map[string]any) contracts.Signal {
	return contracts.Signal{
		Ticker:    NormalizeTicker(elem["ticker"]),
		Sentiment: NormalizeSentiment(elem["sentiment"]),
		Summary:   NormalizeSummary(elem["summary"]),
		RiskTags:  NormalizeRiskTags(elem["risk_tags"]),
	}
}
