package result

import (
	"regexp"
	"strconv"
	"strings"
)

// ELO normalization bounds. Arena ratings cluster in this band.
const (
	eloFloor   = 1000.0
	eloCeiling = 1500.0
)

// invertMetrics are lower-is-better rates that flip during normalization.
var invertMetrics = map[string]struct{}{
	"lying_rate":         {},
	"manipulation_score": {},
	"deception_score":    {},
	"hallucination_rate": {},
}

// eloMetrics are rating-style metrics on the 1000-1500 band.
var eloMetrics = map[string]struct{}{
	"arena_elo": {},
	"elo":       {},
}

// modelAliases maps common raw leaderboard names to canonical ids.
var modelAliases = map[string]string{
	"gpt-4o":                     "openai/gpt-4o",
	"gpt-4o-2024-08":             "openai/gpt-4o",
	"gpt-4o-2024-05-13":          "openai/gpt-4o",
	"gpt-4-turbo":                "openai/gpt-4-turbo",
	"gpt-4":                      "openai/gpt-4",
	"gpt-3.5-turbo":              "openai/gpt-3.5-turbo",
	"claude-3.5-sonnet":          "anthropic/claude-3.5-sonnet",
	"claude-3-5-sonnet-20240620": "anthropic/claude-3.5-sonnet",
	"claude-3-opus":              "anthropic/claude-3-opus",
	"claude-3-sonnet":            "anthropic/claude-3-sonnet",
	"claude-3-haiku":             "anthropic/claude-3-haiku",
	"gemini-1.5-pro":             "google/gemini-1.5-pro",
	"gemini-1.5-flash":           "google/gemini-1.5-flash",
	"gemini-pro":                 "google/gemini-pro",
	"llama-3-70b-instruct":       "meta/llama-3-70b-instruct",
	"llama-3-8b-instruct":        "meta/llama-3-8b-instruct",
	"llama-3.1-405b-instruct":    "meta/llama-3.1-405b-instruct",
	"llama-3.1-70b-instruct":     "meta/llama-3.1-70b-instruct",
	"llama-3.1-8b-instruct":      "meta/llama-3.1-8b-instruct",
	"mistral-large":              "mistral/mistral-large",
	"mistral-large-2":            "mistral/mistral-large-2",
	"mistral-medium":             "mistral/mistral-medium",
	"mistral-small":              "mistral/mistral-small",
	"mixtral-8x7b":               "mistral/mixtral-8x7b",
	"deepseek-v2-chat":           "deepseek/deepseek-v2-chat",
	"deepseek-coder":             "deepseek/deepseek-coder",
	"qwen2-72b-instruct":         "alibaba/qwen2-72b-instruct",
	"qwen2-7b-instruct":          "alibaba/qwen2-7b-instruct",
	"command-r-plus":             "cohere/command-r-plus",
	"command-r":                  "cohere/command-r",
}

// vendorPrefixes are stripped before alias lookup.
var vendorPrefixes = []string{"meta-llama/", "openai/", "anthropic/"}

// CanonicalModelID resolves a raw leaderboard model name to a stable id.
// Unknown names pass through unchanged so new models still aggregate
// under whatever each source calls them.
func CanonicalModelID(raw string) string {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	for _, prefix := range vendorPrefixes {
		normalized = strings.ReplaceAll(normalized, prefix, "")
	}
	if canonical, ok := modelAliases[normalized]; ok {
		return canonical
	}
	return raw
}

// NormalizeScore maps a raw benchmark value onto 0-100 where higher is
// better. Lower-is-better rates are inverted; ELO ratings are scaled
// from the 1000-1500 band; everything else is clamped.
func NormalizeScore(raw float64, metric string, sourceInverts bool) float64 {
	name := strings.ToLower(metric)

	if _, ok := eloMetrics[name]; ok {
		scaled := (raw - eloFloor) / (eloCeiling - eloFloor) * 100
		return clamp(scaled, 0, 100)
	}

	_, invert := invertMetrics[name]
	if raw <= 100 {
		if invert || sourceInverts {
			return 100 - raw
		}
		return clamp(raw, 0, 100)
	}
	return clamp(raw, 0, 100)
}

var numericPattern = regexp.MustCompile(`(\d+\.?\d*)`)

// naValues are strings that mean "no data" on leaderboards.
var naValues = map[string]struct{}{
	"n/a": {}, "na": {}, "null": {}, "none": {}, "-": {}, "": {},
}

// ExtractNumeric pulls a float out of the loosely typed values agents
// return: direct numbers, "89.1% (Pass@1)", "1287", or N/A markers.
// The second return is false when no number is present.
func ExtractNumeric(value any) (float64, bool) {
	switch v := value.(type) {
	case nil:
		return 0, false
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		if _, na := naValues[strings.ToLower(strings.TrimSpace(v))]; na {
			return 0, false
		}
		m := numericPattern.FindString(v)
		if m == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
