package agent

import (
	"regexp"
	"strings"
	"time"

	"github.com/okian/scout/internal/config"
	"github.com/okian/scout/internal/domain/result"
)

// metricAliases maps canonical metric names to the field spellings
// agents return. Order matters: the first present key wins.
var metricAliases = []struct {
	name    string
	aliases []string
}{
	{"mmlu", []string{"MMLU", "mmlu"}},
	{"arc_challenge", []string{"ARC", "arc", "arc_challenge"}},
	{"hellaswag", []string{"HellaSwag", "hellaswag"}},
	{"truthfulqa", []string{"TruthfulQA", "truthfulqa"}},
	{"winogrande", []string{"WinoGrande", "winogrande"}},
	{"gsm8k", []string{"GSM8K", "gsm8k"}},
	{"humaneval", []string{"HumanEval", "humaneval"}},
	{"arena_elo", []string{"Arena ELO", "arena_elo", "ELO", "elo"}},
	{"mbpp", []string{"MBPP", "mbpp"}},
	{"pass_at_1", []string{"pass_at_1", "Pass@1", "pass@1"}},
	{"hallucination_rate", []string{"hallucination_rate", "Hallucination Rate"}},
	{"lying_rate", []string{"lying_rate", "Lying Rate"}},
	{"manipulation_score", []string{"manipulation_score", "Manipulation Score"}},
	{"input_price", []string{"input_price", "Input Price"}},
	{"output_price", []string{"output_price", "Output Price"}},
	{"speed_tps", []string{"speed_tps", "speed", "Speed"}},
	{"latency_ms", []string{"latency_ms", "latency", "Latency"}},
	{"context_window", []string{"context_window", "Context Window"}},
}

var rankPattern = regexp.MustCompile(`(\d+)`)

// decodePayload turns the agent's loosely structured payload into a
// normalized Result. A nil return with notFound set means the agent
// reported the model absent; a nil return otherwise means the payload
// carried no usable data.
func decodePayload(raw map[string]any, src config.Source, modelName string) (res *result.Result, notFound bool) {
	status, _ := firstString(raw, "Status", "status")
	if strings.Contains(strings.ToLower(status), "not_found") {
		return nil, true
	}

	name, _ := firstString(raw, "Model", "model")
	if name == "" {
		name = modelName
	}

	out := result.Result{
		ModelID:    result.CanonicalModelID(name),
		ModelName:  name,
		SourceID:   src.Key,
		Metrics:    map[string]float64{},
		RawPayload: raw,
		ScrapedAt:  time.Now().UTC(),
	}

	if rank, ok := extractRank(raw); ok {
		out.Rank = &rank
	}

	if v, ok := firstValue(raw, "Score", "score", "Average Score", "average_score", "arena_elo", "Arena ELO"); ok {
		if f, ok := result.ExtractNumeric(v); ok {
			out.AverageScore = &f
		}
	}

	for _, m := range metricAliases {
		for _, key := range m.aliases {
			v, ok := raw[key]
			if !ok {
				continue
			}
			f, ok := result.ExtractNumeric(v)
			if !ok {
				continue
			}
			out.Metrics[m.name] = result.NormalizeScore(f, m.name, src.InvertScore)
			break
		}
	}

	// Fall back to the headline score when no named metric surfaced.
	if len(out.Metrics) == 0 && out.AverageScore != nil {
		switch src.Key {
		case "lmsys_arena":
			out.Metrics["arena_elo"] = result.NormalizeScore(*out.AverageScore, "arena_elo", false)
		case "livecodebench":
			out.Metrics["pass_at_1"] = result.NormalizeScore(*out.AverageScore, "pass_at_1", src.InvertScore)
		default:
			out.Metrics["score"] = result.NormalizeScore(*out.AverageScore, "score", src.InvertScore)
		}
	}

	if out.AverageScore == nil && len(out.Metrics) == 0 {
		return nil, false
	}
	return &out, false
}

func extractRank(raw map[string]any) (int, bool) {
	v, ok := firstValue(raw, "Rank", "rank")
	if !ok {
		return 0, false
	}
	switch r := v.(type) {
	case float64:
		return int(r), true
	case int:
		return r, true
	case string:
		if m := rankPattern.FindString(r); m != "" {
			f, ok := result.ExtractNumeric(m)
			if ok {
				return int(f), true
			}
		}
	}
	return 0, false
}

func firstValue(raw map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func firstString(raw map[string]any, keys ...string) (string, bool) {
	v, ok := firstValue(raw, keys...)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
