package config

import (
	"fmt"
	"sort"
)

// Source describes one external leaderboard the agent can extract from.
type Source struct {
	Key      string   `json:"key"`
	Name     string   `json:"name"`
	URL      string   `json:"url"`
	Category string   `json:"category"`
	Version  string   `json:"version"`
	Metrics  []string `json:"metrics"`

	// InvertScore marks lower-is-better sources (safety rates).
	InvertScore bool `json:"-"`

	// goalTemplate is the extraction instruction; %s receives the model name.
	goalTemplate string
}

// Goal renders the extraction instruction for a model.
func (s Source) Goal(modelName string) string {
	return fmt.Sprintf(s.goalTemplate, modelName, modelName)
}

// ExtractionPrompt is the verbatim system instruction for the extraction agent.
const ExtractionPrompt = `You are an autonomous benchmark extraction agent.

TASK:
Extract model performance data from the provided URL.

RULES:
- Extract ONLY what is explicitly present.
- Do NOT infer missing values.
- Do NOT normalize.
- Preserve metric names and units exactly.
- If a value is unavailable, return null.
- If extraction fails, return error_code.

OUTPUT:
Strict JSON following the provided schema.`

// benchmarkSources is the fixed catalog of supported leaderboards.
var benchmarkSources = map[string]Source{
	"huggingface": {
		Key:          "huggingface",
		Name:         "HuggingFace Open LLM Leaderboard",
		URL:          "https://huggingface.co/spaces/open-llm-leaderboard/open_llm_leaderboard",
		Category:     "general",
		Version:      "2025-06",
		Metrics:      []string{"mmlu", "arc_challenge", "hellaswag", "truthfulqa", "winogrande", "gsm8k"},
		goalTemplate: `Search for the model "%s" in the leaderboard. Extract its rank, average score, and individual benchmark scores (MMLU, ARC, HellaSwag, TruthfulQA, WinoGrande, GSM8K). Return as JSON with keys: model, rank, average_score, benchmark_metrics (object with each score). The model name again for matching: "%s".`,
	},
	"lmsys_arena": {
		Key:          "lmsys_arena",
		Name:         "LMSYS Chatbot Arena",
		URL:          "https://lmarena.ai/leaderboard",
		Category:     "general",
		Version:      "2025-06",
		Metrics:      []string{"arena_elo", "votes_count", "win_rate"},
		goalTemplate: `Find the model "%s" in the Arena leaderboard. Extract its Arena ELO rating, rank position, and vote statistics if visible. Return as JSON with keys: model, rank, arena_elo, average_score (use ELO as the score). The model name again for matching: "%s".`,
	},
	"vellum": {
		Key:          "vellum",
		Name:         "Vellum LLM Leaderboard",
		URL:          "https://vellum.ai/llm-leaderboard",
		Category:     "economics",
		Version:      "2025-06",
		Metrics:      []string{"input_price", "output_price", "speed", "latency", "context_window"},
		goalTemplate: `Find "%s" in the LLM comparison table. Extract: input price per 1M tokens, output price per 1M tokens, speed (tokens/sec), latency, and context window size. Return as JSON with keys: model, input_price, output_price, speed_tps, latency_ms, context_window. The model name again for matching: "%s".`,
	},
	"livecodebench": {
		Key:          "livecodebench",
		Name:         "LiveCodeBench",
		URL:          "https://livecodebench.github.io/leaderboard.html",
		Category:     "coding",
		Version:      "2025-06",
		Metrics:      []string{"pass_at_1", "humaneval", "mbpp"},
		goalTemplate: `Search for "%s" on the LiveCodeBench leaderboard. Extract pass@1 rate, HumanEval score, and MBPP score. Return as JSON with keys: model, rank, pass_at_1, humaneval, mbpp. The model name again for matching: "%s".`,
	},
	"mask": {
		Key:          "mask",
		Name:         "MASK Deception Benchmark",
		URL:          "https://scale.com/leaderboard/mask",
		Category:     "safety",
		Version:      "2025-06",
		Metrics:      []string{"lying_rate", "manipulation_score", "deception_score"},
		InvertScore:  true, // lower is better for safety rates
		goalTemplate: `Find "%s" on the MASK leaderboard. Extract lying rate, manipulation score, and deception metrics. Lower is better. Return as JSON with keys: model, rank, lying_rate, manipulation_score. The model name again for matching: "%s".`,
	},
	"vectara": {
		Key:          "vectara",
		Name:         "Vectara Hallucination Leaderboard",
		URL:          "https://github.com/vectara/hallucination-leaderboard",
		Category:     "safety",
		Version:      "2025-06",
		Metrics:      []string{"hallucination_rate", "factual_accuracy"},
		InvertScore:  true, // lower hallucination_rate is better
		goalTemplate: `Search for "%s" in the Vectara hallucination leaderboard README or table. Extract hallucination rate percentage. Lower is better. Return as JSON with keys: model, rank, hallucination_rate. The model name again for matching: "%s".`,
	},
}

// SourceByKey returns the catalog entry for a source key.
func SourceByKey(key string) (Source, bool) {
	s, ok := benchmarkSources[key]
	return s, ok
}

// Sources returns the catalog sorted by key.
func Sources() []Source {
	out := make([]Source, 0, len(benchmarkSources))
	for _, s := range benchmarkSources {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// SourceKeys returns all catalog keys sorted.
func SourceKeys() []string {
	keys := make([]string, 0, len(benchmarkSources))
	for k := range benchmarkSources {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ValidSources filters requested keys down to catalog members, preserving
// request order. Unknown keys are dropped, not errors; an empty request
// means every source.
func ValidSources(requested []string) []string {
	if len(requested) == 0 {
		return SourceKeys()
	}
	out := make([]string, 0, len(requested))
	for _, key := range requested {
		if _, ok := benchmarkSources[key]; ok {
			out = append(out, key)
		}
	}
	return out
}
