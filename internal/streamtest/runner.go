package streamtest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

const scanBufferSize = 1 << 20

// Run exercises the server end to end and logs a summary.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{StartTime: time.Now()}

	log.Printf("🔍 Checking server at %s...", config.BaseURL)
	if err := healthCheck(ctx, config.BaseURL); err != nil {
		return fmt.Errorf("server health check failed: %w", err)
	}
	log.Printf("✅ Server is up")

	endpoint, body := buildRequest(config)
	log.Printf("📡 Opening stream %s for %q...", endpoint, config.ModelName)

	if err := consumeStream(ctx, config, endpoint, body, stats); err != nil {
		return err
	}

	stats.Duration = time.Since(stats.StartTime)
	report(stats)

	if !stats.SawDone {
		return errors.New("stream ended without a done event")
	}
	return nil
}

func healthCheck(ctx context.Context, baseURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/stats", http.NoBody)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func buildRequest(config *Config) (endpoint string, body map[string]any) {
	if config.CompareTo != "" {
		return "/api/compare", map[string]any{
			"model_a": config.ModelName,
			"model_b": config.CompareTo,
			"sources": config.Sources,
		}
	}
	return "/api/search", map[string]any{
		"model_name": config.ModelName,
		"sources":    config.Sources,
	}
}

func consumeStream(ctx context.Context, config *Config, endpoint string, body map[string]any, stats *Stats) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request body: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, config.BaseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("stream request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	started := make(map[string]time.Time)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, scanBufferSize), scanBufferSize)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, ":") {
			stats.Keepalives++
			if config.Verbose {
				log.Printf("💓 %s", strings.TrimSpace(strings.TrimPrefix(line, ":")))
			}
			continue
		}
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		var f frame
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &f); err != nil {
			log.Printf("⚠️  Unparseable frame: %s", line)
			continue
		}
		stats.FramesReceived++
		handleFrame(config, f, started, stats)

		// Per-source done frames carry a source id; only the bare done
		// terminates the stream.
		if f.Type == "done" {
			if f.Source != "" {
				if config.Verbose {
					log.Printf("🏁 %s settled", f.Source)
				}
				continue
			}
			stats.SawDone = true
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("stream read failed: %w", err)
	}
	return nil
}

func handleFrame(config *Config, f frame, started map[string]time.Time, stats *Stats) {
	switch f.Type {
	case "init":
		log.Printf("🚀 Comparison started")
	case "status":
		if f.Status == "running" {
			started[f.Source] = time.Now()
			if config.Verbose {
				log.Printf("⏳ %s running", f.Source)
			}
		}
	case "log":
		if config.Verbose {
			log.Printf("📝 [%s] %s", f.Source, f.Message)
		}
	case "cache_hit":
		stats.CacheHits++
		stats.Outcomes = append(stats.Outcomes, sourceOutcome{
			Source: f.Source, Terminal: "cache_hit", Elapsed: sinceStart(started, f.Source),
		})
		log.Printf("⚡ %s served from cache", f.Source)
	case "result":
		stats.Results++
		stats.Outcomes = append(stats.Outcomes, sourceOutcome{
			Source: f.Source, Terminal: "completed", Elapsed: sinceStart(started, f.Source),
		})
		log.Printf("✅ %s result in %s", f.Source, sinceStart(started, f.Source).Round(time.Millisecond))
	case "warning":
		stats.Warnings++
		stats.Outcomes = append(stats.Outcomes, sourceOutcome{
			Source: f.Source, Terminal: "warning", Message: f.Message, Elapsed: sinceStart(started, f.Source),
		})
		log.Printf("🟡 %s: %s", f.Source, f.Message)
	case "error":
		stats.Errors++
		stats.Outcomes = append(stats.Outcomes, sourceOutcome{
			Source: f.Source, Terminal: "failed", Message: f.Message, Elapsed: sinceStart(started, f.Source),
		})
		log.Printf("❌ %s [%s]: %s", f.Source, f.ErrorCode, f.Message)
	case "complete":
		stats.SawComplete = true
	}
}

func sinceStart(started map[string]time.Time, source string) time.Duration {
	if t, ok := started[source]; ok {
		return time.Since(t)
	}
	return 0
}

func report(stats *Stats) {
	log.Printf(`📊 Stream summary:
   Frames: %d (keepalives: %d)
   Results: %d  Cache hits: %d  Warnings: %d  Errors: %d
   Complete event: %v  Done event: %v
   Duration: %s
`, stats.FramesReceived, stats.Keepalives,
		stats.Results, stats.CacheHits, stats.Warnings, stats.Errors,
		stats.SawComplete, stats.SawDone,
		stats.Duration.Round(time.Millisecond))

	for _, o := range stats.Outcomes {
		log.Printf("   %-15s %-10s %s", o.Source, o.Terminal, o.Elapsed.Round(time.Millisecond))
	}
}
