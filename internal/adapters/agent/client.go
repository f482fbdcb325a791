// Package agent is the client for the external extraction agent. It
// posts a (url, goal) pair, consumes the agent's SSE stream, and
// reduces it to a single sealed Outcome while forwarding progress as
// stream events.
package agent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/okian/scout/internal/config"
	"github.com/okian/scout/internal/domain/event"
	"github.com/okian/scout/pkg/logger"
	"github.com/okian/scout/pkg/metrics"
)

const defaultTimeout = 180 * time.Second

// Client talks to the extraction agent endpoint.
type Client struct {
	url            string
	apiKey         string
	browserProfile string
	timeout        time.Duration
	http           *http.Client
	log            logger.Logger
}

// NewClient builds a Client for the given agent endpoint.
func NewClient(url string, opts ...Option) *Client {
	c := &Client{
		url:            url,
		browserProfile: "stealth",
		timeout:        defaultTimeout,
		http:           &http.Client{},
		log:            logger.Named("agent"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// request is the agent's input contract.
type request struct {
	URL            string `json:"url"`
	Goal           string `json:"goal"`
	SystemPrompt   string `json:"systemPrompt"`
	BrowserProfile string `json:"browserProfile"`
}

// frame is one decoded SSE data payload from the agent.
type frame struct {
	Type       string         `json:"type"`
	Status     string         `json:"status"`
	Message    string         `json:"message"`
	ErrorCode  string         `json:"error_code"`
	Data       map[string]any `json:"data"`
	Result     map[string]any `json:"result"`
	ResultJSON map[string]any `json:"resultJson"`
}

// Extract runs one extraction against src for modelName. Progress goes
// to emit as it happens; the final verdict is the returned Outcome.
// Extract never returns an error for extraction failures, those are a
// Failure outcome; the error return is reserved for misuse.
func (c *Client) Extract(ctx context.Context, src config.Source, modelName string, emit func(event.Event)) (Outcome, error) {
	start := time.Now()
	outcome := c.extract(ctx, src, modelName, emit)
	metrics.RecordExtractionDuration(src.Key, time.Since(start).Seconds())

	switch outcome.(type) {
	case Success:
		metrics.RecordExtraction(src.Key, "success")
	case NotFound:
		metrics.RecordExtraction(src.Key, "not_found")
	case Failure:
		metrics.RecordExtraction(src.Key, "failure")
	}
	return outcome, nil
}

func (c *Client) extract(ctx context.Context, src config.Source, modelName string, emit func(event.Event)) Outcome {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(request{
		URL:            src.URL,
		Goal:           src.Goal(modelName),
		SystemPrompt:   config.ExtractionPrompt,
		BrowserProfile: c.browserProfile,
	})
	if err != nil {
		return Failure{Code: CodeUnreadableFormat, Message: err.Error()}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return Failure{Code: CodeConnectionError, Message: err.Error()}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	emit(event.Now(event.Event{
		Kind: event.KindLog, Source: src.Key, Model: modelName, Status: event.StatusRunning,
		Benchmark: src.Name, Message: fmt.Sprintf("Connecting to %s...", src.Name),
	}))

	resp, err := c.http.Do(req)
	if err != nil {
		return c.transportFailure(ctx, src, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Warn(ctx, "agent rejected extraction",
			logger.String("source", src.Key), logger.Int("status", resp.StatusCode))
		return Failure{
			Code:    CodeSiteBlocked,
			Message: fmt.Sprintf("%v: %d", ErrBadStatus, resp.StatusCode),
		}
	}

	emit(event.Now(event.Event{
		Kind: event.KindLog, Source: src.Key, Model: modelName, Status: event.StatusRunning,
		Benchmark: src.Name, Message: fmt.Sprintf("Connected. Fetching data from %s...", src.URL),
	}))

	var final *frame
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		raw := strings.TrimPrefix(line, "data: ")

		var f frame
		if err := json.Unmarshal([]byte(raw), &f); err != nil {
			// Non-JSON payloads are agent chatter, pass them through.
			emit(event.Now(event.Event{
				Kind: event.KindLog, Source: src.Key, Model: modelName,
				Status: event.StatusRunning, Benchmark: src.Name, Message: raw,
			}))
			continue
		}

		if f.ErrorCode != "" {
			return Failure{Code: f.ErrorCode, Message: f.Message}
		}

		if f.Type == "COMPLETE" || strings.EqualFold(f.Status, "COMPLETED") {
			final = &f
			continue
		}

		if f.Message != "" {
			emit(event.Now(event.Event{
				Kind: event.KindLog, Source: src.Key, Model: modelName,
				Status: event.StatusRunning, Benchmark: src.Name, Message: f.Message,
			}))
		}
	}
	if err := scanner.Err(); err != nil {
		return c.transportFailure(ctx, src, fmt.Errorf("%w: %w", ErrStreamCorrupt, err))
	}

	if final == nil {
		return Failure{Code: CodeLayoutChanged, Message: "agent stream ended without a result"}
	}

	payload := final.ResultJSON
	if payload == nil {
		payload = final.Result
	}
	if payload == nil {
		payload = final.Data
	}
	if payload == nil {
		return Failure{Code: CodeUnreadableFormat, Message: "agent completion carried no payload"}
	}

	res, notFound := decodePayload(payload, src, modelName)
	if notFound {
		return NotFound{Message: fmt.Sprintf("%s not found on %s", modelName, src.Key)}
	}
	if res == nil {
		return NotFound{Message: fmt.Sprintf("no data available for %s on %s", modelName, src.Key)}
	}
	return Success{Result: *res}
}

func (c *Client) transportFailure(ctx context.Context, src config.Source, err error) Outcome {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		c.log.Warn(ctx, "agent call timed out", logger.String("source", src.Key))
		return Failure{Code: CodeTimeout, Message: fmt.Sprintf("extraction exceeded %s", c.timeout)}
	}
	c.log.Warn(ctx, "agent call failed", logger.String("source", src.Key), logger.Error(err))
	return Failure{Code: CodeConnectionError, Message: fmt.Sprintf("%v: %v", ErrRequestFailed, err)}
}
