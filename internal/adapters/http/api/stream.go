package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/okian/scout/internal/adapters/stream"
	"github.com/okian/scout/internal/config"
	"github.com/okian/scout/internal/domain/event"
	"github.com/okian/scout/pkg/logger"
)

// Error codes synthesized by the HTTP layer before any task runs.
const (
	codeInvalidRequest = "INVALID_REQUEST"
	codeTooManyStreams = "TOO_MANY_STREAMS"
)

// StreamHandler serves the SSE search and compare endpoints.
type StreamHandler struct {
	deps Dependencies
	log  logger.Logger
}

// NewStreamHandler creates a new streaming handler.
func NewStreamHandler(deps Dependencies) *StreamHandler {
	return &StreamHandler{deps: deps, log: logger.Named("api.stream")}
}

// searchRequest mirrors the wire schema for POST /api/search.
type searchRequest struct {
	ModelName string   `json:"model_name"`
	Sources   []string `json:"sources"`
}

// compareRequest mirrors the wire schema for POST /api/compare.
type compareRequest struct {
	ModelA  string   `json:"model_a"`
	ModelB  string   `json:"model_b"`
	Sources []string `json:"sources"`
}

// HandleSearch handles POST /api/search requests. The response is always
// an SSE stream: invalid input and capacity rejections are reported as a
// single error event followed by the terminal done event.
func (h *StreamHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req searchRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	sink, err := stream.NewSSESink(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming unsupported", err.Error())
		return
	}

	modelName, err := validateModelName(req.ModelName)
	if err != nil {
		h.terminate(sink, codeInvalidRequest, err.Error())
		return
	}
	if len(config.ValidSources(req.Sources)) == 0 {
		h.terminate(sink, codeInvalidRequest, "No valid sources specified")
		return
	}
	if !h.deps.AcquireStream() {
		h.terminate(sink, codeTooManyStreams, "Too many active streams")
		return
	}
	defer h.deps.ReleaseStream()

	events := h.deps.Search(r.Context(), modelName, req.Sources)
	if err := h.deps.StreamTo(r.Context(), events, sink); err != nil {
		h.log.Debug(r.Context(), "search stream ended early", logger.Error(err))
	}
}

// HandleCompare handles POST /api/compare requests. Same SSE contract as
// search, with an init event announcing the participants.
func (h *StreamHandler) HandleCompare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req compareRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	sink, err := stream.NewSSESink(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming unsupported", err.Error())
		return
	}

	if strings.TrimSpace(req.ModelA) == "" || strings.TrimSpace(req.ModelB) == "" {
		h.terminate(sink, codeInvalidRequest, "Both model_a and model_b are required")
		return
	}
	modelA, err := validateModelName(req.ModelA)
	if err != nil {
		h.terminate(sink, codeInvalidRequest, err.Error())
		return
	}
	modelB, err := validateModelName(req.ModelB)
	if err != nil {
		h.terminate(sink, codeInvalidRequest, err.Error())
		return
	}
	if len(config.ValidSources(req.Sources)) == 0 {
		h.terminate(sink, codeInvalidRequest, "No valid sources specified")
		return
	}
	if !h.deps.AcquireStream() {
		h.terminate(sink, codeTooManyStreams, "Too many active streams")
		return
	}
	defer h.deps.ReleaseStream()

	events := h.deps.Compare(r.Context(), []string{modelA, modelB}, req.Sources)
	if err := h.deps.StreamTo(r.Context(), events, sink); err != nil {
		h.log.Debug(r.Context(), "compare stream ended early", logger.Error(err))
	}
}

// terminate closes a just-opened stream with one error event and the
// terminal done event. No extraction task runs on this path.
func (h *StreamHandler) terminate(sink stream.Sink, code, message string) {
	_ = sink.WriteEvent(event.ErrorEvent("", "", code, message))
	_ = sink.WriteEvent(event.Done())
}
