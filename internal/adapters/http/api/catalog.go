package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/scout/internal/domain/result"
)

// CatalogHandler serves the source catalog and stored-result reads.
type CatalogHandler struct {
	deps Dependencies
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(deps Dependencies) *CatalogHandler {
	return &CatalogHandler{deps: deps}
}

// sourceInfo is the public shape of one benchmark source.
type sourceInfo struct {
	Key      string   `json:"key"`
	Name     string   `json:"name"`
	URL      string   `json:"url"`
	Category string   `json:"category"`
	Version  string   `json:"version"`
	Metrics  []string `json:"metrics"`
}

// HandleSources handles GET /api/sources requests.
func (h *CatalogHandler) HandleSources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	catalog := h.deps.Sources()
	sources := make([]sourceInfo, 0, len(catalog))
	for _, src := range catalog {
		sources = append(sources, sourceInfo{
			Key:      src.Key,
			Name:     src.Name,
			URL:      src.URL,
			Category: src.Category,
			Version:  src.Version,
			Metrics:  src.Metrics,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sources": sources,
		"count":   len(sources),
	})
}

// HandleModels handles GET /api/models requests.
func (h *CatalogHandler) HandleModels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	models, err := h.deps.Models(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"models": models,
		"count":  len(models),
	})
}

// HandleHistory handles GET /api/history/{model}?limit=N requests.
func (h *CatalogHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	modelID, err := validateModelName(pathTail(r.URL.Path, "/api/history/"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad request", err.Error())
		return
	}
	limit := queryInt(r, "limit", 30)
	history, err := h.deps.History(r.Context(), result.CanonicalModelID(modelID), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"model":   modelID,
		"history": history,
		"count":   len(history),
	})
}

// HandleCached handles GET /api/cached/{model}?source=&max_age=N requests.
// With a source filter the newest row for that source is returned alone.
func (h *CatalogHandler) HandleCached(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	modelID, err := validateModelName(pathTail(r.URL.Path, "/api/cached/"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad request", err.Error())
		return
	}
	source := r.URL.Query().Get("source")
	maxAge := time.Duration(queryInt(r, "max_age", 24)) * time.Hour

	results, err := h.deps.CachedResults(r.Context(), result.CanonicalModelID(modelID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error", err.Error())
		return
	}

	fresh := results[:0]
	cutoff := time.Now().UTC().Add(-maxAge)
	for _, res := range results {
		if res.ScrapedAt.Before(cutoff) {
			continue
		}
		fresh = append(fresh, res)
	}

	if source != "" {
		for _, res := range fresh {
			if res.SourceID == source {
				writeJSON(w, http.StatusOK, map[string]any{
					"model":  modelID,
					"source": source,
					"result": res,
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"model":  modelID,
			"source": source,
			"result": nil,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"model":   modelID,
		"results": fresh,
		"count":   len(fresh),
	})
}

// pathTail extracts a single path parameter after prefix. Nested paths
// are rejected by returning the empty string.
func pathTail(path, prefix string) string {
	tail := strings.TrimPrefix(path, prefix)
	if tail == "" || strings.Contains(tail, "/") {
		return ""
	}
	return tail
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
