package streamtest

import "time"

// Config holds configuration for one streaming exercise run.
type Config struct {
	BaseURL   string        // Base URL of the service
	ModelName string        // Model to search for
	CompareTo string        // Optional second model; switches to compare mode
	Sources   []string      // Source keys to request; empty means all
	Timeout   time.Duration // End-to-end stream timeout
	LogFile   string        // Log file for test output
	Verbose   bool          // Enable verbose logging
}

// frame mirrors the SSE wire schema emitted by the service.
type frame struct {
	Type      string         `json:"type"`
	Source    string         `json:"source,omitempty"`
	Model     string         `json:"model,omitempty"`
	Status    string         `json:"status,omitempty"`
	Message   string         `json:"message,omitempty"`
	ErrorCode string         `json:"error_code,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// sourceOutcome records how one source's extraction ended.
type sourceOutcome struct {
	Source   string
	Terminal string // completed, failed, warning, cache_hit
	Message  string
	Elapsed  time.Duration
}

// Stats holds run statistics.
type Stats struct {
	FramesReceived int
	Keepalives     int
	Results        int
	CacheHits      int
	Warnings       int
	Errors         int
	SawComplete    bool
	SawDone        bool
	StartTime      time.Time
	Duration       time.Duration
	Outcomes       []sourceOutcome
}
