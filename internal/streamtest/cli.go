package streamtest

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/okian/scout/pkg/logger"
)

// File permission constants.
const (
	logFilePermission = 0600
)

// SetupLogging configures logging to both console and file.
// If logFile is empty, a timestamped filename is generated.
func SetupLogging(logFile string) error {
	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if logFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		logFile = "stream_test_" + timestamp + ".log"
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	multiWriter := io.MultiWriter(os.Stdout, file)
	log.SetOutput(multiWriter)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	logger.Get().Info(context.Background(), "logging to file", logger.String("logFile", logFile))
	return nil
}

// ShowHelp prints usage information for the stream test tool.
func ShowHelp() {
	os.Stdout.WriteString(`Scout Stream Test Tool
======================

Exercises a running Scout server: health-checks it, opens a search (or
compare) SSE stream, and reports per-source outcomes and timing.

Usage:
  go run cmd/stream-test/main.go [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9090")
  -model string
        Model to search for (default "GPT-4o")
  -compare string
        Second model; switches to compare mode
  -sources string
        Comma-separated source keys (default: all)
  -timeout duration
        End-to-end stream timeout (default 5m)
  -log string
        Log file for test output (default: stream_test_TIMESTAMP.log)
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  # Search with default settings
  go run cmd/stream-test/main.go -model "Claude 3.5 Sonnet"

  # Limit to two sources
  go run cmd/stream-test/main.go -model GPT-4o -sources huggingface,vellum

  # Compare two models
  go run cmd/stream-test/main.go -model GPT-4o -compare "Gemini 1.5 Pro"
`)
}
