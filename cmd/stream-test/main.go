package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/okian/scout/internal/streamtest"
)

// Default configuration constants.
const (
	defaultTimeout     = 5 * time.Minute
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL = flag.String("url", "http://localhost:9090", "Base URL of the service")
		model   = flag.String("model", "GPT-4o", "Model to search for")
		compare = flag.String("compare", "", "Second model; switches to compare mode")
		sources = flag.String("sources", "", "Comma-separated source keys (default: all)")
		timeout = flag.Duration("timeout", defaultTimeout, "End-to-end stream timeout")
		logFile = flag.String("log", "", "Log file for test output (default: stream_test_TIMESTAMP.log)")
		verbose = flag.Bool("verbose", false, "Enable verbose logging")
		help    = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		streamtest.ShowHelp()
		return
	}

	if err := streamtest.SetupLogging(*logFile); err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	var sourceKeys []string
	if *sources != "" {
		sourceKeys = strings.Split(*sources, ",")
	}

	config := &streamtest.Config{
		BaseURL:   *baseURL,
		ModelName: *model,
		CompareTo: *compare,
		Sources:   sourceKeys,
		Timeout:   *timeout,
		LogFile:   *logFile,
		Verbose:   *verbose,
	}

	if err := streamtest.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Test failed: " + err.Error() + "\n")
		return
	}
}
