package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables that override configuration values.
const (
	EnvLatencyFile = "TREESIM_LATENCY_FILE"
	EnvSQLiteFile  = "TREESIM_SQLITE_FILE"
	EnvMetricsFile = "TREESIM_METRICS_FILE"
	EnvTraceFile   = "TREESIM_TRACE_FILE"
	EnvRate        = "TREESIM_RATE"
	EnvDuration    = "TREESIM_DURATION"
	EnvPayloadSize = "TREESIM_PAYLOAD_SIZE"
	EnvLinkDelay   = "TREESIM_LINK_DELAY"
)

// LoadDotEnv loads variables from the given .env files into the process
// environment. Variables already set are kept. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		err := godotenv.Load(p)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}

	return nil
}

// ApplyEnv overrides fields with the TREESIM_* environment variables that are
// set. Call Validate afterwards.
func (s *Scenario) ApplyEnv() error {
	if v, ok := os.LookupEnv(EnvLatencyFile); ok {
		s.Output.Latencies = v
	}

	if v, ok := os.LookupEnv(EnvSQLiteFile); ok {
		s.Output.SQLite = v
	}

	if v, ok := os.LookupEnv(EnvMetricsFile); ok {
		s.Output.Metrics = v
	}

	if v, ok := os.LookupEnv(EnvTraceFile); ok {
		s.Output.Trace = v
	}

	if v, ok := os.LookupEnv(EnvRate); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvRate, err)
		}

		s.Client.Rate = f
	}

	if v, ok := os.LookupEnv(EnvDuration); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDuration, err)
		}

		s.Client.Duration = f
	}

	if v, ok := os.LookupEnv(EnvPayloadSize); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPayloadSize, err)
		}

		s.Client.PayloadSize = n
	}

	if v, ok := os.LookupEnv(EnvLinkDelay); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvLinkDelay, err)
		}

		s.Link.Delay = d
	}

	return nil
}
