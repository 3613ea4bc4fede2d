// Package flightrecorder keeps a rolling execution trace of a command and writes it to disk when the
// command turns out to be slow.
package flightrecorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/trace"
	"time"
)

const (
	// defaultMinAge is the minimum age of trace events to keep.
	defaultMinAge = 30 * time.Second

	// defaultMaxBytes is the maximum size of the trace buffer.
	defaultMaxBytes = 16 * 1024 * 1024 // 16MB

	tracesDirectoryPerm = 0o750
)

// Service wraps a [trace.FlightRecorder] for a single command run.
type Service struct {
	logger          *slog.Logger
	flightRecorder  *trace.FlightRecorder
	tracesDirectory string
	threshold       time.Duration
	started         time.Time
}

// Config configures the flight recorder service.
type Config struct {
	Logger          *slog.Logger
	MinAge          time.Duration // Minimum age of trace events
	MaxBytes        uint64        // Maximum size of trace buffer
	TracesDirectory string        // Directory where trace files are written
	Threshold       time.Duration // Commands running longer than this are captured
}

// New creates a new flight recorder service.
func New(cfg Config) (*Service, error) {
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.TracesDirectory == "" {
		return nil, errors.New("traces directory is required")
	}

	if stat, err := os.Stat(cfg.TracesDirectory); err != nil {
		if err = os.MkdirAll(cfg.TracesDirectory, tracesDirectoryPerm); err != nil {
			return nil, fmt.Errorf("create traces directory: %w", err)
		}
	} else if !stat.IsDir() {
		return nil, fmt.Errorf("traces path is not a directory: %s", cfg.TracesDirectory)
	}

	minAge := cfg.MinAge
	if minAge == 0 {
		minAge = defaultMinAge
	}
	maxBytes := cfg.MaxBytes
	if maxBytes == 0 {
		maxBytes = defaultMaxBytes
	}

	flightRecorder := trace.NewFlightRecorder(trace.FlightRecorderConfig{
		MinAge:   minAge,
		MaxBytes: maxBytes,
	})
	if flightRecorder == nil {
		return nil, errors.New("failed to create flight recorder")
	}

	return &Service{
		logger:          cfg.Logger,
		flightRecorder:  flightRecorder,
		tracesDirectory: cfg.TracesDirectory,
		threshold:       cfg.Threshold,
		started:         time.Time{},
	}, nil
}

// Start begins flight recording.
func (s *Service) Start(ctx context.Context) error {
	if err := s.flightRecorder.Start(); err != nil {
		return fmt.Errorf("start flight recorder: %w", err)
	}
	s.started = time.Now()

	s.logger.LogAttrs(ctx, slog.LevelDebug, "flight recorder started",
		slog.Duration("threshold", s.threshold),
		slog.String("directory", s.tracesDirectory))
	return nil
}

// Stop writes the trace when the run exceeded the threshold and ends flight recording. It returns the
// path of the written trace or an empty string when the run was fast enough.
func (s *Service) Stop(ctx context.Context, command string) (string, error) {
	defer s.flightRecorder.Stop()

	elapsed := time.Since(s.started)
	if elapsed <= s.threshold {
		s.logger.LogAttrs(ctx, slog.LevelDebug, "flight recorder stopped", slog.Duration("elapsed", elapsed))
		return "", nil
	}

	timestamp := time.Now().UTC().Format("20060102-150405")
	fPath := filepath.Join(s.tracesDirectory, fmt.Sprintf("slow-%s-%s.trace", command, timestamp))
	bytesWritten, err := s.write(fPath)
	if err != nil {
		return "", err
	}

	s.logger.LogAttrs(ctx, slog.LevelWarn, "captured slow command trace",
		slog.String("file", fPath),
		slog.Duration("elapsed", elapsed),
		slog.Int64("bytes", bytesWritten))
	return fPath, nil
}

func (s *Service) write(fPath string) (_ int64, err error) {
	file, err := os.Create(fPath)
	if err != nil {
		return 0, fmt.Errorf("create trace file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close trace file: %w", closeErr))
		}
	}()

	bytesWritten, err := s.flightRecorder.WriteTo(file)
	if err != nil {
		return 0, fmt.Errorf("write trace: %w", err)
	}
	return bytesWritten, nil
}
