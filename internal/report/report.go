// SPDX-License-Identifier: MIT

// Package report writes the end-of-run summary file.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
	jsoniter "github.com/json-iterator/go"

	"github.com/twincitiesguy/pravega-music-demo/internal/log"
	"github.com/twincitiesguy/pravega-music-demo/internal/songevent"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Report summarizes one generator run.
type Report struct {
	RunID        string                   `json:"run_id"`
	Mode         string                   `json:"mode"`
	Version      string                   `json:"version,omitempty"`
	Seed         uint64                   `json:"seed"`
	Sink         string                   `json:"sink"`
	Stream       string                   `json:"stream,omitempty"`
	StartedAt    time.Time                `json:"started_at"`
	EndedAt      time.Time                `json:"ended_at"`
	Listeners    int                      `json:"listeners,omitempty"`
	EventsByKind map[songevent.Kind]int64 `json:"events_by_kind,omitempty"`
	Plays        int64                    `json:"plays,omitempty"`
	Sent         int64                    `json:"sent"`
	SendFailures int64                    `json:"send_failures"`
	Dropped      int64                    `json:"dropped"`
	Error        string                   `json:"error,omitempty"`
}

// Duration is the wall time between start and end.
func (r Report) Duration() time.Duration { return r.EndedAt.Sub(r.StartedAt) }

// Write stores r at path, replacing any previous file atomically.
func Write(ctx context.Context, path string, r Report) error {
	logger := log.WithComponentFromContext(ctx, "report")

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending report file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending report file")
		}
	}()

	if _, err := pendingFile.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace report: %w", err)
	}

	logger.Info().
		Str(log.FieldEvent, "report.written").
		Str(log.FieldPath, path).
		Int64("sent", r.Sent).
		Dur("duration", r.Duration()).
		Msg("run report written")
	return nil
}

// Read loads a report written by Write.
func Read(path string) (Report, error) {
	var r Report
	data, err := os.ReadFile(path)
	if err != nil {
		return r, fmt.Errorf("read report: %w", err)
	}
	if err := json.Unmarshal(data, &r); err != nil {
		return r, fmt.Errorf("decode report %s: %w", path, err)
	}
	return r, nil
}
