// Package audit implements the audit trail backends agentweave records
// authorization decisions and other security-relevant events to: a file
// sink (JSON Lines), a stdout sink, and a fan-out multi-sink, grounded in
// original_source/agentweave/observability/audit.py's FileAuditBackend,
// StdoutAuditBackend and MultiBackend. The teacher carries no audit
// package of its own; this one follows the slog-based, ports-style idiom
// the rest of this tree uses.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/agentweave/agentweave/internal/core/ports"
)

// record is the JSON Lines shape written by FileSink and StdoutSink. It
// flattens ports.AuditEvent plus the decision fields callers most often
// want to grep for without unpacking the nested decision object.
type record struct {
	ID         string `json:"id"`
	Timestamp  int64  `json:"timestamp"`
	Caller     string `json:"caller"`
	Capability string `json:"capability"`
	Allowed    bool   `json:"allowed"`
	Reason     string `json:"reason,omitempty"`
	PolicyID   string `json:"policy_id,omitempty"`
}

func toRecord(event ports.AuditEvent) record {
	return record{
		ID:         event.ID,
		Timestamp:  event.Timestamp,
		Caller:     event.Caller,
		Capability: event.Capability,
		Allowed:    event.Decision.Allowed,
		Reason:     event.Decision.Reason,
		PolicyID:   event.Decision.PolicyID,
	}
}

// FileSink writes audit events as JSON Lines to a file, buffering up to
// bufferSize events in memory before flushing (audit.py's FileAuditBackend:
// "Flush if buffer is full").
type FileSink struct {
	mu     sync.Mutex
	file   *os.File
	buffer []record
	size   int
}

// NewFileSink opens (creating parent directories as needed) or appends to
// path, buffering up to bufferSize events before each flush.
func NewFileSink(path string, bufferSize int) (*FileSink, error) {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create audit log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit log file: %w", err)
	}
	return &FileSink{file: f, size: bufferSize}, nil
}

// Record buffers event, flushing to disk once the buffer reaches its configured size.
func (s *FileSink) Record(ctx context.Context, event ports.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buffer = append(s.buffer, toRecord(event))
	if len(s.buffer) >= s.size {
		return s.flushLocked()
	}
	return nil
}

// Flush writes any buffered events to disk immediately.
func (s *FileSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *FileSink) flushLocked() error {
	if len(s.buffer) == 0 {
		return nil
	}
	enc := json.NewEncoder(s.file)
	for _, r := range s.buffer {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("write audit record: %w", err)
		}
	}
	s.buffer = s.buffer[:0]
	return s.file.Sync()
}

// Close flushes remaining events and closes the underlying file.
func (s *FileSink) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	return s.file.Close()
}

// StdoutSink writes one JSON-encoded audit record per event to an output
// stream (audit.py's StdoutAuditBackend); defaults to os.Stdout.
type StdoutSink struct {
	mu  sync.Mutex
	out io.Writer
}

// NewStdoutSink constructs a StdoutSink writing to os.Stdout.
func NewStdoutSink() *StdoutSink {
	return &StdoutSink{out: os.Stdout}
}

// Record writes event to the sink's output stream immediately.
func (s *StdoutSink) Record(ctx context.Context, event ports.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	enc := json.NewEncoder(s.out)
	if err := enc.Encode(toRecord(event)); err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	return nil
}

// Close is a no-op; stdout is never owned by the sink.
func (s *StdoutSink) Close() error {
	return nil
}

// MultiSink fans an event out to every configured sink (audit.py's
// MultiBackend). Record returns the first error encountered but still
// attempts every sink.
type MultiSink struct {
	sinks  []ports.AuditSink
	logger *slog.Logger
}

// NewMultiSink constructs a MultiSink emitting to every sink in sinks, in order.
func NewMultiSink(sinks ...ports.AuditSink) *MultiSink {
	return &MultiSink{sinks: sinks, logger: slog.Default()}
}

// Record emits event to every configured sink, logging and continuing past
// any individual sink failure rather than aborting the fan-out early.
func (m *MultiSink) Record(ctx context.Context, event ports.AuditEvent) error {
	var firstErr error
	for _, sink := range m.sinks {
		if err := sink.Record(ctx, event); err != nil {
			m.logger.Error("audit sink failed to record event", "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Close closes every configured sink, returning the first error encountered.
func (m *MultiSink) Close() error {
	var firstErr error
	for _, sink := range m.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
