// SPDX-License-Identifier: MIT

package sink

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
)

// Writer emits newline-delimited "key<TAB>payload" records.
type Writer struct {
	mu     sync.Mutex
	w      *bufio.Writer
	closed bool
}

// NewWriter returns a sink writing to w. Output is flushed per record.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

func (s *Writer) Send(_ context.Context, routingKey string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, err := fmt.Fprintf(s.w, "%s\t%s\n", routingKey, payload); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	return s.w.Flush()
}

func (s *Writer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.w.Flush()
}
