package cli

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// syncBuffer provides thread-safe access to a bytes.Buffer.
type syncBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

func (s *syncBuffer) Write(p []byte) (n int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func TestNewInterruptHandler(t *testing.T) {
	handler := NewInterruptHandler(nil, "Ingest")
	assert.NotNil(t, handler.writer)
	assert.False(t, handler.WasInterrupted())
}

func TestHandleInterrupts(t *testing.T) {
	output := &syncBuffer{}
	handler := NewInterruptHandler(output, "Categorization")

	parent, cancel := context.WithCancel(context.Background())
	ctx := handler.HandleInterrupts(parent)
	handler.Progress(3, 10)

	select {
	case <-ctx.Done():
		t.Fatal("context should not be canceled initially")
	default:
	}

	cancel()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context was not canceled")
	}
	assert.Eventually(t, handler.WasInterrupted, time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return strings.Contains(output.String(), "3 of 10 done")
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, output.String(), "Categorization interrupted!")
}

func TestHandleInterrupts_StopSilencesMessage(t *testing.T) {
	output := &syncBuffer{}
	handler := NewInterruptHandler(output, "Ingest")

	parent, cancel := context.WithCancel(context.Background())
	ctx := handler.HandleInterrupts(parent)
	handler.Stop()
	cancel()
	<-ctx.Done()

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, output.String())
}

func TestShowInterruptMessage(t *testing.T) {
	tests := []struct {
		name        string
		total       int
		expected    []string
		notExpected []string
	}{
		{
			name:     "with progress",
			total:    5,
			expected: []string{"Ingest interrupted!", "2 of 5 done"},
		},
		{
			name:        "without progress",
			expected:    []string{"Ingest interrupted!"},
			notExpected: []string{"done"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var output bytes.Buffer
			handler := &InterruptHandler{writer: &output, operation: "Ingest", done: 2, total: tt.total}
			handler.showInterruptMessage()

			for _, s := range tt.expected {
				assert.Contains(t, output.String(), s)
			}
			for _, s := range tt.notExpected {
				assert.NotContains(t, output.String(), s)
			}
		})
	}
}
