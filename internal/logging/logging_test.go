package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct{ level, component, message string }

type memSink struct{ entries []entry }

func (s *memSink) Log(_ context.Context, level, component, message string) error {
	s.entries = append(s.entries, entry{level, component, message})
	return nil
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("warn", &buf)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("tool call skipped", "tool", "weather")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `msg="tool call skipped" tool=weather`)

	_, err = New("loud", &buf)
	assert.Error(t, err)
}

func TestStoreHandler_MirrorsWarnings(t *testing.T) {
	var buf bytes.Buffer
	sink := &memSink{}
	inner := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError})
	logger := slog.New(NewStoreHandler(inner, sink))

	logger.Info("step started")
	logger.With("component", "agent").Warn("tool call skipped", "tool", "weather", "call_id", "call_1")
	logger.WithGroup("retry").Error("step abandoned", "component", "tasks", "attempts", 3)

	require.Len(t, sink.entries, 2)
	assert.Equal(t, entry{"warn", "agent", "tool call skipped tool=weather call_id=call_1"}, sink.entries[0])
	assert.Equal(t, entry{"error", "tasks", "step abandoned retry.attempts=3"}, sink.entries[1])

	// Only the error reached the inner handler.
	assert.NotContains(t, buf.String(), "tool call skipped")
	assert.Contains(t, buf.String(), "step abandoned")
}

func TestStoreHandler_DefaultComponent(t *testing.T) {
	sink := &memSink{}
	logger := slog.New(NewStoreHandler(slog.NewTextHandler(&bytes.Buffer{}, nil), sink))
	logger.Warn("disk nearly full")
	require.Len(t, sink.entries, 1)
	assert.Equal(t, "taiagent", sink.entries[0].component)
}
