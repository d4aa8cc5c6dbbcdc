// Package logging builds the slog logger used across taiagent.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", s, err)
	}
	return l, nil
}

// New returns a text logger writing to w at the given level.
func New(level string, w io.Writer) (*slog.Logger, error) {
	l, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: l})), nil
}

// Sink receives mirrored records. store.LogStore satisfies it.
type Sink interface {
	Log(ctx context.Context, level, component, message string) error
}

// StoreHandler passes every record to the wrapped handler and copies
// WARN and above into a Sink.
type StoreHandler struct {
	inner     slog.Handler
	sink      Sink
	component string
	attrs     []slog.Attr
	group     string
}

// NewStoreHandler wraps inner.
func NewStoreHandler(inner slog.Handler, sink Sink) *StoreHandler {
	return &StoreHandler{inner: inner, sink: sink}
}

func (h *StoreHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level) || level >= slog.LevelWarn
}

func (h *StoreHandler) Handle(ctx context.Context, r slog.Record) error {
	var err error
	if h.inner.Enabled(ctx, r.Level) {
		err = h.inner.Handle(ctx, r)
	}
	if r.Level < slog.LevelWarn || h.sink == nil {
		return err
	}

	component := h.component
	var b strings.Builder
	b.WriteString(r.Message)
	write := func(a slog.Attr) {
		if a.Key == "component" {
			component = a.Value.String()
			return
		}
		key := a.Key
		if h.group != "" {
			key = h.group + "." + key
		}
		fmt.Fprintf(&b, " %s=%v", key, a.Value.Resolve())
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		write(a)
		return true
	})
	if component == "" {
		component = "taiagent"
	}

	// The sink must not be cancelled along with the request that failed.
	sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if serr := h.sink.Log(sinkCtx, strings.ToLower(r.Level.String()), component, b.String()); serr != nil && err == nil {
		err = serr
	}
	return err
}

func (h *StoreHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.inner = h.inner.WithAttrs(attrs)
	c.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	for _, a := range attrs {
		if a.Key == "component" {
			c.component = a.Value.String()
		}
	}
	return &c
}

func (h *StoreHandler) WithGroup(name string) slog.Handler {
	c := *h
	c.inner = h.inner.WithGroup(name)
	if c.group != "" {
		c.group += "." + name
	} else {
		c.group = name
	}
	return &c
}
