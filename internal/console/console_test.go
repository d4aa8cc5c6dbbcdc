package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Conversation(t *testing.T) {
	var out, errOut bytes.Buffer
	c := &Console{
		In:     strings.NewReader("hello\n\n  \nempty\nfail\n退出\nnever read\n"),
		Out:    &out,
		Err:    &errOut,
		Name:   "Tai",
		Banner: "Welcome! Type 'exit' to quit.",
	}
	var asked []string
	err := c.Run(context.Background(), func(_ context.Context, in string) (string, error) {
		asked = append(asked, in)
		switch in {
		case "empty":
			return "", nil
		case "fail":
			return "", errors.New("save message: disk full")
		}
		return "Hi there", nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "empty", "fail"}, asked)
	assert.Contains(t, out.String(), "Welcome! Type 'exit' to quit.")
	assert.Contains(t, out.String(), "Tai: Hi there")
	assert.Contains(t, out.String(), "Goodbye.")
	assert.Contains(t, errOut.String(), "Warning: the model returned no usable reply")
	assert.Contains(t, errOut.String(), "Error: save message: disk full")
}

func TestRun_EOF(t *testing.T) {
	c := &Console{In: strings.NewReader("hi"), Out: io.Discard, Err: io.Discard}
	n := 0
	err := c.Run(context.Background(), func(context.Context, string) (string, error) {
		n++
		return "ok", nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRun_ContextCancelled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- (&Console{In: r, Out: io.Discard}).Run(ctx, func(context.Context, string) (string, error) { return "", nil })
	}()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("console did not stop on cancel")
	}
}

func TestIsExit(t *testing.T) {
	for _, s := range []string{"exit", " EXIT ", "Quit", "退出"} {
		assert.True(t, IsExit(s), s)
	}
	assert.False(t, IsExit("exits"))
}
