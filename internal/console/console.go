// Package console is the line-oriented chat REPL.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// AskFunc answers one user line.
type AskFunc func(ctx context.Context, input string) (string, error)

// Console reads lines from In and prints replies to Out. Zero value uses the process stdio.
type Console struct {
	In     io.Reader
	Out    io.Writer
	Err    io.Writer
	Name   string // assistant label, "AI" when empty
	Banner string
}

// IsExit reports whether line ends the conversation.
func IsExit(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "exit", "quit", "退出":
		return true
	}
	return false
}

func (c *Console) streams() (io.Reader, io.Writer, io.Writer) {
	in, out, errw := c.In, c.Out, c.Err
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	if errw == nil {
		errw = os.Stderr
	}
	return in, out, errw
}

// Run loops until exit, EOF or ctx is done. A reading error is returned;
// ask errors are printed and the loop continues.
func (c *Console) Run(ctx context.Context, ask AskFunc) error {
	in, out, errw := c.streams()
	name := c.Name
	if name == "" {
		name = "AI"
	}
	if c.Banner != "" {
		fmt.Fprintln(out, c.Banner)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Reading stdin cannot be interrupted, so lines arrive over a channel.
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scan := bufio.NewScanner(in)
		for scan.Scan() {
			select {
			case lines <- scan.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scan.Err()
	}()

	for {
		fmt.Fprint(out, "You: ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case err := <-readErr:
			fmt.Fprintln(out)
			return err
		case line = <-lines:
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if IsExit(line) {
			fmt.Fprintln(out, "Goodbye.")
			return nil
		}

		reply, err := ask(ctx, line)
		if err != nil {
			fmt.Fprintf(errw, "Error: %v\n", err)
			continue
		}
		if strings.TrimSpace(reply) == "" {
			fmt.Fprintln(errw, "Warning: the model returned no usable reply, please try again.")
			continue
		}
		fmt.Fprintf(out, "\n%s: %s\n\n", name, reply)
	}
}
