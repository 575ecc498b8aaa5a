// Package otp supplies the one-time code the booking site sends by SMS
// during login. Codes come from the environment, from a file dropped by
// another process, or from an interactive prompt.
package otp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"
)

var ErrNoCode = errors.New("no one-time code available")

var codePattern = regexp.MustCompile(`^\d{4,8}$`)

// Valid reports whether code looks like an SMS one-time code.
func Valid(code string) bool {
	return codePattern.MatchString(code)
}

type Source interface {
	// Code blocks until a code is available or ctx ends.
	Code(ctx context.Context) (string, error)
}

// Env reads the code from an environment variable, once.
type Env struct {
	Key string
}

func (e Env) Code(ctx context.Context) (string, error) {
	code := strings.TrimSpace(os.Getenv(e.Key))
	if code == "" {
		return "", ErrNoCode
	}
	if !Valid(code) {
		return "", fmt.Errorf("%s does not hold a valid code", e.Key)
	}
	return code, nil
}

// File polls a path until a valid code is written to it, the file is
// removed once read so a stale code is never reused.
type File struct {
	Path     string
	Interval time.Duration
}

func (f File) Code(ctx context.Context) (string, error) {
	interval := f.Interval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "waiting for one-time code", "file", f.Path)
	for {
		contents, err := os.ReadFile(f.Path)
		code := strings.TrimSpace(string(contents))
		// an empty file may still be mid-write
		if err == nil && code != "" {
			os.Remove(f.Path)
			if Valid(code) {
				return code, nil
			}
			slog.WarnContext(ctx, "ignoring invalid one-time code", "file", f.Path)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

// Prompt asks for the code on Out and reads a line from In.
type Prompt struct {
	In  io.Reader
	Out io.Writer
}

func (p Prompt) Code(ctx context.Context) (string, error) {
	fmt.Fprint(p.Out, "Enter the one-time code sent to your phone: ")

	lines := make(chan string, 1)
	errs := make(chan error, 1)
	go func() {
		line, err := bufio.NewReader(p.In).ReadString('\n')
		if err != nil && line == "" {
			errs <- err
			return
		}
		lines <- line
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-errs:
		return "", fmt.Errorf("read one-time code: %w", err)
	case line := <-lines:
		code := strings.TrimSpace(line)
		if !Valid(code) {
			return "", fmt.Errorf("%q is not a valid one-time code", code)
		}
		return code, nil
	}
}

// Chain asks each source in turn and returns the first code. A source
// answering ErrNoCode passes to the next one, any other error stops.
type Chain []Source

func (c Chain) Code(ctx context.Context) (string, error) {
	for _, s := range c {
		code, err := s.Code(ctx)
		if errors.Is(err, ErrNoCode) {
			continue
		}
		return code, err
	}
	return "", ErrNoCode
}
