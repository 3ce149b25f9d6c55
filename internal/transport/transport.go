// Package transport delivers generation requests to the backend over a
// persistent WebSocket channel, falling back once to chunked HTTP when the
// channel cannot be established.
package transport

import (
	"context"
	"fmt"
	"time"
)

// Message is one turn in the generation conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the transport-agnostic generation envelope. The same shape is
// sent over the WebSocket channel and the HTTP fallback.
type Request struct {
	RepoURL       string    `json:"repo_url"`
	Type          string    `json:"type"`
	Messages      []Message `json:"messages"`
	Provider      string    `json:"provider"`
	Model         string    `json:"model"`
	Language      string    `json:"language,omitempty"`
	Token         string    `json:"token,omitempty"`
	ExcludedDirs  []string  `json:"excluded_dirs,omitempty"`
	ExcludedFiles []string  `json:"excluded_files,omitempty"`
	IncludedDirs  []string  `json:"included_dirs,omitempty"`
	IncludedFiles []string  `json:"included_files,omitempty"`
}

// Fragment is one chunk of streamed response text. A Fragment with a non-nil
// Err terminates the stream.
type Fragment struct {
	Text string
	Err  error
}

// Options tunes a single Stream call. Planning calls use a short connect
// timeout; page content calls a longer one.
type Options struct {
	ConnectTimeout time.Duration
}

// DefaultOptions returns Options suitable for page content calls.
func DefaultOptions() Options {
	return Options{ConnectTimeout: 10 * time.Second}
}

// Channel streams generation responses. The returned sequence is lazy,
// finite, and non-restartable: once drained or failed it cannot be resumed.
type Channel interface {
	Stream(ctx context.Context, req Request, opts Options) (<-chan Fragment, error)
}

// Error reports that both the persistent channel and the HTTP fallback
// failed. Primary holds the channel failure, Err the last failure reason.
type Error struct {
	Primary error
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport failed (channel: %v): %v", e.Primary, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Collect drains a fragment stream into a single string, preserving arrival
// order. It returns the first stream error encountered.
func Collect(ctx context.Context, fragments <-chan Fragment) (string, error) {
	var parts []string
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case f, ok := <-fragments:
			if !ok {
				return join(parts), nil
			}
			if f.Err != nil {
				return "", f.Err
			}
			parts = append(parts, f.Text)
		}
	}
}

func join(parts []string) string {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	buf := make([]byte, 0, n)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return string(buf)
}
