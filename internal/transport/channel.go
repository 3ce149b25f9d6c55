package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const (
	channelPath  = "/ws/chat"
	fallbackPath = "/chat/completions/stream"
)

// FallbackChannel tries a persistent WebSocket channel first and issues
// exactly one fallback request over chunked HTTP when the channel cannot be
// established. Both legs produce the same logical fragment sequence.
type FallbackChannel struct {
	primary  Channel
	fallback Channel
}

// New creates a FallbackChannel for the given backend base URL, for example
// "http://localhost:8001". A nil client uses http.DefaultClient.
func New(baseURL string, client *http.Client) *FallbackChannel {
	if client == nil {
		client = http.DefaultClient
	}
	base := strings.TrimSuffix(baseURL, "/")
	return &FallbackChannel{
		primary:  &wsChannel{url: wsScheme(base) + channelPath, client: client},
		fallback: &httpChannel{url: base + fallbackPath, client: client},
	}
}

// NewWithChannels composes an explicit primary and fallback channel. Used by
// tests and by callers that already hold channel implementations.
func NewWithChannels(primary, fallback Channel) *FallbackChannel {
	return &FallbackChannel{primary: primary, fallback: fallback}
}

// Stream implements Channel. A primary failure triggers the single fallback
// attempt; if that fails too, the returned error is a *Error carrying the
// last failure reason.
func (c *FallbackChannel) Stream(ctx context.Context, req Request, opts Options) (<-chan Fragment, error) {
	fragments, primaryErr := c.primary.Stream(ctx, req, opts)
	if primaryErr == nil {
		return fragments, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	fragments, err := c.fallback.Stream(ctx, req, opts)
	if err != nil {
		return nil, &Error{Primary: primaryErr, Err: err}
	}
	return fragments, nil
}

// wsScheme rewrites an http(s) base URL to its ws(s) equivalent.
func wsScheme(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base
}

// wsChannel streams fragments over a WebSocket connection. Each Stream call
// opens its own connection; the request is written as a single JSON message
// and every received text message is one fragment.
type wsChannel struct {
	url    string
	client *http.Client
}

func (c *wsChannel) Stream(ctx context.Context, req Request, opts Options) (<-chan Fragment, error) {
	dialCtx := ctx
	if opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, opts.ConnectTimeout)
		defer cancel()
	}

	conn, _, err := websocket.Dial(dialCtx, c.url, &websocket.DialOptions{HTTPClient: c.client})
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", c.url, err)
	}
	// Responses can be large; the default read limit is 32 KiB.
	conn.SetReadLimit(16 << 20)

	if err := wsjson.Write(ctx, conn, req); err != nil {
		conn.Close(websocket.StatusInternalError, "request write failed")
		return nil, fmt.Errorf("websocket send: %w", err)
	}

	out := make(chan Fragment)
	go func() {
		defer close(out)
		defer conn.Close(websocket.StatusNormalClosure, "")
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				if isNormalClose(err) {
					return
				}
				emit(ctx, out, Fragment{Err: fmt.Errorf("websocket read: %w", err)})
				return
			}
			if !emit(ctx, out, Fragment{Text: string(data)}) {
				return
			}
		}
	}()
	return out, nil
}

// isNormalClose reports whether the read error is an orderly end of stream.
func isNormalClose(err error) bool {
	if errors.Is(err, io.EOF) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return false
}

// httpChannel streams fragments from a chunked HTTP response body.
type httpChannel struct {
	url    string
	client *http.Client
}

func (c *httpChannel) Stream(ctx context.Context, req Request, _ Options) (<-chan Fragment, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", c.url, err)
	}
	if resp.StatusCode >= 400 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("post %s: HTTP %d: %s", c.url, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	out := make(chan Fragment)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		buf := make([]byte, 8192)
		for {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				if !emit(ctx, out, Fragment{Text: string(buf[:n])}) {
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					emit(ctx, out, Fragment{Err: fmt.Errorf("read response: %w", err)})
				}
				return
			}
		}
	}()
	return out, nil
}

// emit delivers a fragment unless the context is cancelled first. It returns
// false when delivery was abandoned.
func emit(ctx context.Context, out chan<- Fragment, f Fragment) bool {
	select {
	case out <- f:
		return true
	case <-ctx.Done():
		return false
	}
}
