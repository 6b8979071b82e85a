// Package transport performs single request/response exchanges with the
// agent and classifies each one into an Outcome.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/alanmeadows/termbridge/internal/logging"
	"github.com/alanmeadows/termbridge/internal/protocol"
)

// DefaultTimeout bounds an exchange whose endpoint sets no timeout.
const DefaultTimeout = 2 * time.Minute

// EndpointSource supplies the agent endpoint. It is consulted once per
// exchange so configuration changes apply to the next command.
type EndpointSource interface {
	Endpoint(ctx context.Context) (protocol.Endpoint, error)
}

// StaticEndpoint is an EndpointSource that never changes.
type StaticEndpoint protocol.Endpoint

// Endpoint returns e.
func (e StaticEndpoint) Endpoint(context.Context) (protocol.Endpoint, error) {
	return protocol.Endpoint(e), nil
}

// Client exchanges commands with the agent. It never retries.
type Client struct {
	source EndpointSource
	http   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a Client reading its endpoint from source.
func NewClient(source EndpointSource, opts ...Option) *Client {
	c := &Client{
		source: source,
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Exchange sends req and classifies the reply. Failures are reported in the
// returned Outcome, never as a Go error.
func (c *Client) Exchange(ctx context.Context, req protocol.CommandRequest) Outcome {
	ep, err := c.source.Endpoint(ctx)
	if err != nil {
		return Outcome{Kind: TransportError, Message: fmt.Sprintf("resolving agent endpoint: %v", err)}
	}

	timeout := ep.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := protocol.Encode(req)
	if err != nil {
		return Outcome{Kind: TransportError, Message: err.Error()}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL(), bytes.NewReader(body))
	if err != nil {
		return Outcome{Kind: TransportError, Message: fmt.Sprintf("creating request: %v", err)}
	}
	protocol.SetHeaders(httpReq.Header, ep.Token)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		msg := describeFailure(ep.Addr(), err)
		slog.Warn("agent exchange failed", "addr", ep.Addr(), "cmd", logging.Mask(req.Cmd), "error", logging.Mask(err.Error()))
		return Outcome{Kind: TransportError, Message: msg}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		msg := describeFailure(ep.Addr(), fmt.Errorf("reading response: %w", err))
		return Outcome{Kind: TransportError, Message: msg, Status: resp.StatusCode}
	}

	out := Classify(resp.StatusCode, raw)
	slog.Debug("agent exchange",
		"cmd", logging.Mask(req.Cmd),
		"cwd", req.Cwd,
		"status", resp.StatusCode,
		"kind", out.Kind.String(),
		"elapsed", time.Since(start).Round(time.Millisecond),
	)
	return out
}

// Classify maps a status code and raw body to an Outcome.
func Classify(status int, body []byte) Outcome {
	resp, structured := protocol.DecodeResponse(body)

	switch {
	case status >= 200 && status < 300:
		return Outcome{Kind: Success, Output: resp.Output, Cwd: resp.Cwd, Status: status}
	case status >= 400 && status < 600 && structured && resp.Output != "":
		return Outcome{Kind: ApplicationError, Output: resp.Output, Cwd: resp.Cwd, Status: status}
	}

	msg := fmt.Sprintf("agent returned %d %s", status, http.StatusText(status))
	if detail := strings.TrimSpace(string(body)); detail != "" && !structured {
		msg += ": " + detail
	}
	return Outcome{Kind: TransportError, Message: msg, Status: status}
}
