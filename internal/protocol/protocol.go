// Package protocol defines the request/response exchange spoken with the
// remote execution agent. One command travels per HTTP POST; the agent answers
// with the combined stdout/stderr text and the working directory it ended in.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Pseudo-commands recognized by the client before anything is sent.
const (
	// RestartCommand is forwarded to the agent as a liveness/restart directive.
	RestartCommand = "__RESTART__"
	// ClearCommand is handled entirely client-side.
	ClearCommand = "clear"
)

// ErrEmptyCommand is returned when a command is blank after trimming.
var ErrEmptyCommand = errors.New("empty command")

// CommandRequest is the JSON body POSTed to the agent.
type CommandRequest struct {
	// Cmd is the shell command line, already trimmed.
	Cmd string `json:"cmd"`
	// Cwd is the directory the agent should run Cmd in. Empty means the
	// agent's default home directory.
	Cwd string `json:"cwd,omitempty"`
}

// NewCommandRequest trims cmd and rejects it when nothing is left.
func NewCommandRequest(cmd, cwd string) (CommandRequest, error) {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return CommandRequest{}, ErrEmptyCommand
	}
	return CommandRequest{Cmd: cmd, Cwd: cwd}, nil
}

// CommandResponse is the agent's reply.
type CommandResponse struct {
	// Output is stdout followed by stderr, as produced by the agent.
	Output string `json:"output"`
	// Cwd is the agent's resulting working directory; empty when unspecified.
	Cwd string `json:"cwd,omitempty"`
}

// Endpoint is where the agent listens and the secret it expects.
type Endpoint struct {
	Host  string
	Port  int
	Token string
	// Timeout bounds one exchange. Zero selects the client default.
	Timeout time.Duration
}

// Addr returns host:port.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// URL returns the agent's root URL.
func (e Endpoint) URL() string {
	return fmt.Sprintf("http://%s/", e.Addr())
}

// Encode serializes a request body.
func Encode(req CommandRequest) ([]byte, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding command request: %w", err)
	}
	return data, nil
}

// SetHeaders applies the content type and the shared-secret Authorization
// header. The token is sent raw, without an auth scheme.
func SetHeaders(h http.Header, token string) {
	h.Set("Content-Type", "application/json")
	if token != "" {
		h.Set("Authorization", token)
	}
}

// DecodeResponse decodes a reply body in two steps. A JSON object is decoded
// into its fields and structured is true. Anything else (plain text, a JSON
// scalar, a truncated document) is accepted as legacy output: the raw body
// becomes Output, Cwd stays unspecified and structured is false.
func DecodeResponse(body []byte) (resp CommandResponse, structured bool) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var decoded CommandResponse
		if err := json.Unmarshal(trimmed, &decoded); err == nil {
			return decoded, true
		}
	}
	return CommandResponse{Output: string(body)}, false
}
