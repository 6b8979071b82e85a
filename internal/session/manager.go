// Package session keeps the state of one interactive command stream: the
// working directory reported by the agent and the transcript it feeds.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alanmeadows/termbridge/internal/protocol"
	"github.com/alanmeadows/termbridge/internal/transport"
	"golang.org/x/sync/semaphore"
)

// RestartNotice is appended once a restart exchange completes.
const RestartNotice = "Server restarting...\n"

// ErrBusy is returned under the Reject policy while a command is in flight.
var ErrBusy = errors.New("a command is already running")

// Exchanger performs one request/response exchange with the agent.
type Exchanger interface {
	Exchange(ctx context.Context, req protocol.CommandRequest) transport.Outcome
}

// Exchange describes one completed exchange for a Recorder.
type Exchange struct {
	Source    string
	Request   protocol.CommandRequest
	Outcome   transport.Outcome
	StartedAt time.Time
	Duration  time.Duration
}

// Recorder observes completed exchanges.
type Recorder interface {
	Record(ctx context.Context, e Exchange) error
}

// Policy decides what happens when a command is submitted while another is
// still in flight.
type Policy int

const (
	// Concurrent sends immediately. Responses may arrive out of order and the
	// last one to arrive sets the working directory.
	Concurrent Policy = iota
	// Queue waits for the in-flight command to finish.
	Queue
	// Reject fails with ErrBusy.
	Reject
)

// ParsePolicy maps a config value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "queue":
		return Queue, nil
	case "reject":
		return Reject, nil
	case "concurrent":
		return Concurrent, nil
	default:
		return Queue, fmt.Errorf("unknown session queue policy %q", s)
	}
}

// State is the coarse state of a Manager.
type State int

const (
	Idle State = iota
	Sending
)

func (s State) String() string {
	if s == Sending {
		return "sending"
	}
	return "idle"
}

// Manager drives one session. The working directory starts unset and is only
// ever replaced by a value the agent returns.
type Manager struct {
	exchanger Exchanger
	sink      Sink
	recorder  Recorder
	policy    Policy
	slot      *semaphore.Weighted

	mu       sync.Mutex
	cwd      string
	live     bool
	inFlight int
}

// Option configures a Manager.
type Option func(*Manager)

// WithPolicy selects the in-flight policy. The default is Queue.
func WithPolicy(p Policy) Option {
	return func(m *Manager) { m.policy = p }
}

// WithRecorder attaches a Recorder.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// NewManager creates a Manager appending to sink.
func NewManager(ex Exchanger, sink Sink, opts ...Option) *Manager {
	m := &Manager{
		exchanger: ex,
		sink:      sink,
		policy:    Queue,
		slot:      semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Cwd returns the working directory last reported by the agent.
func (m *Manager) Cwd() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cwd
}

// Live reports whether the most recent exchange reached the agent.
func (m *Manager) Live() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live
}

// State reports whether an exchange is in flight.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight > 0 {
		return Sending
	}
	return Idle
}

// Restart sends the restart directive.
func (m *Manager) Restart(ctx context.Context) error {
	return m.Submit(ctx, protocol.RestartCommand)
}

// Submit runs one command. Blank input is rejected with
// protocol.ErrEmptyCommand before anything is appended or sent. The command
// is echoed first; "clear" then empties the transcript without an exchange.
// Every other command produces exactly one result line.
func (m *Manager) Submit(ctx context.Context, input string) error {
	cmd := strings.TrimSpace(input)
	if cmd == "" {
		return protocol.ErrEmptyCommand
	}

	release, err := m.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	m.sink.Append(Line{Text: cmd, Kind: KindCommand})

	if cmd == protocol.ClearCommand {
		m.sink.Clear()
		return nil
	}

	req := protocol.CommandRequest{Cmd: cmd, Cwd: m.Cwd()}

	m.begin()
	start := time.Now()
	out := m.exchanger.Exchange(ctx, req)
	m.complete(out)

	m.sink.Append(resultLine(cmd, out))

	if m.recorder != nil {
		e := Exchange{Source: "session", Request: req, Outcome: out, StartedAt: start, Duration: time.Since(start)}
		if err := m.recorder.Record(ctx, e); err != nil {
			slog.Warn("recording exchange failed", "error", err)
		}
	}
	return nil
}

func (m *Manager) acquire(ctx context.Context) (func(), error) {
	switch m.policy {
	case Queue:
		if err := m.slot.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		return func() { m.slot.Release(1) }, nil
	case Reject:
		if !m.slot.TryAcquire(1) {
			return nil, ErrBusy
		}
		return func() { m.slot.Release(1) }, nil
	default:
		return func() {}, nil
	}
}

func (m *Manager) begin() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight++
}

// complete is the only place session state changes after an exchange.
func (m *Manager) complete(out transport.Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight--
	m.live = out.Reached()
	if out.Reached() && out.Cwd != "" {
		m.cwd = out.Cwd
	}
}

func resultLine(cmd string, out transport.Outcome) Line {
	if cmd == protocol.RestartCommand {
		return Line{Text: RestartNotice, Kind: KindSystem}
	}
	switch out.Kind {
	case transport.Success:
		return Line{Text: out.Output, Kind: KindOutput}
	case transport.ApplicationError:
		return Line{Text: out.Output, Kind: KindError}
	default:
		return Line{Text: fmt.Sprintf("Error: %s\n", out.Message), Kind: KindError}
	}
}
