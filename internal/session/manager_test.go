package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alanmeadows/termbridge/internal/protocol"
	"github.com/alanmeadows/termbridge/internal/session"
	"github.com/alanmeadows/termbridge/internal/transport"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeAgent returns scripted outcomes in order and records every request.
type fakeAgent struct {
	mu       sync.Mutex
	requests []protocol.CommandRequest
	outcomes []transport.Outcome
	// gate, when set, blocks each exchange until a value is received.
	gate chan transport.Outcome
}

func (f *fakeAgent) Exchange(ctx context.Context, req protocol.CommandRequest) transport.Outcome {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	var out transport.Outcome
	if len(f.outcomes) > 0 {
		out = f.outcomes[0]
		f.outcomes = f.outcomes[1:]
	}
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case out = <-gate:
		case <-ctx.Done():
			return transport.Outcome{Kind: transport.TransportError, Message: ctx.Err().Error()}
		}
	}
	return out
}

func (f *fakeAgent) Requests() []protocol.CommandRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]protocol.CommandRequest(nil), f.requests...)
}

func success(output, cwd string) transport.Outcome {
	return transport.Outcome{Kind: transport.Success, Output: output, Cwd: cwd, Status: 200}
}

func TestSubmit_EchoThenOutputAndCwd(t *testing.T) {
	agent := &fakeAgent{outcomes: []transport.Outcome{success("hi\n", "/home/u")}}
	buf := &session.Buffer{}
	m := session.NewManager(agent, buf)

	require.NoError(t, m.Submit(context.Background(), "echo hi"))

	want := []session.Line{
		{Text: "echo hi", Kind: session.KindCommand},
		{Text: "hi\n", Kind: session.KindOutput},
	}
	if diff := cmp.Diff(want, buf.Lines()); diff != "" {
		t.Errorf("transcript mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "/home/u", m.Cwd())
	assert.True(t, m.Live())
	assert.Equal(t, session.Idle, m.State())

	reqs := agent.Requests()
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].Cwd, "first request carries no cwd")
}

func TestSubmit_CwdRoundTrip(t *testing.T) {
	agent := &fakeAgent{outcomes: []transport.Outcome{
		success("", "/home/u"),
		success("/tmp\n", "/tmp"),
		success("", ""),
	}}
	m := session.NewManager(agent, &session.Buffer{})
	ctx := context.Background()

	require.NoError(t, m.Submit(ctx, "true"))
	require.NoError(t, m.Submit(ctx, "cd /tmp && pwd"))
	assert.Equal(t, "/tmp", m.Cwd())

	require.NoError(t, m.Submit(ctx, "ls"))
	assert.Equal(t, "/tmp", m.Cwd(), "a response without cwd keeps the previous one")

	reqs := agent.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, "/home/u", reqs[1].Cwd)
	assert.Equal(t, "/tmp", reqs[2].Cwd)
}

func TestSubmit_CdIsNotInferredLocally(t *testing.T) {
	agent := &fakeAgent{outcomes: []transport.Outcome{success("", "")}}
	m := session.NewManager(agent, &session.Buffer{})

	require.NoError(t, m.Submit(context.Background(), "cd /sdcard"))
	assert.Empty(t, m.Cwd())
}

func TestSubmit_TrimsInput(t *testing.T) {
	agent := &fakeAgent{outcomes: []transport.Outcome{success("x", "")}}
	buf := &session.Buffer{}
	m := session.NewManager(agent, buf)

	require.NoError(t, m.Submit(context.Background(), "  \tls -la  \n"))
	reqs := agent.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "ls -la", reqs[0].Cmd)
	assert.Equal(t, "ls -la", buf.Lines()[0].Text)
}

func TestSubmit_EmptyInputDoesNothing(t *testing.T) {
	agent := &fakeAgent{}
	buf := &session.Buffer{}
	m := session.NewManager(agent, buf)

	for _, in := range []string{"", "   ", "\n\t"} {
		err := m.Submit(context.Background(), in)
		assert.ErrorIs(t, err, protocol.ErrEmptyCommand)
	}
	assert.Empty(t, agent.Requests())
	assert.Zero(t, buf.Len())
}

func TestSubmit_ClearIsLocal(t *testing.T) {
	agent := &fakeAgent{outcomes: []transport.Outcome{success("a\n", ""), success("b\n", "")}}
	buf := &session.Buffer{}
	m := session.NewManager(agent, buf)
	ctx := context.Background()

	require.NoError(t, m.Submit(ctx, "echo a"))
	require.NoError(t, m.Submit(ctx, "echo b"))
	require.Equal(t, 4, buf.Len())

	require.NoError(t, m.Submit(ctx, "  clear "))
	assert.Zero(t, buf.Len())
	assert.Len(t, agent.Requests(), 2)
}

func TestSubmit_TransportErrorKeepsCwd(t *testing.T) {
	agent := &fakeAgent{outcomes: []transport.Outcome{
		success("", "/home/u"),
		{Kind: transport.TransportError, Message: "failed to reach agent at 127.0.0.1:8085: connection refused (is the agent running?)"},
	}}
	buf := &session.Buffer{}
	m := session.NewManager(agent, buf)
	ctx := context.Background()

	require.NoError(t, m.Submit(ctx, "true"))
	before := m.Cwd()
	n := buf.Len()

	require.NoError(t, m.Submit(ctx, "ls"))
	assert.Equal(t, before, m.Cwd())
	assert.False(t, m.Live())

	lines := buf.Lines()[n:]
	require.Len(t, lines, 2)
	assert.Equal(t, session.KindCommand, lines[0].Kind)
	assert.Equal(t, session.KindError, lines[1].Kind)
	assert.Contains(t, lines[1].Text, "Error: failed to reach agent")
}

func TestSubmit_ApplicationErrorVerbatimAndCwd(t *testing.T) {
	agent := &fakeAgent{outcomes: []transport.Outcome{
		{Kind: transport.ApplicationError, Output: "Command timed out\n", Cwd: "/data", Status: 500},
	}}
	buf := &session.Buffer{}
	m := session.NewManager(agent, buf)

	require.NoError(t, m.Submit(context.Background(), "sleep 999"))
	lines := buf.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, session.Line{Text: "Command timed out\n", Kind: session.KindError}, lines[1])
	assert.Equal(t, "/data", m.Cwd())
}

func TestRestart_AppendsSystemNoticeRegardlessOfOutput(t *testing.T) {
	for _, out := range []transport.Outcome{
		success("restarting now\n", ""),
		{Kind: transport.TransportError, Message: "connection reset"},
	} {
		agent := &fakeAgent{outcomes: []transport.Outcome{out}}
		buf := &session.Buffer{}
		m := session.NewManager(agent, buf)

		require.NoError(t, m.Restart(context.Background()))

		want := []session.Line{
			{Text: protocol.RestartCommand, Kind: session.KindCommand},
			{Text: session.RestartNotice, Kind: session.KindSystem},
		}
		if diff := cmp.Diff(want, buf.Lines()); diff != "" {
			t.Errorf("transcript mismatch (-want +got):\n%s", diff)
		}
		reqs := agent.Requests()
		require.Len(t, reqs, 1)
		assert.Equal(t, protocol.RestartCommand, reqs[0].Cmd)
	}
}

func TestPolicy_RejectWhileBusy(t *testing.T) {
	agent := &fakeAgent{gate: make(chan transport.Outcome)}
	buf := &session.Buffer{}
	m := session.NewManager(agent, buf, session.WithPolicy(session.Reject))
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- m.Submit(ctx, "sleep 1") }()

	require.Eventually(t, func() bool { return m.State() == session.Sending }, time.Second, time.Millisecond)

	err := m.Submit(ctx, "echo second")
	assert.ErrorIs(t, err, session.ErrBusy)

	agent.gate <- success("", "/a")
	require.NoError(t, <-done)

	assert.Len(t, agent.Requests(), 1)
	assert.Equal(t, 2, buf.Len())
	assert.Equal(t, session.Idle, m.State())
}

func TestPolicy_QueueSerializes(t *testing.T) {
	agent := &fakeAgent{gate: make(chan transport.Outcome)}
	m := session.NewManager(agent, &session.Buffer{}, session.WithPolicy(session.Queue))
	ctx := context.Background()

	first := make(chan error, 1)
	go func() { first <- m.Submit(ctx, "cd /a") }()
	require.Eventually(t, func() bool { return len(agent.Requests()) == 1 }, time.Second, time.Millisecond)

	second := make(chan error, 1)
	go func() { second <- m.Submit(ctx, "pwd") }()

	// The second command must not reach the agent while the first is in flight.
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, agent.Requests(), 1)

	agent.gate <- success("", "/a")
	require.NoError(t, <-first)

	require.Eventually(t, func() bool { return len(agent.Requests()) == 2 }, time.Second, time.Millisecond)
	agent.gate <- success("/a\n", "/a")
	require.NoError(t, <-second)

	assert.Equal(t, "/a", agent.Requests()[1].Cwd, "queued command sees the cwd of the one before it")
}

func TestPolicy_QueueHonoursContext(t *testing.T) {
	agent := &fakeAgent{gate: make(chan transport.Outcome)}
	m := session.NewManager(agent, &session.Buffer{}, session.WithPolicy(session.Queue))

	first := make(chan error, 1)
	go func() { first <- m.Submit(context.Background(), "sleep 1") }()
	require.Eventually(t, func() bool { return m.State() == session.Sending }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := m.Submit(ctx, "echo late")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	agent.gate <- success("", "")
	require.NoError(t, <-first)
}

func TestPolicy_ConcurrentLastArrivalWins(t *testing.T) {
	agent := &fakeAgent{gate: make(chan transport.Outcome)}
	m := session.NewManager(agent, &session.Buffer{}, session.WithPolicy(session.Concurrent))
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, cmd := range []string{"cd /first", "cd /second"} {
		cmd := cmd
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Submit(ctx, cmd))
		}()
	}
	require.Eventually(t, func() bool { return len(agent.Requests()) == 2 }, time.Second, time.Millisecond)

	// Reply to whichever is waiting; the second reply to arrive sets the cwd.
	agent.gate <- success("", "/second")
	require.Eventually(t, func() bool { return m.Cwd() == "/second" }, time.Second, time.Millisecond)
	agent.gate <- success("", "/first")
	wg.Wait()

	assert.Equal(t, "/first", m.Cwd())
}

type recorder struct {
	mu      sync.Mutex
	entries []session.Exchange
	err     error
}

func (r *recorder) Record(_ context.Context, e session.Exchange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return r.err
}

func TestRecorder(t *testing.T) {
	agent := &fakeAgent{outcomes: []transport.Outcome{success("hi\n", "/home/u"), success("", "")}}
	rec := &recorder{err: errors.New("disk full")}
	m := session.NewManager(agent, &session.Buffer{}, session.WithRecorder(rec))
	ctx := context.Background()

	require.NoError(t, m.Submit(ctx, "echo hi"))
	require.NoError(t, m.Submit(ctx, "clear"))
	require.NoError(t, m.Submit(ctx, "ls"))

	require.Len(t, rec.entries, 2, "clear is never recorded")
	assert.Equal(t, "session", rec.entries[0].Source)
	assert.Equal(t, "echo hi", rec.entries[0].Request.Cmd)
	assert.Equal(t, "/home/u", rec.entries[1].Request.Cwd)
}

func TestParsePolicy(t *testing.T) {
	for in, want := range map[string]session.Policy{
		"":           session.Queue,
		"queue":      session.Queue,
		"Reject":     session.Reject,
		"concurrent": session.Concurrent,
	} {
		got, err := session.ParsePolicy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := session.ParsePolicy("lifo")
	assert.Error(t, err)
}
