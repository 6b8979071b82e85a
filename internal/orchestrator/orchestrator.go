// Package orchestrator runs one-shot commands outside of an interactive
// session and delivers their output.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanmeadows/termbridge/internal/dispatch"
	"github.com/alanmeadows/termbridge/internal/protocol"
	"github.com/alanmeadows/termbridge/internal/session"
	"github.com/alanmeadows/termbridge/internal/transport"
)

// Disposition selects what happens to a successful command's output.
type Disposition int

const (
	// Display returns the output to the caller.
	Display Disposition = iota
	// Paste hands the output to the Inserter, or to the Clipboard when there
	// is no insertion target.
	Paste
)

// Delivery reports where the output ended up.
type Delivery int

const (
	NotDelivered Delivery = iota
	Displayed
	Inserted
	Copied
)

func (d Delivery) String() string {
	switch d {
	case Displayed:
		return "displayed"
	case Inserted:
		return "inserted"
	case Copied:
		return "copied"
	default:
		return "not delivered"
	}
}

// Inserter places text at the current insertion point of some document.
type Inserter interface {
	InsertText(ctx context.Context, text string) error
}

// Clipboard receives text when no insertion target exists.
type Clipboard interface {
	WriteAll(text string) error
}

// Notifier shows short user-facing notices.
type Notifier interface {
	Notify(msg string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(msg string)

// Notify calls f.
func (f NotifierFunc) Notify(msg string) { f(msg) }

// Invocation is one one-shot command.
type Invocation struct {
	Command     string
	Cwd         string
	Disposition Disposition
}

// Result is what Run produced.
type Result struct {
	Outcome  transport.Outcome
	Delivery Delivery
}

// Orchestrator runs one-shot invocations. It holds no working directory, so
// it is safe to use while an interactive session is open.
type Orchestrator struct {
	exchanger session.Exchanger
	registry  *dispatch.Registry
	inserter  Inserter
	clipboard Clipboard
	notifier  Notifier
	recorder  session.Recorder
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithInserter sets the insertion target for Paste.
func WithInserter(i Inserter) Option { return func(o *Orchestrator) { o.inserter = i } }

// WithClipboard sets the Paste fallback.
func WithClipboard(c Clipboard) Option { return func(o *Orchestrator) { o.clipboard = c } }

// WithNotifier sets where notices go.
func WithNotifier(n Notifier) Option { return func(o *Orchestrator) { o.notifier = n } }

// WithRecorder records every exchange.
func WithRecorder(r session.Recorder) Option { return func(o *Orchestrator) { o.recorder = r } }

// WithRegistry sets the language registry used by RunCode.
func WithRegistry(r *dispatch.Registry) Option { return func(o *Orchestrator) { o.registry = r } }

// New creates an Orchestrator.
func New(ex session.Exchanger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		exchanger: ex,
		registry:  dispatch.DefaultRegistry(),
		notifier:  NotifierFunc(func(msg string) { slog.Info(msg) }),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run sends inv.Command once. Blank commands return protocol.ErrEmptyCommand
// without any exchange or notice. Every other failure is reported through
// the Notifier and the returned Result.
func (o *Orchestrator) Run(ctx context.Context, inv Invocation) (Result, error) {
	req, err := protocol.NewCommandRequest(inv.Command, inv.Cwd)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	out := o.exchanger.Exchange(ctx, req)
	if o.recorder != nil {
		e := session.Exchange{Source: "run", Request: req, Outcome: out, StartedAt: start, Duration: time.Since(start)}
		if err := o.recorder.Record(ctx, e); err != nil {
			slog.Warn("recording exchange failed", "error", err)
		}
	}

	res := Result{Outcome: out}
	switch out.Kind {
	case transport.TransportError:
		o.notifier.Notify(fmt.Sprintf("Failed to reach the agent: %s", out.Message))
		return res, nil
	case transport.ApplicationError:
		o.notifier.Notify("Command failed on the agent")
		return res, nil
	}

	if inv.Disposition == Display {
		res.Delivery = Displayed
		return res, nil
	}
	res.Delivery = o.deliver(ctx, out.Output)
	return res, nil
}

// RunCode wraps source for lang and runs it as inv.
func (o *Orchestrator) RunCode(ctx context.Context, lang, source string, inv Invocation) (Result, error) {
	cmd, err := o.registry.Wrap(lang, source)
	if err != nil {
		return Result{}, err
	}
	inv.Command = cmd
	return o.Run(ctx, inv)
}

func (o *Orchestrator) deliver(ctx context.Context, text string) Delivery {
	if o.inserter != nil {
		if err := o.inserter.InsertText(ctx, text); err != nil {
			o.notifier.Notify(fmt.Sprintf("Could not paste output: %v", err))
			return NotDelivered
		}
		o.notifier.Notify("Output pasted")
		return Inserted
	}
	if o.clipboard != nil {
		if err := o.clipboard.WriteAll(text); err != nil {
			o.notifier.Notify(fmt.Sprintf("Could not copy output: %v", err))
			return NotDelivered
		}
		o.notifier.Notify("Output copied to clipboard")
		return Copied
	}
	o.notifier.Notify("No paste target or clipboard available")
	return NotDelivered
}
