// Package runtime is the interception adapter: it receives the host
// runtime's publish/send/response hooks, maps the events through the domain
// classifier, and drives the guard's checkpoints. On a confirmed denial it
// signals external termination of the host workflow.
package runtime

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/Aegis-Guard/Aegisguard/internal/domain/event"
	"github.com/Aegis-Guard/Aegisguard/internal/port/outbound"
	"github.com/Aegis-Guard/Aegisguard/internal/service"
)

// DefaultRefusalThreshold is how many consecutive safety refusals trigger
// termination.
const DefaultRefusalThreshold = 2

// gptApologyMarker short-circuits refusal classification on GPT-family
// hosts, whose refusals reliably start with an apology.
const gptApologyMarker = "I'm sorry"

// HookContext carries the host-side addressing of a publish/send hook.
type HookContext struct {
	// Sender is the producing agent's type, when the host knows it.
	Sender string
	// Topic is the broadcast topic for publish hooks.
	Topic string
}

// Config tunes the adapter.
type Config struct {
	// RefusalThreshold is the consecutive-refusal count that terminates.
	// Non-positive falls back to DefaultRefusalThreshold.
	RefusalThreshold int
	// GPTShortcut terminates on the literal "I'm sorry" without calling
	// the refusal classifier.
	GPTShortcut bool
}

// Adapter dispatches intercepted events into the guard.
type Adapter struct {
	guard     *service.Guard
	refusal   *service.RefusalClassifier
	term      outbound.Termination
	logger    *slog.Logger
	threshold int
	shortcut  bool

	mu       sync.Mutex
	refusals int
}

// NewAdapter creates an adapter. refusal may be nil to disable refusal
// tracking; term may be nil, in which case a process-local flag is used.
func NewAdapter(guard *service.Guard, refusal *service.RefusalClassifier, term outbound.Termination, cfg Config, logger *slog.Logger) *Adapter {
	if term == nil {
		term = outbound.NewTerminationFlag()
	}
	if logger == nil {
		logger = slog.Default()
	}
	threshold := cfg.RefusalThreshold
	if threshold <= 0 {
		threshold = DefaultRefusalThreshold
	}
	return &Adapter{
		guard:     guard,
		refusal:   refusal,
		term:      term,
		logger:    logger,
		threshold: threshold,
		shortcut:  cfg.GPTShortcut,
	}
}

// OnPublish intercepts a broadcast event. The recipient is the topic.
func (a *Adapter) OnPublish(ctx context.Context, e event.Envelope, hctx HookContext) {
	a.handle(ctx, e, hctx.Sender, hctx.Topic)
}

// OnSend intercepts a unicast event.
func (a *Adapter) OnSend(ctx context.Context, e event.Envelope, hctx HookContext, recipient string) {
	a.handle(ctx, e, hctx.Sender, recipient)
}

// OnResponse intercepts a response event. Responses pass through unchecked;
// their content was already checked on the way in.
func (a *Adapter) OnResponse(ctx context.Context, e event.Envelope, sender, recipient string) {
}

// Terminated reports whether the adapter has signalled workflow termination.
func (a *Adapter) Terminated() bool {
	return a.term.IsSet()
}

func (a *Adapter) handle(ctx context.Context, e event.Envelope, sender, recipient string) {
	if a.shortcut && strings.Contains(e.Content, gptApologyMarker) {
		a.logger.Info("terminating on apology shortcut", "source", e.Source)
		a.term.Set()
		return
	}

	if a.refusal != nil && e.RefusalEligible() {
		a.trackRefusal(ctx, e)
	}

	switch route := event.Classify(e); route {
	case event.RouteIgnore, event.RoutePass:
		return
	case event.RouteUnknown:
		a.logger.Debug("passing unclassified event", "kind", e.Kind, "source", e.Source)
		return
	case event.RouteMessage:
		a.checkMessage(ctx, e.Content, 0, sender, recipient)
	case event.RouteFullMessage:
		a.checkMessage(ctx, e.Content, -1, sender, recipient)
	case event.RouteActions:
		a.checkActions(ctx, e, sender)
	default:
		a.logger.Warn("unhandled route", "route", route)
	}
}

func (a *Adapter) checkMessage(ctx context.Context, content string, k int, sender, recipient string) {
	allowed, reason := a.guard.HandleMessage(ctx, content, k, sender, recipient)
	if !allowed {
		a.logger.Info("message denied, terminating workflow",
			"sender", sender, "recipient", recipient, "reason", reason)
		a.term.Set()
	}
}

func (a *Adapter) checkActions(ctx context.Context, e event.Envelope, sender string) {
	for _, call := range e.Calls {
		if call.Name == event.RefuseTerminationTool {
			a.logger.Info("agent attempted to refuse termination", "sender", sender)
			a.term.Set()
			continue
		}
		allowed, reason := a.guard.HandleAction(ctx, call.Name, call.Arguments, "", sender)
		if !allowed {
			a.logger.Info("action denied, terminating workflow",
				"tool", call.Name, "sender", sender, "reason", reason)
			a.term.Set()
		}
	}
}

// trackRefusal runs the classifier and maintains the consecutive-refusal
// counter. Termination on threshold is irrevocable; later "No" answers
// reset the counter but never clear the flag.
func (a *Adapter) trackRefusal(ctx context.Context, e event.Envelope) {
	refused, err := a.refusal.IsSafetyRefusal(ctx, e.Content)
	if err != nil {
		a.logger.Warn("refusal classifier unavailable", "error", err)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if !refused {
		a.refusals = 0
		return
	}
	a.refusals++
	a.logger.Info("safety refusal observed", "source", e.Source, "consecutive", a.refusals)
	if a.refusals >= a.threshold {
		a.term.Set()
	}
}
