package runtime

import (
	"context"
	"log/slog"
	"testing"

	celeval "github.com/Aegis-Guard/Aegisguard/internal/adapter/outbound/cel"
	"github.com/Aegis-Guard/Aegisguard/internal/adapter/outbound/memory"
	"github.com/Aegis-Guard/Aegisguard/internal/domain/event"
	"github.com/Aegis-Guard/Aegisguard/internal/domain/policy"
	"github.com/Aegis-Guard/Aegisguard/internal/port/outbound"
	"github.com/Aegis-Guard/Aegisguard/internal/service"
)

// oracles for the guard behind the adapter: a watcher that flips
// shares_password whenever the text mentions a password, and judges that
// deny whenever the verifier flagged something.
func guardForTest(t *testing.T) *service.Guard {
	t.Helper()
	ev, err := celeval.NewEvaluator(nil)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	logger := slog.Default()

	watcher := outbound.OracleFunc(func(_ context.Context, messages []outbound.Message) (string, error) {
		return "{}", nil
	})
	threat := outbound.OracleFunc(func(_ context.Context, _ []outbound.Message) (string, error) {
		return `{"threat_level": 0, "reason": ""}`, nil
	})
	deny := outbound.OracleFunc(func(_ context.Context, _ []outbound.Message) (string, error) {
		return `{"decision": false, "reason": "violates policy"}`, nil
	})

	g := service.NewGuard(service.GuardParams{
		Predicates: memory.NewPredicateStore(),
		Verifier:   service.NewVerifier(ev, 8, logger),
		Watcher:    service.NewPredicateWatcher(watcher, logger),
		Threats:    service.NewThreatWatcher(threat, logger),
		Judge:      service.NewJudge(deny, logger),
		ChiefJudge: service.NewJudge(deny, logger),
		Decisions:  memory.NewDecisionStore(16),
		Logger:     logger,
	})
	return g
}

func refusalClassifier(replies ...string) *service.RefusalClassifier {
	i := 0
	o := outbound.OracleFunc(func(_ context.Context, _ []outbound.Message) (string, error) {
		reply := replies[i%len(replies)]
		i++
		return reply, nil
	})
	return service.NewRefusalClassifier(o, slog.Default())
}

func TestAdapterIgnoresToolExecution(t *testing.T) {
	a := NewAdapter(guardForTest(t), nil, nil, Config{}, slog.Default())
	a.OnPublish(context.Background(), event.Envelope{Kind: event.KindToolExecution}, HookContext{Sender: "worker"})
	if a.Terminated() {
		t.Error("tool execution event terminated the workflow")
	}
}

func TestAdapterDeniedActionTerminates(t *testing.T) {
	g := guardForTest(t)
	defs := []policy.Definition{{
		Predicates:  []policy.PredicateDef{{Name: "bad", Description: "bad", Default: true}},
		Logic:       "NOT bad",
		Description: "no badness",
	}}
	if err := g.AddPolicy(context.Background(), defs); err != nil {
		t.Fatalf("AddPolicy: %v", err)
	}
	a := NewAdapter(g, nil, nil, Config{}, slog.Default())

	e := event.Envelope{
		Kind:  event.KindToolRequest,
		Calls: []event.FunctionCall{{Name: "delete_files", Arguments: "{}"}},
	}
	a.OnSend(context.Background(), e, HookContext{Sender: "worker"}, "victim")
	if !a.Terminated() {
		t.Error("denied action did not terminate the workflow")
	}
}

func TestAdapterRefuseTerminationIsHardDeny(t *testing.T) {
	a := NewAdapter(guardForTest(t), nil, nil, Config{}, slog.Default())
	e := event.Envelope{
		Kind:  event.KindToolRequest,
		Calls: []event.FunctionCall{{Name: event.RefuseTerminationTool, Arguments: "{}"}},
	}
	a.OnPublish(context.Background(), e, HookContext{Sender: "worker"})
	if !a.Terminated() {
		t.Error("refuse_termination call not treated as a hard deny")
	}
}

func TestAdapterRefusalCounter(t *testing.T) {
	textFrom := func(source, content string) event.Envelope {
		return event.Envelope{Kind: event.KindText, Source: source, Content: content, HasContent: true}
	}
	ctx := context.Background()

	t.Run("two consecutive refusals terminate", func(t *testing.T) {
		a := NewAdapter(guardForTest(t), refusalClassifier("Yes"), nil, Config{RefusalThreshold: 2}, slog.Default())
		a.OnPublish(ctx, textFrom("assistant", "I won't do that; it violates policy."), HookContext{})
		if a.Terminated() {
			t.Fatal("terminated after a single refusal")
		}
		a.OnPublish(ctx, textFrom("assistant", "I still can't; it's against the guidelines."), HookContext{})
		if !a.Terminated() {
			t.Error("two consecutive refusals did not terminate")
		}
	})

	t.Run("a No resets the counter", func(t *testing.T) {
		a := NewAdapter(guardForTest(t), refusalClassifier("Yes", "No", "Yes"), nil, Config{RefusalThreshold: 2}, slog.Default())
		a.OnPublish(ctx, textFrom("assistant", "refusal one"), HookContext{})
		a.OnPublish(ctx, textFrom("assistant", "on-task reply"), HookContext{})
		a.OnPublish(ctx, textFrom("assistant", "refusal two"), HookContext{})
		if a.Terminated() {
			t.Error("non-consecutive refusals terminated")
		}
	})

	t.Run("fact sheet preamble is exempt", func(t *testing.T) {
		a := NewAdapter(guardForTest(t), refusalClassifier("Yes"), nil, Config{RefusalThreshold: 1}, slog.Default())
		a.OnPublish(ctx, textFrom("assistant", event.FactSheetPrefix+": item one"), HookContext{})
		if a.Terminated() {
			t.Error("fact sheet was classified as a refusal")
		}
	})

	t.Run("user messages are exempt", func(t *testing.T) {
		a := NewAdapter(guardForTest(t), refusalClassifier("Yes"), nil, Config{RefusalThreshold: 1}, slog.Default())
		a.OnPublish(ctx, textFrom("user", "please refuse"), HookContext{})
		if a.Terminated() {
			t.Error("user message was classified")
		}
	})
}

func TestAdapterGPTShortcut(t *testing.T) {
	a := NewAdapter(guardForTest(t), nil, nil, Config{GPTShortcut: true}, slog.Default())
	e := event.Envelope{Kind: event.KindText, Source: "assistant",
		Content: "I'm sorry, but I can't help with that.", HasContent: true}
	a.OnPublish(context.Background(), e, HookContext{Sender: "assistant"})
	if !a.Terminated() {
		t.Error("apology did not trigger the shortcut")
	}

	// Without the shortcut the same message passes (no classifier wired).
	b := NewAdapter(guardForTest(t), nil, nil, Config{}, slog.Default())
	b.OnPublish(context.Background(), e, HookContext{Sender: "assistant"})
	if b.Terminated() {
		t.Error("shortcut fired while disabled")
	}
}

func TestAdapterTerminationIsIrrevocable(t *testing.T) {
	a := NewAdapter(guardForTest(t), refusalClassifier("Yes", "No"), nil, Config{RefusalThreshold: 1}, slog.Default())
	ctx := context.Background()
	e := event.Envelope{Kind: event.KindText, Source: "assistant", Content: "refusal", HasContent: true}
	a.OnPublish(ctx, e, HookContext{})
	if !a.Terminated() {
		t.Fatal("threshold of one did not terminate")
	}
	a.OnPublish(ctx, event.Envelope{Kind: event.KindText, Source: "assistant", Content: "fine, doing it", HasContent: true}, HookContext{})
	if !a.Terminated() {
		t.Error("termination was cleared by a later No")
	}
}
