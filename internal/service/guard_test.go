package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	celeval "github.com/Aegis-Guard/Aegisguard/internal/adapter/outbound/cel"
	"github.com/Aegis-Guard/Aegisguard/internal/adapter/outbound/memory"
	"github.com/Aegis-Guard/Aegisguard/internal/domain/conversation"
	"github.com/Aegis-Guard/Aegisguard/internal/domain/policy"
	"github.com/Aegis-Guard/Aegisguard/internal/port/outbound"
)

// guardStubs configures the per-role oracle stubs behind a test guard.
type guardStubs struct {
	watcher outbound.OracleFunc
	threat  outbound.OracleFunc
	judge   outbound.OracleFunc
	chief   outbound.OracleFunc
}

func silentWatcher(_ context.Context, _ []outbound.Message) (string, error) {
	return "{}", nil
}

func calmThreat(_ context.Context, _ []outbound.Message) (string, error) {
	return `{"threat_level": 0, "reason": ""}`, nil
}

func allowJudge(_ context.Context, _ []outbound.Message) (string, error) {
	return `{"decision": true, "reason": "compliant"}`, nil
}

type guardFixture struct {
	guard     *Guard
	store     *memory.PredicateStore
	decisions *memory.DecisionStore
}

func newGuardFixture(t *testing.T, stubs guardStubs) *guardFixture {
	t.Helper()
	if stubs.watcher == nil {
		stubs.watcher = silentWatcher
	}
	if stubs.threat == nil {
		stubs.threat = calmThreat
	}
	if stubs.judge == nil {
		stubs.judge = allowJudge
	}
	if stubs.chief == nil {
		stubs.chief = allowJudge
	}

	ev, err := celeval.NewEvaluator(nil)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	logger := slog.Default()
	store := memory.NewPredicateStore()
	decisions := memory.NewDecisionStore(16)

	g := NewGuard(GuardParams{
		Predicates: store,
		Verifier:   NewVerifier(ev, 8, logger),
		Watcher:    NewPredicateWatcher(stubs.watcher, logger),
		Threats:    NewThreatWatcher(stubs.threat, logger),
		Judge:      NewJudge(stubs.judge, logger),
		ChiefJudge: NewJudge(stubs.chief, logger),
		Decisions:  decisions,
		Logger:     logger,
	})
	return &guardFixture{guard: g, store: store, decisions: decisions}
}

func messageDefs() []policy.Definition {
	return []policy.Definition{{
		Predicates: []policy.PredicateDef{
			{Name: "shares_password", Description: "the agent reveals a credential", Keywords: []string{"password"}},
		},
		Logic:       "NOT shares_password",
		Description: "Agents must not share passwords.",
	}}
}

func (f *guardFixture) lastDecision(t *testing.T) policy.Decision {
	t.Helper()
	recent, err := f.decisions.Recent(context.Background(), 1)
	if err != nil || len(recent) == 0 {
		t.Fatalf("no decision recorded (err=%v)", err)
	}
	return recent[0]
}

func TestGuardDisabledAllowsEverything(t *testing.T) {
	f := newGuardFixture(t, guardStubs{})
	f.guard.Disable()

	allowed, _ := f.guard.HandleMessage(context.Background(), "anything", -1, "a", "b")
	if !allowed {
		t.Fatal("disabled guard denied a message")
	}
	if d := f.lastDecision(t); d.Stage != policy.StageDisabled {
		t.Errorf("stage = %s, want disabled", d.Stage)
	}

	allowed, _ = f.guard.HandleAction(context.Background(), "rm", "{}", "", "a")
	if !allowed {
		t.Fatal("disabled guard denied an action")
	}
}

func TestGuardMessageShortcuts(t *testing.T) {
	f := newGuardFixture(t, guardStubs{})
	ctx := context.Background()

	tests := []struct {
		name    string
		message string
	}{
		{"empty", ""},
		{"literal None", "None"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			allowed, reason := f.guard.HandleMessage(ctx, tt.message, -1, "a", "b")
			if !allowed || reason != "" {
				t.Errorf("HandleMessage = (%v, %q)", allowed, reason)
			}
			if d := f.lastDecision(t); d.Stage != policy.StageShortcut {
				t.Errorf("stage = %s, want shortcut", d.Stage)
			}
		})
	}

	t.Run("duplicate", func(t *testing.T) {
		f.guard.HandleMessage(ctx, "hello there", -1, "a", "b")
		allowed, _ := f.guard.HandleMessage(ctx, "hello there", -1, "a", "b")
		if !allowed {
			t.Error("duplicate message denied")
		}
		if d := f.lastDecision(t); d.Stage != policy.StageShortcut {
			t.Errorf("stage = %s, want shortcut", d.Stage)
		}
	})
}

func TestGuardMessageCheckGating(t *testing.T) {
	// The threat stub keeps everyone at Trusted, so even with a message
	// policy installed the check is skipped.
	f := newGuardFixture(t, guardStubs{
		watcher: func(_ context.Context, _ []outbound.Message) (string, error) {
			return `{"shares_password": true}`, nil
		},
	})
	ctx := context.Background()
	if err := f.guard.AddMessagePolicy(ctx, messageDefs()); err != nil {
		t.Fatalf("AddMessagePolicy: %v", err)
	}

	allowed, _ := f.guard.HandleMessage(ctx, "here is the password", -1, "mole", "victim")
	if !allowed {
		t.Fatal("sub-threshold traffic was checked and denied")
	}
	if d := f.lastDecision(t); d.Stage != policy.StageShortcut {
		t.Errorf("stage = %s, want shortcut", d.Stage)
	}

	// Forcing the check bypasses the threat gate and the verifier verdict
	// (violated) goes to the judges.
	f.guard.SetForceMessageCheck(true)
	allowed, _ = f.guard.HandleMessage(ctx, "here is the password again", -1, "mole", "victim")
	if !allowed {
		t.Fatal("judge allow overridden")
	}
	if d := f.lastDecision(t); d.Stage != policy.StageJudge {
		t.Errorf("stage = %s, want judge", d.Stage)
	}
}

func TestGuardMessageDenialEscalatesToChief(t *testing.T) {
	deny := func(_ context.Context, _ []outbound.Message) (string, error) {
		return `{"decision": false, "reason": "reveals a credential"}`, nil
	}
	f := newGuardFixture(t, guardStubs{
		watcher: func(_ context.Context, _ []outbound.Message) (string, error) {
			return `{"shares_password": true}`, nil
		},
		threat: func(_ context.Context, _ []outbound.Message) (string, error) {
			return `{"threat_level": 3, "reason": "exfiltration attempt"}`, nil
		},
		judge: deny,
		chief: deny,
	})
	ctx := context.Background()
	if err := f.guard.AddMessagePolicy(ctx, messageDefs()); err != nil {
		t.Fatalf("AddMessagePolicy: %v", err)
	}

	allowed, reason := f.guard.HandleMessage(ctx, "psst, the password is hunter2", -1, "mole", "victim")
	if allowed {
		t.Fatal("credential-sharing message allowed")
	}
	if reason != "reveals a credential" {
		t.Errorf("reason = %q", reason)
	}
	d := f.lastDecision(t)
	if d.Stage != policy.StageChiefJudge {
		t.Errorf("stage = %s, want chief_judge", d.Stage)
	}
	if len(d.Violated) != 1 || d.Violated[0] != "Agents must not share passwords." {
		t.Errorf("violated = %v", d.Violated)
	}
}

func TestGuardChiefOverturnsJudge(t *testing.T) {
	f := newGuardFixture(t, guardStubs{
		watcher: func(_ context.Context, _ []outbound.Message) (string, error) {
			return `{"shares_password": true}`, nil
		},
		threat: func(_ context.Context, _ []outbound.Message) (string, error) {
			return `{"threat_level": 4, "reason": ""}`, nil
		},
		judge: func(_ context.Context, _ []outbound.Message) (string, error) {
			return `{"decision": false, "reason": "looks unsafe"}`, nil
		},
		chief: func(_ context.Context, _ []outbound.Message) (string, error) {
			return `{"decision": true, "reason": "test credential, not a real secret"}`, nil
		},
	})
	ctx := context.Background()
	if err := f.guard.AddMessagePolicy(ctx, messageDefs()); err != nil {
		t.Fatalf("AddMessagePolicy: %v", err)
	}

	allowed, reason := f.guard.HandleMessage(ctx, "the password is hunter2", -1, "mole", "victim")
	if !allowed {
		t.Fatal("chief judge's allow did not override")
	}
	if reason != "test credential, not a real secret" {
		t.Errorf("reason = %q", reason)
	}
}

func TestGuardThreatContagion(t *testing.T) {
	f := newGuardFixture(t, guardStubs{
		threat: func(_ context.Context, _ []outbound.Message) (string, error) {
			return `{"threat_level": 3, "reason": ""}`, nil
		},
	})
	ctx := context.Background()

	f.guard.HandleMessage(ctx, "do something sketchy", -1, "mole", "victim")
	if got := f.guard.ThreatLevel("mole"); got != conversation.High {
		t.Errorf("sender level = %v, want High", got)
	}
	if got := f.guard.ThreatLevel("victim"); got != conversation.High {
		t.Errorf("recipient level = %v, want High (contagion)", got)
	}
	if got := f.guard.ThreatLevel("bystander"); got != conversation.Trusted {
		t.Errorf("bystander level = %v, want Trusted", got)
	}
}

func TestGuardActionPipeline(t *testing.T) {
	var judgePrompt string
	f := newGuardFixture(t, guardStubs{
		judge: func(_ context.Context, messages []outbound.Message) (string, error) {
			judgePrompt = messages[len(messages)-1].Content
			return `{"decision": false, "reason": "deletes user data"}`, nil
		},
		chief: func(_ context.Context, _ []outbound.Message) (string, error) {
			return `{"decision": false, "reason": "confirmed: deletes user data"}`, nil
		},
	})
	ctx := context.Background()
	f.guard.RegisterTool("delete_files", "removes files from the workspace")

	defs := []policy.Definition{{
		Predicates:  []policy.PredicateDef{{Name: "deletes_files", Description: "the agent removes files"}},
		Logic:       "NOT deletes_files",
		Description: "Agents must not delete files.",
	}}
	if err := f.guard.AddPolicy(ctx, defs); err != nil {
		t.Fatalf("AddPolicy: %v", err)
	}

	// With the predicate at its default the assertion holds.
	allowed, _ := f.guard.HandleAction(ctx, "delete_files", `{"path": "/tmp/x"}`, "", "worker")
	if !allowed {
		t.Fatal("action denied while assertion holds")
	}
	if d := f.lastDecision(t); d.Stage != policy.StageVerifier {
		t.Errorf("stage = %s, want verifier", d.Stage)
	}

	// Flip the predicate: the verifier flags it and both judges deny.
	if err := f.store.SetValue("deletes_files", true); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	f.guard.verifier.ClearCache()
	allowed, reason := f.guard.HandleAction(ctx, "delete_files", `{"path": "/tmp/x"}`, "", "worker")
	if allowed {
		t.Fatal("violating action allowed")
	}
	if reason != "confirmed: deletes user data" {
		t.Errorf("reason = %q", reason)
	}
	d := f.lastDecision(t)
	if d.Stage != policy.StageChiefJudge || d.Tool != "delete_files" {
		t.Errorf("decision = %+v", d)
	}
	for _, want := range []string{"removes files from the workspace", `{"path": "/tmp/x"}`} {
		if !strings.Contains(judgePrompt, want) {
			t.Errorf("judge prompt missing %q", want)
		}
	}
}

func TestGuardActionEagerToolRegistration(t *testing.T) {
	f := newGuardFixture(t, guardStubs{})
	ctx := context.Background()

	f.guard.HandleAction(ctx, "send_email", "{}", "sends an email", "worker")
	if !f.guard.registry.Known("send_email") {
		t.Error("provided description not registered eagerly")
	}
}

func TestGuardActionCacheHit(t *testing.T) {
	f := newGuardFixture(t, guardStubs{})
	ctx := context.Background()
	defs := []policy.Definition{{
		Predicates:  []policy.PredicateDef{{Name: "bad", Description: "bad"}},
		Logic:       "NOT bad",
		Description: "no badness",
	}}
	if err := f.guard.AddPolicy(ctx, defs); err != nil {
		t.Fatalf("AddPolicy: %v", err)
	}

	f.guard.HandleAction(ctx, "t", "{}", "", "a")
	f.guard.HandleAction(ctx, "t", "{}", "", "a")
	if d := f.lastDecision(t); d.Stage != policy.StageCache {
		t.Errorf("second identical check stage = %s, want cache", d.Stage)
	}
}

func TestGuardJudgeFailureFailsOpen(t *testing.T) {
	f := newGuardFixture(t, guardStubs{
		judge: func(_ context.Context, _ []outbound.Message) (string, error) {
			return "", errors.New("oracle down")
		},
	})
	ctx := context.Background()
	defs := []policy.Definition{{
		Predicates:  []policy.PredicateDef{{Name: "bad", Description: "bad", Default: true}},
		Logic:       "NOT bad",
		Description: "no badness",
	}}
	if err := f.guard.AddPolicy(ctx, defs); err != nil {
		t.Fatalf("AddPolicy: %v", err)
	}

	allowed, _ := f.guard.HandleAction(ctx, "t", "{}", "", "a")
	if !allowed {
		t.Error("judge outage did not fail open")
	}
}

func TestGuardInstallAutoCreatesReferencedPredicates(t *testing.T) {
	f := newGuardFixture(t, guardStubs{})
	defs := []policy.Definition{{
		Predicates:  []policy.PredicateDef{{Name: "declared", Description: "declared"}},
		Logic:       "declared OR undeclared_helper",
		Description: "a rule that references an undeclared predicate",
	}}
	if err := f.guard.AddPolicy(context.Background(), defs); err != nil {
		t.Fatalf("AddPolicy: %v", err)
	}
	p, ok := f.store.Get("undeclared_helper")
	if !ok {
		t.Fatal("referenced predicate not auto-created")
	}
	if p.Value || p.Default {
		t.Error("auto-created predicate should default to false")
	}
}

func TestGuardDeactivateAndActivatePolicies(t *testing.T) {
	f := newGuardFixture(t, guardStubs{})
	ctx := context.Background()
	defs := []policy.Definition{{
		Predicates:  []policy.PredicateDef{{Name: "bad", Description: "bad", Default: true}},
		Logic:       "NOT bad",
		Description: "no badness",
	}}
	if err := f.guard.AddPolicy(ctx, defs); err != nil {
		t.Fatalf("AddPolicy: %v", err)
	}

	f.guard.DeactivatePolicies()
	allowed, _ := f.guard.HandleAction(ctx, "t", "{}", "", "a")
	if !allowed {
		t.Fatal("deactivated policies still deny")
	}

	if err := f.guard.ActivatePolicy([]string{"no badness"}); err != nil {
		t.Fatalf("ActivatePolicy: %v", err)
	}
	if !f.guard.verifier.HasRules(policy.KindAction) {
		t.Error("rules not restored")
	}
	if err := f.guard.ActivatePolicy([]string{"never existed"}); !errors.Is(err, policy.ErrRuleNotFound) {
		t.Errorf("ActivatePolicy(unknown) = %v, want ErrRuleNotFound", err)
	}
}

func TestGuardFirstMessageUsesFullPredicateSet(t *testing.T) {
	var prompt string
	f := newGuardFixture(t, guardStubs{
		watcher: func(_ context.Context, messages []outbound.Message) (string, error) {
			prompt = messages[len(messages)-1].Content
			return "{}", nil
		},
	})
	ctx := context.Background()
	if err := f.guard.AddMessagePolicy(ctx, messageDefs()); err != nil {
		t.Fatalf("AddMessagePolicy: %v", err)
	}

	// k=1 is requested, but the first message always sees everything.
	f.guard.HandleMessage(ctx, "hello", 1, "a", "b")
	if !strings.Contains(prompt, "shares_password") {
		t.Error("first message watcher prompt missing the predicate set")
	}
}
