package service

import (
	"errors"
	"log/slog"
	"reflect"
	"testing"

	celeval "github.com/Aegis-Guard/Aegisguard/internal/adapter/outbound/cel"
	"github.com/Aegis-Guard/Aegisguard/internal/domain/policy"
)

func newTestVerifier(t *testing.T) *Verifier {
	t.Helper()
	ev, err := celeval.NewEvaluator(nil)
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	return NewVerifier(ev, 8, slog.Default())
}

func TestVerifierCheckFlagsViolatedRules(t *testing.T) {
	v := newTestVerifier(t)
	rules := policy.Set{
		{Name: "no password sharing", Logic: "shares_password IMPLIES user_consented"},
		{Name: "no file deletion", Logic: "NOT deletes_files"},
	}
	if err := v.Install(policy.KindAction, rules); err != nil {
		t.Fatalf("Install: %v", err)
	}

	tests := []struct {
		name         string
		valuation    policy.Valuation
		wantAllowed  bool
		wantViolated []string
	}{
		{
			name:        "all assertions hold",
			valuation:   policy.Valuation{"shares_password": false, "deletes_files": false},
			wantAllowed: true,
		},
		{
			name:         "one assertion fails",
			valuation:    policy.Valuation{"shares_password": true, "user_consented": false},
			wantAllowed:  false,
			wantViolated: []string{"no password sharing"},
		},
		{
			name:         "both assertions fail",
			valuation:    policy.Valuation{"shares_password": true, "deletes_files": true},
			wantAllowed:  false,
			wantViolated: []string{"no password sharing", "no file deletion"},
		},
		{
			name:        "consent satisfies the implication",
			valuation:   policy.Valuation{"shares_password": true, "user_consented": true},
			wantAllowed: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v.ClearCache()
			verdict, cached := v.Check(policy.KindAction, tt.valuation)
			if cached {
				t.Error("first check reported a cache hit")
			}
			if verdict.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", verdict.Allowed, tt.wantAllowed)
			}
			if !reflect.DeepEqual(verdict.Violated, tt.wantViolated) {
				t.Errorf("Violated = %v, want %v", verdict.Violated, tt.wantViolated)
			}
		})
	}
}

func TestVerifierEmptySetAllows(t *testing.T) {
	v := newTestVerifier(t)
	verdict, _ := v.Check(policy.KindMessage, policy.Valuation{"anything": true})
	if !verdict.Allowed {
		t.Error("empty rule set denied")
	}
}

func TestVerifierCheckCachesVerdicts(t *testing.T) {
	v := newTestVerifier(t)
	if err := v.Install(policy.KindAction, policy.Set{{Name: "r", Logic: "NOT bad"}}); err != nil {
		t.Fatalf("Install: %v", err)
	}
	valuation := policy.Valuation{"bad": true}

	if _, cached := v.Check(policy.KindAction, valuation); cached {
		t.Fatal("first check hit the cache")
	}
	verdict, cached := v.Check(policy.KindAction, valuation)
	if !cached {
		t.Fatal("second check missed the cache")
	}
	if verdict.Allowed {
		t.Error("cached verdict lost the denial")
	}

	// A different valuation has a different fingerprint.
	if _, cached := v.Check(policy.KindAction, policy.Valuation{"bad": false}); cached {
		t.Error("distinct valuation hit the cache")
	}
}

func TestVerifierInstallSkipsInvalidRules(t *testing.T) {
	v := newTestVerifier(t)
	err := v.Install(policy.KindAction, policy.Set{
		{Name: "broken", Logic: "AND AND"},
		{Name: "fine", Logic: "NOT bad"},
	})
	if !errors.Is(err, policy.ErrInvalidRule) {
		t.Fatalf("Install error = %v, want ErrInvalidRule", err)
	}
	got := v.Rules(policy.KindAction)
	if len(got) != 1 || got[0].Name != "fine" {
		t.Errorf("installed rules = %v, want just [fine]", got.Names())
	}
}

func TestVerifierInstallReplacesByName(t *testing.T) {
	v := newTestVerifier(t)
	v.Install(policy.KindAction, policy.Set{{Name: "r", Logic: "NOT bad"}})
	v.Install(policy.KindAction, policy.Set{{Name: "r", Logic: "bad IMPLIES approved"}})

	got := v.Rules(policy.KindAction)
	if len(got) != 1 {
		t.Fatalf("rule count = %d, want 1", len(got))
	}
	if got[0].Logic != "bad IMPLIES approved" {
		t.Errorf("rule logic = %q, not replaced", got[0].Logic)
	}
	verdict, _ := v.Check(policy.KindAction, policy.Valuation{"bad": true, "approved": true})
	if !verdict.Allowed {
		t.Error("replaced rule not in effect")
	}
}

func TestVerifierDeactivateAndActivate(t *testing.T) {
	v := newTestVerifier(t)
	v.Install(policy.KindAction, policy.Set{
		{Name: "a", Logic: "NOT bad"},
		{Name: "b", Logic: "NOT worse"},
	})

	v.Deactivate(policy.KindAction)
	if v.HasRules(policy.KindAction) {
		t.Fatal("rules still installed after Deactivate")
	}
	verdict, _ := v.Check(policy.KindAction, policy.Valuation{"bad": true})
	if !verdict.Allowed {
		t.Error("deactivated verifier denied")
	}

	if err := v.Activate(policy.KindAction, []string{"b"}); err != nil {
		t.Fatalf("Activate: %v", err)
	}
	got := v.Rules(policy.KindAction)
	if !reflect.DeepEqual(got.Names(), []string{"b"}) {
		t.Errorf("active rules = %v, want [b]", got.Names())
	}

	if err := v.Activate(policy.KindAction, []string{"missing"}); !errors.Is(err, policy.ErrRuleNotFound) {
		t.Errorf("Activate(missing) = %v, want ErrRuleNotFound", err)
	}
}

func TestVerifierDeactivateTwiceKeepsStash(t *testing.T) {
	v := newTestVerifier(t)
	v.Install(policy.KindAction, policy.Set{{Name: "a", Logic: "NOT bad"}})
	v.Deactivate(policy.KindAction)
	v.Deactivate(policy.KindAction)
	if err := v.Activate(policy.KindAction, []string{"a"}); err != nil {
		t.Fatalf("Activate after double Deactivate: %v", err)
	}
}

func TestFingerprintIsOrderInsensitive(t *testing.T) {
	rules := policy.Set{{Name: "r", Logic: "NOT bad"}}
	a := Fingerprint(policy.KindAction, policy.Valuation{"x": true, "y": false}, rules)
	b := Fingerprint(policy.KindAction, policy.Valuation{"y": false, "x": true}, rules)
	if a != b {
		t.Error("same valuation produced different fingerprints")
	}
	if Fingerprint(policy.KindMessage, policy.Valuation{"x": true, "y": false}, rules) == a {
		t.Error("kind not part of the fingerprint")
	}
	if Fingerprint(policy.KindAction, policy.Valuation{"x": true, "y": true}, rules) == a {
		t.Error("valuation change did not change the fingerprint")
	}
	if Fingerprint(policy.KindAction, policy.Valuation{"x": true, "y": false}, policy.Set{}) == a {
		t.Error("rule set not part of the fingerprint")
	}
}
