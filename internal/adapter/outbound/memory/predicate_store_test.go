package memory

import (
	"reflect"
	"testing"

	"github.com/Aegis-Guard/Aegisguard/internal/domain/policy"
)

func TestPredicateStoreUpsertAndGet(t *testing.T) {
	s := NewPredicateStore()
	s.Upsert(policy.Predicate{Name: "shares_secret", Description: "agent shares a secret", Keywords: []string{"password"}})

	p, ok := s.Get("shares_secret")
	if !ok {
		t.Fatal("Get: predicate not found")
	}
	if p.Description != "agent shares a secret" {
		t.Errorf("Description = %q", p.Description)
	}

	// Replacement keeps insertion order.
	s.Upsert(policy.Predicate{Name: "deletes_file"})
	s.Upsert(policy.Predicate{Name: "shares_secret", Description: "updated", Value: true})
	all := s.All()
	if len(all) != 2 || all[0].Name != "shares_secret" || all[1].Name != "deletes_file" {
		t.Fatalf("All after replace = %+v", all)
	}
	if all[0].Description != "updated" || !all[0].Value {
		t.Errorf("replaced predicate = %+v", all[0])
	}
}

func TestPredicateStoreSetValue(t *testing.T) {
	s := NewPredicateStore()
	s.Upsert(policy.Predicate{Name: "a"})

	if err := s.SetValue("a", true); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if p, _ := s.Get("a"); !p.Value {
		t.Error("Value = false after SetValue(true)")
	}
	if err := s.SetValue("missing", true); err != policy.ErrPredicateNotFound {
		t.Errorf("SetValue unknown = %v, want ErrPredicateNotFound", err)
	}
}

func TestPredicateStoreApplySkipsUnknown(t *testing.T) {
	s := NewPredicateStore()
	s.Upsert(policy.Predicate{Name: "a"})
	s.Upsert(policy.Predicate{Name: "b", Value: true})

	s.Apply(policy.Valuation{"a": true, "b": false, "phantom": true})

	want := policy.Valuation{"a": true, "b": false}
	if got := s.Valuation(); !reflect.DeepEqual(got, want) {
		t.Errorf("Valuation = %v, want %v", got, want)
	}
	if s.Len() != 2 {
		t.Errorf("Len = %d, want 2: unknown names must not be created", s.Len())
	}
}

func TestPredicateStoreReset(t *testing.T) {
	s := NewPredicateStore()
	s.Upsert(policy.Predicate{Name: "a", Value: true, Default: false})
	s.Upsert(policy.Predicate{Name: "b", Value: false, Default: true})

	s.Reset()

	want := policy.Valuation{"a": false, "b": true}
	if got := s.Valuation(); !reflect.DeepEqual(got, want) {
		t.Errorf("Valuation after Reset = %v, want %v", got, want)
	}
}

func TestPredicateStoreSubset(t *testing.T) {
	s := NewPredicateStore()
	s.Upsert(policy.Predicate{Name: "a"})
	s.Upsert(policy.Predicate{Name: "b"})
	s.Upsert(policy.Predicate{Name: "c"})

	got := s.Subset([]string{"c", "missing", "a"})
	if len(got) != 2 || got[0].Name != "c" || got[1].Name != "a" {
		t.Errorf("Subset = %+v, want [c a] in request order", got)
	}
}

func TestPredicateStoreCopiesAreIndependent(t *testing.T) {
	s := NewPredicateStore()
	s.Upsert(policy.Predicate{Name: "a", Keywords: []string{"k1"}})

	p, _ := s.Get("a")
	p.Keywords[0] = "mutated"

	fresh, _ := s.Get("a")
	if fresh.Keywords[0] != "k1" {
		t.Error("mutating a returned copy leaked into the store")
	}
}
