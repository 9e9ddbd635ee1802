package agentguard

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Aegis-Guard/Aegisguard/internal/config"
)

func defaultConfig(t *testing.T) *config.Config {
	t.Helper()
	var cfg config.Config
	cfg.SetDefaults()
	return &cfg
}

func TestNewAssemblesSystem(t *testing.T) {
	ctx := context.Background()
	sys, err := New(ctx, defaultConfig(t), Options{Version: "test"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer sys.Close(ctx)

	if sys.Guard == nil || sys.Adapter == nil || sys.Termination == nil {
		t.Fatal("system is missing components")
	}
	if sys.Termination.IsSet() {
		t.Error("termination flag set at assembly")
	}
	if !sys.Guard.Enabled() {
		t.Error("guard not enabled at assembly")
	}
}

func TestNewRejectsUnknownBackends(t *testing.T) {
	ctx := context.Background()

	cfg := defaultConfig(t)
	cfg.Index.Backend = "pinecone"
	if _, err := New(ctx, cfg, Options{}); err == nil {
		t.Error("unknown index backend accepted")
	}

	cfg = defaultConfig(t)
	cfg.Embedding.Provider = "word2vec"
	if _, err := New(ctx, cfg, Options{}); err == nil {
		t.Error("unknown embedding provider accepted")
	}
}

func TestDecisionTraceTee(t *testing.T) {
	ctx := context.Background()
	cfg := defaultConfig(t)
	cfg.Trace.Enabled = true
	cfg.Trace.Dir = t.TempDir()

	sys, err := New(ctx, cfg, Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// A disabled guard still records the pass-through decision, which
	// exercises the tee without any oracle traffic.
	sys.Guard.Disable()
	allowed, _ := sys.Guard.HandleMessage(ctx, "hello", 0, "worker", "planner")
	if !allowed {
		t.Fatal("disabled guard denied a message")
	}

	recent, err := sys.Guard.Decisions(ctx, 1)
	if err != nil || len(recent) != 1 {
		t.Fatalf("Decisions = %v, %v", recent, err)
	}

	if err := sys.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries, err := os.ReadDir(cfg.Trace.Dir)
	if err != nil || len(entries) == 0 {
		t.Fatalf("trace dir empty: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(cfg.Trace.Dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("read trace file: %v", err)
	}
	if !strings.Contains(string(data), recent[0].ID) {
		t.Errorf("trace file missing decision %s", recent[0].ID)
	}
}

func TestNewLoggerLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", ""} {
		if NewLogger(config.LoggingConfig{Level: level}) == nil {
			t.Errorf("NewLogger(%q) returned nil", level)
		}
	}
	if NewLogger(config.LoggingConfig{Format: "json"}) == nil {
		t.Error("NewLogger(json) returned nil")
	}
}
