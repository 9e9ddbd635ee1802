package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfig_SetDefaults(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.SetDefaults()

	if cfg.Guard.MessageBufferSize != 5 {
		t.Errorf("MessageBufferSize = %d, want 5", cfg.Guard.MessageBufferSize)
	}
	if cfg.Guard.PredicateUpdateSize != 5 {
		t.Errorf("PredicateUpdateSize = %d, want 5", cfg.Guard.PredicateUpdateSize)
	}
	if cfg.Guard.VerdictCacheSize != 64 {
		t.Errorf("VerdictCacheSize = %d, want 64", cfg.Guard.VerdictCacheSize)
	}
	if cfg.Guard.DecisionLogSize != 1024 {
		t.Errorf("DecisionLogSize = %d, want 1024", cfg.Guard.DecisionLogSize)
	}
	if cfg.Guard.ForceMessageCheck {
		t.Error("ForceMessageCheck should default to false")
	}
	if cfg.Interception.RefusalThreshold != 2 {
		t.Errorf("RefusalThreshold = %d, want 2", cfg.Interception.RefusalThreshold)
	}
	if cfg.Ingest.ChunkSize != 10000 {
		t.Errorf("ChunkSize = %d, want 10000", cfg.Ingest.ChunkSize)
	}
	if cfg.Embedding.Provider != "local" {
		t.Errorf("Embedding.Provider = %q, want %q", cfg.Embedding.Provider, "local")
	}
	if cfg.Embedding.Dimensions != 256 {
		t.Errorf("Embedding.Dimensions = %d, want 256", cfg.Embedding.Dimensions)
	}
	if cfg.Index.Backend != "memory" {
		t.Errorf("Index.Backend = %q, want %q", cfg.Index.Backend, "memory")
	}
	if cfg.Index.Qdrant.Collection != "predicates" {
		t.Errorf("Qdrant.Collection = %q, want %q", cfg.Index.Qdrant.Collection, "predicates")
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %q/%q, want info/text", cfg.Logging.Level, cfg.Logging.Format)
	}
	if cfg.Trace.RetentionDays != 7 {
		t.Errorf("Trace.RetentionDays = %d, want 7", cfg.Trace.RetentionDays)
	}
}

func TestConfig_SetDefaults_OracleRoles(t *testing.T) {
	t.Parallel()

	var cfg Config
	cfg.Oracles.Judge.Model = "claude-sonnet-4-5"
	cfg.SetDefaults()

	if cfg.Oracles.Watcher.Model != "gpt-4o" {
		t.Errorf("Watcher.Model = %q, want %q", cfg.Oracles.Watcher.Model, "gpt-4o")
	}
	if cfg.Oracles.Judge.Model != "claude-sonnet-4-5" {
		t.Errorf("Judge.Model = %q, explicit value not preserved", cfg.Oracles.Judge.Model)
	}
	for role, o := range map[string]OracleConfig{
		"watcher": cfg.Oracles.Watcher, "threat": cfg.Oracles.Threat,
		"judge": cfg.Oracles.Judge, "chief_judge": cfg.Oracles.ChiefJudge,
		"refusal": cfg.Oracles.Refusal, "extractor": cfg.Oracles.Extractor,
	} {
		if o.Timeout != "60s" {
			t.Errorf("oracles.%s.timeout = %q, want %q", role, o.Timeout, "60s")
		}
	}
}

func TestConfig_SetDefaults_PreservesExistingValues(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Guard:   GuardConfig{VerdictCacheSize: 16, MessageBufferSize: 10},
		Ingest:  IngestConfig{ChunkSize: 2000},
		Logging: LoggingConfig{Level: "debug", Format: "json"},
	}
	cfg.SetDefaults()

	if cfg.Guard.VerdictCacheSize != 16 {
		t.Errorf("VerdictCacheSize = %d, want 16", cfg.Guard.VerdictCacheSize)
	}
	if cfg.Guard.MessageBufferSize != 10 {
		t.Errorf("MessageBufferSize = %d, want 10", cfg.Guard.MessageBufferSize)
	}
	if cfg.Ingest.ChunkSize != 2000 {
		t.Errorf("ChunkSize = %d, want 2000", cfg.Ingest.ChunkSize)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %q/%q, want debug/json", cfg.Logging.Level, cfg.Logging.Format)
	}
}

func TestOracleConfig_TimeoutDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		timeout string
		want    time.Duration
	}{
		{"30s", 30 * time.Second},
		{"2m", 2 * time.Minute},
		{"", 60 * time.Second},
		{"not-a-duration", 60 * time.Second},
	}
	for _, tt := range tests {
		o := OracleConfig{Timeout: tt.timeout}
		if got := o.TimeoutDuration(); got != tt.want {
			t.Errorf("TimeoutDuration(%q) = %v, want %v", tt.timeout, got, tt.want)
		}
	}
}

func TestFindConfigFileInPaths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if got := findConfigFileInPaths([]string{dir}); got != "" {
		t.Errorf("findConfigFileInPaths(empty dir) = %q, want empty", got)
	}

	path := filepath.Join(dir, "aegis-guard.yml")
	if err := os.WriteFile(path, []byte("guard:\n  verdict_cache_size: 8\n"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if got := findConfigFileInPaths([]string{dir}); got != path {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, path)
	}

	// .yaml wins over .yml when both exist.
	yaml := filepath.Join(dir, "aegis-guard.yaml")
	if err := os.WriteFile(yaml, []byte(""), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if got := findConfigFileInPaths([]string{dir}); got != yaml {
		t.Errorf("findConfigFileInPaths = %q, want %q", got, yaml)
	}
}
