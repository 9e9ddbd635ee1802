// Package config provides the configuration schema for Aegis Guard.
//
// Configuration is file-based (aegis-guard.yaml) with environment variable
// overrides. The schema covers the guard pipeline, the interception adapter,
// policy ingestion, the per-role model oracles, the predicate similarity
// index, and the observability surfaces.
package config

import "time"

// Config is the top-level configuration for Aegis Guard.
type Config struct {
	// Guard tunes the checkpoint pipeline.
	Guard GuardConfig `yaml:"guard" mapstructure:"guard"`

	// Interception tunes the host interception adapter.
	Interception InterceptionConfig `yaml:"interception" mapstructure:"interception"`

	// Ingest tunes policy document ingestion.
	Ingest IngestConfig `yaml:"ingest" mapstructure:"ingest"`

	// Oracles configures the model backing each guard role.
	Oracles OraclesConfig `yaml:"oracles" mapstructure:"oracles"`

	// Embedding configures the embedding function behind the predicate index.
	Embedding EmbeddingConfig `yaml:"embedding" mapstructure:"embedding"`

	// Index configures the predicate similarity index backend.
	Index IndexConfig `yaml:"index" mapstructure:"index"`

	// Telemetry configures OpenTelemetry and the Prometheus endpoint.
	Telemetry TelemetryConfig `yaml:"telemetry" mapstructure:"telemetry"`

	// Logging configures the slog handler.
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// Trace configures the file-based decision trace.
	Trace TraceConfig `yaml:"trace" mapstructure:"trace"`
}

// GuardConfig tunes the checkpoint pipeline.
type GuardConfig struct {
	// MessageBufferSize is the capacity of the conversation context FIFO.
	// Defaults to 5.
	MessageBufferSize int `yaml:"message_buffer_size" mapstructure:"message_buffer_size" validate:"omitempty,min=1"`

	// PredicateUpdateSize is the default k for top-k predicate retrieval.
	// Defaults to 5.
	PredicateUpdateSize int `yaml:"predicate_update_size" mapstructure:"predicate_update_size" validate:"omitempty,min=1"`

	// SenderHistorySize is the per-sender observation history capacity.
	// Defaults to 5.
	SenderHistorySize int `yaml:"sender_history_size" mapstructure:"sender_history_size" validate:"omitempty,min=1"`

	// ForceMessageCheck always runs the message policy checkpoint,
	// regardless of sender threat levels.
	ForceMessageCheck bool `yaml:"force_message_check" mapstructure:"force_message_check"`

	// VerdictCacheSize is the number of entries in the verdict LRU cache.
	// Defaults to 64.
	VerdictCacheSize int `yaml:"verdict_cache_size" mapstructure:"verdict_cache_size" validate:"omitempty,min=1"`

	// DecisionLogSize is the capacity of the in-memory decision ring.
	// Defaults to 1024.
	DecisionLogSize int `yaml:"decision_log_size" mapstructure:"decision_log_size" validate:"omitempty,min=1"`
}

// InterceptionConfig tunes the host interception adapter.
type InterceptionConfig struct {
	// RefusalThreshold is the count of consecutive safety refusals that
	// terminates the workflow. Defaults to 2.
	RefusalThreshold int `yaml:"refusal_threshold" mapstructure:"refusal_threshold" validate:"omitempty,min=1"`

	// GPTShortcut terminates on a literal "I'm sorry" without consulting
	// the refusal classifier. Off by default.
	GPTShortcut bool `yaml:"gpt_shortcut" mapstructure:"gpt_shortcut"`
}

// IngestConfig tunes policy document ingestion.
type IngestConfig struct {
	// ChunkSize is the maximum chunk length, in characters, fed to the
	// extraction oracle per pass. Defaults to 10000.
	ChunkSize int `yaml:"chunk_size" mapstructure:"chunk_size" validate:"omitempty,min=1"`
}

// OraclesConfig configures the model oracle behind each guard role.
type OraclesConfig struct {
	Watcher    OracleConfig `yaml:"watcher" mapstructure:"watcher"`
	Threat     OracleConfig `yaml:"threat" mapstructure:"threat"`
	Judge      OracleConfig `yaml:"judge" mapstructure:"judge"`
	ChiefJudge OracleConfig `yaml:"chief_judge" mapstructure:"chief_judge"`
	Refusal    OracleConfig `yaml:"refusal" mapstructure:"refusal"`
	Extractor  OracleConfig `yaml:"extractor" mapstructure:"extractor"`
}

// OracleConfig configures one model oracle. The provider is inferred from
// the model name; the API key may instead come from the provider's standard
// environment variable.
type OracleConfig struct {
	// Model is the model identifier (e.g. "gpt-4o", "claude-sonnet-4-5").
	// Defaults to "gpt-4o".
	Model string `yaml:"model" mapstructure:"model"`

	// APIKey is the provider API key for this role.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`

	// BaseURL overrides the provider endpoint, for proxies and
	// OpenAI-compatible gateways.
	BaseURL string `yaml:"base_url" mapstructure:"base_url" validate:"omitempty,url"`

	// Timeout is the per-request timeout (e.g. "30s", "2m").
	// Defaults to "60s".
	Timeout string `yaml:"timeout" mapstructure:"timeout" validate:"omitempty,duration"`
}

// TimeoutDuration parses the timeout, falling back to 60s when unset or
// malformed. Validation rejects malformed values before this is reached.
func (o OracleConfig) TimeoutDuration() time.Duration {
	if d, err := time.ParseDuration(o.Timeout); err == nil && d > 0 {
		return d
	}
	return 60 * time.Second
}

// EmbeddingConfig configures the embedding function.
type EmbeddingConfig struct {
	// Provider selects the embedder: "local" (hash-based, no network) or
	// "genai" (Google text embeddings). Defaults to "local".
	Provider string `yaml:"provider" mapstructure:"provider" validate:"omitempty,oneof=local genai"`

	// Model is the embedding model for the genai provider.
	Model string `yaml:"model" mapstructure:"model"`

	// APIKey is the API key for the genai provider.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`

	// Dimensions is the embedding dimensionality. Defaults to 256.
	Dimensions int `yaml:"dimensions" mapstructure:"dimensions" validate:"omitempty,min=1"`
}

// IndexConfig configures the predicate similarity index.
type IndexConfig struct {
	// Backend selects the index implementation: "memory" or "qdrant".
	// Defaults to "memory".
	Backend string `yaml:"backend" mapstructure:"backend" validate:"omitempty,oneof=memory qdrant"`

	// Qdrant configures the qdrant backend.
	Qdrant QdrantConfig `yaml:"qdrant" mapstructure:"qdrant"`
}

// QdrantConfig configures the Qdrant index backend.
type QdrantConfig struct {
	// URL is the Qdrant endpoint (e.g. "http://localhost:6333").
	URL string `yaml:"url" mapstructure:"url" validate:"omitempty,url"`

	// APIKey authenticates against Qdrant Cloud. Optional for local.
	APIKey string `yaml:"api_key" mapstructure:"api_key"`

	// Collection is the collection name. Defaults to "predicates".
	Collection string `yaml:"collection" mapstructure:"collection"`
}

// TelemetryConfig configures observability exposure.
type TelemetryConfig struct {
	// Enabled turns on the OpenTelemetry trace and metric pipelines.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// MetricsAddr is the listen address for the Prometheus /metrics
	// endpoint. Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr" mapstructure:"metrics_addr" validate:"omitempty,hostname_port"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Defaults to "info".
	Level string `yaml:"level" mapstructure:"level" validate:"omitempty,oneof=debug info warn warning error"`

	// Format selects the handler: "text" or "json". Defaults to "text".
	Format string `yaml:"format" mapstructure:"format" validate:"omitempty,oneof=text json"`
}

// TraceConfig configures the file-based decision trace.
type TraceConfig struct {
	// Enabled turns on the JSONL decision trace.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Dir is the directory where trace files are written.
	// Defaults to "./decisions".
	Dir string `yaml:"dir" mapstructure:"dir"`

	// RetentionDays is how many days of trace files to keep. Defaults to 7.
	RetentionDays int `yaml:"retention_days" mapstructure:"retention_days" validate:"omitempty,min=1"`
}

// SetDefaults applies default values for all optional fields.
func (c *Config) SetDefaults() {
	// Guard defaults.
	if c.Guard.MessageBufferSize == 0 {
		c.Guard.MessageBufferSize = 5
	}
	if c.Guard.PredicateUpdateSize == 0 {
		c.Guard.PredicateUpdateSize = 5
	}
	if c.Guard.SenderHistorySize == 0 {
		c.Guard.SenderHistorySize = 5
	}
	if c.Guard.VerdictCacheSize == 0 {
		c.Guard.VerdictCacheSize = 64
	}
	if c.Guard.DecisionLogSize == 0 {
		c.Guard.DecisionLogSize = 1024
	}

	// Interception defaults.
	if c.Interception.RefusalThreshold == 0 {
		c.Interception.RefusalThreshold = 2
	}

	// Ingest defaults.
	if c.Ingest.ChunkSize == 0 {
		c.Ingest.ChunkSize = 10000
	}

	// Oracle defaults, per role.
	for _, o := range []*OracleConfig{
		&c.Oracles.Watcher, &c.Oracles.Threat, &c.Oracles.Judge,
		&c.Oracles.ChiefJudge, &c.Oracles.Refusal, &c.Oracles.Extractor,
	} {
		if o.Model == "" {
			o.Model = "gpt-4o"
		}
		if o.Timeout == "" {
			o.Timeout = "60s"
		}
	}

	// Embedding defaults.
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "local"
	}
	if c.Embedding.Dimensions == 0 {
		c.Embedding.Dimensions = 256
	}

	// Index defaults.
	if c.Index.Backend == "" {
		c.Index.Backend = "memory"
	}
	if c.Index.Qdrant.Collection == "" {
		c.Index.Qdrant.Collection = "predicates"
	}

	// Logging defaults.
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	// Trace defaults.
	if c.Trace.Dir == "" {
		c.Trace.Dir = "./decisions"
	}
	if c.Trace.RetentionDays == 0 {
		c.Trace.RetentionDays = 7
	}
}
