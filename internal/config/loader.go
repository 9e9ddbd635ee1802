// Package config provides configuration loading for Aegis Guard.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// InitViper initializes Viper with the configuration file and environment
// variables. If configFile is empty, it searches for aegis-guard.yaml/.yml
// in standard locations. The search requires an explicit YAML extension so
// the binary itself (same base name, no extension) is never matched.
func InitViper(configFile string) {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else if found := findConfigFile(); found != "" {
		viper.SetConfigFile(found)
	} else {
		// No config file found in any standard location. Set name/type
		// without search paths so ReadInConfig returns
		// ConfigFileNotFoundError (handled gracefully by callers).
		viper.SetConfigName("aegis-guard")
		viper.SetConfigType("yaml")
	}

	// Environment variable support: AEGISGUARD_GUARD_VERDICT_CACHE_SIZE
	viper.SetEnvPrefix("AEGISGUARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	bindNestedEnvKeys()
}

// findConfigFile searches standard locations for an aegis-guard config file
// with an explicit YAML extension (.yaml or .yml).
func findConfigFile() string {
	home, _ := os.UserHomeDir()
	paths := []string{
		".",
		filepath.Join(home, ".aegis-guard"),
	}
	if runtime.GOOS == "windows" {
		if pd := os.Getenv("ProgramData"); pd != "" {
			paths = append(paths, filepath.Join(pd, "aegis-guard"))
		}
	} else {
		paths = append(paths, "/etc/aegis-guard")
	}
	return findConfigFileInPaths(paths)
}

// findConfigFileInPaths searches the given directories for aegis-guard.yaml
// or .yml, returning the first match or empty string.
func findConfigFileInPaths(paths []string) string {
	for _, dir := range paths {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "aegis-guard"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// bindNestedEnvKeys binds the nested config keys so each can be overridden
// from the environment.
// Example: AEGISGUARD_GUARD_FORCE_MESSAGE_CHECK overrides guard.force_message_check
func bindNestedEnvKeys() {
	// Guard pipeline
	_ = viper.BindEnv("guard.message_buffer_size")
	_ = viper.BindEnv("guard.predicate_update_size")
	_ = viper.BindEnv("guard.sender_history_size")
	_ = viper.BindEnv("guard.force_message_check")
	_ = viper.BindEnv("guard.verdict_cache_size")
	_ = viper.BindEnv("guard.decision_log_size")

	// Interception adapter
	_ = viper.BindEnv("interception.refusal_threshold")
	_ = viper.BindEnv("interception.gpt_shortcut")

	// Ingestion
	_ = viper.BindEnv("ingest.chunk_size")

	// Oracles, one block per role
	for _, role := range []string{"watcher", "threat", "judge", "chief_judge", "refusal", "extractor"} {
		_ = viper.BindEnv("oracles." + role + ".model")
		_ = viper.BindEnv("oracles." + role + ".api_key")
		_ = viper.BindEnv("oracles." + role + ".base_url")
		_ = viper.BindEnv("oracles." + role + ".timeout")
	}

	// Embedding
	_ = viper.BindEnv("embedding.provider")
	_ = viper.BindEnv("embedding.model")
	_ = viper.BindEnv("embedding.api_key")
	_ = viper.BindEnv("embedding.dimensions")

	// Index
	_ = viper.BindEnv("index.backend")
	_ = viper.BindEnv("index.qdrant.url")
	_ = viper.BindEnv("index.qdrant.api_key")
	_ = viper.BindEnv("index.qdrant.collection")

	// Telemetry
	_ = viper.BindEnv("telemetry.enabled")
	_ = viper.BindEnv("telemetry.metrics_addr")

	// Logging
	_ = viper.BindEnv("logging.level")
	_ = viper.BindEnv("logging.format")

	// Trace
	_ = viper.BindEnv("trace.enabled")
	_ = viper.BindEnv("trace.dir")
	_ = viper.BindEnv("trace.retention_days")
}

// LoadConfig reads the configuration file, applies environment overrides,
// sets defaults, validates, and returns the Config.
func LoadConfig() (*Config, error) {
	cfg, err := LoadConfigRaw()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigRaw reads the configuration file and applies defaults, but does
// NOT validate. Use this when CLI flags may override fields before
// validation.
func LoadConfigRaw() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - continue with env vars only.
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.SetDefaults()
	return &cfg, nil
}

// ConfigFileUsed returns the path to the configuration file that was loaded,
// or an empty string when running from environment variables alone.
func ConfigFileUsed() string {
	return viper.ConfigFileUsed()
}
