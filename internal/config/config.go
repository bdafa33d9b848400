// Package config loads Warden configuration: built-in defaults, merged
// with an optional JSON file, then overridden by WARDEN_* environment
// variables. Config is plain data; the engine compiles it into an
// immutable snapshot at load or reload time.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the full configuration document.
type Config struct {
	Screen      ScreenConfig              `json:"screen"`
	Classifiers []ClassifierConfig        `json:"classifiers"`
	Categories  map[string]CategoryConfig `json:"categories"`
	Resolution  ResolutionConfig          `json:"resolution"`
	Fallback    FallbackConfig            `json:"fallback"`
	Server      ServerConfig              `json:"server"`
	Audit       AuditConfig               `json:"audit"`
}

// ScreenConfig controls the pattern pre-screen.
type ScreenConfig struct {
	Enabled       bool   `json:"enabled"`
	ShortCircuit  bool   `json:"short_circuit"`
	BlocklistFile string `json:"blocklist_file"` // empty: built-in blocklist
	Category      string `json:"category"`       // unified category for matches
}

// ClassifierConfig configures one classifier instance.
type ClassifierConfig struct {
	Kind      string            `json:"kind"` // registry key
	Name      string            `json:"name"` // reporting id, defaults to Kind
	Enabled   bool              `json:"enabled"`
	Model     string            `json:"model"`
	Endpoint  string            `json:"endpoint"`
	TimeoutMS int               `json:"timeout_ms"`
	Mapping   map[string]string `json:"mapping"` // nil: built-in mapping for Kind
	Extra     map[string]string `json:"extra"`
}

// DefaultTimeout is the per-call budget applied when a classifier entry
// omits timeout_ms. Every classifier call runs under a deadline.
const DefaultTimeout = 25 * time.Second

// Timeout returns the per-call budget as a duration. Non-positive
// timeout_ms values get DefaultTimeout.
func (c ClassifierConfig) Timeout() time.Duration {
	if c.TimeoutMS <= 0 {
		return DefaultTimeout
	}
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// CategoryConfig defines one unified category.
type CategoryConfig struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Severity    int    `json:"severity"`
}

// ResolutionConfig selects the conflict strategy and confidence thresholds.
type ResolutionConfig struct {
	Strategy         string  `json:"strategy"`
	ConfidenceHigh   float64 `json:"confidence_high"`
	ConfidenceMedium float64 `json:"confidence_medium"`
}

// FallbackConfig sets the fail-safe policy. Category is both the bucket
// substituted for failed classifier calls and the category of last resort
// when no signal contributed at all. Pointing it at a safe category is a
// deliberate opt-out of fail-closed behavior.
type FallbackConfig struct {
	Category string `json:"category"`
}

// ServerConfig holds HTTP service settings.
type ServerConfig struct {
	Addr          string `json:"addr"`
	LogLevel      string `json:"log_level"`
	RateLimit     int    `json:"rate_limit"` // requests per window per client, 0 disables
	RateWindowSec int    `json:"rate_window_sec"`
}

// AuditConfig selects where redacted decision records go.
type AuditConfig struct {
	Sink   string `json:"sink"` // "stdout", "file", "webhook", "none"
	Path   string `json:"path"`
	URL    string `json:"url"`
	Redact bool   `json:"redact"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Screen: ScreenConfig{
			Enabled:      true,
			ShortCircuit: true,
			Category:     "harmful_prompt",
		},
		Classifiers: []ClassifierConfig{
			{Kind: "llama_guard", Name: "llama_guard", Enabled: true, Model: "llama-guard3", TimeoutMS: 25000},
			{Kind: "guardian", Name: "guardian", Enabled: true, Model: "granite3-guardian:8b", TimeoutMS: 25000},
		},
		Categories: map[string]CategoryConfig{
			"safe":             {Code: "SAFE", Description: "Content is safe and does not violate any policies", Severity: 0},
			"unknown_unsafe":   {Code: "UNKNOWN_UNSAFE", Description: "Unsafe content of unknown or mixed type", Severity: 1},
			"harmful_prompt":   {Code: "HARMFUL", Description: "Harmful or malicious prompt", Severity: 2},
			"prompt_injection": {Code: "PROMPT_INJECTION", Description: "Prompt injection attempt detected", Severity: 2},
			"jailbreak":        {Code: "JAILBREAK", Description: "Jailbreak attempt detected", Severity: 3},
		},
		Resolution: ResolutionConfig{
			Strategy:         "highest_severity",
			ConfidenceHigh:   0.75,
			ConfidenceMedium: 0.4,
		},
		Fallback: FallbackConfig{Category: "unknown_unsafe"},
		Server: ServerConfig{
			Addr:          ":8080",
			LogLevel:      "info",
			RateLimit:     0,
			RateWindowSec: 60,
		},
		Audit: AuditConfig{Sink: "stdout", Redact: true},
	}
}

// Load builds the effective configuration: defaults, then the JSON file at
// path (if non-empty), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %w", err)
		}
		// Unmarshal over the defaults so absent fields keep their default.
		// encoding/json merges slice elements and map keys into existing
		// values, so collections the file declares are cleared first: a
		// file's classifier list or category set replaces the default set
		// wholesale instead of inheriting leftover fields per element.
		var declared struct {
			Classifiers json.RawMessage `json:"classifiers"`
			Categories  json.RawMessage `json:"categories"`
		}
		if err := json.Unmarshal(data, &declared); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
		if declared.Classifiers != nil {
			cfg.Classifiers = nil
		}
		if declared.Categories != nil {
			cfg.Categories = nil
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv overrides selected fields from WARDEN_* variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("WARDEN_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("WARDEN_LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = v
	}
	if v := os.Getenv("WARDEN_BLOCKLIST"); v != "" {
		cfg.Screen.BlocklistFile = v
	}
	if v := os.Getenv("WARDEN_STRATEGY"); v != "" {
		cfg.Resolution.Strategy = v
	}
	if v := os.Getenv("WARDEN_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.RateLimit = n
		}
	}
	if v := os.Getenv("WARDEN_ENDPOINT"); v != "" {
		for i := range cfg.Classifiers {
			if cfg.Classifiers[i].Endpoint == "" {
				cfg.Classifiers[i].Endpoint = v
			}
		}
	}
}
