// Package registry loads and validates the per-provider configuration that
// the rest of the pipeline treats as immutable.
package registry

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the YAML omits a value. TTLs and limits must never
// end up zero, so validation rejects anything the defaults cannot cover.
const (
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 3
	defaultMultiplier = 2.0
	defaultMaxBackoff = 30 * time.Second
)

type registryFile struct {
	Providers []ProviderConfig `yaml:"providers"`
}

// Registry holds every configured provider keyed by source id. It is built
// once at startup and read-only afterwards.
type Registry struct {
	providers map[string]ProviderConfig
	ordered   []string
}

// Load parses the providers YAML file, resolves credentials from the
// environment, and validates each entry. A provider whose credential env var
// is unset is loaded disabled rather than failing startup.
func Load(path string, logger *slog.Logger) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read provider registry: %w", err)
	}
	return Parse(data, logger)
}

// Parse builds a Registry from raw YAML. Split out from Load so tests can
// feed literals.
func Parse(data []byte, logger *slog.Logger) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse provider registry: %w", err)
	}
	if len(file.Providers) == 0 {
		return nil, fmt.Errorf("provider registry is empty")
	}

	r := &Registry{providers: make(map[string]ProviderConfig, len(file.Providers))}
	for _, cfg := range file.Providers {
		cfg = applyDefaults(cfg)
		if err := validate(cfg); err != nil {
			return nil, fmt.Errorf("provider %q: %w", cfg.ID, err)
		}
		if _, dup := r.providers[cfg.ID]; dup {
			return nil, fmt.Errorf("provider %q: duplicate id", cfg.ID)
		}

		if cfg.CredentialEnv != "" {
			cfg.Credential = os.Getenv(cfg.CredentialEnv)
		}
		if cfg.Enabled && cfg.Misconfigured() {
			logger.Warn("provider disabled: missing credential",
				"provider", cfg.ID,
				"credential_env", cfg.CredentialEnv,
			)
			cfg.Enabled = false
		}

		r.providers[cfg.ID] = cfg
		r.ordered = append(r.ordered, cfg.ID)
	}

	// Deterministic iteration: priority descending, id for ties.
	sort.SliceStable(r.ordered, func(i, j int) bool {
		a, b := r.providers[r.ordered[i]], r.providers[r.ordered[j]]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.ID < b.ID
	})

	return r, nil
}

func applyDefaults(cfg ProviderConfig) ProviderConfig {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = defaultMaxRetries
	}
	if cfg.Retry.BackoffMultiplier == 0 {
		cfg.Retry.BackoffMultiplier = defaultMultiplier
	}
	if cfg.Retry.MaxBackoff == 0 {
		cfg.Retry.MaxBackoff = defaultMaxBackoff
	}
	if cfg.AuthStyle == "" {
		cfg.AuthStyle = AuthNone
	}
	return cfg
}

func validate(cfg ProviderConfig) error {
	if cfg.ID == "" {
		return fmt.Errorf("missing id")
	}
	if cfg.BaseURL == "" {
		return fmt.Errorf("missing base_url")
	}
	switch cfg.AuthStyle {
	case AuthBearer, AuthNone:
	case AuthHeader:
		if cfg.AuthHeaderKey == "" {
			return fmt.Errorf("auth_style header requires auth_header")
		}
	default:
		return fmt.Errorf("unknown auth_style %q", cfg.AuthStyle)
	}
	if cfg.RequiresCredential() && cfg.CredentialEnv == "" {
		return fmt.Errorf("auth_style %s requires credential_env", cfg.AuthStyle)
	}
	if cfg.RateLimits.PerMinute <= 0 || cfg.RateLimits.PerHour <= 0 || cfg.RateLimits.PerDay <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}
	if cfg.Retry.BackoffMultiplier < 1 {
		return fmt.Errorf("backoff multiplier must be >= 1")
	}
	return nil
}

// Get returns the config for one provider.
func (r *Registry) Get(id string) (ProviderConfig, bool) {
	cfg, ok := r.providers[id]
	return cfg, ok
}

// All returns every provider config in priority order (highest first).
func (r *Registry) All() []ProviderConfig {
	out := make([]ProviderConfig, 0, len(r.ordered))
	for _, id := range r.ordered {
		out = append(out, r.providers[id])
	}
	return out
}

// Enabled returns only enabled providers, in priority order.
func (r *Registry) Enabled() []ProviderConfig {
	out := make([]ProviderConfig, 0, len(r.ordered))
	for _, id := range r.ordered {
		if cfg := r.providers[id]; cfg.Enabled {
			out = append(out, cfg)
		}
	}
	return out
}

// Priority returns the merge priority for a source id; unknown sources rank
// lowest so records from unregistered providers never win a field.
func (r *Registry) Priority(id string) int {
	if cfg, ok := r.providers[id]; ok {
		return cfg.Priority
	}
	return -1
}
