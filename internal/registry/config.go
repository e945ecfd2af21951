package registry

import (
	"time"
)

// AuthStyle selects how a provider credential is attached to requests.
type AuthStyle string

const (
	// AuthBearer sends "Authorization: Bearer <credential>".
	AuthBearer AuthStyle = "bearer"
	// AuthHeader sends the credential in a provider-named header.
	AuthHeader AuthStyle = "header"
	// AuthNone is for public open-data endpoints.
	AuthNone AuthStyle = "none"
)

// RateLimits are sliding-window request caps enforced locally before any
// network call is made.
type RateLimits struct {
	PerMinute int `yaml:"per_minute"`
	PerHour   int `yaml:"per_hour"`
	PerDay    int `yaml:"per_day"`
}

// RetryPolicy controls the retry executor for one provider.
type RetryPolicy struct {
	MaxRetries        int           `yaml:"max_retries"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
	MaxBackoff        time.Duration `yaml:"max_backoff"`
}

// ProviderConfig is the immutable per-source configuration. One entry per
// provider, keyed by ID in the Registry. Credential is resolved from the
// environment at load time; a missing credential disables the provider
// instead of failing startup.
type ProviderConfig struct {
	ID            string        `yaml:"id"`
	Name          string        `yaml:"name"`
	BaseURL       string        `yaml:"base_url"`
	AuthStyle     AuthStyle     `yaml:"auth_style"`
	AuthHeaderKey string        `yaml:"auth_header,omitempty"`
	CredentialEnv string        `yaml:"credential_env,omitempty"`
	Credential    string        `yaml:"-"`
	RateLimits    RateLimits    `yaml:"rate_limits"`
	Timeout       time.Duration `yaml:"timeout"`
	Retry         RetryPolicy   `yaml:"retry"`
	Enabled       bool          `yaml:"enabled"`
	Priority      int           `yaml:"priority"`
}

// RequiresCredential reports whether the provider cannot operate without a
// resolved credential.
func (c ProviderConfig) RequiresCredential() bool {
	return c.AuthStyle != AuthNone
}

// Misconfigured reports whether the provider is unusable as configured.
func (c ProviderConfig) Misconfigured() bool {
	if c.BaseURL == "" {
		return true
	}
	return c.RequiresCredential() && c.Credential == ""
}
