// Package config loads and validates engine configuration from YAML. A
// missing config file is not an error: every knob has a safe default, so a
// zero-value file (or none at all) yields a working engine.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dusk-indust/verity/internal/aggregate"
	"github.com/dusk-indust/verity/internal/validators"
	"github.com/dusk-indust/verity/internal/verify"
)

// Duration wraps time.Duration so YAML values can be written as Go
// duration strings ("5s", "100ms").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Fallback names the engine's behavior when no adapter produces a result.
type Fallback string

const (
	// FallbackPartial returns the degraded result with Partial and
	// Unavailable populated. The default.
	FallbackPartial Fallback = "partial"
	// FallbackFail surfaces ErrAllAdaptersFailed when zero adapters
	// contribute.
	FallbackFail Fallback = "fail"
	// FallbackIgnore returns the degraded result without surfacing
	// partiality.
	FallbackIgnore Fallback = "ignore"
)

// Valid reports whether f names a known fallback.
func (f Fallback) Valid() bool {
	switch f {
	case FallbackPartial, FallbackFail, FallbackIgnore:
		return true
	}
	return false
}

// AdapterConfig carries the per-adapter settings from the adapters map.
type AdapterConfig struct {
	Weight  float64  `yaml:"weight,omitempty"`
	Timeout Duration `yaml:"timeout,omitempty"`
	// Enabled defaults to true; only an explicit false disables.
	Enabled *bool `yaml:"enabled,omitempty"`
}

// On reports whether the adapter participates in dispatch.
func (a AdapterConfig) On() bool { return a.Enabled == nil || *a.Enabled }

// CacheConfig tunes the result cache.
type CacheConfig struct {
	// Backend is "memory" (default) or "redis".
	Backend string `yaml:"backend,omitempty"`
	// RedisURL is the redis connection URL; required when Backend is
	// "redis".
	RedisURL   string   `yaml:"redisUrl,omitempty"`
	TTL        Duration `yaml:"ttl,omitempty"`
	MaxEntries int      `yaml:"maxEntries,omitempty"`
	// Disabled bypasses the cache entirely; every call dispatches.
	Disabled bool `yaml:"disabled,omitempty"`
}

// BreakerConfig tunes the per-adapter circuit breakers.
type BreakerConfig struct {
	FailureThreshold int      `yaml:"failureThreshold,omitempty"`
	Cooldown         Duration `yaml:"cooldown,omitempty"`
}

// RetryConfig tunes the adapter-invocation retry policy.
type RetryConfig struct {
	MaxAttempts int      `yaml:"maxAttempts,omitempty"`
	BaseDelay   Duration `yaml:"baseDelay,omitempty"`
	MaxDelay    Duration `yaml:"maxDelay,omitempty"`
	// Jitter widens each wait by ±this fraction of the delay.
	Jitter float64 `yaml:"jitter,omitempty"`
}

// ValidatorsConfig tunes the built-in adapters.
type ValidatorsConfig struct {
	// AntonymPairs extends the contradiction detector's library.
	AntonymPairs [][2]string `yaml:"antonymPairs,omitempty"`
	// PatternRules replaces the pattern validator's built-in library
	// when non-empty.
	PatternRules []validators.PatternRule `yaml:"patternRules,omitempty"`
	// PatternThreshold is the accumulated strength at which a claim is
	// called contradicted. Zero means the validator's default.
	PatternThreshold float64 `yaml:"patternThreshold,omitempty"`
	// Disabled skips registering the built-in validators.
	Disabled bool `yaml:"disabled,omitempty"`
}

// Config is the full engine configuration surface.
type Config struct {
	// DefaultTimeout bounds each adapter call lacking a per-adapter
	// override.
	DefaultTimeout Duration `yaml:"defaultTimeout,omitempty"`
	// OverallTimeout bounds the whole verification request.
	OverallTimeout Duration `yaml:"overallTimeout,omitempty"`
	// MaxConcurrency caps simultaneous in-flight adapter calls.
	MaxConcurrency int `yaml:"maxConcurrency,omitempty"`
	// MaxClaimLength rejects longer claims before dispatch.
	MaxClaimLength int `yaml:"maxClaimLength,omitempty"`
	// Strategy is the default aggregation strategy.
	Strategy string `yaml:"strategy,omitempty"`
	// Fallback picks the zero-result behavior.
	Fallback Fallback `yaml:"fallback,omitempty"`

	Adapters   map[string]AdapterConfig `yaml:"adapters,omitempty"`
	Cache      CacheConfig              `yaml:"cache,omitempty"`
	Breaker    BreakerConfig            `yaml:"breaker,omitempty"`
	Retry      RetryConfig              `yaml:"retry,omitempty"`
	Validators ValidatorsConfig         `yaml:"validators,omitempty"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		DefaultTimeout: Duration(5 * time.Second),
		OverallTimeout: Duration(15 * time.Second),
		MaxConcurrency: 10,
		MaxClaimLength: 4096,
		Strategy:       string(aggregate.DefaultStrategy),
		Fallback:       FallbackPartial,
		Cache: CacheConfig{
			Backend:    "memory",
			TTL:        Duration(5 * time.Minute),
			MaxEntries: 1024,
		},
		Breaker: BreakerConfig{
			FailureThreshold: 3,
			Cooldown:         Duration(30 * time.Second),
		},
		Retry: RetryConfig{
			MaxAttempts: 2,
			BaseDelay:   Duration(100 * time.Millisecond),
			MaxDelay:    Duration(2 * time.Second),
			Jitter:      0.2,
		},
	}
}

// Load reads verity.yml or verity.yaml from dir. A missing file yields
// Default(); a present file is parsed over the defaults and validated.
func Load(dir string) (*Config, error) {
	for _, name := range []string{"verity.yml", "verity.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		cfg, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return cfg, nil
	}
	return Default(), nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", verify.ErrInvalidConfiguration, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every knob. All errors wrap
// verify.ErrInvalidConfiguration.
func (c *Config) Validate() error {
	if c.DefaultTimeout <= 0 {
		return fmt.Errorf("%w: defaultTimeout must be positive", verify.ErrInvalidConfiguration)
	}
	if c.OverallTimeout <= 0 {
		return fmt.Errorf("%w: overallTimeout must be positive", verify.ErrInvalidConfiguration)
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("%w: maxConcurrency must be at least 1", verify.ErrInvalidConfiguration)
	}
	if c.MaxClaimLength < 1 {
		return fmt.Errorf("%w: maxClaimLength must be at least 1", verify.ErrInvalidConfiguration)
	}
	if _, err := aggregate.Parse(c.Strategy); err != nil {
		return err
	}
	if c.Fallback != "" && !c.Fallback.Valid() {
		return fmt.Errorf("%w: unknown fallback %q", verify.ErrInvalidConfiguration, c.Fallback)
	}
	switch c.Cache.Backend {
	case "", "memory":
	case "redis":
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("%w: cache.redisUrl is required for the redis backend", verify.ErrInvalidConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown cache backend %q", verify.ErrInvalidConfiguration, c.Cache.Backend)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("%w: cache.ttl must not be negative", verify.ErrInvalidConfiguration)
	}
	if c.Cache.MaxEntries < 0 {
		return fmt.Errorf("%w: cache.maxEntries must not be negative", verify.ErrInvalidConfiguration)
	}
	if c.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("%w: breaker.failureThreshold must be at least 1", verify.ErrInvalidConfiguration)
	}
	if c.Breaker.Cooldown < 0 {
		return fmt.Errorf("%w: breaker.cooldown must not be negative", verify.ErrInvalidConfiguration)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("%w: retry.maxAttempts must be at least 1", verify.ErrInvalidConfiguration)
	}
	if c.Retry.Jitter < 0 || c.Retry.Jitter > 1 {
		return fmt.Errorf("%w: retry.jitter must be in [0, 1]", verify.ErrInvalidConfiguration)
	}
	for name, a := range c.Adapters {
		if a.Weight < 0 {
			return fmt.Errorf("%w: adapter %q weight must not be negative", verify.ErrInvalidConfiguration, name)
		}
	}
	// Compile the pattern rules now so a bad expression fails at load
	// time, not on the first verification.
	if len(c.Validators.PatternRules) > 0 {
		if _, err := validators.NewPatternValidator(validators.PatternConfig{
			Rules:     c.Validators.PatternRules,
			Threshold: c.Validators.PatternThreshold,
		}); err != nil {
			return err
		}
	}
	return nil
}

// AdapterMeta returns the configured weight, timeout, and enabled flag for
// an adapter name, falling back to equal weight, engine-default timeout,
// and enabled when the name has no entry.
func (c *Config) AdapterMeta(name string) (weight float64, timeout time.Duration, enabled bool) {
	a, ok := c.Adapters[name]
	if !ok {
		return 1, 0, true
	}
	weight = a.Weight
	if weight <= 0 {
		weight = 1
	}
	return weight, a.Timeout.Std(), a.On()
}
