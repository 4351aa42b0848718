package config

import "time"

// Timeouts collects the resolved durations of one configuration.
//
// The shortest timeout in a chain wins: a participant call is bounded by
// both CallTimeout and whatever remains of ExchangeTimeout.
type Timeouts struct {
	// ExchangeTimeout bounds one orchestration attempt end to end.
	ExchangeTimeout time.Duration

	// CallTimeout bounds a single participant turn.
	CallTimeout time.Duration

	// Backoff is the fixed pause between failed attempts.
	Backoff time.Duration

	// LLM bounds one language model request.
	LLM time.Duration

	// Language bounds one CLU/CQA/Translator request.
	Language time.Duration

	// Zones bounds one plugin service request.
	Zones time.Duration
}

// DefaultTimeouts mirrors DefaultConfig.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		ExchangeTimeout: 120 * time.Second,
		CallTimeout:     60 * time.Second,
		Backoff:         1 * time.Second,
		LLM:             60 * time.Second,
		Language:        15 * time.Second,
		Zones:           30 * time.Second,
	}
}

// Timeouts resolves every duration string, falling back to defaults for
// unparseable or non-positive values.
func (c *Config) Timeouts() Timeouts {
	d := DefaultTimeouts()
	return Timeouts{
		ExchangeTimeout: c.GetExchangeTimeout(),
		CallTimeout:     c.GetCallTimeout(),
		Backoff:         c.GetBackoff(),
		LLM:             parseDuration(c.LLM.Timeout, d.LLM),
		Language:        parseDuration(c.Language.Timeout, d.Language),
		Zones:           parseDuration(c.Zones.Timeout, d.Zones),
	}
}

// GetExchangeTimeout returns the per-exchange timeout as a duration.
func (c *Config) GetExchangeTimeout() time.Duration {
	return parseDuration(c.Orchestration.ExchangeTimeout, 120*time.Second)
}

// GetCallTimeout returns the per-call timeout as a duration.
func (c *Config) GetCallTimeout() time.Duration {
	return parseDuration(c.Orchestration.CallTimeout, 60*time.Second)
}

// GetBackoff returns the retry backoff as a duration. Zero is allowed.
func (c *Config) GetBackoff() time.Duration {
	d, err := time.ParseDuration(c.Orchestration.Backoff)
	if err != nil || d < 0 {
		return 1 * time.Second
	}
	return d
}

// GetReloadDebounce returns the config watcher debounce window.
func (c *Config) GetReloadDebounce() time.Duration {
	return parseDuration(c.Server.ReloadDebounce, 500*time.Millisecond)
}

// GetReadTimeout returns the HTTP server read timeout.
func (c *Config) GetReadTimeout() time.Duration {
	return parseDuration(c.Server.ReadTimeout, 10*time.Second)
}
