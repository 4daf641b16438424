package ratelimit

import (
	"context"
	"time"
)

// Window lengths evaluated by the governor, in priority order.
const (
	WindowMinute = time.Minute
	WindowHour   = time.Hour
	WindowDay    = 24 * time.Hour
)

// Cooldown multipliers per breached window. Short-window breaches are
// transient and get the base cooldown; sustained overuse pauses longer.
const (
	minuteCooldownFactor = 1
	hourCooldownFactor   = 5
	dayCooldownFactor    = 20
)

// Decision is the governor's answer to "can I call this service now".
type Decision struct {
	Allowed    bool   `json:"allowed"`
	CooldownMs int64  `json:"cooldown_ms"`
	Reason     string `json:"reason"`
}

// RetryPolicy surfaces the declarative retry settings of a service policy.
// The governor never schedules retries itself; callers own backoff.
type RetryPolicy struct {
	RetryBackoffFactor float64 `json:"retry_backoff_factor"`
	MaxRetries         int     `json:"max_retries"`
}

// Counter supplies per-service call counts over trailing windows.
type Counter interface {
	CountSince(ctx context.Context, serviceName string, since time.Time) (int64, error)
}
