package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/voyago/travelcore/internal/models"
	"gorm.io/gorm"
)

// Decision reasons returned by Check.
const (
	ReasonNoPolicy       = "no policy, default allow"
	ReasonAllowed        = "request allowed"
	ReasonMinuteExceeded = "minute limit exceeded"
	ReasonHourExceeded   = "hour limit exceeded"
	ReasonDayExceeded    = "day limit exceeded"
)

// Governor decides whether a call to an external service may proceed based
// on recent call volume. It holds no cross-request state; every check
// re-derives counts from the counter, which reads the ledger (or a window
// summary kept consistent with it).
type Governor struct {
	db      *gorm.DB
	counter Counter
	nowFn   func() time.Time
}

// NewGovernor constructs a Governor. A nil nowFn defaults to time.Now.
func NewGovernor(db *gorm.DB, counter Counter, nowFn func() time.Time) *Governor {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Governor{db: db, counter: counter, nowFn: nowFn}
}

// Check evaluates the tiered windows for serviceName.
//
// Windows are checked minute first, then hour, then day: the shortest
// breached window wins so callers act on the cooldown that clears first. A
// missing policy is an explicit permissive default, not an error. A tier
// with a non-positive quota is skipped.
func (g *Governor) Check(ctx context.Context, serviceName string) (Decision, error) {
	serviceName = strings.TrimSpace(serviceName)
	if serviceName == "" {
		return Decision{}, fmt.Errorf("ratelimit: missing service name")
	}

	policy, errPolicy := g.policy(ctx, serviceName)
	if errPolicy != nil {
		return Decision{}, errPolicy
	}
	if policy == nil {
		return Decision{Allowed: true, CooldownMs: 0, Reason: ReasonNoPolicy}, nil
	}

	now := g.nowFn().UTC()

	tiers := []struct {
		window   time.Duration
		quota    int
		factor   int64
		breached string
	}{
		{WindowMinute, policy.RequestsPerMinute, minuteCooldownFactor, ReasonMinuteExceeded},
		{WindowHour, policy.RequestsPerHour, hourCooldownFactor, ReasonHourExceeded},
		{WindowDay, policy.RequestsPerDay, dayCooldownFactor, ReasonDayExceeded},
	}

	for _, tier := range tiers {
		if tier.quota <= 0 {
			continue
		}
		count, errCount := g.counter.CountSince(ctx, serviceName, now.Add(-tier.window))
		if errCount != nil {
			return Decision{}, fmt.Errorf("ratelimit: window count: %w", errCount)
		}
		if count >= int64(tier.quota) {
			return Decision{
				Allowed:    false,
				CooldownMs: policy.CooldownPeriodMs * tier.factor,
				Reason:     tier.breached,
			}, nil
		}
	}

	return Decision{Allowed: true, CooldownMs: 0, Reason: ReasonAllowed}, nil
}

// RetryPolicy returns the declarative retry settings for serviceName. A
// missing policy yields a zero-value RetryPolicy and no error, mirroring the
// permissive default of Check.
func (g *Governor) RetryPolicy(ctx context.Context, serviceName string) (RetryPolicy, error) {
	policy, errPolicy := g.policy(ctx, strings.TrimSpace(serviceName))
	if errPolicy != nil {
		return RetryPolicy{}, errPolicy
	}
	if policy == nil {
		return RetryPolicy{}, nil
	}
	return RetryPolicy{
		RetryBackoffFactor: policy.RetryBackoffFactor,
		MaxRetries:         policy.MaxRetries,
	}, nil
}

// policy loads the service policy, or nil when none exists.
func (g *Governor) policy(ctx context.Context, serviceName string) (*models.RateLimitPolicy, error) {
	var row models.RateLimitPolicy
	errFind := g.db.WithContext(ctx).Where("service_name = ?", serviceName).Take(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("ratelimit: load policy: %w", errFind)
	}
	return &row, nil
}
