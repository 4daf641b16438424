package policysync

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/voyago/travelcore/internal/models"
)

// Fallbacks applied when a bundle entry omits the retry knobs.
const (
	defaultRetryBackoffFactor = 2.0
	defaultMaxRetries         = 3
)

// servicePayload mirrors one entry of the policy bundle document.
type servicePayload struct {
	RequestsPerMinute  *int     `json:"requests_per_minute"`
	RequestsPerHour    *int     `json:"requests_per_hour"`
	RequestsPerDay     *int     `json:"requests_per_day"`
	CooldownPeriodMs   *int64   `json:"cooldown_period_ms"`
	RetryBackoffFactor *float64 `json:"retry_backoff_factor"`
	MaxRetries         *int     `json:"max_retries"`
}

// ParsePolicyBundle converts a policy bundle document into policy rows. The
// document maps service names to quota objects; rows come back sorted by
// service name so syncs are deterministic.
func ParsePolicyBundle(data []byte) ([]models.RateLimitPolicy, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("parse policy bundle: empty payload")
	}

	var services map[string]json.RawMessage
	if err := json.Unmarshal(data, &services); err != nil {
		return nil, fmt.Errorf("parse policy bundle: decode services: %w", err)
	}

	names := make([]string, 0, len(services))
	for name := range services {
		names = append(names, name)
	}
	sort.Strings(names)

	policies := make([]models.RateLimitPolicy, 0, len(names))
	for _, name := range names {
		raw := services[name]
		if len(raw) == 0 {
			continue
		}

		serviceName := strings.TrimSpace(name)
		if serviceName == "" {
			continue
		}

		var payload servicePayload
		if err := json.Unmarshal(raw, &payload); err != nil {
			return nil, fmt.Errorf("parse policy bundle: decode service %s: %w", serviceName, err)
		}

		policy := models.RateLimitPolicy{
			ServiceName:        serviceName,
			RetryBackoffFactor: defaultRetryBackoffFactor,
			MaxRetries:         defaultMaxRetries,
		}
		if payload.RequestsPerMinute != nil {
			policy.RequestsPerMinute = *payload.RequestsPerMinute
		}
		if payload.RequestsPerHour != nil {
			policy.RequestsPerHour = *payload.RequestsPerHour
		}
		if payload.RequestsPerDay != nil {
			policy.RequestsPerDay = *payload.RequestsPerDay
		}
		if payload.CooldownPeriodMs != nil {
			policy.CooldownPeriodMs = *payload.CooldownPeriodMs
		}
		if payload.RetryBackoffFactor != nil {
			policy.RetryBackoffFactor = *payload.RetryBackoffFactor
		}
		if payload.MaxRetries != nil {
			policy.MaxRetries = *payload.MaxRetries
		}

		if policy.RequestsPerMinute < 0 || policy.RequestsPerHour < 0 || policy.RequestsPerDay < 0 ||
			policy.CooldownPeriodMs < 0 || policy.MaxRetries < 0 {
			return nil, fmt.Errorf("parse policy bundle: negative quota for service %s", serviceName)
		}

		policies = append(policies, policy)
	}

	if len(policies) == 0 {
		return nil, nil
	}
	return policies, nil
}
