package models

import "time"

// RateLimitPolicy holds per-service tiered quota settings.
//
// Policies are seeded with defaults at migration and editable by operators.
// The governor only reads them; a missing policy means default allow.
type RateLimitPolicy struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ServiceName string `gorm:"type:text;not null;uniqueIndex"` // External service name.

	RequestsPerMinute int `gorm:"not null;default:0"` // Trailing minute quota.
	RequestsPerHour   int `gorm:"not null;default:0"` // Trailing hour quota.
	RequestsPerDay    int `gorm:"not null;default:0"` // Trailing day quota.

	CooldownPeriodMs   int64   `gorm:"not null;default:0"`   // Base cooldown for a minute breach.
	RetryBackoffFactor float64 `gorm:"not null;default:2.0"` // Declarative backoff factor for callers.
	MaxRetries         int     `gorm:"not null;default:3"`   // Declarative retry cap for callers.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
