package db

import (
	"errors"
	"fmt"

	"github.com/voyago/travelcore/internal/models"
	"gorm.io/gorm"
)

// Migrate applies the schema and seeds default rate limit policies.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: nil connection")
	}

	if errAutoMigrate := conn.AutoMigrate(
		&models.PlanVersion{},
		&models.LedgerEntry{},
		&models.RateLimitPolicy{},
	); errAutoMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errAutoMigrate)
	}

	// One child per parent. This is the serialization point for concurrent
	// writers racing to extend the same chain.
	if errParentIdx := conn.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_plan_versions_parent_unique
		ON plan_versions (parent_id)
		WHERE parent_id IS NOT NULL
	`).Error; errParentIdx != nil {
		return fmt.Errorf("db: create parent index: %w", errParentIdx)
	}

	if errSeed := seedDefaultPolicies(conn); errSeed != nil {
		return errSeed
	}
	return nil
}

// defaultPolicies are the service quotas seeded at initialization. They are
// operator data, not governor behavior; edits survive re-migration.
var defaultPolicies = []models.RateLimitPolicy{
	{ServiceName: "openai", RequestsPerMinute: 60, RequestsPerHour: 3500, RequestsPerDay: 80000, CooldownPeriodMs: 1000, RetryBackoffFactor: 2.0, MaxRetries: 5},
	{ServiceName: "tavily", RequestsPerMinute: 10, RequestsPerHour: 500, RequestsPerDay: 10000, CooldownPeriodMs: 2000, RetryBackoffFactor: 2.0, MaxRetries: 3},
	{ServiceName: "firecrawl", RequestsPerMinute: 5, RequestsPerHour: 250, RequestsPerDay: 5000, CooldownPeriodMs: 3000, RetryBackoffFactor: 2.0, MaxRetries: 3},
	{ServiceName: "skyscanner", RequestsPerMinute: 5, RequestsPerHour: 300, RequestsPerDay: 6000, CooldownPeriodMs: 3000, RetryBackoffFactor: 2.0, MaxRetries: 3},
	{ServiceName: "booking", RequestsPerMinute: 5, RequestsPerHour: 300, RequestsPerDay: 6000, CooldownPeriodMs: 3000, RetryBackoffFactor: 2.0, MaxRetries: 3},
	{ServiceName: "rentalcars", RequestsPerMinute: 3, RequestsPerHour: 150, RequestsPerDay: 3000, CooldownPeriodMs: 5000, RetryBackoffFactor: 2.0, MaxRetries: 3},
	{ServiceName: "google_maps", RequestsPerMinute: 10, RequestsPerHour: 600, RequestsPerDay: 12000, CooldownPeriodMs: 2000, RetryBackoffFactor: 2.0, MaxRetries: 3},
}

// seedDefaultPolicies inserts default policies for services that have none.
func seedDefaultPolicies(conn *gorm.DB) error {
	for _, policy := range defaultPolicies {
		var existing models.RateLimitPolicy
		errFind := conn.Where("service_name = ?", policy.ServiceName).Take(&existing).Error
		if errFind == nil {
			continue
		}
		if !errors.Is(errFind, gorm.ErrRecordNotFound) {
			return fmt.Errorf("db: check policy %s: %w", policy.ServiceName, errFind)
		}
		row := policy
		if errCreate := conn.Create(&row).Error; errCreate != nil {
			return fmt.Errorf("db: seed policy %s: %w", policy.ServiceName, errCreate)
		}
	}
	return nil
}
