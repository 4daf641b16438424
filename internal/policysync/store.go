package policysync

import (
	"context"
	"fmt"

	"github.com/voyago/travelcore/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StorePolicies upserts bundle policies keyed by service name. Services
// present in the database but absent from the bundle are left untouched so
// operator-created policies survive syncs.
func StorePolicies(ctx context.Context, db *gorm.DB, policies []models.RateLimitPolicy) error {
	if db == nil {
		return fmt.Errorf("store policies: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if len(policies) == 0 {
		return nil
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "service_name"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"requests_per_minute",
				"requests_per_hour",
				"requests_per_day",
				"cooldown_period_ms",
				"retry_backoff_factor",
				"max_retries",
				"updated_at",
			}),
		}).Create(&policies).Error; err != nil {
			return fmt.Errorf("store policies: upsert: %w", err)
		}
		return nil
	})
}
