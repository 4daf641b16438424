package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/voyago/travelcore/internal/models"
)

// ServiceStats aggregates call outcomes for one service since a point in
// time. Pending entries have no outcome yet and are reported separately.
type ServiceStats struct {
	ServiceName       string  `json:"service_name"`
	Total             int64   `json:"total"`
	Succeeded         int64   `json:"succeeded"`
	Failed            int64   `json:"failed"`
	Pending           int64   `json:"pending"`
	AvgResponseTimeMs float64 `json:"avg_response_time_ms"`
}

// Stats computes outcome and latency aggregates for a service.
func (l *Ledger) Stats(ctx context.Context, serviceName string, since time.Time) (*ServiceStats, error) {
	serviceName = strings.TrimSpace(serviceName)
	if serviceName == "" {
		return nil, fmt.Errorf("%w: missing service_name", ErrValidation)
	}

	var row struct {
		Total     int64
		Succeeded int64
		Failed    int64
		Pending   int64
		AvgMs     *float64
	}
	errScan := l.db.WithContext(ctx).Model(&models.LedgerEntry{}).
		Select(`COUNT(*) AS total,
			COUNT(CASE WHEN success = ? THEN 1 END) AS succeeded,
			COUNT(CASE WHEN success = ? THEN 1 END) AS failed,
			COUNT(CASE WHEN success IS NULL THEN 1 END) AS pending,
			AVG(response_time_ms) AS avg_ms`, true, false).
		Where("service_name = ? AND request_time >= ?", serviceName, since).
		Take(&row).Error
	if errScan != nil {
		return nil, fmt.Errorf("ledger: stats: %w", errScan)
	}

	stats := &ServiceStats{
		ServiceName: serviceName,
		Total:       row.Total,
		Succeeded:   row.Succeeded,
		Failed:      row.Failed,
		Pending:     row.Pending,
	}
	if row.AvgMs != nil {
		stats.AvgResponseTimeMs = *row.AvgMs
	}
	return stats, nil
}
