package planstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/voyago/travelcore/internal/db"
	"github.com/voyago/travelcore/internal/models"
	"gorm.io/gorm"
)

// Direction selects which way a cursor walk moves through the listing.
type Direction string

const (
	// DirectionNext moves toward older rows.
	DirectionNext Direction = "next"
	// DirectionPrev moves toward newer rows.
	DirectionPrev Direction = "prev"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PlanPage is one window over an owner's plan versions, ordered by
// created_at descending. Cursors are opaque row identifiers; callers must
// not derive offsets from them.
type PlanPage struct {
	Items      []models.PlanVersion `json:"items"`
	NextCursor string               `json:"next_cursor,omitempty"`
	PrevCursor string               `json:"prev_cursor,omitempty"`
	TotalCount int64                `json:"total_count"`
}

// ListPlans pages through an owner's plan version rows.
//
// With an empty cursor the newest rows are returned. Otherwise the page
// starts just past the cursor row in the requested direction. TotalCount is
// recomputed per call and counts every version row for the owner, not
// chains.
func (s *Store) ListPlans(ctx context.Context, ownerID, cursor string, direction Direction, limit int) (*PlanPage, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, fmt.Errorf("%w: missing owner_id", ErrValidation)
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if direction == "" {
		direction = DirectionNext
	}
	if direction != DirectionNext && direction != DirectionPrev {
		return nil, fmt.Errorf("%w: invalid direction %q", ErrValidation, direction)
	}

	var anchor *models.PlanVersion
	if strings.TrimSpace(cursor) != "" {
		id, errParse := strconv.ParseUint(strings.TrimSpace(cursor), 10, 64)
		if errParse != nil {
			return nil, fmt.Errorf("%w: invalid cursor", ErrValidation)
		}
		row, errGet := s.GetVersion(ctx, id)
		if errGet != nil {
			if errors.Is(errGet, ErrNotFound) {
				return nil, fmt.Errorf("%w: invalid cursor", ErrValidation)
			}
			return nil, errGet
		}
		if row.OwnerID != ownerID {
			return nil, fmt.Errorf("%w: invalid cursor", ErrValidation)
		}
		anchor = row
	}

	query := s.db.WithContext(ctx).Model(&models.PlanVersion{}).Where("owner_id = ?", ownerID)

	var rows []models.PlanVersion
	switch {
	case anchor == nil:
		if errFind := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; errFind != nil {
			return nil, fmt.Errorf("planstore: list: %w", errFind)
		}
	case direction == DirectionNext:
		if errFind := query.
			Where("created_at < ? OR (created_at = ? AND id < ?)", anchor.CreatedAt, anchor.CreatedAt, anchor.ID).
			Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; errFind != nil {
			return nil, fmt.Errorf("planstore: list: %w", errFind)
		}
	default: // DirectionPrev
		if errFind := query.
			Where("created_at > ? OR (created_at = ? AND id > ?)", anchor.CreatedAt, anchor.CreatedAt, anchor.ID).
			Order("created_at ASC, id ASC").Limit(limit).Find(&rows).Error; errFind != nil {
			return nil, fmt.Errorf("planstore: list: %w", errFind)
		}
		reverse(rows)
	}

	page := &PlanPage{Items: rows}

	var total int64
	if errCount := s.db.WithContext(ctx).Model(&models.PlanVersion{}).
		Where("owner_id = ?", ownerID).Count(&total).Error; errCount != nil {
		return nil, fmt.Errorf("planstore: count: %w", errCount)
	}
	page.TotalCount = total

	if len(rows) > 0 {
		first, last := rows[0], rows[len(rows)-1]

		olderID, errOlder := s.neighborID(ctx, ownerID, &last, true)
		if errOlder != nil {
			return nil, errOlder
		}
		if olderID != 0 {
			page.NextCursor = strconv.FormatUint(last.ID, 10)
		}

		newerID, errNewer := s.neighborID(ctx, ownerID, &first, false)
		if errNewer != nil {
			return nil, errNewer
		}
		if newerID != 0 {
			page.PrevCursor = strconv.FormatUint(first.ID, 10)
		}
	}
	return page, nil
}

// neighborID returns the ID of the row adjacent to ref in the owner's
// created_at DESC ordering, or 0 at either end.
func (s *Store) neighborID(ctx context.Context, ownerID string, ref *models.PlanVersion, older bool) (uint64, error) {
	query := s.db.WithContext(ctx).Model(&models.PlanVersion{}).
		Select("id").
		Where("owner_id = ?", ownerID)
	if older {
		query = query.
			Where("created_at < ? OR (created_at = ? AND id < ?)", ref.CreatedAt, ref.CreatedAt, ref.ID).
			Order("created_at DESC, id DESC")
	} else {
		query = query.
			Where("created_at > ? OR (created_at = ? AND id > ?)", ref.CreatedAt, ref.CreatedAt, ref.ID).
			Order("created_at ASC, id ASC")
	}

	var row struct {
		ID uint64
	}
	errFind := query.Take(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("planstore: neighbor: %w", errFind)
	}
	return row.ID, nil
}

// SearchPlans returns an owner's plan versions whose destination name
// partially matches the given text, newest first.
func (s *Store) SearchPlans(ctx context.Context, ownerID, destination string) ([]models.PlanVersion, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, fmt.Errorf("%w: missing owner_id", ErrValidation)
	}

	query := s.db.WithContext(ctx).Model(&models.PlanVersion{}).Where("owner_id = ?", ownerID)

	if destination = strings.TrimSpace(destination); destination != "" {
		nameExpr := db.JSONExtractTextExpr(s.db, "destination", "name")
		pattern := db.NormalizeLikePattern(s.db, "%"+destination+"%")
		query = query.Where(db.CaseInsensitiveLikeExpr(s.db, nameExpr), pattern)
	}

	var rows []models.PlanVersion
	if errFind := query.Order("created_at DESC, id DESC").Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("planstore: search: %w", errFind)
	}
	return rows, nil
}

func reverse(rows []models.PlanVersion) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}
