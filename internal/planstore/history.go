package planstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/voyago/travelcore/internal/models"
	"gorm.io/gorm"
)

// HistoryEntry summarizes one version in a chain's lineage.
type HistoryEntry struct {
	ID                 uint64    `json:"id"`
	Version            int       `json:"version"`
	ParentID           *uint64   `json:"parent_id,omitempty"`
	ModificationReason *string   `json:"modification_reason,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// GetHistory returns the full lineage of the chain containing anyID in
// ascending version order. Any version ID in the chain yields the same
// sequence.
func (s *Store) GetHistory(ctx context.Context, anyID uint64) ([]HistoryEntry, error) {
	root, errRoot := s.resolveRoot(ctx, anyID)
	if errRoot != nil {
		return nil, errRoot
	}

	history := make([]HistoryEntry, 0, root.Version)
	current := root
	for {
		history = append(history, HistoryEntry{
			ID:                 current.ID,
			Version:            current.Version,
			ParentID:           current.ParentID,
			ModificationReason: current.ModificationReason,
			CreatedAt:          current.CreatedAt,
		})
		child, errChild := s.childOf(ctx, current.ID)
		if errChild != nil {
			return nil, errChild
		}
		if child == nil {
			return history, nil
		}
		current = child
	}
}

// GetLatest returns the leaf version of the chain containing anyID.
//
// The one-child-per-parent index keeps chains linear, so the leaf is the
// maximum version. Ordering by version, created_at and id descending is the
// documented tie-break should the constraint ever be relaxed.
func (s *Store) GetLatest(ctx context.Context, anyID uint64) (*models.PlanVersion, error) {
	root, errRoot := s.resolveRoot(ctx, anyID)
	if errRoot != nil {
		return nil, errRoot
	}

	current := root
	for {
		child, errChild := s.childOf(ctx, current.ID)
		if errChild != nil {
			return nil, errChild
		}
		if child == nil {
			return current, nil
		}
		current = child
	}
}

// resolveRoot walks parent pointers backward from anyID to the chain root.
func (s *Store) resolveRoot(ctx context.Context, anyID uint64) (*models.PlanVersion, error) {
	current, errGet := s.GetVersion(ctx, anyID)
	if errGet != nil {
		return nil, errGet
	}
	for current.ParentID != nil {
		parent, errParent := s.GetVersion(ctx, *current.ParentID)
		if errParent != nil {
			if errors.Is(errParent, ErrNotFound) {
				return nil, fmt.Errorf("%w: version %d points at missing parent %d", ErrReference, current.ID, *current.ParentID)
			}
			return nil, errParent
		}
		current = parent
	}
	return current, nil
}

// childOf loads the single child of a version, or nil at the leaf. Ordering
// mirrors the GetLatest tie-break.
func (s *Store) childOf(ctx context.Context, id uint64) (*models.PlanVersion, error) {
	var child models.PlanVersion
	errFind := s.db.WithContext(ctx).
		Where("parent_id = ?", id).
		Order("version DESC, created_at DESC, id DESC").
		Take(&child).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("planstore: load child: %w", errFind)
	}
	return &child, nil
}
