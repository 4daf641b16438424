package planstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/voyago/travelcore/internal/models"
	"gorm.io/gorm"
)

// Errors reported by the version chain store.
var (
	// ErrValidation indicates malformed or missing identifiers on create.
	ErrValidation = errors.New("planstore: validation failed")
	// ErrNotFound indicates a lookup of a non-existent version.
	ErrNotFound = errors.New("planstore: version not found")
	// ErrReference indicates a chain row pointing at an absent parent.
	ErrReference = errors.New("planstore: broken parent reference")
	// ErrConflict indicates a lost race to extend the same parent.
	ErrConflict = errors.New("planstore: parent already has a child")
)

// Store persists plan mutations as immutable versions linked by parent
// pointers. There is no update-in-place path; every mutation appends a row.
type Store struct {
	db *gorm.DB
}

// NewStore constructs a Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// CreateRoot inserts the first version of a new plan chain.
func (s *Store) CreateRoot(ctx context.Context, ownerID, queryRef string, initial FieldUpdates) (*models.PlanVersion, error) {
	ownerID = strings.TrimSpace(ownerID)
	queryRef = strings.TrimSpace(queryRef)
	if ownerID == "" {
		return nil, fmt.Errorf("%w: missing owner_id", ErrValidation)
	}
	if queryRef == "" {
		return nil, fmt.Errorf("%w: missing query_ref", ErrValidation)
	}
	if errValidate := validateUpdates(initial); errValidate != nil {
		return nil, errValidate
	}

	row := models.PlanVersion{
		OwnerID:  ownerID,
		QueryRef: queryRef,
		Version:  1,
	}
	applyUpdates(&row, initial)

	if errCreate := s.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		return nil, fmt.Errorf("planstore: create root: %w", errCreate)
	}
	return &row, nil
}

// CreateVersion appends a new version extending parentID.
//
// The parent's content is carried over and patched with updates (shallow
// merge-patch, see FieldUpdates). The new row gets version = parent+1. A
// concurrent writer that extends the same parent first wins; the loser gets
// ErrConflict from the one-child-per-parent index.
func (s *Store) CreateVersion(ctx context.Context, parentID uint64, modificationReason string, updates FieldUpdates) (*models.PlanVersion, error) {
	if errValidate := validateUpdates(updates); errValidate != nil {
		return nil, errValidate
	}

	parent, errGet := s.GetVersion(ctx, parentID)
	if errGet != nil {
		return nil, errGet
	}

	row := models.PlanVersion{
		OwnerID:         parent.OwnerID,
		QueryRef:        parent.QueryRef,
		Destination:     parent.Destination,
		Flights:         parent.Flights,
		Accommodation:   parent.Accommodation,
		Transportation:  parent.Transportation,
		Activities:      parent.Activities,
		Budget:          parent.Budget,
		Overview:        parent.Overview,
		Recommendations: parent.Recommendations,
		Alerts:          parent.Alerts,
		Metadata:        parent.Metadata,
		Version:         parent.Version + 1,
		ParentID:        &parent.ID,
	}
	applyUpdates(&row, updates)

	if reason := strings.TrimSpace(modificationReason); reason != "" {
		row.ModificationReason = &reason
	}

	if errCreate := s.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		if isUniqueViolation(errCreate) {
			return nil, fmt.Errorf("%w: parent %d", ErrConflict, parentID)
		}
		return nil, fmt.Errorf("planstore: create version: %w", errCreate)
	}
	return &row, nil
}

// GetVersion loads a single version row by ID.
func (s *Store) GetVersion(ctx context.Context, id uint64) (*models.PlanVersion, error) {
	var row models.PlanVersion
	errFind := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("planstore: load version: %w", errFind)
	}
	return &row, nil
}

// isUniqueViolation reports whether err is a unique constraint failure on
// either supported dialect.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "unique index") ||
		strings.Contains(msg, "duplicate key")
}
