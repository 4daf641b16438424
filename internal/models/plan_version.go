package models

import (
	"time"

	"gorm.io/datatypes"
)

// PlanVersion is one immutable snapshot in a travel plan version chain.
//
// Rows are only ever inserted. A chain is the set of rows reachable by
// following ParentID backward to the root (ParentID = nil, Version = 1).
type PlanVersion struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	OwnerID  string `gorm:"type:text;not null;index:idx_plan_versions_owner_created,priority:1"` // Owning user identifier.
	QueryRef string `gorm:"type:text;not null"`                                                  // Originating travel query reference.

	Destination     datatypes.JSON `gorm:"type:jsonb"` // Destination sub-document.
	Flights         datatypes.JSON `gorm:"type:jsonb"` // Flight options sub-document.
	Accommodation   datatypes.JSON `gorm:"type:jsonb"` // Accommodation sub-document.
	Transportation  datatypes.JSON `gorm:"type:jsonb"` // Local transportation sub-document.
	Activities      datatypes.JSON `gorm:"type:jsonb"` // Activities sub-document.
	Budget          datatypes.JSON `gorm:"type:jsonb"` // Budget breakdown sub-document.
	Overview        string         `gorm:"type:text"`  // Free-text plan overview.
	Recommendations datatypes.JSON `gorm:"type:jsonb"` // Recommendations sub-document.
	Alerts          datatypes.JSON `gorm:"type:jsonb"` // Alerts sub-document.
	Metadata        datatypes.JSON `gorm:"type:jsonb"` // Arbitrary metadata sub-document.

	Version            int     `gorm:"not null;default:1"` // Position in the chain, starts at 1.
	ParentID           *uint64 `gorm:"index"`              // Prior version of the same logical plan.
	ModificationReason *string `gorm:"type:text"`          // Why this version was created.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index:idx_plan_versions_owner_created,priority:2"` // Creation timestamp.
}

// IsRoot reports whether the version starts a chain.
func (v *PlanVersion) IsRoot() bool { return v.ParentID == nil }
