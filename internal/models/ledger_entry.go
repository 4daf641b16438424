package models

import (
	"time"

	"gorm.io/datatypes"
)

// LedgerEntry records one attempted call to an external service.
//
// An entry is appended when the call is issued with Success = nil and
// finalized exactly once with the outcome. Finalized entries are immutable.
type LedgerEntry struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	RequestID string `gorm:"type:text;not null;uniqueIndex"` // Correlation ID assigned at issuance.

	ServiceName string `gorm:"type:text;not null;index:idx_ledger_service_time,priority:1"` // External service name.
	Endpoint    string `gorm:"type:text"`                                                   // Called endpoint or operation.

	RequestTime    time.Time `gorm:"not null;index:idx_ledger_service_time,priority:2"` // Issuance time, basis for window counts.
	ResponseTimeMs *int64    `gorm:"type:bigint"`                                       // Latency in ms, nil until completion.
	Success        *bool     `gorm:"type:boolean"`                                      // nil = pending, otherwise final outcome.
	ErrorMessage   *string   `gorm:"type:text"`                                         // Failure detail, if any.

	OwnerID  *string `gorm:"type:text;index"` // Owning user, when attributable.
	QueryRef *string `gorm:"type:text"`       // Originating travel query, when attributable.

	RequestPayload  datatypes.JSON `gorm:"type:jsonb"` // Opaque request blob.
	ResponsePayload datatypes.JSON `gorm:"type:jsonb"` // Opaque response blob.
	Metadata        datatypes.JSON `gorm:"type:jsonb"` // Arbitrary metadata.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Row creation timestamp.
}

// Pending reports whether the entry's outcome is not yet finalized.
func (e *LedgerEntry) Pending() bool { return e.Success == nil }
