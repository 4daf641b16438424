package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/voyago/travelcore/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Errors reported by the request ledger.
var (
	// ErrValidation indicates a malformed record or finalize request.
	ErrValidation = errors.New("ledger: validation failed")
	// ErrNotFound indicates an unknown request ID.
	ErrNotFound = errors.New("ledger: entry not found")
	// ErrFinalized indicates a second finalize attempt on the same entry.
	ErrFinalized = errors.New("ledger: entry already finalized")
)

// Ledger is the append-only log of outbound service calls. The governor
// reads it for window counts; callers append at issuance and finalize once
// the outcome is known.
type Ledger struct {
	db *gorm.DB
}

// NewLedger constructs a Ledger.
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// RecordParams carries the fields captured when a call is issued.
type RecordParams struct {
	RequestID      string          // Optional; assigned when empty.
	ServiceName    string          // Required external service name.
	Endpoint       string          // Called endpoint or operation.
	RequestTime    time.Time       // Issuance time; defaults to now.
	OwnerID        string          // Optional owning user.
	QueryRef       string          // Optional travel query reference.
	RequestPayload json.RawMessage // Opaque request blob.
	Metadata       json.RawMessage // Arbitrary metadata.
}

// Record appends a pending entry for an attempted call. It must be called
// exactly once per attempt, at issuance time, so that concurrent bursts are
// visible to window counts while still in flight.
func (l *Ledger) Record(ctx context.Context, params RecordParams) (*models.LedgerEntry, error) {
	serviceName := strings.TrimSpace(params.ServiceName)
	if serviceName == "" {
		return nil, fmt.Errorf("%w: missing service_name", ErrValidation)
	}

	requestID := strings.TrimSpace(params.RequestID)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	requestTime := params.RequestTime
	if requestTime.IsZero() {
		requestTime = time.Now().UTC()
	}

	row := models.LedgerEntry{
		RequestID:      requestID,
		ServiceName:    serviceName,
		Endpoint:       strings.TrimSpace(params.Endpoint),
		RequestTime:    requestTime,
		RequestPayload: toJSON(params.RequestPayload),
		Metadata:       toJSON(params.Metadata),
	}
	if ownerID := strings.TrimSpace(params.OwnerID); ownerID != "" {
		row.OwnerID = &ownerID
	}
	if queryRef := strings.TrimSpace(params.QueryRef); queryRef != "" {
		row.QueryRef = &queryRef
	}

	if errCreate := l.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
		return nil, fmt.Errorf("ledger: record: %w", errCreate)
	}
	return &row, nil
}

// FinalizeParams carries the outcome of a completed call.
type FinalizeParams struct {
	Success         bool            // Final outcome.
	ResponseTimeMs  *int64          // Observed latency in ms.
	ErrorMessage    string          // Failure detail, if any.
	ResponsePayload json.RawMessage // Opaque response blob.
}

// Finalize sets the outcome of a pending entry exactly once. A finalized
// entry is immutable; repeat calls get ErrFinalized.
func (l *Ledger) Finalize(ctx context.Context, requestID string, params FinalizeParams) (*models.LedgerEntry, error) {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return nil, fmt.Errorf("%w: missing request_id", ErrValidation)
	}

	updates := map[string]any{
		"success": params.Success,
	}
	if params.ResponseTimeMs != nil {
		updates["response_time_ms"] = *params.ResponseTimeMs
	}
	if msg := strings.TrimSpace(params.ErrorMessage); msg != "" {
		updates["error_message"] = msg
	}
	if len(params.ResponsePayload) > 0 {
		updates["response_payload"] = datatypes.JSON(params.ResponsePayload)
	}

	result := l.db.WithContext(ctx).Model(&models.LedgerEntry{}).
		Where("request_id = ? AND success IS NULL", requestID).
		Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("ledger: finalize: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		// Distinguish unknown entries from repeat finalization.
		var existing models.LedgerEntry
		errFind := l.db.WithContext(ctx).Where("request_id = ?", requestID).Take(&existing).Error
		if errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: request_id %s", ErrNotFound, requestID)
			}
			return nil, fmt.Errorf("ledger: finalize lookup: %w", errFind)
		}
		return nil, fmt.Errorf("%w: request_id %s", ErrFinalized, requestID)
	}

	var row models.LedgerEntry
	if errFind := l.db.WithContext(ctx).Where("request_id = ?", requestID).Take(&row).Error; errFind != nil {
		return nil, fmt.Errorf("ledger: finalize reload: %w", errFind)
	}
	return &row, nil
}

// Get loads an entry by request ID.
func (l *Ledger) Get(ctx context.Context, requestID string) (*models.LedgerEntry, error) {
	var row models.LedgerEntry
	errFind := l.db.WithContext(ctx).Where("request_id = ?", strings.TrimSpace(requestID)).Take(&row).Error
	if errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: request_id %s", ErrNotFound, requestID)
		}
		return nil, fmt.Errorf("ledger: load entry: %w", errFind)
	}
	return &row, nil
}

// CountSince counts entries for a service with request_time at or after
// since. Pending entries count: the window reflects issuance, not
// completion.
func (l *Ledger) CountSince(ctx context.Context, serviceName string, since time.Time) (int64, error) {
	var count int64
	errCount := l.db.WithContext(ctx).Model(&models.LedgerEntry{}).
		Where("service_name = ? AND request_time >= ?", strings.TrimSpace(serviceName), since).
		Count(&count).Error
	if errCount != nil {
		return 0, fmt.Errorf("ledger: count: %w", errCount)
	}
	return count, nil
}

func toJSON(raw json.RawMessage) datatypes.JSON {
	if len(raw) == 0 {
		return nil
	}
	return datatypes.JSON(raw)
}
