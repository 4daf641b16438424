package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/voyago/travelcore/internal/ledger"
	"github.com/voyago/travelcore/internal/models"
	"github.com/voyago/travelcore/internal/ratelimit"
)

// LedgerHandler serves request ledger endpoints.
type LedgerHandler struct {
	ledger  *ledger.Ledger     // Append-only call log.
	windows *ratelimit.Manager // Window summary fed at record time.
}

// NewLedgerHandler constructs a LedgerHandler.
func NewLedgerHandler(lgr *ledger.Ledger, windows *ratelimit.Manager) *LedgerHandler {
	return &LedgerHandler{ledger: lgr, windows: windows}
}

// recordRequest captures the payload for appending a ledger entry.
type recordRequest struct {
	RequestID      string          `json:"request_id"`      // Optional correlation ID.
	ServiceName    string          `json:"service_name"`    // External service name.
	Endpoint       string          `json:"endpoint"`        // Called endpoint.
	OwnerID        string          `json:"owner_id"`        // Optional owner.
	QueryRef       string          `json:"query_ref"`       // Optional query reference.
	RequestPayload json.RawMessage `json:"request_payload"` // Opaque request blob.
	Metadata       json.RawMessage `json:"metadata"`        // Arbitrary metadata.
}

// Record appends a pending entry for an attempted call.
func (h *LedgerHandler) Record(c *gin.Context) {
	var body recordRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	row, errRecord := h.ledger.Record(c.Request.Context(), ledger.RecordParams{
		RequestID:      body.RequestID,
		ServiceName:    body.ServiceName,
		Endpoint:       body.Endpoint,
		OwnerID:        body.OwnerID,
		QueryRef:       body.QueryRef,
		RequestPayload: body.RequestPayload,
		Metadata:       body.Metadata,
	})
	if errRecord != nil {
		respondLedgerError(c, errRecord)
		return
	}

	h.windows.Note(c.Request.Context(), row.ServiceName, row.RequestTime)

	c.JSON(http.StatusCreated, ledgerEntryResponse(row))
}

// finalizeRequest captures the payload for finalizing an entry.
type finalizeRequest struct {
	Success         *bool           `json:"success"`          // Final outcome, required.
	ResponseTimeMs  *int64          `json:"response_time_ms"` // Observed latency.
	ErrorMessage    string          `json:"error_message"`    // Failure detail.
	ResponsePayload json.RawMessage `json:"response_payload"` // Opaque response blob.
}

// Finalize sets the outcome of a pending entry exactly once.
func (h *LedgerHandler) Finalize(c *gin.Context) {
	var body finalizeRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Success == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing success"})
		return
	}

	row, errFinalize := h.ledger.Finalize(c.Request.Context(), c.Param("request_id"), ledger.FinalizeParams{
		Success:         *body.Success,
		ResponseTimeMs:  body.ResponseTimeMs,
		ErrorMessage:    body.ErrorMessage,
		ResponsePayload: body.ResponsePayload,
	})
	if errFinalize != nil {
		respondLedgerError(c, errFinalize)
		return
	}
	c.JSON(http.StatusOK, ledgerEntryResponse(row))
}

// Stats aggregates outcomes for one service over a trailing window.
func (h *LedgerHandler) Stats(c *gin.Context) {
	sinceHours := 24
	if raw := strings.TrimSpace(c.Query("since_hours")); raw != "" {
		parsed, errParse := strconv.Atoi(raw)
		if errParse != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid since_hours"})
			return
		}
		sinceHours = parsed
	}

	since := time.Now().UTC().Add(-time.Duration(sinceHours) * time.Hour)
	stats, errStats := h.ledger.Stats(c.Request.Context(), c.Query("service"), since)
	if errStats != nil {
		respondLedgerError(c, errStats)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// respondLedgerError maps ledger errors onto HTTP statuses.
func respondLedgerError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrFinalized):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// ledgerEntryResponse serializes a ledger entry for JSON responses.
func ledgerEntryResponse(row *models.LedgerEntry) gin.H {
	return gin.H{
		"id":               row.ID,
		"request_id":       row.RequestID,
		"service_name":     row.ServiceName,
		"endpoint":         row.Endpoint,
		"request_time":     row.RequestTime,
		"response_time_ms": row.ResponseTimeMs,
		"success":          row.Success,
		"error_message":    row.ErrorMessage,
		"owner_id":         row.OwnerID,
		"query_ref":        row.QueryRef,
		"request_payload":  row.RequestPayload,
		"response_payload": row.ResponsePayload,
		"metadata":         row.Metadata,
		"created_at":       row.CreatedAt,
	}
}
