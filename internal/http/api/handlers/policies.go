package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/voyago/travelcore/internal/models"
	"gorm.io/gorm"
)

// PolicyHandler manages operator CRUD for rate limit policies.
type PolicyHandler struct {
	db *gorm.DB // Database handle for policy rows.
}

// NewPolicyHandler constructs a PolicyHandler.
func NewPolicyHandler(db *gorm.DB) *PolicyHandler {
	return &PolicyHandler{db: db}
}

// List returns all policies ordered by service name.
func (h *PolicyHandler) List(c *gin.Context) {
	var policies []models.RateLimitPolicy
	if errFind := h.db.WithContext(c.Request.Context()).
		Order("service_name ASC").
		Find(&policies).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list policies failed"})
		return
	}

	out := make([]gin.H, 0, len(policies))
	for _, policy := range policies {
		out = append(out, policyResponse(&policy))
	}
	c.JSON(http.StatusOK, gin.H{"policies": out})
}

// upsertPolicyRequest captures the payload for creating or updating a policy.
type upsertPolicyRequest struct {
	RequestsPerMinute  int     `json:"requests_per_minute"`  // Trailing minute quota.
	RequestsPerHour    int     `json:"requests_per_hour"`    // Trailing hour quota.
	RequestsPerDay     int     `json:"requests_per_day"`     // Trailing day quota.
	CooldownPeriodMs   int64   `json:"cooldown_period_ms"`   // Base cooldown in ms.
	RetryBackoffFactor float64 `json:"retry_backoff_factor"` // Declarative backoff factor.
	MaxRetries         int     `json:"max_retries"`          // Declarative retry cap.
}

// Upsert creates or replaces the policy for :service.
func (h *PolicyHandler) Upsert(c *gin.Context) {
	serviceName := strings.TrimSpace(c.Param("service"))
	if serviceName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing service"})
		return
	}

	var body upsertPolicyRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.RequestsPerMinute < 0 || body.RequestsPerHour < 0 || body.RequestsPerDay < 0 ||
		body.CooldownPeriodMs < 0 || body.MaxRetries < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "negative quota values"})
		return
	}

	ctx := c.Request.Context()

	var row models.RateLimitPolicy
	errFind := h.db.WithContext(ctx).Where("service_name = ?", serviceName).Take(&row).Error
	switch {
	case errFind == nil:
		row.RequestsPerMinute = body.RequestsPerMinute
		row.RequestsPerHour = body.RequestsPerHour
		row.RequestsPerDay = body.RequestsPerDay
		row.CooldownPeriodMs = body.CooldownPeriodMs
		row.RetryBackoffFactor = body.RetryBackoffFactor
		row.MaxRetries = body.MaxRetries
		if errSave := h.db.WithContext(ctx).Save(&row).Error; errSave != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "update policy failed"})
			return
		}
	case errors.Is(errFind, gorm.ErrRecordNotFound):
		row = models.RateLimitPolicy{
			ServiceName:        serviceName,
			RequestsPerMinute:  body.RequestsPerMinute,
			RequestsPerHour:    body.RequestsPerHour,
			RequestsPerDay:     body.RequestsPerDay,
			CooldownPeriodMs:   body.CooldownPeriodMs,
			RetryBackoffFactor: body.RetryBackoffFactor,
			MaxRetries:         body.MaxRetries,
		}
		if errCreate := h.db.WithContext(ctx).Create(&row).Error; errCreate != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "create policy failed"})
			return
		}
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load policy failed"})
		return
	}

	c.JSON(http.StatusOK, policyResponse(&row))
}

// policyResponse serializes a policy row for JSON responses.
func policyResponse(row *models.RateLimitPolicy) gin.H {
	return gin.H{
		"service_name":         row.ServiceName,
		"requests_per_minute":  row.RequestsPerMinute,
		"requests_per_hour":    row.RequestsPerHour,
		"requests_per_day":     row.RequestsPerDay,
		"cooldown_period_ms":   row.CooldownPeriodMs,
		"retry_backoff_factor": row.RetryBackoffFactor,
		"max_retries":          row.MaxRetries,
		"created_at":           row.CreatedAt,
		"updated_at":           row.UpdatedAt,
	}
}
