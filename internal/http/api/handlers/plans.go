package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/voyago/travelcore/internal/models"
	"github.com/voyago/travelcore/internal/planstore"
)

// PlanHandler serves plan version chain endpoints.
type PlanHandler struct {
	store *planstore.Store // Version chain store.
}

// NewPlanHandler constructs a PlanHandler.
func NewPlanHandler(store *planstore.Store) *PlanHandler {
	return &PlanHandler{store: store}
}

// createPlanRequest captures the payload for creating a root version.
type createPlanRequest struct {
	OwnerID  string                 `json:"owner_id"`  // Owning user identifier.
	QueryRef string                 `json:"query_ref"` // Originating travel query.
	Fields   planstore.FieldUpdates `json:"fields"`    // Initial content fields.
}

// Create inserts the root version of a new plan chain.
func (h *PlanHandler) Create(c *gin.Context) {
	var body createPlanRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	row, errCreate := h.store.CreateRoot(c.Request.Context(), body.OwnerID, body.QueryRef, body.Fields)
	if errCreate != nil {
		respondPlanError(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, planVersionResponse(row))
}

// createVersionRequest captures the payload for extending a chain.
type createVersionRequest struct {
	ModificationReason string                 `json:"modification_reason"` // Why the plan changed.
	Fields             planstore.FieldUpdates `json:"fields"`              // Merge-patch of content fields.
}

// CreateVersion appends a new version to the chain at :id.
func (h *PlanHandler) CreateVersion(c *gin.Context) {
	parentID, ok := parseIDParam(c)
	if !ok {
		return
	}

	var body createVersionRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	row, errCreate := h.store.CreateVersion(c.Request.Context(), parentID, body.ModificationReason, body.Fields)
	if errCreate != nil {
		respondPlanError(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, planVersionResponse(row))
}

// History returns the full lineage of the chain containing :id.
func (h *PlanHandler) History(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	history, errHistory := h.store.GetHistory(c.Request.Context(), id)
	if errHistory != nil {
		respondPlanError(c, errHistory)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history})
}

// Latest returns the leaf version of the chain containing :id.
func (h *PlanHandler) Latest(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	row, errLatest := h.store.GetLatest(c.Request.Context(), id)
	if errLatest != nil {
		respondPlanError(c, errLatest)
		return
	}
	c.JSON(http.StatusOK, planVersionResponse(row))
}

// List pages through an owner's plan versions by cursor.
func (h *PlanHandler) List(c *gin.Context) {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, errParse := strconv.Atoi(raw)
		if errParse != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = parsed
	}

	page, errList := h.store.ListPlans(
		c.Request.Context(),
		c.Query("owner_id"),
		c.Query("cursor"),
		planstore.Direction(c.Query("direction")),
		limit,
	)
	if errList != nil {
		respondPlanError(c, errList)
		return
	}

	items := make([]gin.H, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, planVersionResponse(&page.Items[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"items":       items,
		"next_cursor": page.NextCursor,
		"prev_cursor": page.PrevCursor,
		"total_count": page.TotalCount,
	})
}

// Search filters an owner's plans by destination name.
func (h *PlanHandler) Search(c *gin.Context) {
	rows, errSearch := h.store.SearchPlans(c.Request.Context(), c.Query("owner_id"), c.Query("destination"))
	if errSearch != nil {
		respondPlanError(c, errSearch)
		return
	}

	items := make([]gin.H, 0, len(rows))
	for i := range rows {
		items = append(items, planVersionResponse(&rows[i]))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// parseIDParam extracts the :id path parameter, answering 400 on failure.
func parseIDParam(c *gin.Context) (uint64, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

// respondPlanError maps store errors onto HTTP statuses.
func respondPlanError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, planstore.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, planstore.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, planstore.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// planVersionResponse serializes a version row for JSON responses.
func planVersionResponse(row *models.PlanVersion) gin.H {
	return gin.H{
		"id":                  row.ID,
		"owner_id":            row.OwnerID,
		"query_ref":           row.QueryRef,
		"destination":         row.Destination,
		"flights":             row.Flights,
		"accommodation":       row.Accommodation,
		"transportation":      row.Transportation,
		"activities":          row.Activities,
		"budget":              row.Budget,
		"overview":            row.Overview,
		"recommendations":     row.Recommendations,
		"alerts":              row.Alerts,
		"metadata":            row.Metadata,
		"version":             row.Version,
		"parent_id":           row.ParentID,
		"modification_reason": row.ModificationReason,
		"created_at":          row.CreatedAt,
	}
}
