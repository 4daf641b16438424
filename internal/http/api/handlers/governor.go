package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/voyago/travelcore/internal/ratelimit"
)

// GovernorHandler serves rate limit decision endpoints.
type GovernorHandler struct {
	governor *ratelimit.Governor
}

// NewGovernorHandler constructs a GovernorHandler.
func NewGovernorHandler(governor *ratelimit.Governor) *GovernorHandler {
	return &GovernorHandler{governor: governor}
}

// Check answers whether a call to :service may proceed right now. Callers
// must honor allowed=false by deferring for cooldown_ms.
func (h *GovernorHandler) Check(c *gin.Context) {
	decision, errCheck := h.governor.Check(c.Request.Context(), c.Param("service"))
	if errCheck != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, decision)
}

// RetryPolicy surfaces the declarative retry settings for :service.
func (h *GovernorHandler) RetryPolicy(c *gin.Context) {
	policy, errPolicy := h.governor.RetryPolicy(c.Request.Context(), c.Param("service"))
	if errPolicy != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, policy)
}
