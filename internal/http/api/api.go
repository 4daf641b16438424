package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/voyago/travelcore/internal/http/api/handlers"
	"github.com/voyago/travelcore/internal/ledger"
	"github.com/voyago/travelcore/internal/planstore"
	"github.com/voyago/travelcore/internal/ratelimit"
	"gorm.io/gorm"
)

// Deps carries the wired services the API routes depend on.
type Deps struct {
	DB       *gorm.DB
	Store    *planstore.Store
	Ledger   *ledger.Ledger
	Governor *ratelimit.Governor
	Windows  *ratelimit.Manager
}

// Register mounts all v1 routes on the router.
func Register(router *gin.Engine, deps Deps) {
	planHandler := handlers.NewPlanHandler(deps.Store)
	ledgerHandler := handlers.NewLedgerHandler(deps.Ledger, deps.Windows)
	governorHandler := handlers.NewGovernorHandler(deps.Governor)
	policyHandler := handlers.NewPolicyHandler(deps.DB)

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/v1")

	plans := v1.Group("/plans")
	plans.POST("", planHandler.Create)
	plans.GET("", planHandler.List)
	plans.POST("/:id/versions", planHandler.CreateVersion)
	plans.GET("/:id/history", planHandler.History)
	plans.GET("/:id/latest", planHandler.Latest)

	// Separate path: a static /plans/search segment would conflict with the
	// :id wildcard in gin's route tree.
	v1.GET("/plan-search", planHandler.Search)

	ratelimitGroup := v1.Group("/ratelimit")
	ratelimitGroup.GET("/:service/check", governorHandler.Check)
	ratelimitGroup.GET("/:service/retry-policy", governorHandler.RetryPolicy)

	ledgerGroup := v1.Group("/ledger")
	ledgerGroup.POST("", ledgerHandler.Record)
	ledgerGroup.POST("/:request_id/finalize", ledgerHandler.Finalize)
	ledgerGroup.GET("/stats", ledgerHandler.Stats)

	policies := v1.Group("/policies")
	policies.GET("", policyHandler.List)
	policies.PUT("/:service", policyHandler.Upsert)
}
