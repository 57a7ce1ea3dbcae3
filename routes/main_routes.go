package routes

import (
	"github.com/labstack/echo/v4"

	"github.com/coachdesk/commission_engine/controllers"
	"github.com/coachdesk/commission_engine/middleware"
)

// SetupRoutes wires every endpoint group
func SetupRoutes(
	e *echo.Echo,
	authController *controllers.AuthController,
	structureController *controllers.StructureController,
	commissionController *controllers.CommissionController,
	payoutController *controllers.PayoutController,
	analyticsController *controllers.AnalyticsController,
	coachController *controllers.CoachController,
) {
	// Operator login
	e.POST("/api/admin/login", authController.Login)

	// Billing events arrive from the subscription service, authenticated by
	// shared secret rather than an operator token
	billing := e.Group("/api/billing")
	billing.Use(middleware.WebhookAuth())
	billing.POST("/events", commissionController.IngestBillingEvent)

	RegisterCommissionRoutes(e, structureController, commissionController)
	RegisterPayoutRoutes(e, payoutController)
	RegisterAnalyticsRoutes(e, analyticsController)
	RegisterCoachRoutes(e, coachController)
}

// RegisterCommissionRoutes sets up structure, rule and ledger routes
func RegisterCommissionRoutes(e *echo.Echo, structureController *controllers.StructureController, commissionController *controllers.CommissionController) {
	admin := e.Group("/api/admin")
	admin.Use(middleware.JWTMiddleware())
	admin.Use(middleware.RequireRole("finance"))

	// Commission structure versions
	admin.GET("/commission-structures", structureController.ListStructures)
	admin.POST("/commission-structures", structureController.CreateStructure)
	admin.GET("/commission-structures/active", structureController.GetActiveStructure)
	admin.POST("/commission-structures/:version/activate", structureController.ActivateStructure)

	// Eligibility rules and the report the console renders
	admin.GET("/eligibility-rules", structureController.GetEligibilityRules)
	admin.PUT("/eligibility-rules", structureController.UpdateEligibilityRules)
	admin.GET("/eligibility-report", commissionController.EligibilityReport)

	// Ledger
	admin.GET("/commissions", commissionController.ListEntries)
	admin.POST("/commissions/approve", commissionController.ApproveEntries)
	admin.POST("/commissions/:id/cancel", commissionController.CancelEntry)
}

// RegisterPayoutRoutes sets up batch lifecycle routes
func RegisterPayoutRoutes(e *echo.Echo, payoutController *controllers.PayoutController) {
	admin := e.Group("/api/admin")
	admin.Use(middleware.JWTMiddleware())
	admin.Use(middleware.RequireRole("finance"))

	admin.GET("/payouts", payoutController.ListBatches)
	admin.GET("/payouts/pending", payoutController.PendingPayouts)
	admin.POST("/payouts/coach/:coachId", payoutController.CreateBatch)
	admin.POST("/payouts/:id/process", payoutController.ProcessBatch)
	admin.POST("/payouts/:id/reconcile", payoutController.ReconcileBatch)
	admin.POST("/payouts/process-all", payoutController.ProcessAll)
}

// RegisterAnalyticsRoutes sets up the read-only dashboard routes
func RegisterAnalyticsRoutes(e *echo.Echo, analyticsController *controllers.AnalyticsController) {
	admin := e.Group("/api/admin/analytics")
	admin.Use(middleware.JWTMiddleware())
	admin.Use(middleware.RequireRole("finance"))

	admin.GET("/summary", analyticsController.Summary)
	admin.GET("/top-coaches", analyticsController.TopCoaches)
	admin.GET("/revenue-by-plan", analyticsController.RevenueByPlan)
	admin.GET("/revenue-by-category", analyticsController.RevenueByCategory)
	admin.GET("/monthly", analyticsController.MonthlySeries)
}

// RegisterCoachRoutes sets up referral directory routes
func RegisterCoachRoutes(e *echo.Echo, coachController *controllers.CoachController) {
	admin := e.Group("/api/admin")
	admin.Use(middleware.JWTMiddleware())
	admin.Use(middleware.RequireRole("finance"))

	admin.GET("/coaches", coachController.ListCoaches)
	admin.POST("/coaches", coachController.CreateCoach)
	admin.GET("/coaches/:id", coachController.GetCoach)
	admin.GET("/coaches/:id/chain", coachController.GetReferralChain)
}
