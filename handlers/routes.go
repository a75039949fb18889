package handlers

import (
	"challenge-proof-system/middleware"
	"challenge-proof-system/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	Challenges  services.ChallengeRepository
	Pipeline    Submitter
	Submissions *services.SubmissionService
	Progression *services.ProgressionService
	Ledger      *services.RewardLedger
	Reconciler  *services.CreditReconciler
	Profiles    *services.ProfileService
	AuthClient  middleware.TokenValidator
	MaxUpload   int64
	Log         *zap.Logger
}

// SetupRoutes mounts public routes at the root, user routes under /s and
// admin routes under /s/admin. The gateway forwards e.g.
// /api/v1/challenges/s/user/balance -> /s/user/balance.
func SetupRoutes(app *fiber.App, d Deps) {
	// 🔐 Secured routes require user context (userID, roles)
	secured := app.Group("/s", middleware.UserContextMiddleware(d.Log))
	// 🔒 Admin-only routes
	admin := secured.Group("/admin", middleware.RequireRole("admin", d.Log))

	registerChallengeRoutes(app, admin, d)
	registerSubmissionRoutes(app, secured, d)
	registerLedgerRoutes(secured, admin, d)
}
