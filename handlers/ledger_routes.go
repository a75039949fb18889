// handlers/ledger_routes.go
package handlers

import (
	"challenge-proof-system/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func registerLedgerRoutes(secured, admin fiber.Router, d Deps) {
	// reconciles outstanding credits before reading
	secured.Get("/user/balance", func(c *fiber.Ctx) error {
		view, err := d.Progression.GetBalance(c.UserContext(), userID(c))
		if err != nil {
			d.Log.Error("[LEDGER] balance read failed", zap.String("user_id", userID(c)), zap.Error(err))
			return respondError(c, "failed to load balance", err)
		}
		return c.JSON(view)
	})

	secured.Get("/user/credits", func(c *fiber.Ctx) error {
		credits, err := d.Ledger.Credits(c.UserContext(), userID(c), c.QueryInt("limit", 20))
		if err != nil {
			return respondError(c, "failed to load credits", err)
		}
		return c.JSON(credits)
	})

	admin.Post("/ledger/grant", func(c *fiber.Ctx) error {
		type Req struct {
			UserID string `json:"user_id"`
			Tokens int64  `json:"tokens"`
			XP     int64  `json:"xp"`
			Reason string `json:"reason"`
			// Reference makes a retried grant idempotent; generated when empty.
			Reference string `json:"reference"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}
		if req.UserID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "user_id is required"})
		}
		if req.Reference == "" {
			req.Reference = uuid.NewString()
		}

		balance, err := d.Ledger.Credit(c.UserContext(), services.CreditRequest{
			UserID:    req.UserID,
			Reference: "grant:" + req.Reference,
			Tokens:    req.Tokens,
			XP:        req.XP,
			Reason:    req.Reason,
		})
		if err != nil {
			return respondError(c, "grant failed", err)
		}

		d.Log.Info("[LEDGER] 🎁 admin grant",
			zap.String("granted_by", userID(c)),
			zap.String("user_id", req.UserID),
			zap.Int64("tokens", req.Tokens),
			zap.Int64("xp", req.XP),
		)
		return c.JSON(fiber.Map{
			"message":   "credit granted",
			"reference": "grant:" + req.Reference,
			"balance":   services.NewBalanceView(balance),
		})
	})

	admin.Post("/reconcile", func(c *fiber.Ctx) error {
		applied, err := d.Reconciler.RunOnce(c.UserContext())
		if err != nil {
			return respondError(c, "reconcile failed", err)
		}
		return c.JSON(fiber.Map{"applied": applied})
	})

	admin.Get("/profiles", func(c *fiber.Ctx) error {
		profiles, err := d.Profiles.SearchProfiles(c.UserContext(), c.Query("q"), c.QueryInt("limit", 50))
		if err != nil {
			return respondError(c, "search failed", err)
		}
		return c.JSON(profiles)
	})
}
