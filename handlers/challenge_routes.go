package handlers

import (
	"challenge-proof-system/models"
	"challenge-proof-system/services"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func registerChallengeRoutes(public, admin fiber.Router, d Deps) {
	public.Get("/challenges/current", func(c *fiber.Ctx) error {
		challenge, err := d.Challenges.GetCurrent(c.UserContext())
		if err != nil {
			d.Log.Error("[CHALLENGE] failed to load current challenge", zap.Error(err))
			return respondError(c, "failed to load challenge", err)
		}
		if challenge == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no active challenge"})
		}
		return c.JSON(challenge)
	})

	public.Get("/challenges/:id", func(c *fiber.Ctx) error {
		challenge, err := d.Challenges.GetByID(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, "failed to load challenge", err)
		}
		if challenge == nil {
			return respondError(c, "challenge not found", services.ErrChallengeNotFound)
		}
		return c.JSON(challenge)
	})

	admin.Get("/challenges", func(c *fiber.Ctx) error {
		challenges, err := d.Challenges.List(c.UserContext(), c.QueryInt("limit", 20))
		if err != nil {
			return respondError(c, "failed to list challenges", err)
		}
		return c.JSON(challenges)
	})

	admin.Post("/challenges", func(c *fiber.Ctx) error {
		type Req struct {
			Title        string `json:"title"`
			Description  string `json:"description"`
			RewardTokens int    `json:"reward_tokens"`
			RewardXP     int    `json:"reward_xp"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		challenge := &models.Challenge{
			Title:        req.Title,
			Description:  req.Description,
			RewardTokens: req.RewardTokens,
			RewardXP:     req.RewardXP,
		}
		if err := d.Challenges.Create(c.UserContext(), challenge); err != nil {
			return respondError(c, "failed to create challenge", err)
		}
		d.Log.Info("[CHALLENGE] 🌱 challenge created",
			zap.String("challenge_id", challenge.ID),
			zap.String("created_by", userID(c)),
		)
		return c.Status(fiber.StatusCreated).JSON(challenge)
	})
}
