package handlers

import (
	"errors"

	"challenge-proof-system/services"

	"github.com/gofiber/fiber/v2"
)

// statusFor maps the service error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrChallengeNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrNotAuthenticated):
		return fiber.StatusUnauthorized
	case errors.Is(err, services.ErrUploadFailure):
		return fiber.StatusBadGateway
	case errors.Is(err, services.ErrOracleUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, msg string, err error) error {
	status := statusFor(err)
	body := fiber.Map{"error": msg}
	// internals stay in the logs
	if status < fiber.StatusInternalServerError {
		body["cause"] = err.Error()
	}
	return c.Status(status).JSON(body)
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals("user_id").(string)
	return id
}
