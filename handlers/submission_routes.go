package handlers

import (
	"context"
	"fmt"
	"io"

	"challenge-proof-system/middleware"
	"challenge-proof-system/services"

	"github.com/gofiber/fiber/v2"
)

// Submitter runs a proof through verification.
type Submitter interface {
	Submit(ctx context.Context, req services.SubmitRequest) (*services.SubmitResult, error)
}

func registerSubmissionRoutes(app *fiber.App, secured fiber.Router, d Deps) {
	secured.Post("/challenges/:id/submissions", func(c *fiber.Ctx) error {
		fh, err := c.FormFile("image")
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "image file is required"})
		}
		f, err := fh.Open()
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unreadable image"})
		}
		defer f.Close()

		// one byte over the limit is enough for intake to reject it
		data, err := io.ReadAll(io.LimitReader(f, d.MaxUpload+1))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unreadable image"})
		}

		res, err := d.Pipeline.Submit(c.UserContext(), services.SubmitRequest{
			UserID:      userID(c),
			ChallengeID: c.Params("id"),
			Note:        c.FormValue("note"),
			Artifact: services.Artifact{
				Filename:    fh.Filename,
				Data:        data,
				ContentType: fh.Header.Get(fiber.HeaderContentType),
			},
		})
		if err != nil {
			return respondError(c, "submission failed", err)
		}

		body := fiber.Map{
			"submission":     res.Submission,
			"verdict_source": res.Source,
			"stage":          res.Stage,
		}
		if res.Balance != nil {
			body["balance"] = services.NewBalanceView(res.Balance)
		}
		return c.Status(fiber.StatusCreated).JSON(body)
	})

	secured.Get("/user/submissions", func(c *fiber.Ctx) error {
		subs, err := d.Submissions.ListByUser(c.UserContext(), userID(c), c.QueryInt("limit", 20))
		if err != nil {
			return respondError(c, "failed to list submissions", fmt.Errorf("list submissions: %w", err))
		}
		return c.JSON(subs)
	})

	// EventSource can't send gateway headers; token and device_id come in the query
	app.Get("/user/submissions/stream", middleware.SSEAuthMiddleware(d.AuthClient, d.Log), func(c *fiber.Ctx) error {
		return d.Submissions.StreamUserSubmissionsSSE(c, d.Log)
	})
}
