package services

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"challenge-proof-system/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const ssePollInterval = 2 * time.Second

// StreamUserSubmissionsSSE streams the authenticated user's new submissions as
// they are classified.
func (s *SubmissionService) StreamUserSubmissionsSSE(c *fiber.Ctx, log *zap.Logger) error {
	userID, _ := c.Locals("user_id").(string)
	if userID == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no") // nginx

	// only submissions created after the stream opened
	cursor := newSubmissionCursor(time.Now())
	ctx := c.Context()

	ctx.SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(ssePollInterval)
		defer ticker.Stop()

		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case <-ticker.C:
				subs, err := s.ListCreatedSince(context.Background(), userID, cursor.at)
				if err != nil {
					log.Warn("[SSE] submission query failed", zap.String("user_id", userID), zap.Error(err))
					continue
				}
				fresh := cursor.advance(subs)
				if len(fresh) == 0 {
					// keepalive
					w.WriteString(":\n\n")
				} else {
					for _, sub := range fresh {
						writeSubmissionEvent(w, &sub)
					}
				}
				if err := w.Flush(); err != nil {
					// client gone
					return
				}
			case <-ctx.Done():
				return
			}
		}
	})
	return nil
}

// submissionCursor tracks the newest timestamp streamed so far and the IDs
// already sent at exactly that timestamp, so a row committed late with the
// same created_at is still delivered once.
type submissionCursor struct {
	at   time.Time
	seen map[string]struct{}
}

func newSubmissionCursor(at time.Time) *submissionCursor {
	return &submissionCursor{at: at, seen: map[string]struct{}{}}
}

// advance takes rows from ListCreatedSince(c.at) and returns the ones not yet sent.
func (c *submissionCursor) advance(subs []models.Submission) []models.Submission {
	var fresh []models.Submission
	for _, sub := range subs {
		if sub.CreatedAt.Before(c.at) {
			continue
		}
		if sub.CreatedAt.After(c.at) {
			c.at = sub.CreatedAt
			c.seen = map[string]struct{}{}
		}
		if _, ok := c.seen[sub.ID]; ok {
			continue
		}
		c.seen[sub.ID] = struct{}{}
		fresh = append(fresh, sub)
	}
	return fresh
}

func writeSubmissionEvent(w *bufio.Writer, sub *models.Submission) {
	payload, err := json.Marshal(sub)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "id: %s\nevent: submission\ndata: %s\n\n", sub.ID, payload)
}
