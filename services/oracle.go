package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"challenge-proof-system/models"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const defaultProofNote = "The user submitted this photo as proof of completing the challenge."

// OracleMessage is one chat turn sent to the judgment oracle.
type OracleMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OracleRequest carries the prompt and the proof image. Clients use ImageURL,
// Image or both depending on what their API accepts.
type OracleRequest struct {
	Messages  []OracleMessage
	ImageURL  string
	Image     []byte
	ImageMIME string
}

// Oracle judges a proof and returns its raw text reply.
type Oracle interface {
	Judge(ctx context.Context, req OracleRequest) (string, error)
}

// OracleHTTPError is a non-2xx answer from an oracle provider.
type OracleHTTPError struct {
	StatusCode int
	Body       string
}

func (e *OracleHTTPError) Error() string {
	return fmt.Sprintf("oracle returned status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether retrying the same request may succeed.
func (e *OracleHTTPError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// BuildVerificationPrompt assembles the system and user messages for a proof.
// profile may be nil.
func BuildVerificationPrompt(challenge *models.Challenge, profile *models.UserProfile, note, imageURL string) []OracleMessage {
	var sys strings.Builder
	sys.WriteString("You are an objective verifier for sustainability challenges. ")
	fmt.Fprintf(&sys, "Analyze the image and the user's note for the challenge %q.", challenge.Title)
	if d := strings.TrimSpace(challenge.Description); d != "" {
		fmt.Fprintf(&sys, " Challenge description: %s", d)
	}
	sys.WriteString(" Return STRICT JSON with keys: verified (boolean), confidence (number 0-100), reason (string), reward_tokens (number). No prose.")
	if ctx := profile.PromptContext(); len(ctx) > 0 {
		if raw, err := json.Marshal(ctx); err == nil {
			fmt.Fprintf(&sys, " User profile: %s", raw)
		}
	}

	user := strings.TrimSpace(note)
	if user == "" {
		user = defaultProofNote
	}
	return []OracleMessage{
		{Role: "system", Content: sys.String()},
		{Role: "user", Content: user + "\nImage URL: " + imageURL},
	}
}

// RetryingOracle bounds each call to the wrapped oracle with a timeout and
// retries transient failures with jittered exponential backoff. Whatever it
// cannot recover from is returned as ErrOracleUnavailable.
type RetryingOracle struct {
	inner      Oracle
	timeout    time.Duration
	maxRetries int
	log        *zap.Logger
	newBackOff func() backoff.BackOff
}

func NewRetryingOracle(inner Oracle, timeout time.Duration, maxRetries int, log *zap.Logger) *RetryingOracle {
	return &RetryingOracle{
		inner:      inner,
		timeout:    timeout,
		maxRetries: maxRetries,
		log:        log,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 5 * time.Second
			return b
		},
	}
}

func (o *RetryingOracle) Judge(ctx context.Context, req OracleRequest) (string, error) {
	attempt := 0
	op := func() (string, error) {
		attempt++
		callCtx := ctx
		if o.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, o.timeout)
			defer cancel()
		}
		reply, err := o.inner.Judge(callCtx, req)
		if err == nil {
			return reply, nil
		}
		if ctx.Err() != nil || !retryableOracleError(err) {
			return "", backoff.Permanent(err)
		}
		return "", err
	}

	retries := max(o.maxRetries, 0)
	b := backoff.WithContext(backoff.WithMaxRetries(o.newBackOff(), uint64(retries)), ctx)
	reply, err := backoff.RetryNotifyWithData(op, b, func(err error, wait time.Duration) {
		o.log.Warn("[ORACLE] ⏳ transient failure, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
	if err != nil {
		o.log.Error("[ORACLE] ❌ oracle unavailable", zap.Int("attempts", attempt), zap.Error(err))
		return "", fmt.Errorf("%w: %w", ErrOracleUnavailable, err)
	}
	return reply, nil
}

// retryableOracleError treats network failures and timeouts as transient, and
// HTTP errors only when the provider says so. Clients mark malformed replies
// with backoff.Permanent.
func retryableOracleError(err error) bool {
	var httpErr *OracleHTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Temporary()
	}
	var perm *backoff.PermanentError
	return !errors.As(err, &perm)
}
