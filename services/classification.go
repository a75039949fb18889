package services

import (
	"strings"

	"challenge-proof-system/models"
)

const (
	// PendingConfidenceThreshold is the lowest confidence that parks an
	// unverified submission for review instead of rejecting it.
	PendingConfidenceThreshold = 70
	MaxReasonRunes             = 500
)

// Classification is the policy outcome persisted on a submission.
type Classification struct {
	Status        models.SubmissionStatus
	Confidence    int
	Reason        string
	TokensAwarded *int
}

// Classify maps a verdict to a submission status and reward. Only the oracle's
// verified flag can produce "verified"; confidence alone decides between
// pending and rejected.
func Classify(v models.Verdict, _ *models.Challenge) Classification {
	out := Classification{
		Confidence: clamp(v.Confidence, 0, 100),
		Reason:     boundReason(v.Reason),
	}

	switch {
	case v.Verified:
		out.Status = models.SubmissionStatusVerified
		if v.RewardTokens != nil {
			tokens := max(*v.RewardTokens, 0)
			out.TokensAwarded = &tokens
		}
	case v.Confidence >= PendingConfidenceThreshold:
		out.Status = models.SubmissionStatusPending
	default:
		out.Status = models.SubmissionStatusRejected
	}
	return out
}

func boundReason(reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "no reason given"
	}
	return truncateRunes(reason, MaxReasonRunes)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
