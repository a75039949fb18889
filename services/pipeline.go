package services

import (
	"context"
	"fmt"
	"strings"

	"challenge-proof-system/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Stage is the furthest point a submission reached in the pipeline.
type Stage string

const (
	StageIntake          Stage = "intake"
	StageStaged          Stage = "staged"
	StageOracleCalled    Stage = "oracle_called"
	StageParsed          Stage = "parsed"
	StageClassified      Stage = "classified"
	StagePersisted       Stage = "persisted"
	StageCreditAttempted Stage = "credit_attempted"
	StageDone            Stage = "done"
)

// RewardPolicy holds the non-token rewards granted for a verified proof.
type RewardPolicy struct {
	VerifiedXP          int64
	VerifiedStreakDelta int64
}

type SubmitRequest struct {
	UserID      string
	ChallengeID string
	Artifact    Artifact
	Note        string
}

// SubmitResult is returned once the submission is persisted. Balance is nil
// unless a credit was applied during this run.
type SubmitResult struct {
	Submission *models.Submission
	Source     models.VerdictSource
	Stage      Stage
	Balance    *models.LedgerBalance
	CreditErr  error
}

// VerificationPipeline runs a proof from upload to reward.
type VerificationPipeline struct {
	intake      *SubmissionIntake
	oracle      Oracle
	challenges  ChallengeStore
	profiles    ProfileStore
	submissions SubmissionStore
	ledger      Ledger
	rewards     RewardPolicy
	log         *zap.Logger
}

type PipelineDeps struct {
	Intake      *SubmissionIntake
	Oracle      Oracle
	Challenges  ChallengeStore
	Profiles    ProfileStore
	Submissions SubmissionStore
	Ledger      Ledger
	Rewards     RewardPolicy
	Log         *zap.Logger
}

func NewVerificationPipeline(d PipelineDeps) *VerificationPipeline {
	return &VerificationPipeline{
		intake:      d.Intake,
		oracle:      d.Oracle,
		challenges:  d.Challenges,
		profiles:    d.Profiles,
		submissions: d.Submissions,
		ledger:      d.Ledger,
		rewards:     d.Rewards,
		log:         d.Log,
	}
}

// Submit stages the proof, asks the oracle for a verdict, persists the
// classified submission and credits the reward when it is verified.
//
// Errors before persistence leave nothing behind but possibly the staged image.
// A failed credit is not an error: the submission keeps credit_applied=false
// and the reconciler picks it up.
func (p *VerificationPipeline) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if strings.TrimSpace(req.UserID) == "" {
		return nil, ErrNotAuthenticated
	}
	log := p.log.With(zap.String("user_id", req.UserID), zap.String("challenge_id", req.ChallengeID))
	stage := StageIntake
	advance := func(next Stage, fields ...zap.Field) {
		log.Debug("[PIPELINE] stage transition",
			append([]zap.Field{zap.String("from", string(stage)), zap.String("to", string(next))}, fields...)...)
		stage = next
	}

	if strings.TrimSpace(req.ChallengeID) == "" {
		return nil, fmt.Errorf("%w: challenge is required", ErrValidation)
	}
	contentType, err := p.intake.Validate(req.ChallengeID, req.Artifact)
	if err != nil {
		return nil, err
	}
	challenge, err := p.challenges.GetByID(ctx, req.ChallengeID)
	if err != nil {
		return nil, fmt.Errorf("load challenge: %w", err)
	}
	if challenge == nil {
		return nil, ErrChallengeNotFound
	}

	imageURL, err := p.intake.Stage(ctx, req.ChallengeID, req.Artifact)
	if err != nil {
		log.Error("[PIPELINE] ❌ staging failed", zap.Error(err))
		return nil, err
	}
	advance(StageStaged, zap.String("image_url", imageURL))

	var profile *models.UserProfile
	if p.profiles != nil {
		profile, err = p.profiles.GetProfile(ctx, req.UserID)
		if err != nil {
			log.Warn("[PIPELINE] profile lookup failed, judging without it", zap.Error(err))
			profile = nil
		}
	}

	reply, err := p.oracle.Judge(ctx, OracleRequest{
		Messages:  BuildVerificationPrompt(challenge, profile, req.Note, imageURL),
		ImageURL:  imageURL,
		Image:     req.Artifact.Data,
		ImageMIME: contentType,
	})
	if err != nil {
		log.Error("[PIPELINE] ❌ oracle call failed", zap.Error(err))
		return nil, err
	}
	advance(StageOracleCalled)

	verdict := ParseVerdict(reply, challenge)
	if verdict.Degraded() {
		log.Warn("[PIPELINE] ⚠️ oracle ignored the JSON contract, used heuristic verdict",
			zap.String("verdict_source", string(verdict.Source)),
			zap.Int("confidence", verdict.Confidence),
		)
	}
	advance(StageParsed, zap.String("verdict_source", string(verdict.Source)))

	class := Classify(verdict.Verdict, challenge)
	advance(StageClassified, zap.String("status", string(class.Status)))

	sub := &models.Submission{
		ID:            uuid.NewString(),
		UserID:        req.UserID,
		ChallengeID:   challenge.ID,
		ImageURL:      imageURL,
		Status:        class.Status,
		Confidence:    class.Confidence,
		Reason:        class.Reason,
		TokensAwarded: class.TokensAwarded,
		VerdictSource: verdict.Source,
	}
	if note := strings.TrimSpace(req.Note); note != "" {
		sub.Note = &note
	}
	if err := p.submissions.Insert(ctx, sub); err != nil {
		log.Error("[PIPELINE] ❌ failed to persist submission", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrSubmissionPersist, err)
	}
	advance(StagePersisted, zap.String("submission_id", sub.ID))

	result := &SubmitResult{Submission: sub, Source: verdict.Source}

	if sub.Status == models.SubmissionStatusVerified && sub.TokensAwarded != nil {
		balance, err := p.ledger.Credit(ctx, verifiedCredit(sub, challenge, p.rewards))
		if err != nil {
			log.Error("[PIPELINE] ❌ ledger credit failed, left for reconciliation",
				zap.String("submission_id", sub.ID),
				zap.Error(err),
			)
			result.CreditErr = err
		} else {
			sub.CreditApplied = true
			result.Balance = balance
		}
		advance(StageCreditAttempted)
	}

	advance(StageDone)
	result.Stage = stage
	log.Info("[PIPELINE] ✅ submission processed",
		zap.String("submission_id", sub.ID),
		zap.String("status", string(sub.Status)),
		zap.Int("confidence", sub.Confidence),
		zap.Bool("credited", result.Balance != nil),
	)
	return result, nil
}

// verifiedCredit builds the ledger credit for a verified submission. The
// challenge's XP wins over the configured default.
func verifiedCredit(sub *models.Submission, challenge *models.Challenge, rewards RewardPolicy) CreditRequest {
	xp := rewards.VerifiedXP
	if challenge != nil && challenge.RewardXP > 0 {
		xp = int64(challenge.RewardXP)
	}
	return CreditRequest{
		UserID:       sub.UserID,
		SubmissionID: sub.ID,
		Tokens:       int64(*sub.TokensAwarded),
		XP:           xp,
		StreakDelta:  rewards.VerifiedStreakDelta,
		Reason:       "verified proof for challenge " + sub.ChallengeID,
	}
}
