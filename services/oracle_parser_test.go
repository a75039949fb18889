package services

import (
	"math"
	"strings"
	"testing"

	"challenge-proof-system/models"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestParseVerdict_StrictRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  models.Verdict
	}{
		{
			name:  "verified with reward",
			reply: `{"verified":true,"confidence":91,"reason":"bin visible","reward_tokens":30}`,
			want:  models.Verdict{Verified: true, Confidence: 91, Reason: "bin visible", RewardTokens: intPtr(30)},
		},
		{
			name:  "not verified, null reward",
			reply: `{"verified":false,"confidence":12,"reason":"blurry","reward_tokens":null}`,
			want:  models.Verdict{Verified: false, Confidence: 12, Reason: "blurry"},
		},
		{
			name:  "reward omitted",
			reply: `{"verified":false,"confidence":70,"reason":"maybe"}`,
			want:  models.Verdict{Verified: false, Confidence: 70, Reason: "maybe"},
		},
		{
			name:  "surrounding whitespace",
			reply: "\n  {\"verified\":true,\"confidence\":100,\"reason\":\"clear\",\"reward_tokens\":5}  \n",
			want:  models.Verdict{Verified: true, Confidence: 100, Reason: "clear", RewardTokens: intPtr(5)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseVerdict(tt.reply, nil)
			assert.Equal(t, models.VerdictSourceStrict, got.Source)
			assert.False(t, got.Degraded())
			if diff := cmp.Diff(tt.want, got.Verdict); diff != "" {
				t.Errorf("verdict mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseVerdict_CodeFenceAndRounding(t *testing.T) {
	reply := "```json\n{\"verified\": true, \"confidence\": 87.6, \"reason\": \"ok\", \"reward_tokens\": 10}\n```"
	got := ParseVerdict(reply, nil)

	assert.Equal(t, models.VerdictSourceStrict, got.Source)
	assert.Equal(t, 88, got.Confidence)
	assert.Equal(t, intPtr(10), got.RewardTokens)
}

func TestParseVerdict_StrictRejectsIncompleteObjects(t *testing.T) {
	replies := []string{
		`{"verified":true,"reason":"no confidence"}`,
		`{"verified":"yes","confidence":90,"reason":"wrong type"}`,
		`{"verified":true,"confidence":90,"reason":"ok","reward_tokens":"many"}`,
		`{"verified":true,"confidence":90,"reason":"ok"} and some prose`,
	}
	for _, reply := range replies {
		got := ParseVerdict(reply, nil)
		assert.Equal(t, models.VerdictSourceHeuristic, got.Source, reply)
		assert.True(t, got.Degraded())
	}
}

func TestParseVerdict_Heuristic(t *testing.T) {
	tests := []struct {
		name         string
		reply        string
		wantVerified bool
		wantConf     int
	}{
		{"high confidence", "The photo shows recycling. confidence: 90", true, 90},
		{"low confidence", "Not sure at all, confidence: 60", false, 60},
		{"no figure defaults to 80", "Looks like a tree being planted.", true, 80},
		{"at threshold", "Confidence=75", true, 75},
		{"just below threshold", "confidence - 74", false, 74},
		{"full-width digits", "confidence: ９５", true, 95},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseVerdict(tt.reply, nil)
			assert.Equal(t, models.VerdictSourceHeuristic, got.Source)
			assert.Equal(t, tt.wantVerified, got.Verified)
			assert.Equal(t, tt.wantConf, got.Confidence)
			assert.Equal(t, tt.reply, got.Reason)
			assert.Nil(t, got.RewardTokens)
		})
	}
}

func TestParseVerdict_HeuristicReason(t *testing.T) {
	empty := ParseVerdict("   ", nil)
	assert.Equal(t, "AI verified", empty.Reason)
	assert.Equal(t, 80, empty.Confidence)

	long := strings.Repeat("é", 300)
	got := ParseVerdict(long, nil)
	assert.Equal(t, strings.Repeat("é", 200), got.Reason)
}

func TestParseVerdict_BackfillsChallengeReward(t *testing.T) {
	challenge := &models.Challenge{ID: "c1", RewardTokens: 50}

	tests := []struct {
		name  string
		reply string
		want  *int
	}{
		{"null reward", `{"verified":true,"confidence":91,"reason":"ok","reward_tokens":null}`, intPtr(50)},
		{"zero reward", `{"verified":true,"confidence":91,"reason":"ok","reward_tokens":0}`, intPtr(50)},
		{"negative reward", `{"verified":true,"confidence":91,"reason":"ok","reward_tokens":-3}`, intPtr(50)},
		{"oracle reward kept", `{"verified":true,"confidence":91,"reason":"ok","reward_tokens":20}`, intPtr(20)},
		{"heuristic verified", "confidence: 90", intPtr(50)},
		{"not verified stays empty", `{"verified":false,"confidence":91,"reason":"no","reward_tokens":null}`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseVerdict(tt.reply, challenge)
			assert.Equal(t, tt.want, got.RewardTokens)
		})
	}
}

func TestParseVerdict_NoBackfillWithoutChallengeReward(t *testing.T) {
	got := ParseVerdict(`{"verified":true,"confidence":91,"reason":"ok"}`, &models.Challenge{ID: "c1"})
	assert.Nil(t, got.RewardTokens)
}

func TestParseVerdict_OutOfRangeNumbersAreClamped(t *testing.T) {
	challenge := &models.Challenge{RewardTokens: 50}

	got := ParseVerdict(`{"verified":false,"confidence":1e20,"reason":"sure"}`, challenge)
	assert.Equal(t, models.VerdictSourceStrict, got.Source)
	assert.Equal(t, 100, got.Confidence)
	c := Classify(got.Verdict, challenge)
	assert.Equal(t, models.SubmissionStatusPending, c.Status)
	assert.Equal(t, 100, c.Confidence)

	got = ParseVerdict(`{"verified":false,"confidence":-1e20,"reason":"no"}`, challenge)
	assert.Equal(t, 0, got.Confidence)

	got = ParseVerdict(`{"verified":true,"confidence":90,"reason":"ok","reward_tokens":1e30}`, challenge)
	if assert.NotNil(t, got.RewardTokens) {
		assert.Equal(t, math.MaxInt32, *got.RewardTokens)
	}

	// a huge negative reward still falls back to the challenge reward
	got = ParseVerdict(`{"verified":true,"confidence":90,"reason":"ok","reward_tokens":-1e30}`, challenge)
	if assert.NotNil(t, got.RewardTokens) {
		assert.Equal(t, 50, *got.RewardTokens)
	}
}
