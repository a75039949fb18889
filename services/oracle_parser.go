package services

import (
	"bytes"
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"challenge-proof-system/models"

	"golang.org/x/text/unicode/norm"
)

const (
	fallbackConfidence        = 80
	fallbackVerifiedThreshold = 75
	fallbackReasonRunes       = 200
	fallbackReason            = "AI verified"
)

var confidencePattern = regexp.MustCompile(`(?i)confidence\s*[:=-]\s*(\d{1,3})`)

// ParsedVerdict is a Verdict tagged with how it was obtained.
type ParsedVerdict struct {
	models.Verdict
	Source models.VerdictSource
}

// Degraded reports whether the oracle ignored the requested output format.
func (p ParsedVerdict) Degraded() bool {
	return p.Source == models.VerdictSourceHeuristic
}

// wireVerdict mirrors the JSON contract the oracle is asked to return.
// Pointers distinguish "missing" from zero values.
type wireVerdict struct {
	Verified     *bool            `json:"verified"`
	Confidence   *float64         `json:"confidence"`
	Reason       *string          `json:"reason"`
	RewardTokens *json.RawMessage `json:"reward_tokens"`
}

// ParseVerdict turns an oracle reply into a Verdict. It never fails: replies
// that do not honour the JSON contract are read with a heuristic instead.
// When the verdict is positive but carries no reward, the challenge reward is used.
func ParseVerdict(reply string, challenge *models.Challenge) ParsedVerdict {
	parsed, ok := parseStrict(reply)
	if !ok {
		parsed = parseHeuristic(reply)
	}

	if parsed.Verified && (parsed.RewardTokens == nil || *parsed.RewardTokens <= 0) &&
		challenge != nil && challenge.RewardTokens > 0 {
		reward := challenge.RewardTokens
		parsed.RewardTokens = &reward
	}
	return parsed
}

func parseStrict(reply string) (ParsedVerdict, bool) {
	body := stripCodeFence(strings.TrimSpace(reply))
	if body == "" || body[0] != '{' {
		return ParsedVerdict{}, false
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	var w wireVerdict
	if err := dec.Decode(&w); err != nil {
		return ParsedVerdict{}, false
	}
	// trailing garbage after the object means the reply was not pure JSON
	if dec.More() {
		return ParsedVerdict{}, false
	}
	if w.Verified == nil || w.Confidence == nil || w.Reason == nil {
		return ParsedVerdict{}, false
	}
	if math.IsNaN(*w.Confidence) || math.IsInf(*w.Confidence, 0) {
		return ParsedVerdict{}, false
	}

	reward, ok := decodeReward(w.RewardTokens)
	if !ok {
		return ParsedVerdict{}, false
	}

	return ParsedVerdict{
		Verdict: models.Verdict{
			Verified:     *w.Verified,
			Confidence:   int(math.Round(clampFloat(*w.Confidence, 0, 100))),
			Reason:       *w.Reason,
			RewardTokens: reward,
		},
		Source: models.VerdictSourceStrict,
	}, true
}

// decodeReward accepts an absent field, null, or a number.
func decodeReward(raw *json.RawMessage) (*int, bool) {
	if raw == nil {
		return nil, true
	}
	text := strings.TrimSpace(string(*raw))
	if text == "null" {
		return nil, true
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, false
	}
	n := int(math.Round(clampFloat(f, -math.MaxInt32, math.MaxInt32)))
	return &n, true
}

// clampFloat bounds f before it is converted, since int(f) is undefined out of range.
func clampFloat(f, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, f))
}

func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		// drop the language tag line, e.g. ```json
		if !strings.Contains(s[:nl], "{") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func parseHeuristic(reply string) ParsedVerdict {
	confidence := fallbackConfidence
	normalized := norm.NFKC.String(reply)
	if m := confidencePattern.FindStringSubmatch(normalized); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			confidence = n
		}
	}

	reason := truncateRunes(reply, fallbackReasonRunes)
	if strings.TrimSpace(reason) == "" {
		reason = fallbackReason
	}

	return ParsedVerdict{
		Verdict: models.Verdict{
			Verified:   confidence >= fallbackVerifiedThreshold,
			Confidence: confidence,
			Reason:     reason,
		},
		Source: models.VerdictSourceHeuristic,
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
