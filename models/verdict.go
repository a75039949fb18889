package models

// VerdictSource tells how a Verdict was obtained from the oracle reply.
type VerdictSource string

const (
	// VerdictSourceStrict means the reply decoded as the requested JSON contract.
	VerdictSourceStrict VerdictSource = "strict"
	// VerdictSourceHeuristic means the reply was free text and the verdict was guessed from it.
	VerdictSourceHeuristic VerdictSource = "heuristic"
)

// Verdict is the normalized oracle judgment. All fields are always populated;
// RewardTokens is nil when the oracle gave no amount and no back-fill applied.
type Verdict struct {
	Verified     bool   `json:"verified"`
	Confidence   int    `json:"confidence"`
	Reason       string `json:"reason"`
	RewardTokens *int   `json:"reward_tokens"`
}
