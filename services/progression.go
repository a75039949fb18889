package services

import (
	"context"
	"math"
	"sort"

	"challenge-proof-system/models"

	"go.uber.org/zap"
)

// LevelConfig: XP needed for *next* level (e.g., level 1 → 2 needs BaseXPPerLevel * 1^1.2)
const BaseXPPerLevel = 100

// xpForNextLevel returns XP required to reach level+1 from current level
func xpForNextLevel(currentLevel int) int64 {
	if currentLevel < 1 {
		currentLevel = 1
	}
	return int64(float64(BaseXPPerLevel) * math.Pow(float64(currentLevel), 1.2))
}

// levelThreshold is the total XP at which currentLevel rolls over.
func levelThreshold(currentLevel int) int64 {
	return int64(BaseXPPerLevel)*int64(currentLevel) + xpForNextLevel(currentLevel)
}

// RankThresholds: levels required before rank-up
var RankThresholds = map[int]int{ // rank → min level
	1: 1,   // Seedling (start)
	2: 10,  // Sprout
	3: 25,  // Sapling
	4: 50,  // Grove
	5: 100, // Forest
}

var rankNames = map[int]string{1: "seedling", 2: "sprout", 3: "sapling", 4: "grove", 5: "forest"}

func determineRank(level int) int {
	for rank := 5; rank >= 1; rank-- {
		if level >= RankThresholds[rank] {
			return rank
		}
	}
	return 1
}

// maxLevel keeps levelThreshold inside int64.
const maxLevel = 100_000_000_000_000

// LevelForXP derives the level from accumulated XP. Levels are not stored;
// the ledger only keeps the XP total. Thresholds grow monotonically, so the
// level is found by binary search.
func LevelForXP(totalXP int64) int {
	return sort.Search(maxLevel, func(i int) bool {
		return totalXP < levelThreshold(i+1)
	}) + 1
}

// BalanceView is the ledger balance plus the progression derived from it.
type BalanceView struct {
	models.LedgerBalance
	Level         int    `json:"level"`
	Rank          int    `json:"rank"`
	RankName      string `json:"rank_name"`
	XPToNextLevel int64  `json:"xp_to_next_level"`
}

func NewBalanceView(b *models.LedgerBalance) BalanceView {
	level := LevelForXP(b.XP)
	rank := determineRank(level)
	return BalanceView{
		LedgerBalance: *b,
		Level:         level,
		Rank:          rank,
		RankName:      rankNames[rank],
		XPToNextLevel: max(levelThreshold(level)-b.XP, 0),
	}
}

// BalanceReader is the read side of the ledger.
type BalanceReader interface {
	Balance(ctx context.Context, userID string) (*models.LedgerBalance, error)
}

// ProgressionService serves the balance view. Outstanding credits for the
// user are reconciled first so a crash between persist and credit never shows
// up as a missing reward.
type ProgressionService struct {
	ledger     BalanceReader
	reconciler *CreditReconciler
	log        *zap.Logger
}

func NewProgressionService(ledger BalanceReader, reconciler *CreditReconciler, log *zap.Logger) *ProgressionService {
	return &ProgressionService{ledger: ledger, reconciler: reconciler, log: log}
}

func (s *ProgressionService) GetBalance(ctx context.Context, userID string) (*BalanceView, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	if s.reconciler != nil {
		if _, err := s.reconciler.ReconcileUser(ctx, userID); err != nil {
			s.log.Warn("[PROGRESSION] reconcile before balance read failed",
				zap.String("user_id", userID), zap.Error(err))
		}
	}
	b, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	view := NewBalanceView(b)
	return &view, nil
}
