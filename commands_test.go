package main

import (
	"context"
	"path/filepath"
	"testing"

	"challenge-proof-system/models"
	"challenge-proof-system/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const seedYAML = `
challenges:
  - title: Plant a tree
    description: Any native species.
    reward_tokens: 50
    reward_xp: 30
  - title: Bike to work
    reward_tokens: 20
`

func TestSeedChallengesLastBecomesCurrent(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "seed.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Challenge{}))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	var seed seedFile
	require.NoError(t, yaml.Unmarshal([]byte(seedYAML), &seed))
	require.Len(t, seed.Challenges, 2)
	assert.Equal(t, 30, seed.Challenges[0].RewardXP)

	repo := services.NewChallengeService(db)
	require.NoError(t, seedChallenges(context.Background(), repo, seed.Challenges, zaptest.NewLogger(t)))

	current, err := repo.GetCurrent(context.Background())
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, "Bike to work", current.Title)
}

func TestRootCommandHasSubcommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"serve", "reconcile", "seed-challenges"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, cmd.Name())
	}
}
