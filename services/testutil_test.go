package services

import (
	"path/filepath"
	"testing"

	"challenge-proof-system/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a migrated sqlite database in the test's temp dir. A single
// connection keeps concurrent tests from tripping over sqlite's write lock.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(
		&models.Challenge{},
		&models.Submission{},
		&models.LedgerBalance{},
		&models.LedgerCredit{},
		&models.UserProfile{},
	))
	return db
}

func intPtr(n int) *int { return &n }

// pngBytes is enough of a PNG for http.DetectContentType.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)
