package fakes

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	ipsum "github.com/grasp-labs/ds-spicyipsum-go/ipsum"
)

// NewDB opens dsn with sqlite, migrates the corpus tables and seeds them
// with the given categories and words.
func NewDB(t *testing.T, dsn string, categories []ipsum.Category, words []ipsum.Word) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&ipsum.Category{}, &ipsum.Word{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	if len(categories) > 0 {
		if err := db.Create(&categories).Error; err != nil {
			t.Fatalf("seed types: %v", err)
		}
	}
	if len(words) > 0 {
		if err := db.Create(&words).Error; err != nil {
			t.Fatalf("seed words: %v", err)
		}
	}
	return db
}

// MemoryDSN returns a shared-cache in-memory sqlite DSN unique to the test,
// so multiple opens see the same database.
func MemoryDSN(t *testing.T) string {
	return "file:" + t.Name() + "?mode=memory&cache=shared"
}
