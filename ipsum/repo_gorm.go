// ipsum/repo_gorm.go
package ipsum

import (
	"context"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// GormCorpusStore reads categories and words through gorm. It does no
// caching of its own; put a CorpusCache in front of it.
type GormCorpusStore struct {
	db *gorm.DB
}

func (s *GormCorpusStore) SetDB(db *gorm.DB) { s.db = db }

// DB exposes the underlying handle, e.g. for closing the pool.
func (s *GormCorpusStore) DB() *gorm.DB { return s.db }

func NewPostgresCorpusStore(dsn string) (*GormCorpusStore, error) {
	return NewGormCorpusStore(postgres.Open(dsn))
}

func NewGormCorpusStore(dialector gorm.Dialector) (*GormCorpusStore, error) {
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("open corpus database: %w", err)
	}
	return &GormCorpusStore{db: db}, nil
}

// Categories selects type_id, name from types.
func (s *GormCorpusStore) Categories(ctx context.Context) ([]Category, error) {
	var rows []Category
	err := s.db.WithContext(ctx).
		Model(&Category{}).
		Select("type_id", "name").
		Order("type_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Words selects text, type_id from words where type_id is one of typeIDs.
func (s *GormCorpusStore) Words(ctx context.Context, typeIDs []int) ([]Word, error) {
	if len(typeIDs) == 0 {
		return nil, nil
	}
	var rows []Word
	err := s.db.WithContext(ctx).
		Model(&Word{}).
		Select("text", "type_id").
		Where("type_id IN ?", typeIDs).
		Order("word_id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Migrate creates or updates the types and words tables.
func (s *GormCorpusStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&Category{}, &Word{})
}

func (s *GormCorpusStore) AddCategories(ctx context.Context, rows []Category) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&rows).Error
}

func (s *GormCorpusStore) AddWords(ctx context.Context, rows []Word) error {
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).CreateInBatches(&rows, 500).Error
}

// Reset deletes every word and category row.
func (s *GormCorpusStore) Reset(ctx context.Context) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Word{}).Error; err != nil {
			return err
		}
		return tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Category{}).Error
	})
}
