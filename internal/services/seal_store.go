// internal/services/seal_store.go
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tonytran1984vn/trustchecker/internal/models"
)

// SealStore is the seal engine's view of the ledger store.
type SealStore interface {
	// Last returns the highest-indexed seal, or nil when the chain is empty.
	Last(ctx context.Context) (*models.Seal, error)
	Insert(ctx context.Context, seal *models.Seal) error
	// ListAscending returns up to limit seals in ascending block-index order.
	ListAscending(ctx context.Context, limit int) ([]models.Seal, error)
	ListDescending(ctx context.Context, limit int) ([]models.Seal, error)
	Count(ctx context.Context) (int64, error)
}

type gormSealStore struct {
	db *gorm.DB
}

func NewSealStore(db *gorm.DB) SealStore {
	return &gormSealStore{db: db}
}

func (s *gormSealStore) Last(ctx context.Context) (*models.Seal, error) {
	var seal models.Seal
	err := s.db.WithContext(ctx).Order("block_index DESC").First(&seal).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &seal, nil
}

func (s *gormSealStore) Insert(ctx context.Context, seal *models.Seal) error {
	return s.db.WithContext(ctx).Create(seal).Error
}

func (s *gormSealStore) ListAscending(ctx context.Context, limit int) ([]models.Seal, error) {
	var seals []models.Seal
	err := s.db.WithContext(ctx).Order("block_index ASC").Limit(limit).Find(&seals).Error
	return seals, err
}

func (s *gormSealStore) ListDescending(ctx context.Context, limit int) ([]models.Seal, error) {
	var seals []models.Seal
	err := s.db.WithContext(ctx).Order("block_index DESC").Limit(limit).Find(&seals).Error
	return seals, err
}

func (s *gormSealStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Seal{}).Count(&count).Error
	return count, err
}
