// internal/services/code_service.go
package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tonytran1984vn/trustchecker/internal/models"
	"github.com/tonytran1984vn/trustchecker/internal/utils"
)

// CodeService manages the code lifecycle. Code values are immutable after
// creation; deleting a code with recorded scans is rejected because the scan
// ledger is append-only.
type CodeService struct {
	db *gorm.DB
}

func NewCodeService(db *gorm.DB) *CodeService {
	return &CodeService{db: db}
}

// GenerateCodes creates count new active codes for a product.
func (s *CodeService) GenerateCodes(ctx context.Context, productID uuid.UUID, count int) ([]models.Code, error) {
	if count < 1 || count > 1000 {
		return nil, fmt.Errorf("code count must be between 1 and 1000")
	}

	var product models.Product
	if err := s.db.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
		return nil, fmt.Errorf("product not found: %w", err)
	}

	codes := make([]models.Code, 0, count)
	for i := 0; i < count; i++ {
		value, err := utils.GenerateCodeValue()
		if err != nil {
			return nil, fmt.Errorf("failed to generate code value: %w", err)
		}
		codes = append(codes, models.Code{
			ProductID: productID,
			Value:     value,
			Status:    models.CodeStatusActive,
		})
	}

	if err := s.db.WithContext(ctx).Create(&codes).Error; err != nil {
		return nil, fmt.Errorf("failed to persist codes: %w", err)
	}

	return codes, nil
}

func (s *CodeService) GetCode(ctx context.Context, codeID uuid.UUID) (*models.Code, error) {
	var code models.Code
	if err := s.db.WithContext(ctx).Preload("Product").First(&code, "id = ?", codeID).Error; err != nil {
		return nil, fmt.Errorf("code not found: %w", err)
	}
	return &code, nil
}

// RevokeCode marks a code revoked. Subsequent scans of a revoked code yield
// the revoked outcome unconditionally.
func (s *CodeService) RevokeCode(ctx context.Context, codeID uuid.UUID) (*models.Code, error) {
	code, err := s.GetCode(ctx, codeID)
	if err != nil {
		return nil, err
	}

	if code.Status == models.CodeStatusDeleted {
		return nil, fmt.Errorf("cannot revoke a deleted code")
	}

	if err := s.db.WithContext(ctx).Model(code).Update("status", models.CodeStatusRevoked).Error; err != nil {
		return nil, fmt.Errorf("failed to revoke code: %w", err)
	}
	code.Status = models.CodeStatusRevoked

	return code, nil
}

// DeleteCode removes a code that has never been scanned. A code with scan
// records cannot be deleted.
func (s *CodeService) DeleteCode(ctx context.Context, codeID uuid.UUID) error {
	code, err := s.GetCode(ctx, codeID)
	if err != nil {
		return err
	}

	var scanCount int64
	if err := s.db.WithContext(ctx).Model(&models.ScanEvent{}).
		Where("code_id = ?", codeID).
		Count(&scanCount).Error; err != nil {
		return fmt.Errorf("failed to count scan events: %w", err)
	}
	if scanCount > 0 {
		return fmt.Errorf("cannot delete code with %d recorded scan(s)", scanCount)
	}

	if err := s.db.WithContext(ctx).Model(code).Update("status", models.CodeStatusDeleted).Error; err != nil {
		return fmt.Errorf("failed to mark code deleted: %w", err)
	}

	if err := s.db.WithContext(ctx).Delete(code).Error; err != nil {
		return fmt.Errorf("failed to delete code: %w", err)
	}

	return nil
}
