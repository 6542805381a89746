// internal/services/trust_service.go
package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tonytran1984vn/trustchecker/internal/database"
	"github.com/tonytran1984vn/trustchecker/internal/events"
	"github.com/tonytran1984vn/trustchecker/internal/models"
)

// Factor weights of the composite trust score.
const (
	weightFraud       = 0.35
	weightConsistency = 0.25
	weightCompliance  = 0.20
	weightHistory     = 0.20
)

// complianceFields is the fixed required-field set of the compliance factor.
var complianceFields = []string{"name", "sku", "manufacturer", "batch_number", "origin_country", "category"}

// TrustService derives the composite, explainable 0-100 trust score of a
// product from fraud likelihood plus historical signals.
type TrustService struct {
	db  *gorm.DB
	bus *events.Bus
}

type TrustFactors struct {
	Fraud       float64 `json:"fraud"`
	Consistency float64 `json:"consistency"`
	Compliance  float64 `json:"compliance"`
	History     float64 `json:"history"`
}

type TrustResult struct {
	Score       int          `json:"score"`
	Grade       string       `json:"grade"`
	Factors     TrustFactors `json:"factors"`
	Explanation models.JSONB `json:"explanation"`
}

func NewTrustService(db *gorm.DB, bus *events.Bus) *TrustService {
	return &TrustService{db: db, bus: bus}
}

// Calculate computes the four factors, writes an immutable score record,
// moves the product's denormalized score pointer, and publishes the update.
func (s *TrustService) Calculate(ctx context.Context, productID uuid.UUID, fraudScore float64) (*TrustResult, error) {
	db := s.db.WithContext(ctx)

	var product models.Product
	if err := db.First(&product, "id = ?", productID).Error; err != nil {
		return nil, fmt.Errorf("product not found: %w", err)
	}

	consistency, err := s.consistencyFactor(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute consistency factor: %w", err)
	}

	history, err := s.historyFactor(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute history factor: %w", err)
	}

	factors := TrustFactors{
		Fraud:       math.Max(0, 1-fraudScore),
		Consistency: consistency,
		Compliance:  ComplianceFactor(&product),
		History:     history,
	}

	score := CompositeScore(factors)
	grade := GradeFor(score)
	explanation := explainFactors(factors)

	record := models.TrustScoreRecord{
		ProductID:         productID,
		Score:             score,
		FraudFactor:       factors.Fraud,
		ConsistencyFactor: factors.Consistency,
		ComplianceFactor:  factors.Compliance,
		HistoryFactor:     factors.History,
		Explanation:       explanation,
	}

	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		if err := tx.WithContext(ctx).Create(&record).Error; err != nil {
			return fmt.Errorf("failed to persist trust score record: %w", err)
		}
		if err := tx.WithContext(ctx).Model(&models.Product{}).
			Where("id = ?", productID).
			Update("trust_score", score).Error; err != nil {
			return fmt.Errorf("failed to update product trust score: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(events.TypeTrustUpdated, map[string]interface{}{
		"product_id": productID.String(),
		"score":      score,
		"grade":      grade,
		"factors": map[string]interface{}{
			"fraud":       factors.Fraud,
			"consistency": factors.Consistency,
			"compliance":  factors.Compliance,
			"history":     factors.History,
		},
	})

	return &TrustResult{
		Score:       score,
		Grade:       grade,
		Factors:     factors,
		Explanation: explanation,
	}, nil
}

// History returns the most recent trust score records of a product.
func (s *TrustService) History(ctx context.Context, productID uuid.UUID, limit int) ([]models.TrustScoreRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	var records []models.TrustScoreRecord
	err := s.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// consistencyFactor is the fraction of the product's scans in the trailing 30
// days with outcome valid. New products default to 0.9.
func (s *TrustService) consistencyFactor(ctx context.Context, productID uuid.UUID) (float64, error) {
	var rows []struct {
		Outcome models.ScanOutcome
		Count   int64
	}
	err := s.db.WithContext(ctx).Model(&models.ScanEvent{}).
		Select("outcome, COUNT(*) as count").
		Where("product_id = ? AND scanned_at > NOW() - INTERVAL '30 days'", productID).
		Group("outcome").
		Scan(&rows).Error
	if err != nil {
		return 0, err
	}

	var total, valid int64
	for _, r := range rows {
		total += r.Count
		if r.Outcome == models.ScanOutcomeValid {
			valid = r.Count
		}
	}

	return ConsistencyFactor(valid, total), nil
}

// historyFactor penalizes fraud alerts in the trailing 90 days weighted by
// severity.
func (s *TrustService) historyFactor(ctx context.Context, productID uuid.UUID) (float64, error) {
	var weighted struct {
		Total int64
	}
	err := s.db.WithContext(ctx).Model(&models.FraudAlert{}).
		Select("COALESCE(SUM(CASE WHEN severity = 'critical' THEN 3 WHEN severity = 'high' THEN 2 ELSE 1 END), 0) as total").
		Where("product_id = ? AND created_at > NOW() - INTERVAL '90 days'", productID).
		Scan(&weighted).Error
	if err != nil {
		return 0, err
	}

	return HistoryFactor(weighted.Total), nil
}

// ConsistencyFactor returns valid/total, or the 0.9 benefit-of-the-doubt
// default when no scans exist yet.
func ConsistencyFactor(valid, total int64) float64 {
	if total == 0 {
		return 0.9
	}
	return float64(valid) / float64(total)
}

// ComplianceFactor is the filled fraction of the required field set, with a
// +0.1 bonus (capped at 1.0) for active products.
func ComplianceFactor(product *models.Product) float64 {
	if product == nil {
		return 0
	}

	values := map[string]string{
		"name":           product.Name,
		"sku":            product.SKU,
		"manufacturer":   product.Manufacturer,
		"batch_number":   product.BatchNumber,
		"origin_country": product.OriginCountry,
		"category":       product.Category,
	}

	var filled int
	for _, field := range complianceFields {
		if strings.TrimSpace(values[field]) != "" {
			filled++
		}
	}
	compliance := float64(filled) / float64(len(complianceFields))

	if product.Status == models.ProductStatusActive {
		compliance = math.Min(1, compliance+0.1)
	}

	return compliance
}

// HistoryFactor maps a severity-weighted alert count to [0,1]. A clean
// history yields 1.0.
func HistoryFactor(weightedAlertCount int64) float64 {
	if weightedAlertCount <= 0 {
		return 1.0
	}
	penalty := math.Min(1, float64(weightedAlertCount)*0.05)
	return math.Max(0, 1-penalty)
}

// CompositeScore rounds the weighted factor sum into [0,100].
func CompositeScore(f TrustFactors) int {
	raw := f.Fraud*weightFraud +
		f.Consistency*weightConsistency +
		f.Compliance*weightCompliance +
		f.History*weightHistory
	return int(math.Round(raw * 100))
}

// GradeFor maps a composite score to a letter grade.
func GradeFor(score int) string {
	switch {
	case score >= 90:
		return "A+"
	case score >= 80:
		return "A"
	case score >= 70:
		return "B"
	case score >= 60:
		return "C"
	case score >= 50:
		return "D"
	default:
		return "F"
	}
}

func explainFactors(f TrustFactors) models.JSONB {
	fraudDesc := "Significant fraud risk detected"
	if f.Fraud > 0.8 {
		fraudDesc = "No fraud signals detected"
	} else if f.Fraud > 0.5 {
		fraudDesc = "Minor fraud indicators present"
	}

	consistencyDesc := "Irregular scan patterns detected"
	if f.Consistency > 0.8 {
		consistencyDesc = "Scan patterns are consistent"
	}

	complianceDesc := "Missing compliance data"
	if f.Compliance > 0.8 {
		complianceDesc = "Product data is complete and compliant"
	}

	historyDesc := "Historical anomalies found"
	if f.History > 0.8 {
		historyDesc = "Clean historical record"
	}

	return models.JSONB{
		"fraud_factor": map[string]interface{}{
			"value":       fmt.Sprintf("%.1f", f.Fraud*100),
			"weight":      weightFraud,
			"description": fraudDesc,
		},
		"consistency_factor": map[string]interface{}{
			"value":       fmt.Sprintf("%.1f", f.Consistency*100),
			"weight":      weightConsistency,
			"description": consistencyDesc,
		},
		"compliance_factor": map[string]interface{}{
			"value":       fmt.Sprintf("%.1f", f.Compliance*100),
			"weight":      weightCompliance,
			"description": complianceDesc,
		},
		"history_factor": map[string]interface{}{
			"value":       fmt.Sprintf("%.1f", f.History*100),
			"weight":      weightHistory,
			"description": historyDesc,
		},
	}
}
