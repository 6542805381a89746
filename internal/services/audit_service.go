// internal/services/audit_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tonytran1984vn/trustchecker/internal/models"
	"github.com/tonytran1984vn/trustchecker/internal/utils"
)

// ErrAlertNotOpen is returned when resolving an alert that does not exist or
// was already resolved.
var ErrAlertNotOpen = errors.New("alert not found or already resolved")

// AuditService serves the read-only audit and operations queries.
type AuditService struct {
	db *gorm.DB
}

type DashboardStats struct {
	TotalProducts    int64              `json:"total_products"`
	TotalScans       int64              `json:"total_scans"`
	TodayScans       int64              `json:"today_scans"`
	OpenAlerts       int64              `json:"open_alerts"`
	AvgTrustScore    int                `json:"avg_trust_score"`
	TotalSeals       int64              `json:"total_seals"`
	ScansByOutcome   map[string]int64   `json:"scans_by_outcome"`
	AlertsBySeverity map[string]int64   `json:"alerts_by_severity"`
	RecentActivity   []models.ScanEvent `json:"recent_activity"`
	ScanTrend        []DailyScanCount   `json:"scan_trend"`
}

type DailyScanCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}

type PublicCheck struct {
	Found        bool   `json:"found"`
	Name         string `json:"name,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	SKU          string `json:"sku,omitempty"`
	TrustScore   int    `json:"trust_score,omitempty"`
	TrustGrade   string `json:"trust_grade,omitempty"`
	TotalScans   int64  `json:"total_scans"`
	RecentScans  int64  `json:"recent_scans_30d"`
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// ScanHistory lists scan events, optionally filtered by product.
func (s *AuditService) ScanHistory(ctx context.Context, productID *uuid.UUID, params utils.PaginationParams) (utils.PaginationResult, error) {
	query := s.db.WithContext(ctx).Model(&models.ScanEvent{}).Preload("Product")
	if productID != nil {
		query = query.Where("product_id = ?", productID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return utils.PaginationResult{}, fmt.Errorf("failed to count scan events: %w", err)
	}

	var scans []models.ScanEvent
	if err := utils.ApplyPagination(query.Order("scanned_at DESC"), params).Find(&scans).Error; err != nil {
		return utils.PaginationResult{}, fmt.Errorf("failed to load scan events: %w", err)
	}

	return utils.BuildPaginationResult(params, total, scans), nil
}

// FraudAlerts lists alerts by status.
func (s *AuditService) FraudAlerts(ctx context.Context, status models.AlertStatus, limit int) ([]models.FraudAlert, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if status == "" {
		status = models.AlertStatusOpen
	}

	var alerts []models.FraudAlert
	err := s.db.WithContext(ctx).Preload("Product").
		Where("status = ?", status).
		Order("created_at DESC").
		Limit(limit).
		Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load fraud alerts: %w", err)
	}
	return alerts, nil
}

// ResolveAlert transitions an open alert to resolved.
func (s *AuditService) ResolveAlert(ctx context.Context, alertID uuid.UUID, resolvedBy string) error {
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).Model(&models.FraudAlert{}).
		Where("id = ? AND status = ?", alertID, models.AlertStatusOpen).
		Updates(map[string]interface{}{
			"status":      models.AlertStatusResolved,
			"resolved_by": resolvedBy,
			"resolved_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to resolve alert: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAlertNotOpen
	}
	return nil
}

// Dashboard aggregates the operations dashboard counters.
func (s *AuditService) Dashboard(ctx context.Context) (*DashboardStats, error) {
	db := s.db.WithContext(ctx)
	stats := &DashboardStats{
		ScansByOutcome:   map[string]int64{},
		AlertsBySeverity: map[string]int64{},
	}

	if err := db.Model(&models.Product{}).Count(&stats.TotalProducts).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.ScanEvent{}).Count(&stats.TotalScans).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if err := db.Model(&models.ScanEvent{}).
		Where("scanned_at >= ?", startOfDay).
		Count(&stats.TodayScans).Error; err != nil {
		return nil, err
	}

	if err := db.Model(&models.FraudAlert{}).
		Where("status = ?", models.AlertStatusOpen).
		Count(&stats.OpenAlerts).Error; err != nil {
		return nil, err
	}

	var avg struct{ Avg float64 }
	if err := db.Model(&models.Product{}).
		Select("COALESCE(AVG(trust_score), 0) as avg").
		Where("trust_score > 0").
		Scan(&avg).Error; err != nil {
		return nil, err
	}
	stats.AvgTrustScore = int(avg.Avg + 0.5)

	if err := db.Model(&models.Seal{}).Count(&stats.TotalSeals).Error; err != nil {
		return nil, err
	}

	var byOutcome []struct {
		Outcome string
		Count   int64
	}
	if err := db.Model(&models.ScanEvent{}).
		Select("outcome, COUNT(*) as count").
		Group("outcome").
		Scan(&byOutcome).Error; err != nil {
		return nil, err
	}
	for _, row := range byOutcome {
		stats.ScansByOutcome[row.Outcome] = row.Count
	}

	var bySeverity []struct {
		Severity string
		Count    int64
	}
	if err := db.Model(&models.FraudAlert{}).
		Select("severity, COUNT(*) as count").
		Where("status = ?", models.AlertStatusOpen).
		Group("severity").
		Scan(&bySeverity).Error; err != nil {
		return nil, err
	}
	for _, row := range bySeverity {
		stats.AlertsBySeverity[row.Severity] = row.Count
	}

	if err := db.Preload("Product").
		Order("scanned_at DESC").
		Limit(10).
		Find(&stats.RecentActivity).Error; err != nil {
		return nil, err
	}

	var trend []struct {
		Day   time.Time
		Count int64
	}
	if err := db.Model(&models.ScanEvent{}).
		Select("DATE(scanned_at) as day, COUNT(*) as count").
		Where("scanned_at > ?", now.AddDate(0, 0, -7)).
		Group("DATE(scanned_at)").
		Order("day ASC").
		Scan(&trend).Error; err != nil {
		return nil, err
	}
	for _, row := range trend {
		stats.ScanTrend = append(stats.ScanTrend, DailyScanCount{
			Day:   row.Day.Format("2006-01-02"),
			Count: row.Count,
		})
	}

	return stats, nil
}

// ProductCheck is the unauthenticated freemium trust lookup.
func (s *AuditService) ProductCheck(ctx context.Context, productID uuid.UUID) (*PublicCheck, error) {
	var product models.Product
	err := s.db.WithContext(ctx).First(&product, "id = ?", productID).Error
	if err == gorm.ErrRecordNotFound {
		return &PublicCheck{Found: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("product lookup failed: %w", err)
	}

	check := &PublicCheck{
		Found:        true,
		Name:         product.Name,
		Manufacturer: product.Manufacturer,
		SKU:          product.SKU,
		TrustScore:   product.TrustScore,
		TrustGrade:   GradeFor(product.TrustScore),
	}

	if err := s.db.WithContext(ctx).Model(&models.ScanEvent{}).
		Where("product_id = ?", productID).
		Count(&check.TotalScans).Error; err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Model(&models.ScanEvent{}).
		Where("product_id = ? AND scanned_at > ?", productID, time.Now().AddDate(0, 0, -30)).
		Count(&check.RecentScans).Error; err != nil {
		return nil, err
	}

	return check, nil
}
