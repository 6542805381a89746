// internal/services/fraud_service.go
package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/tonytran1984vn/trustchecker/internal/config"
	"github.com/tonytran1984vn/trustchecker/internal/events"
	"github.com/tonytran1984vn/trustchecker/internal/models"
)

// FraudService runs the independent detectors over one scan event and
// combines their scores into a single bounded fraud score.
type FraudService struct {
	db        *gorm.DB
	bus       *events.Bus
	config    config.FraudConfig
	detectors []Detector
}

type FactorContribution struct {
	Factor       string `json:"factor"`
	Contribution string `json:"contribution"`
}

type Explainability struct {
	TopFactors        []FactorContribution `json:"top_factors"`
	AlertCount        int                  `json:"alert_count"`
	SeverityBreakdown map[string]int       `json:"severity_breakdown"`
}

type FraudResult struct {
	FraudScore       float64             `json:"fraud_score"`
	Alerts           []models.FraudAlert `json:"alerts"`
	Factors          map[string]float64  `json:"factors"`
	Explainability   Explainability      `json:"explainability"`
	ProcessingTimeMs int64               `json:"processing_time_ms"`
}

func NewFraudService(db *gorm.DB, bus *events.Bus, cfg config.FraudConfig) *FraudService {
	return &FraudService{
		db:     db,
		bus:    bus,
		config: cfg,
		detectors: []Detector{
			NewRuleDetector(cfg),
			NewStatisticalDetector(cfg),
			NewPatternDetector(cfg),
		},
	}
}

// Analyze runs every detector over the scan, persists and broadcasts the
// alerts they raise, and returns the weighted composite plus explainability.
func (s *FraudService) Analyze(ctx context.Context, scan *models.ScanEvent) (*FraudResult, error) {
	startTime := time.Now()

	scanCtx, err := s.buildContext(ctx, scan)
	if err != nil {
		return nil, fmt.Errorf("failed to build scan context: %w", err)
	}

	factors := make(map[string]float64, len(s.detectors))
	var detectorAlerts []DetectorAlert
	var fraudScore float64

	for _, detector := range s.detectors {
		result := detector.Detect(scanCtx)
		factors[detector.Name()] = result.Score
		detectorAlerts = append(detectorAlerts, result.Alerts...)
		fraudScore += result.Score * detector.Weight()
	}
	fraudScore = math.Min(1, fraudScore)

	alerts := make([]models.FraudAlert, 0, len(detectorAlerts))
	for _, da := range detectorAlerts {
		alert := models.FraudAlert{
			ScanEventID: &scan.ID,
			ProductID:   scan.ProductID,
			AlertType:   da.Type,
			Severity:    da.Severity,
			Description: da.Description,
			Details:     models.JSONB(da.Details),
			Status:      models.AlertStatusOpen,
		}

		if err := s.db.WithContext(ctx).Create(&alert).Error; err != nil {
			logrus.WithError(err).WithField("scan_id", scan.ID).Error("Failed to persist fraud alert")
			continue
		}
		alerts = append(alerts, alert)

		s.bus.Publish(events.TypeFraudFlagged, map[string]interface{}{
			"alert_id":      alert.ID.String(),
			"scan_event_id": scan.ID.String(),
			"product_id":    uuidString(scan.ProductID),
			"type":          string(da.Type),
			"severity":      string(da.Severity),
			"description":   da.Description,
			"fraud_score":   fraudScore,
		})
	}

	return &FraudResult{
		FraudScore:       fraudScore,
		Alerts:           alerts,
		Factors:          factors,
		Explainability:   explain(factors, detectorAlerts),
		ProcessingTimeMs: time.Since(startTime).Milliseconds(),
	}, nil
}

// buildContext gathers the windowed aggregates the detectors consume. All
// queries are time-bounded.
func (s *FraudService) buildContext(ctx context.Context, scan *models.ScanEvent) (ScanContext, error) {
	now := time.Now()
	scanCtx := ScanContext{
		ScanID:            scan.ID,
		DeviceFingerprint: scan.DeviceFingerprint,
		Latitude:          scan.Latitude,
		Longitude:         scan.Longitude,
		Now:               now,
	}

	db := s.db.WithContext(ctx)

	if scan.CodeID != nil {
		scanCtx.CodeID = *scan.CodeID

		var code models.Code
		if err := db.First(&code, "id = ?", scan.CodeID).Error; err == nil {
			scanCtx.CodeStatus = code.Status
		}

		if err := db.Model(&models.ScanEvent{}).
			Where("code_id = ? AND scanned_at > ?", scan.CodeID, now.Add(-time.Hour)).
			Count(&scanCtx.HourlyScanCount).Error; err != nil {
			return scanCtx, err
		}

		if err := db.Model(&models.ScanEvent{}).
			Where("code_id = ? AND scanned_at > ?", scan.CodeID, now.Add(-5*time.Minute)).
			Count(&scanCtx.BurstScanCount).Error; err != nil {
			return scanCtx, err
		}

		var located models.ScanEvent
		err := db.
			Where("code_id = ? AND latitude IS NOT NULL AND id != ?", scan.CodeID, scan.ID).
			Order("scanned_at DESC").
			First(&located).Error
		if err == nil && located.Latitude != nil && located.Longitude != nil {
			scanCtx.LastLocatedScan = &LocatedScan{
				Latitude:  *located.Latitude,
				Longitude: *located.Longitude,
				ScannedAt: located.ScannedAt,
			}
		}
	}

	if scan.ProductID != nil {
		scanCtx.ProductID = *scan.ProductID

		var product models.Product
		if err := db.First(&product, "id = ?", scan.ProductID).Error; err == nil {
			scanCtx.ProductStatus = product.Status
		}

		if err := db.Model(&models.ScanEvent{}).
			Where("product_id = ? AND scanned_at > ?", scan.ProductID, now.AddDate(0, 0, -30)).
			Count(&scanCtx.TotalRecentScans).Error; err != nil {
			return scanCtx, err
		}

		var daily []struct {
			Day   time.Time
			Count int64
		}
		if err := db.Model(&models.ScanEvent{}).
			Select("DATE(scanned_at) as day, COUNT(*) as count").
			Where("product_id = ? AND scanned_at > ?", scan.ProductID, now.AddDate(0, 0, -30)).
			Group("DATE(scanned_at)").
			Scan(&daily).Error; err != nil {
			return scanCtx, err
		}
		for _, d := range daily {
			scanCtx.DailyCounts = append(scanCtx.DailyCounts, d.Count)
		}

		startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		if err := db.Model(&models.ScanEvent{}).
			Where("product_id = ? AND scanned_at >= ?", scan.ProductID, startOfDay).
			Count(&scanCtx.TodayCount).Error; err != nil {
			return scanCtx, err
		}
	}

	if scan.DeviceFingerprint != "" {
		if err := db.Model(&models.ScanEvent{}).
			Where("device_fingerprint = ? AND scanned_at > ?", scan.DeviceFingerprint, now.Add(-time.Hour)).
			Distinct("product_id").
			Count(&scanCtx.DeviceProductCount).Error; err != nil {
			return scanCtx, err
		}
	}

	return scanCtx, nil
}

// explain ranks factor contribution by magnitude and buckets alerts by
// severity.
func explain(factors map[string]float64, alerts []DetectorAlert) Explainability {
	top := make([]FactorContribution, 0, len(factors))
	for name, score := range factors {
		top = append(top, FactorContribution{
			Factor:       name,
			Contribution: fmt.Sprintf("%.1f%%", score*100),
		})
	}
	sort.Slice(top, func(i, j int) bool {
		return factors[top[i].Factor] > factors[top[j].Factor]
	})

	breakdown := map[string]int{
		"critical": 0,
		"high":     0,
		"medium":   0,
		"low":      0,
	}
	for _, a := range alerts {
		breakdown[string(a.Severity)]++
	}

	return Explainability{
		TopFactors:        top,
		AlertCount:        len(alerts),
		SeverityBreakdown: breakdown,
	}
}

func uuidString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
