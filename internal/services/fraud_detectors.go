// internal/services/fraud_detectors.go
package services

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/tonytran1984vn/trustchecker/internal/config"
	"github.com/tonytran1984vn/trustchecker/internal/models"
)

// LocatedScan is the most recent prior scan of the same code that carried
// coordinates.
type LocatedScan struct {
	Latitude  float64
	Longitude float64
	ScannedAt time.Time
}

// ScanContext carries everything a detector needs, pre-aggregated from the
// ledger store. Detectors never touch storage themselves, which keeps them
// independent and testable in isolation.
type ScanContext struct {
	ScanID            uuid.UUID
	CodeID            uuid.UUID
	ProductID         uuid.UUID
	CodeStatus        models.CodeStatus
	ProductStatus     models.ProductStatus
	DeviceFingerprint string
	Latitude          *float64
	Longitude         *float64

	HourlyScanCount    int64
	BurstScanCount     int64
	TotalRecentScans   int64
	DailyCounts        []int64
	TodayCount         int64
	DeviceProductCount int64
	LastLocatedScan    *LocatedScan

	Now time.Time
}

type DetectorAlert struct {
	Type        models.AlertType
	Severity    models.AlertSeverity
	Description string
	Details     map[string]interface{}
}

type DetectorResult struct {
	Score  float64
	Alerts []DetectorAlert
}

// Detector is one independent fraud detection strategy. A detector that
// cannot compute (insufficient history, missing inputs) contributes a zero
// score rather than failing the analysis.
type Detector interface {
	Name() string
	Weight() float64
	Detect(ctx ScanContext) DetectorResult
}

// RuleDetector applies fixed frequency and status rules.
type RuleDetector struct {
	config config.FraudConfig
}

func NewRuleDetector(cfg config.FraudConfig) *RuleDetector {
	return &RuleDetector{config: cfg}
}

func (d *RuleDetector) Name() string    { return "rules" }
func (d *RuleDetector) Weight() float64 { return 0.40 }

func (d *RuleDetector) Detect(ctx ScanContext) DetectorResult {
	var result DetectorResult

	if ctx.HourlyScanCount > d.config.HourlyScanThreshold {
		result.Score += 0.4
		result.Alerts = append(result.Alerts, DetectorAlert{
			Type:     models.AlertHighFrequencyScan,
			Severity: models.SeverityHigh,
			Description: fmt.Sprintf("Code scanned %d times in the last hour (threshold: %d)",
				ctx.HourlyScanCount, d.config.HourlyScanThreshold),
			Details: map[string]interface{}{
				"count":     ctx.HourlyScanCount,
				"threshold": d.config.HourlyScanThreshold,
			},
		})
	}

	if ctx.BurstScanCount > d.config.BurstScanThreshold {
		result.Score += 0.3
		result.Alerts = append(result.Alerts, DetectorAlert{
			Type:        models.AlertScanBurst,
			Severity:    models.SeverityCritical,
			Description: fmt.Sprintf("Burst detected: %d scans in 5 minutes", ctx.BurstScanCount),
			Details:     map[string]interface{}{"count": ctx.BurstScanCount},
		})
	}

	if ctx.CodeStatus == models.CodeStatusRevoked {
		result.Score += 0.8
		result.Alerts = append(result.Alerts, DetectorAlert{
			Type:        models.AlertRevokedCode,
			Severity:    models.SeverityCritical,
			Description: "Attempted scan of a revoked code",
			Details:     map[string]interface{}{"code_status": string(ctx.CodeStatus)},
		})
	}

	if ctx.ProductStatus == models.ProductStatusRecalled {
		result.Score += 0.6
		result.Alerts = append(result.Alerts, DetectorAlert{
			Type:        models.AlertRecalledProduct,
			Severity:    models.SeverityHigh,
			Description: "Scan of a recalled product",
			Details:     map[string]interface{}{"product_status": string(ctx.ProductStatus)},
		})
	}

	result.Score = math.Min(1, result.Score)
	return result
}

// StatisticalDetector flags deviations from the product's historical scan
// rate and device fingerprints spread across too many products.
type StatisticalDetector struct {
	config config.FraudConfig
}

func NewStatisticalDetector(cfg config.FraudConfig) *StatisticalDetector {
	return &StatisticalDetector{config: cfg}
}

func (d *StatisticalDetector) Name() string    { return "statistical" }
func (d *StatisticalDetector) Weight() float64 { return 0.35 }

func (d *StatisticalDetector) Detect(ctx ScanContext) DetectorResult {
	var result DetectorResult

	// The z-score is only meaningful with enough history.
	if ctx.TotalRecentScans > 5 && len(ctx.DailyCounts) > 3 {
		mean, stdDev := meanStdDev(ctx.DailyCounts)
		if stdDev > 0 {
			zScore := (float64(ctx.TodayCount) - mean) / stdDev
			if zScore > d.config.ZScoreThreshold {
				result.Score += 0.5
				result.Alerts = append(result.Alerts, DetectorAlert{
					Type:     models.AlertStatisticalAnomaly,
					Severity: models.SeverityMedium,
					Description: fmt.Sprintf("Scan frequency z-score %.2f exceeds threshold %.1f",
						zScore, d.config.ZScoreThreshold),
					Details: map[string]interface{}{
						"z_score":     zScore,
						"mean":        mean,
						"std_dev":     stdDev,
						"today_count": ctx.TodayCount,
					},
				})
			}
		}
	}

	if ctx.DeviceFingerprint != "" && ctx.DeviceProductCount > d.config.DeviceProductThreshold {
		result.Score += 0.3
		result.Alerts = append(result.Alerts, DetectorAlert{
			Type:     models.AlertDeviceAnomaly,
			Severity: models.SeverityMedium,
			Description: fmt.Sprintf("Single device scanned %d different products in 1 hour",
				ctx.DeviceProductCount),
			Details: map[string]interface{}{"unique_products": ctx.DeviceProductCount},
		})
	}

	result.Score = math.Min(1, result.Score)
	return result
}

// PatternDetector checks geospatial and temporal scan patterns.
type PatternDetector struct {
	config config.FraudConfig
}

func NewPatternDetector(cfg config.FraudConfig) *PatternDetector {
	return &PatternDetector{config: cfg}
}

func (d *PatternDetector) Name() string    { return "patterns" }
func (d *PatternDetector) Weight() float64 { return 0.25 }

func (d *PatternDetector) Detect(ctx ScanContext) DetectorResult {
	var result DetectorResult

	// Geo-velocity: same code scanned from far apart locations quickly.
	if ctx.Latitude != nil && ctx.Longitude != nil && ctx.LastLocatedScan != nil {
		distance := HaversineKm(*ctx.Latitude, *ctx.Longitude,
			ctx.LastLocatedScan.Latitude, ctx.LastLocatedScan.Longitude)
		elapsed := ctx.Now.Sub(ctx.LastLocatedScan.ScannedAt).Hours()

		if elapsed < 1 && distance > d.config.GeoDistanceKm {
			result.Score += 0.7
			result.Alerts = append(result.Alerts, DetectorAlert{
				Type:     models.AlertGeoVelocityAnomaly,
				Severity: models.SeverityCritical,
				Description: fmt.Sprintf("Code scanned %.0fkm apart within %.0f minutes",
					distance, elapsed*60),
				Details: map[string]interface{}{
					"distance_km": distance,
					"time_hours":  elapsed,
				},
			})
		}
	}

	// Scans between 02:00 and 05:59 are a low-severity curiosity signal.
	hour := ctx.Now.Hour()
	if hour >= 2 && hour <= 5 {
		result.Score += 0.1
		result.Alerts = append(result.Alerts, DetectorAlert{
			Type:        models.AlertOffHoursScan,
			Severity:    models.SeverityLow,
			Description: fmt.Sprintf("Scan at unusual hour: %d:00", hour),
			Details:     map[string]interface{}{"hour": hour},
		})
	}

	result.Score = math.Min(1, result.Score)
	return result
}

// HaversineKm is the great-circle distance between two coordinates in km.
func HaversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadiusKm = 6371

	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*
			math.Pow(math.Sin(dLon/2), 2)

	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// meanStdDev returns the mean and population standard deviation.
func meanStdDev(counts []int64) (float64, float64) {
	if len(counts) == 0 {
		return 0, 0
	}

	var sum float64
	for _, c := range counts {
		sum += float64(c)
	}
	mean := sum / float64(len(counts))

	var sqSum float64
	for _, c := range counts {
		sqSum += math.Pow(float64(c)-mean, 2)
	}

	return mean, math.Sqrt(sqSum / float64(len(counts)))
}
