// internal/services/fraud_detectors_test.go
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonytran1984vn/trustchecker/internal/config"
	"github.com/tonytran1984vn/trustchecker/internal/models"
)

func testFraudConfig() config.FraudConfig {
	return config.FraudConfig{
		HourlyScanThreshold:    10,
		BurstScanThreshold:     5,
		GeoDistanceKm:          500,
		DeviceProductThreshold: 3,
		ZScoreThreshold:        2.5,
	}
}

func floatPtr(f float64) *float64 { return &f }

func TestDetectorWeightsSumToOne(t *testing.T) {
	cfg := testFraudConfig()
	detectors := []Detector{
		NewRuleDetector(cfg),
		NewStatisticalDetector(cfg),
		NewPatternDetector(cfg),
	}

	var total float64
	for _, d := range detectors {
		total += d.Weight()
	}
	assert.InDelta(t, 1.0, total, 1e-9)
}

func TestRuleDetectorCleanScan(t *testing.T) {
	d := NewRuleDetector(testFraudConfig())

	result := d.Detect(ScanContext{
		CodeStatus:    models.CodeStatusActive,
		ProductStatus: models.ProductStatusActive,
	})

	assert.Zero(t, result.Score)
	assert.Empty(t, result.Alerts)
}

func TestRuleDetectorHighFrequency(t *testing.T) {
	d := NewRuleDetector(testFraudConfig())

	// At the threshold: no alert.
	result := d.Detect(ScanContext{HourlyScanCount: 10})
	assert.Zero(t, result.Score)

	// Above it: high-severity alert worth 0.4.
	result = d.Detect(ScanContext{HourlyScanCount: 11})
	assert.InDelta(t, 0.4, result.Score, 1e-9)
	require.Len(t, result.Alerts, 1)
	assert.Equal(t, models.AlertHighFrequencyScan, result.Alerts[0].Type)
	assert.Equal(t, models.SeverityHigh, result.Alerts[0].Severity)
}

func TestRuleDetectorBurst(t *testing.T) {
	d := NewRuleDetector(testFraudConfig())

	result := d.Detect(ScanContext{BurstScanCount: 6})
	assert.InDelta(t, 0.3, result.Score, 1e-9)
	require.Len(t, result.Alerts, 1)
	assert.Equal(t, models.AlertScanBurst, result.Alerts[0].Type)
	assert.Equal(t, models.SeverityCritical, result.Alerts[0].Severity)
}

func TestRuleDetectorRevokedCode(t *testing.T) {
	d := NewRuleDetector(testFraudConfig())

	result := d.Detect(ScanContext{CodeStatus: models.CodeStatusRevoked})
	assert.InDelta(t, 0.8, result.Score, 1e-9)
	require.Len(t, result.Alerts, 1)
	assert.Equal(t, models.AlertRevokedCode, result.Alerts[0].Type)
}

func TestRuleDetectorRecalledProduct(t *testing.T) {
	d := NewRuleDetector(testFraudConfig())

	result := d.Detect(ScanContext{ProductStatus: models.ProductStatusRecalled})
	assert.InDelta(t, 0.6, result.Score, 1e-9)
	require.Len(t, result.Alerts, 1)
	assert.Equal(t, models.AlertRecalledProduct, result.Alerts[0].Type)
}

func TestRuleDetectorScoreClampedToOne(t *testing.T) {
	d := NewRuleDetector(testFraudConfig())

	// All four rules fire: 0.4+0.3+0.8+0.6 clamps to 1.
	result := d.Detect(ScanContext{
		HourlyScanCount: 50,
		BurstScanCount:  20,
		CodeStatus:      models.CodeStatusRevoked,
		ProductStatus:   models.ProductStatusRecalled,
	})
	assert.Equal(t, 1.0, result.Score)
	assert.Len(t, result.Alerts, 4)
}

func TestStatisticalDetectorZScore(t *testing.T) {
	d := NewStatisticalDetector(testFraudConfig())

	// Flat history of 2 scans/day, then a 30-scan spike today.
	ctx := ScanContext{
		TotalRecentScans: 20,
		DailyCounts:      []int64{2, 2, 2, 2, 2, 3, 2},
		TodayCount:       30,
	}
	result := d.Detect(ctx)
	assert.InDelta(t, 0.5, result.Score, 1e-9)
	require.Len(t, result.Alerts, 1)
	assert.Equal(t, models.AlertStatisticalAnomaly, result.Alerts[0].Type)
	assert.Equal(t, models.SeverityMedium, result.Alerts[0].Severity)
}

func TestStatisticalDetectorNeedsHistory(t *testing.T) {
	d := NewStatisticalDetector(testFraudConfig())

	// Too few total scans.
	result := d.Detect(ScanContext{
		TotalRecentScans: 4,
		DailyCounts:      []int64{1, 1, 1, 1},
		TodayCount:       50,
	})
	assert.Zero(t, result.Score)

	// Too few distinct days.
	result = d.Detect(ScanContext{
		TotalRecentScans: 20,
		DailyCounts:      []int64{10, 10},
		TodayCount:       50,
	})
	assert.Zero(t, result.Score)

	// Zero variance never divides.
	result = d.Detect(ScanContext{
		TotalRecentScans: 20,
		DailyCounts:      []int64{5, 5, 5, 5},
		TodayCount:       50,
	})
	assert.Zero(t, result.Score)
}

func TestStatisticalDetectorDeviceAnomaly(t *testing.T) {
	d := NewStatisticalDetector(testFraudConfig())

	result := d.Detect(ScanContext{
		DeviceFingerprint:  "device-1",
		DeviceProductCount: 4,
	})
	assert.InDelta(t, 0.3, result.Score, 1e-9)
	require.Len(t, result.Alerts, 1)
	assert.Equal(t, models.AlertDeviceAnomaly, result.Alerts[0].Type)

	// No fingerprint, no device signal.
	result = d.Detect(ScanContext{DeviceProductCount: 10})
	assert.Zero(t, result.Score)
}

func TestPatternDetectorGeoVelocity(t *testing.T) {
	d := NewPatternDetector(testFraudConfig())
	now := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)

	// Paris scan 10 minutes after a Berlin scan (~880km): impossible travel.
	ctx := ScanContext{
		Latitude:  floatPtr(48.8566),
		Longitude: floatPtr(2.3522),
		LastLocatedScan: &LocatedScan{
			Latitude:  52.52,
			Longitude: 13.405,
			ScannedAt: now.Add(-10 * time.Minute),
		},
		Now: now,
	}
	result := d.Detect(ctx)
	assert.InDelta(t, 0.7, result.Score, 1e-9)
	require.Len(t, result.Alerts, 1)
	assert.Equal(t, models.AlertGeoVelocityAnomaly, result.Alerts[0].Type)
	assert.Equal(t, models.SeverityCritical, result.Alerts[0].Severity)

	// Same distance two hours later is plausible.
	ctx.LastLocatedScan.ScannedAt = now.Add(-2 * time.Hour)
	result = d.Detect(ctx)
	assert.Zero(t, result.Score)
}

func TestPatternDetectorNearbyScansPass(t *testing.T) {
	d := NewPatternDetector(testFraudConfig())
	now := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)

	// Paris to London is ~340km, under the 500km threshold.
	result := d.Detect(ScanContext{
		Latitude:  floatPtr(48.8566),
		Longitude: floatPtr(2.3522),
		LastLocatedScan: &LocatedScan{
			Latitude:  51.5074,
			Longitude: -0.1278,
			ScannedAt: now.Add(-10 * time.Minute),
		},
		Now: now,
	})
	assert.Zero(t, result.Score)
}

func TestPatternDetectorOffHours(t *testing.T) {
	d := NewPatternDetector(testFraudConfig())

	result := d.Detect(ScanContext{
		Now: time.Date(2026, 3, 1, 3, 30, 0, 0, time.UTC),
	})
	assert.InDelta(t, 0.1, result.Score, 1e-9)
	require.Len(t, result.Alerts, 1)
	assert.Equal(t, models.AlertOffHoursScan, result.Alerts[0].Type)
	assert.Equal(t, models.SeverityLow, result.Alerts[0].Severity)

	result = d.Detect(ScanContext{
		Now: time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC),
	})
	assert.Zero(t, result.Score)
}

func TestHaversineKm(t *testing.T) {
	// Paris to Berlin, known distance ~878km.
	d := HaversineKm(48.8566, 2.3522, 52.52, 13.405)
	assert.InDelta(t, 878, d, 10)

	assert.Zero(t, HaversineKm(48.8566, 2.3522, 48.8566, 2.3522))
}

func TestMeanStdDev(t *testing.T) {
	mean, stdDev := meanStdDev([]int64{2, 4, 4, 4, 5, 5, 7, 9})
	assert.InDelta(t, 5.0, mean, 1e-9)
	assert.InDelta(t, 2.0, stdDev, 1e-9)

	mean, stdDev = meanStdDev(nil)
	assert.Zero(t, mean)
	assert.Zero(t, stdDev)
}
