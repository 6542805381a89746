// internal/services/verification_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonytran1984vn/trustchecker/internal/models"
)

func TestResolveOutcome(t *testing.T) {
	tests := []struct {
		name       string
		priorCount int
		fraudScore float64
		codeStatus models.CodeStatus
		want       models.ScanOutcome
	}{
		{"first clean scan", 0, 0.0, models.CodeStatusActive, models.ScanOutcomeValid},
		{"one prior scan", 1, 0.0, models.CodeStatusActive, models.ScanOutcomeWarning},
		{"two prior scans", 2, 0.0, models.CodeStatusActive, models.ScanOutcomeWarning},
		{"three prior scans", 3, 0.0, models.CodeStatusActive, models.ScanOutcomeSuspicious},
		{"many prior scans", 10, 0.0, models.CodeStatusActive, models.ScanOutcomeSuspicious},
		{"high fraud on first scan", 0, 0.9, models.CodeStatusActive, models.ScanOutcomeSuspicious},
		{"high fraud overrides warning", 1, 0.8, models.CodeStatusActive, models.ScanOutcomeSuspicious},
		{"moderate fraud on first scan", 0, 0.5, models.CodeStatusActive, models.ScanOutcomeWarning},
		{"moderate fraud on repeat keeps replay outcome", 1, 0.5, models.CodeStatusActive, models.ScanOutcomeWarning},
		{"fraud at threshold is not high", 0, 0.7, models.CodeStatusActive, models.ScanOutcomeWarning},
		{"fraud at lower threshold is clean", 0, 0.4, models.CodeStatusActive, models.ScanOutcomeValid},
		{"revoked code wins over clean scan", 0, 0.0, models.CodeStatusRevoked, models.ScanOutcomeRevoked},
		{"revoked code wins over high fraud", 5, 0.95, models.CodeStatusRevoked, models.ScanOutcomeRevoked},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, message := ResolveOutcome(tt.priorCount, tt.fraudScore, tt.codeStatus)
			assert.Equal(t, tt.want, outcome)
			assert.NotEmpty(t, message)
		})
	}
}

func TestBuildScanVerificationFirstScan(t *testing.T) {
	sv := buildScanVerification(true, nil)
	assert.True(t, sv.IsFirstScan)
	assert.Equal(t, 1, sv.TotalScans)
	assert.Nil(t, sv.FirstScannedAt)
	assert.Empty(t, sv.RiskLevel)
}

func TestBuildScanVerificationRepeatScan(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	priors := []models.ScanEvent{
		{ScannedAt: base, IPAddress: "10.0.0.1", GeoCity: "Hamburg", GeoCountry: "DE"},
		{ScannedAt: base.Add(time.Hour)},
	}

	sv := buildScanVerification(false, priors)
	assert.False(t, sv.IsFirstScan)
	assert.Equal(t, 3, sv.TotalScans)
	require.NotNil(t, sv.FirstScannedAt)
	assert.Equal(t, base, *sv.FirstScannedAt)
	assert.Equal(t, "10.0.0.1", sv.FirstScannedFromIP)
	assert.Equal(t, "Hamburg, DE", sv.FirstScannedLocation)
	assert.Equal(t, "medium", sv.RiskLevel)
	assert.Len(t, sv.PreviousScanTimes, 2)
}

func TestBuildScanVerificationRiskLevels(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	priorsOf := func(n int) []models.ScanEvent {
		out := make([]models.ScanEvent, n)
		for i := range out {
			out[i] = models.ScanEvent{ScannedAt: base.Add(time.Duration(i) * time.Minute)}
		}
		return out
	}

	assert.Equal(t, "medium", buildScanVerification(false, priorsOf(2)).RiskLevel)
	assert.Equal(t, "high", buildScanVerification(false, priorsOf(3)).RiskLevel)
	assert.Equal(t, "high", buildScanVerification(false, priorsOf(4)).RiskLevel)
	assert.Equal(t, "very_high", buildScanVerification(false, priorsOf(5)).RiskLevel)
}

func TestSummarizeAlerts(t *testing.T) {
	alerts := []models.FraudAlert{
		{AlertType: models.AlertScanBurst, Severity: models.SeverityCritical, Description: "burst"},
		{AlertType: models.AlertOffHoursScan, Severity: models.SeverityLow, Description: "late"},
	}

	summaries := summarizeAlerts(alerts)
	require.Len(t, summaries, 2)
	assert.Equal(t, models.AlertScanBurst, summaries[0].Type)
	assert.Equal(t, models.SeverityCritical, summaries[0].Severity)
	assert.Equal(t, "late", summaries[1].Description)

	assert.Empty(t, summarizeAlerts(nil))
}
