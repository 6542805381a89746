// internal/services/trust_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tonytran1984vn/trustchecker/internal/models"
)

func TestConsistencyFactor(t *testing.T) {
	// No scan history defaults to benefit of the doubt.
	assert.Equal(t, 0.9, ConsistencyFactor(0, 0))

	assert.Equal(t, 1.0, ConsistencyFactor(10, 10))
	assert.Equal(t, 0.5, ConsistencyFactor(5, 10))
	assert.Equal(t, 0.0, ConsistencyFactor(0, 10))
}

func TestComplianceFactor(t *testing.T) {
	assert.Zero(t, ComplianceFactor(nil))

	complete := &models.Product{
		Name:          "Aspirin 500mg",
		SKU:           "ASP-500",
		Manufacturer:  "Pharma Corp",
		BatchNumber:   "B-2026-001",
		OriginCountry: "DE",
		Category:      "pharmaceuticals",
		Status:        models.ProductStatusActive,
	}
	// All six fields plus the active bonus cap at 1.0.
	assert.Equal(t, 1.0, ComplianceFactor(complete))

	partial := &models.Product{
		Name:   "Aspirin 500mg",
		SKU:    "ASP-500",
		Status: models.ProductStatusInactive,
	}
	assert.InDelta(t, 2.0/6.0, ComplianceFactor(partial), 1e-9)

	// The active bonus applies on top of the filled fraction.
	partial.Status = models.ProductStatusActive
	assert.InDelta(t, 2.0/6.0+0.1, ComplianceFactor(partial), 1e-9)

	// Whitespace does not count as filled.
	blank := &models.Product{Name: "   ", Status: models.ProductStatusInactive}
	assert.Zero(t, ComplianceFactor(blank))
}

func TestHistoryFactor(t *testing.T) {
	assert.Equal(t, 1.0, HistoryFactor(0))
	assert.Equal(t, 1.0, HistoryFactor(-5))

	// One critical alert weighs 3: penalty 0.15.
	assert.InDelta(t, 0.85, HistoryFactor(3), 1e-9)

	// Penalty saturates at 1.
	assert.Equal(t, 0.0, HistoryFactor(20))
	assert.Equal(t, 0.0, HistoryFactor(1000))
}

func TestCompositeScore(t *testing.T) {
	perfect := TrustFactors{Fraud: 1, Consistency: 1, Compliance: 1, History: 1}
	assert.Equal(t, 100, CompositeScore(perfect))

	worst := TrustFactors{}
	assert.Equal(t, 0, CompositeScore(worst))

	// 0.35*0.5 + 0.25*1 + 0.20*1 + 0.20*1 = 0.825 -> 83 after rounding.
	mixed := TrustFactors{Fraud: 0.5, Consistency: 1, Compliance: 1, History: 1}
	assert.Equal(t, 83, CompositeScore(mixed))
}

func TestGradeFor(t *testing.T) {
	tests := []struct {
		score int
		grade string
	}{
		{100, "A+"},
		{90, "A+"},
		{89, "A"},
		{80, "A"},
		{79, "B"},
		{70, "B"},
		{69, "C"},
		{60, "C"},
		{59, "D"},
		{50, "D"},
		{49, "F"},
		{0, "F"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.grade, GradeFor(tt.score), "score %d", tt.score)
	}
}

func TestExplainFactorsCoversAllFactors(t *testing.T) {
	explanation := explainFactors(TrustFactors{Fraud: 1, Consistency: 1, Compliance: 1, History: 1})

	for _, key := range []string{"fraud_factor", "consistency_factor", "compliance_factor", "history_factor"} {
		entry, ok := explanation[key].(map[string]interface{})
		assert.True(t, ok, "missing %s", key)
		assert.NotEmpty(t, entry["description"])
		assert.NotNil(t, entry["weight"])
	}
}
