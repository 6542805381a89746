// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Enums
type ProductStatus string

const (
	ProductStatusActive       ProductStatus = "active"
	ProductStatusInactive     ProductStatus = "inactive"
	ProductStatusRecalled     ProductStatus = "recalled"
	ProductStatusDiscontinued ProductStatus = "discontinued"
)

type CodeStatus string

const (
	CodeStatusActive  CodeStatus = "active"
	CodeStatusRevoked CodeStatus = "revoked"
	CodeStatusDeleted CodeStatus = "deleted"
)

type ScanOutcome string

const (
	ScanOutcomePending     ScanOutcome = "pending"
	ScanOutcomeValid       ScanOutcome = "valid"
	ScanOutcomeWarning     ScanOutcome = "warning"
	ScanOutcomeSuspicious  ScanOutcome = "suspicious"
	ScanOutcomeCounterfeit ScanOutcome = "counterfeit"
	ScanOutcomeRevoked     ScanOutcome = "revoked"
)

// Terminal reports whether the outcome is a final state. A scan event is
// written once as pending and transitions to exactly one terminal outcome.
func (o ScanOutcome) Terminal() bool {
	return o != ScanOutcomePending && o != ""
}

type ScanType string

const (
	ScanTypeValidation   ScanType = "validation"
	ScanTypeMobileCamera ScanType = "mobile_camera"
)

type AlertType string

const (
	AlertHighFrequencyScan  AlertType = "HIGH_FREQUENCY_SCAN"
	AlertScanBurst          AlertType = "SCAN_BURST"
	AlertRevokedCode        AlertType = "REVOKED_CODE"
	AlertRecalledProduct    AlertType = "RECALLED_PRODUCT"
	AlertStatisticalAnomaly AlertType = "STATISTICAL_ANOMALY"
	AlertDeviceAnomaly      AlertType = "DEVICE_ANOMALY"
	AlertGeoVelocityAnomaly AlertType = "GEO_VELOCITY_ANOMALY"
	AlertOffHoursScan       AlertType = "OFF_HOURS_SCAN"
)

type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

type AlertStatus string

const (
	AlertStatusOpen     AlertStatus = "open"
	AlertStatusResolved AlertStatus = "resolved"
)
