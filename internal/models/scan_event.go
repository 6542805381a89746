// internal/models/scan_event.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// ScanEvent is one attempt to validate a code. Rows are append-only: the only
// permitted mutation is the single pending-to-terminal outcome transition
// performed by the verification orchestrator. Ordering by ScannedAt per code
// defines first scan vs repeat scan.
type ScanEvent struct {
	ID                uuid.UUID   `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CodeID            *uuid.UUID  `json:"code_id,omitempty" gorm:"type:uuid;index"`
	ProductID         *uuid.UUID  `json:"product_id,omitempty" gorm:"type:uuid;index"`
	ScanType          ScanType    `json:"scan_type" gorm:"type:varchar(20);default:'validation'"`
	DeviceFingerprint string      `json:"device_fingerprint" gorm:"size:255;index"`
	IPAddress         string      `json:"ip_address" gorm:"size:64"`
	Latitude          *float64    `json:"latitude,omitempty"`
	Longitude         *float64    `json:"longitude,omitempty"`
	GeoCity           string      `json:"geo_city" gorm:"size:100"`
	GeoCountry        string      `json:"geo_country" gorm:"size:100"`
	UserAgent         string      `json:"user_agent" gorm:"size:512"`
	EvidenceURL       string      `json:"evidence_url,omitempty" gorm:"size:512"`
	Outcome           ScanOutcome `json:"outcome" gorm:"type:varchar(20);default:'pending';index"`
	FraudScore        float64     `json:"fraud_score" gorm:"type:decimal(4,3);default:0"`
	TrustScore        int         `json:"trust_score" gorm:"default:0"`
	ResponseTimeMs    int64       `json:"response_time_ms" gorm:"default:0"`
	ScannedAt         time.Time   `json:"scanned_at" gorm:"index;not null"`

	// Relationships
	Code    *Code    `json:"code,omitempty" gorm:"foreignKey:CodeID"`
	Product *Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
}
