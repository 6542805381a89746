// internal/models/fraud_alert.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// FraudAlert is a detector finding attached to one scan event and product.
// Created only by the fraud engine; the only permitted mutation afterwards is
// the open-to-resolved status transition.
type FraudAlert struct {
	ID          uuid.UUID     `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ScanEventID *uuid.UUID    `json:"scan_event_id,omitempty" gorm:"type:uuid;index"`
	ProductID   *uuid.UUID    `json:"product_id,omitempty" gorm:"type:uuid;index"`
	AlertType   AlertType     `json:"alert_type" gorm:"type:varchar(50);not null"`
	Severity    AlertSeverity `json:"severity" gorm:"type:varchar(20);default:'medium';index"`
	Description string        `json:"description" gorm:"type:text"`
	Details     JSONB         `json:"details" gorm:"type:jsonb"`
	Status      AlertStatus   `json:"status" gorm:"type:varchar(20);default:'open';index"`
	ResolvedBy  *string       `json:"resolved_by,omitempty" gorm:"size:255"`
	ResolvedAt  *time.Time    `json:"resolved_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`

	// Relationships
	ScanEvent *ScanEvent `json:"scan_event,omitempty" gorm:"foreignKey:ScanEventID"`
	Product   *Product   `json:"product,omitempty" gorm:"foreignKey:ProductID"`
}
