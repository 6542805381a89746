// internal/models/trust_score.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// TrustScoreRecord is a timestamped snapshot of the four weighted trust
// factors and the resulting composite score for a product. Immutable once
// written; Product.TrustScore points at the latest record's Score.
type TrustScoreRecord struct {
	ID                uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	ProductID         uuid.UUID `json:"product_id" gorm:"type:uuid;not null;index"`
	Score             int       `json:"score" gorm:"not null"`
	FraudFactor       float64   `json:"fraud_factor" gorm:"type:decimal(4,3);default:0"`
	ConsistencyFactor float64   `json:"consistency_factor" gorm:"type:decimal(4,3);default:0"`
	ComplianceFactor  float64   `json:"compliance_factor" gorm:"type:decimal(4,3);default:0"`
	HistoryFactor     float64   `json:"history_factor" gorm:"type:decimal(4,3);default:0"`
	Explanation       JSONB     `json:"explanation" gorm:"type:jsonb"`
	CreatedAt         time.Time `json:"created_at" gorm:"index"`

	// Relationships
	Product *Product `json:"product,omitempty" gorm:"foreignKey:ProductID"`
}
