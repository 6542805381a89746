// internal/models/product.go
package models

import (
	"github.com/lib/pq"
)

type Product struct {
	BaseModel
	Name          string         `json:"name" gorm:"size:255;not null"`
	SKU           string         `json:"sku" gorm:"size:100;uniqueIndex"`
	Manufacturer  string         `json:"manufacturer" gorm:"size:255"`
	BatchNumber   string         `json:"batch_number" gorm:"size:100"`
	OriginCountry string         `json:"origin_country" gorm:"size:100"`
	Category      string         `json:"category" gorm:"size:100;index"`
	Description   string         `json:"description" gorm:"type:text"`
	Images        pq.StringArray `json:"images" gorm:"type:text[]"`
	Tags          pq.StringArray `json:"tags" gorm:"type:text[]"`
	Metadata      JSONB          `json:"metadata" gorm:"type:jsonb"`
	Status        ProductStatus  `json:"status" gorm:"type:varchar(20);default:'active';index"`

	// Denormalized pointer to the latest trust score record.
	TrustScore int `json:"trust_score" gorm:"default:0"`

	// Relationships
	Codes       []Code             `json:"codes,omitempty" gorm:"foreignKey:ProductID"`
	ScanEvents  []ScanEvent        `json:"scan_events,omitempty" gorm:"foreignKey:ProductID"`
	FraudAlerts []FraudAlert       `json:"fraud_alerts,omitempty" gorm:"foreignKey:ProductID"`
	TrustScores []TrustScoreRecord `json:"trust_scores,omitempty" gorm:"foreignKey:ProductID"`
}
