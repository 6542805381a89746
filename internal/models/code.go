// internal/models/code.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// Code is the unique printable identifier physically attached to one product
// unit. The value is immutable after creation.
type Code struct {
	BaseModel
	ProductID uuid.UUID  `json:"product_id" gorm:"type:uuid;not null;index"`
	Value     string     `json:"value" gorm:"size:255;uniqueIndex;not null"`
	Status    CodeStatus `json:"status" gorm:"type:varchar(20);default:'active';index"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// Relationships
	Product    Product     `json:"product,omitempty" gorm:"foreignKey:ProductID"`
	ScanEvents []ScanEvent `json:"scan_events,omitempty" gorm:"foreignKey:CodeID"`
}
