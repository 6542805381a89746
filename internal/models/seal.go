// internal/models/seal.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// GenesisHash is the all-zero previous-hash sentinel of the first seal.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Seal is one entry in the tamper-evident hash chain. Block indices are
// 0-based, strictly increasing with no gaps, and
// seal[i].PrevHash == seal[i-1].DataHash for all i > 0.
type Seal struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	EventType  string    `json:"event_type" gorm:"size:100;not null;index"`
	EventID    string    `json:"event_id" gorm:"size:100;not null;index"`
	DataHash   string    `json:"data_hash" gorm:"size:64;not null"`
	PrevHash   string    `json:"prev_hash" gorm:"size:64;not null"`
	MerkleRoot string    `json:"merkle_root" gorm:"size:64"`
	BlockIndex int64     `json:"block_index" gorm:"uniqueIndex;not null"`
	Nonce      int64     `json:"nonce" gorm:"default:0"`
	CreatedAt  time.Time `json:"created_at"`
}
