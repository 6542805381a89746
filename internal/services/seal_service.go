// internal/services/seal_service.go
package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tonytran1984vn/trustchecker/internal/config"
	"github.com/tonytran1984vn/trustchecker/internal/events"
	"github.com/tonytran1984vn/trustchecker/internal/models"
)

// SealService chains event hashes into a tamper-evident ledger with batched
// Merkle commitments. The pending batch and block-index advancement are
// serialized by a single mutex: read-last-seal and insert-new-seal form one
// atomic unit, otherwise concurrent sealing could issue duplicate block
// indices and corrupt the chain irrecoverably.
type SealService struct {
	mu      sync.Mutex
	store   SealStore
	bus     *events.Bus
	config  config.SealConfig
	pending []string
}

type SealResult struct {
	SealID     string `json:"seal_id"`
	EventType  string `json:"event_type"`
	DataHash   string `json:"data_hash"`
	PrevHash   string `json:"prev_hash"`
	MerkleRoot string `json:"merkle_root"`
	BlockIndex int64  `json:"block_index"`
	Nonce      int64  `json:"nonce"`
}

type ChainError struct {
	BlockIndex int64  `json:"block_index"`
	Error      string `json:"error"`
}

type ChainVerification struct {
	Valid         bool         `json:"valid"`
	BlocksChecked int          `json:"blocks_checked"`
	Errors        []ChainError `json:"errors"`
}

type ChainStats struct {
	TotalSeals       int64              `json:"total_seals"`
	LatestBlock      int64              `json:"latest_block"`
	LatestHash       string             `json:"latest_hash"`
	LatestMerkleRoot string             `json:"latest_merkle_root"`
	PendingBatch     int                `json:"pending_batch"`
	ChainIntegrity   *ChainVerification `json:"chain_integrity"`
}

func NewSealService(store SealStore, bus *events.Bus, cfg config.SealConfig) *SealService {
	return &SealService{
		store:  store,
		bus:    bus,
		config: cfg,
	}
}

type sealEnvelope struct {
	EventType string      `json:"event_type"`
	EventID   string      `json:"event_id"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
}

// Seal hashes the payload, links it to the previous seal, recomputes the
// Merkle root over the pending batch and persists the new chain entry.
func (s *SealService) Seal(ctx context.Context, eventType, eventID string, payload map[string]interface{}) (*SealResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issuedAt := time.Now().UTC()
	dataHash := hashEnvelope(eventType, eventID, payload, issuedAt)

	prevSeal, err := s.store.Last(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read last seal: %w", err)
	}

	prevHash := models.GenesisHash
	var blockIndex int64
	if prevSeal != nil {
		prevHash = prevSeal.DataHash
		blockIndex = prevSeal.BlockIndex + 1
	}

	s.pending = append(s.pending, dataHash)
	merkleRoot := buildMerkleRoot(s.pending)

	nonce, found := findNonce(dataHash+prevHash, s.config.PowDifficulty, s.config.NonceBound)
	if !found {
		// Liveness safeguard: callers must not depend on actual work being
		// found, but operators should know the search was exhausted.
		logrus.WithFields(logrus.Fields{
			"event_id":    eventID,
			"block_index": blockIndex,
		}).Warn("Proof-of-work nonce search exhausted")
	}

	seal := &models.Seal{
		EventType:  eventType,
		EventID:    eventID,
		DataHash:   dataHash,
		PrevHash:   prevHash,
		MerkleRoot: merkleRoot,
		BlockIndex: blockIndex,
		Nonce:      nonce,
	}

	if err := s.store.Insert(ctx, seal); err != nil {
		// Roll the hash back out of the batch so a retry does not commit it twice.
		s.pending = s.pending[:len(s.pending)-1]
		return nil, fmt.Errorf("failed to persist seal: %w", err)
	}

	if len(s.pending) >= s.config.BatchSize {
		s.pending = nil
	}

	s.bus.Publish(events.TypeChainSealed, map[string]interface{}{
		"seal_id":     seal.ID.String(),
		"event_type":  eventType,
		"data_hash":   truncateHash(dataHash),
		"block_index": blockIndex,
		"merkle_root": truncateHash(merkleRoot),
	})

	return &SealResult{
		SealID:     seal.ID.String(),
		EventType:  eventType,
		DataHash:   dataHash,
		PrevHash:   prevHash,
		MerkleRoot: merkleRoot,
		BlockIndex: blockIndex,
		Nonce:      nonce,
	}, nil
}

// VerifyChain walks the chain in ascending block-index order and reports
// every adjacent-pair break, not just the first.
func (s *SealService) VerifyChain(ctx context.Context, limit int) (*ChainVerification, error) {
	if limit <= 0 {
		limit = 100
	}

	seals, err := s.store.ListAscending(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load seals: %w", err)
	}

	result := &ChainVerification{
		Valid:         true,
		BlocksChecked: len(seals),
		Errors:        []ChainError{},
	}

	for i := 1; i < len(seals); i++ {
		if seals[i].PrevHash != seals[i-1].DataHash {
			result.Valid = false
			result.Errors = append(result.Errors, ChainError{
				BlockIndex: seals[i].BlockIndex,
				Error:      "Chain break: prev_hash does not match previous block data_hash",
			})
		}
	}

	return result, nil
}

func (s *SealService) Stats(ctx context.Context) (*ChainStats, error) {
	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count seals: %w", err)
	}

	latest, err := s.store.Last(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read last seal: %w", err)
	}

	integrity, err := s.VerifyChain(ctx, 100)
	if err != nil {
		return nil, err
	}

	stats := &ChainStats{
		TotalSeals:     total,
		LatestBlock:    -1,
		ChainIntegrity: integrity,
	}

	s.mu.Lock()
	stats.PendingBatch = len(s.pending)
	s.mu.Unlock()

	if latest != nil {
		stats.LatestBlock = latest.BlockIndex
		stats.LatestHash = latest.DataHash
		stats.LatestMerkleRoot = latest.MerkleRoot
	}

	return stats, nil
}

func (s *SealService) Recent(ctx context.Context, limit int) ([]models.Seal, error) {
	if limit <= 0 || limit > 200 {
		limit = 20
	}
	return s.store.ListDescending(ctx, limit)
}

// hashEnvelope computes the sha256 data hash over the typed event envelope.
// Deterministic for identical inputs: json.Marshal orders struct fields by
// declaration and map keys lexically.
func hashEnvelope(eventType, eventID string, payload map[string]interface{}, issuedAt time.Time) string {
	raw, _ := json.Marshal(sealEnvelope{
		EventType: eventType,
		EventID:   eventID,
		Data:      payload,
		Timestamp: issuedAt.Format(time.RFC3339Nano),
	})
	return hashBytes(raw)
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// buildMerkleRoot recursively pairwise-hashes until one root remains,
// duplicating the last element when a level has odd length. An empty batch
// roots to the hash of "empty".
func buildMerkleRoot(hashes []string) string {
	if len(hashes) == 0 {
		return hashBytes([]byte(`"empty"`))
	}
	if len(hashes) == 1 {
		return hashes[0]
	}

	var nextLevel []string
	for i := 0; i < len(hashes); i += 2 {
		left := hashes[i]
		right := left
		if i+1 < len(hashes) {
			right = hashes[i+1]
		}
		nextLevel = append(nextLevel, hashBytes([]byte(left+right)))
	}

	return buildMerkleRoot(nextLevel)
}

// findNonce searches 0..bound for a nonce whose hash has the required number
// of leading zero hex digits. Returns the last tried nonce and false when the
// bound is exhausted.
func findNonce(data string, difficulty int, bound int64) (int64, bool) {
	target := strings.Repeat("0", difficulty)
	var nonce int64
	for nonce < bound {
		h := hashBytes([]byte(fmt.Sprintf("%s%d", data, nonce)))
		if strings.HasPrefix(h, target) {
			return nonce, true
		}
		nonce++
	}
	return nonce, false
}

func truncateHash(h string) string {
	if len(h) <= 16 {
		return h
	}
	return h[:16] + "..."
}
