// internal/services/seal_service_test.go
package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonytran1984vn/trustchecker/internal/config"
	"github.com/tonytran1984vn/trustchecker/internal/events"
	"github.com/tonytran1984vn/trustchecker/internal/models"
)

// memorySealStore keeps the chain in a slice ordered by insertion. It mirrors
// the store contract: Last returns nil on an empty chain.
type memorySealStore struct {
	mu    sync.Mutex
	seals []models.Seal
	fail  bool
}

func (m *memorySealStore) Last(ctx context.Context) (*models.Seal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.seals) == 0 {
		return nil, nil
	}
	last := m.seals[len(m.seals)-1]
	return &last, nil
}

func (m *memorySealStore) Insert(ctx context.Context, seal *models.Seal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return fmt.Errorf("store unavailable")
	}
	if seal.ID == uuid.Nil {
		seal.ID = uuid.New()
	}
	seal.CreatedAt = time.Now().UTC()
	m.seals = append(m.seals, *seal)
	return nil
}

func (m *memorySealStore) ListAscending(ctx context.Context, limit int) ([]models.Seal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Seal, len(m.seals))
	copy(out, m.seals)
	sort.Slice(out, func(i, j int) bool { return out[i].BlockIndex < out[j].BlockIndex })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memorySealStore) ListDescending(ctx context.Context, limit int) ([]models.Seal, error) {
	asc, _ := m.ListAscending(ctx, 0)
	for i, j := 0, len(asc)-1; i < j; i, j = i+1, j-1 {
		asc[i], asc[j] = asc[j], asc[i]
	}
	if limit > 0 && len(asc) > limit {
		asc = asc[:limit]
	}
	return asc, nil
}

func (m *memorySealStore) Count(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.seals)), nil
}

func newTestSealService(store SealStore) *SealService {
	return NewSealService(store, events.NewBus(), config.SealConfig{
		BatchSize:     10,
		PowDifficulty: 2,
		NonceBound:    100000,
	})
}

func TestSealChainsSequentially(t *testing.T) {
	store := &memorySealStore{}
	svc := newTestSealService(store)
	ctx := context.Background()

	first, err := svc.Seal(ctx, "ScanVerified", "scan-1", map[string]interface{}{"outcome": "valid"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), first.BlockIndex)
	assert.Equal(t, models.GenesisHash, first.PrevHash)
	assert.Len(t, first.DataHash, 64)

	second, err := svc.Seal(ctx, "ScanVerified", "scan-2", map[string]interface{}{"outcome": "warning"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), second.BlockIndex)
	assert.Equal(t, first.DataHash, second.PrevHash)
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	store := &memorySealStore{}
	svc := newTestSealService(store)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Seal(ctx, "ScanVerified", fmt.Sprintf("scan-%d", i), map[string]interface{}{"n": i})
		require.NoError(t, err)
	}

	verification, err := svc.VerifyChain(ctx, 100)
	require.NoError(t, err)
	assert.True(t, verification.Valid)
	assert.Equal(t, 5, verification.BlocksChecked)
	assert.Empty(t, verification.Errors)

	// Rewrite block 2's payload hash: only the 2->3 link breaks, since the
	// check compares stored prev_hash against stored data_hash pairwise.
	store.mu.Lock()
	store.seals[2].DataHash = strings.Repeat("f", 64)
	store.mu.Unlock()

	verification, err = svc.VerifyChain(ctx, 100)
	require.NoError(t, err)
	assert.False(t, verification.Valid)
	require.Len(t, verification.Errors, 1)
	assert.Equal(t, int64(3), verification.Errors[0].BlockIndex)
}

func TestSealRetriesAfterStoreFailure(t *testing.T) {
	store := &memorySealStore{}
	svc := newTestSealService(store)
	ctx := context.Background()

	store.fail = true
	_, err := svc.Seal(ctx, "ScanVerified", "scan-1", nil)
	require.Error(t, err)

	// The failed attempt must not leave its hash in the pending batch.
	store.fail = false
	result, err := svc.Seal(ctx, "ScanVerified", "scan-1", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.BlockIndex)
	assert.Equal(t, result.DataHash, result.MerkleRoot)
}

func TestConcurrentSealingKeepsChainContiguous(t *testing.T) {
	store := &memorySealStore{}
	svc := newTestSealService(store)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Seal(ctx, "ScanVerified", fmt.Sprintf("scan-%d", i), map[string]interface{}{"n": i})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	seals, err := store.ListAscending(ctx, 0)
	require.NoError(t, err)
	require.Len(t, seals, n)
	for i, seal := range seals {
		assert.Equal(t, int64(i), seal.BlockIndex)
	}

	verification, err := svc.VerifyChain(ctx, n)
	require.NoError(t, err)
	assert.True(t, verification.Valid)
}

func TestStats(t *testing.T) {
	store := &memorySealStore{}
	svc := newTestSealService(store)
	ctx := context.Background()

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalSeals)
	assert.Equal(t, int64(-1), stats.LatestBlock)

	for i := 0; i < 3; i++ {
		_, err := svc.Seal(ctx, "ScanVerified", fmt.Sprintf("scan-%d", i), nil)
		require.NoError(t, err)
	}

	stats, err = svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalSeals)
	assert.Equal(t, int64(2), stats.LatestBlock)
	assert.Equal(t, 3, stats.PendingBatch)
	assert.True(t, stats.ChainIntegrity.Valid)
}

func TestPendingBatchResetsAtBatchSize(t *testing.T) {
	store := &memorySealStore{}
	svc := NewSealService(store, events.NewBus(), config.SealConfig{
		BatchSize:     3,
		PowDifficulty: 1,
		NonceBound:    100000,
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Seal(ctx, "ScanVerified", fmt.Sprintf("scan-%d", i), nil)
		require.NoError(t, err)
	}

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.PendingBatch)

	// The next seal starts a fresh batch: its merkle root is its own hash.
	result, err := svc.Seal(ctx, "ScanVerified", "scan-3", nil)
	require.NoError(t, err)
	assert.Equal(t, result.DataHash, result.MerkleRoot)
}

func TestHashEnvelopeDeterministic(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	payload := map[string]interface{}{"b": 2, "a": 1}

	h1 := hashEnvelope("ScanVerified", "scan-1", payload, at)
	h2 := hashEnvelope("ScanVerified", "scan-1", map[string]interface{}{"a": 1, "b": 2}, at)
	assert.Equal(t, h1, h2)

	h3 := hashEnvelope("ScanVerified", "scan-2", payload, at)
	assert.NotEqual(t, h1, h3)

	h4 := hashEnvelope("ScanVerified", "scan-1", payload, at.Add(time.Nanosecond))
	assert.NotEqual(t, h1, h4)
}

func TestBuildMerkleRoot(t *testing.T) {
	empty := buildMerkleRoot(nil)
	assert.Equal(t, hashBytes([]byte(`"empty"`)), empty)

	single := buildMerkleRoot([]string{"aa"})
	assert.Equal(t, "aa", single)

	pair := buildMerkleRoot([]string{"aa", "bb"})
	assert.Equal(t, hashBytes([]byte("aabb")), pair)

	// Odd count duplicates the trailing element.
	odd := buildMerkleRoot([]string{"aa", "bb", "cc"})
	expected := hashBytes([]byte(hashBytes([]byte("aabb")) + hashBytes([]byte("cccc"))))
	assert.Equal(t, expected, odd)
}

func TestFindNonce(t *testing.T) {
	nonce, found := findNonce("some-data", 1, 100000)
	require.True(t, found)
	h := hashBytes([]byte(fmt.Sprintf("some-data%d", nonce)))
	assert.True(t, strings.HasPrefix(h, "0"))

	// An impossible difficulty exhausts the bound without failing.
	nonce, found = findNonce("some-data", 64, 10)
	assert.False(t, found)
	assert.Equal(t, int64(10), nonce)
}
