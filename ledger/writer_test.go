package ledger

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory BlockStore for writer tests. failInserts makes the
// first N inserts collide, simulating a concurrent writer winning the race.
type memStore struct {
	blocks      map[uint64]*Block
	failInserts int
}

func newMemStore() *memStore {
	return &memStore{blocks: make(map[uint64]*Block)}
}

func (m *memStore) LatestBlock(context.Context) (*Block, error) {
	var latest *Block
	for _, b := range m.blocks {
		if latest == nil || b.BlockNumber > latest.BlockNumber {
			latest = b
		}
	}
	return latest, nil
}

func (m *memStore) InsertBlock(_ context.Context, block *Block) error {
	if m.failInserts > 0 {
		m.failInserts--
		return ErrDuplicateBlockNumber
	}
	if _, ok := m.blocks[block.BlockNumber]; ok {
		return ErrDuplicateBlockNumber
	}
	m.blocks[block.BlockNumber] = block
	return nil
}

func (m *memStore) BlockByNumber(_ context.Context, number uint64) (*Block, error) {
	b, ok := m.blocks[number]
	if !ok {
		return nil, ErrBlockNotFound
	}
	return b, nil
}

func (m *memStore) LatestBlocks(_ context.Context, limit int) ([]*Block, error) {
	all, _ := m.AllBlocks(context.Background())
	sort.Slice(all, func(i, j int) bool { return all[i].BlockNumber > all[j].BlockNumber })
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (m *memStore) CountBlocks(context.Context) (int64, error) {
	return int64(len(m.blocks)), nil
}

func (m *memStore) AllBlocks(context.Context) ([]*Block, error) {
	all := make([]*Block, 0, len(m.blocks))
	for _, b := range m.blocks {
		all = append(all, b)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].BlockNumber < all[j].BlockNumber })
	return all, nil
}

func TestWriterCreateBlockSequence(t *testing.T) {
	ctx := context.Background()
	w := NewWriter(newMemStore())

	first, err := w.CreateBlock(ctx, sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.BlockNumber)
	assert.Equal(t, GenesisPreviousHash, first.PreviousHash)

	second, err := w.CreateBlock(ctx, sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.BlockNumber)
	assert.Equal(t, first.Hash, second.PreviousHash)

	height, err := w.Height(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), height)
}

func TestWriterRetriesOnDuplicate(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.failInserts = 2
	w := NewWriter(store)

	block, err := w.CreateBlock(ctx, sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, uint64(1), block.BlockNumber)
}

func TestWriterGivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.failInserts = createBlockMaxAttempts
	w := NewWriter(store)

	_, err := w.CreateBlock(ctx, sampleRecords())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateBlockNumber)
}

func TestWriterNotifiesOnBlock(t *testing.T) {
	ctx := context.Background()
	w := NewWriter(newMemStore())

	var got []*Block
	w.OnBlock(func(b *Block) { got = append(got, b) })

	_, err := w.CreateBlock(ctx, sampleRecords())
	require.NoError(t, err)
	_, err = w.CreateBlock(ctx, sampleRecords())
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, uint64(1), got[0].BlockNumber)
	assert.Equal(t, uint64(2), got[1].BlockNumber)
}

func TestWriterOverview(t *testing.T) {
	ctx := context.Background()
	w := NewWriter(newMemStore())

	for i := 0; i < 12; i++ {
		_, err := w.CreateBlock(ctx, sampleRecords())
		require.NoError(t, err)
	}

	overview, err := w.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12), overview.TotalBlocks)
	assert.Equal(t, uint64(12), overview.ChainHeight)
	require.Len(t, overview.LatestBlocks, overviewBlockCount)
	assert.Equal(t, uint64(12), overview.LatestBlocks[0].BlockNumber)
	assert.NotEmpty(t, overview.LastBlockTime)
}

func TestWriterVerify(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	w := NewWriter(store)

	for i := 0; i < 3; i++ {
		_, err := w.CreateBlock(ctx, sampleRecords())
		require.NoError(t, err)
	}

	result, err := w.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, 3, result.BlocksChecked)
	assert.Equal(t, uint64(3), result.ChainHeight)

	store.blocks[2].Transactions[0].Data.Name = "tampered"

	result, err = w.Verify(ctx)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Error)
}
