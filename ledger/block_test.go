package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecords() []TxRecord {
	return []TxRecord{
		{
			TxHash:    "0xabc",
			Type:      TxProductRegistration,
			From:      "0x1111111111111111111111111111111111111111",
			To:        "0x1111111111111111111111111111111111111111",
			ProductID: "PROD-1",
			Data: TxData{
				Name:     "Arabica Coffee",
				Category: "coffee",
				Origin:   "Da Lat",
				Farmer:   "Nguyen Van A",
			},
		},
	}
}

func TestComputeHashDeterministic(t *testing.T) {
	records := sampleRecords()

	h1 := ComputeHash(1, "2026-01-02T10:00:00Z", records, GenesisPreviousHash, 42)
	h2 := ComputeHash(1, "2026-01-02T10:00:00Z", records, GenesisPreviousHash, 42)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestComputeHashChangesWithInput(t *testing.T) {
	records := sampleRecords()
	base := ComputeHash(1, "2026-01-02T10:00:00Z", records, GenesisPreviousHash, 42)

	assert.NotEqual(t, base, ComputeHash(2, "2026-01-02T10:00:00Z", records, GenesisPreviousHash, 42))
	assert.NotEqual(t, base, ComputeHash(1, "2026-01-02T10:00:01Z", records, GenesisPreviousHash, 42))
	assert.NotEqual(t, base, ComputeHash(1, "2026-01-02T10:00:00Z", records, GenesisPreviousHash, 43))
	assert.NotEqual(t, base, ComputeHash(1, "2026-01-02T10:00:00Z", nil, GenesisPreviousHash, 42))
}

func TestNewBlockSealsHash(t *testing.T) {
	b := NewBlock(1, GenesisPreviousHash, sampleRecords())

	assert.Equal(t, uint64(1), b.BlockNumber)
	assert.Equal(t, GenesisPreviousHash, b.PreviousHash)
	assert.Equal(t, ZeroMiner, b.Miner)
	assert.Equal(t, b.CalculateHash(), b.Hash)
}

func buildChain(t *testing.T, length int) []*Block {
	t.Helper()
	blocks := make([]*Block, 0, length)
	prev := GenesisPreviousHash
	for i := 1; i <= length; i++ {
		b := NewBlock(uint64(i), prev, sampleRecords())
		blocks = append(blocks, b)
		prev = b.Hash
	}
	return blocks
}

func TestVerifyChain(t *testing.T) {
	blocks := buildChain(t, 5)
	require.NoError(t, VerifyChain(blocks))
	require.NoError(t, VerifyChain(nil))
}

func TestVerifyChainDetectsTampering(t *testing.T) {
	t.Run("mutated payload", func(t *testing.T) {
		blocks := buildChain(t, 3)
		blocks[1].Transactions[0].Data.Origin = "elsewhere"
		assert.Error(t, VerifyChain(blocks))
	})

	t.Run("rewritten hash", func(t *testing.T) {
		blocks := buildChain(t, 3)
		blocks[1].Transactions[0].Data.Origin = "elsewhere"
		blocks[1].Hash = blocks[1].CalculateHash()
		// The payload now hashes cleanly but the successor's link is broken.
		assert.Error(t, VerifyChain(blocks))
	})

	t.Run("gap in numbering", func(t *testing.T) {
		blocks := buildChain(t, 3)
		blocks[2].BlockNumber = 5
		assert.Error(t, VerifyChain(blocks))
	})

	t.Run("broken genesis link", func(t *testing.T) {
		blocks := buildChain(t, 1)
		blocks[0].PreviousHash = "deadbeef"
		assert.Error(t, VerifyChain(blocks))
	})
}
