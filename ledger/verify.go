package ledger

import (
	"context"
	"fmt"
)

// VerifyResult reports the outcome of a full-chain integrity check.
type VerifyResult struct {
	Valid         bool   `json:"valid"`
	BlocksChecked int    `json:"blocksChecked"`
	ChainHeight   uint64 `json:"chainHeight"`
	Error         string `json:"error,omitempty"`
}

// VerifyChain checks the integrity of a chain given in ascending block number
// order: dense numbering starting at 1, previousHash linkage back to the
// all-zero sentinel, and each stored hash recomputable from the block's own
// fields. This is the sole integrity check the ledger offers; there are no
// signatures and no proof-of-work to validate.
func VerifyChain(blocks []*Block) error {
	for i, block := range blocks {
		expectedNumber := uint64(i + 1)
		if block.BlockNumber != expectedNumber {
			return fmt.Errorf("block at position %d has number %d, want %d", i, block.BlockNumber, expectedNumber)
		}

		expectedPrev := GenesisPreviousHash
		if i > 0 {
			expectedPrev = blocks[i-1].Hash
		}
		if block.PreviousHash != expectedPrev {
			return fmt.Errorf("block %d previousHash %s does not match predecessor hash %s", block.BlockNumber, block.PreviousHash, expectedPrev)
		}

		if recomputed := block.CalculateHash(); recomputed != block.Hash {
			return fmt.Errorf("block %d stored hash %s does not match recomputed hash %s", block.BlockNumber, block.Hash, recomputed)
		}
	}
	return nil
}

// Verify loads the full chain from the store and checks its integrity.
func (w *Writer) Verify(ctx context.Context) (*VerifyResult, error) {
	blocks, err := w.store.AllBlocks(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading chain: %w", err)
	}

	result := &VerifyResult{
		Valid:         true,
		BlocksChecked: len(blocks),
	}
	if len(blocks) > 0 {
		result.ChainHeight = blocks[len(blocks)-1].BlockNumber
	}

	if err := VerifyChain(blocks); err != nil {
		result.Valid = false
		result.Error = err.Error()
	}
	return result, nil
}
