package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"agrichain_go/utils"
)

// ErrDuplicateBlockNumber is returned by a BlockStore when an insert collides
// with an already-persisted block number.
var ErrDuplicateBlockNumber = errors.New("duplicate block number")

// ErrBlockNotFound is returned by a BlockStore when a lookup misses.
var ErrBlockNotFound = errors.New("block not found")

// createBlockMaxAttempts bounds the retry-with-recompute loop when two
// writers race on the same latest block.
const createBlockMaxAttempts = 3

// overviewBlockCount is how many recent blocks an overview carries.
const overviewBlockCount = 10

// BlockStore is the persistence the Writer needs. Implementations must
// enforce uniqueness of the block number and report collisions with
// ErrDuplicateBlockNumber (wrapped or bare).
type BlockStore interface {
	// LatestBlock returns the block with the highest number, or nil when the
	// chain is empty.
	LatestBlock(ctx context.Context) (*Block, error)
	// InsertBlock persists a new block. Blocks are never updated or deleted.
	InsertBlock(ctx context.Context, block *Block) error
	BlockByNumber(ctx context.Context, number uint64) (*Block, error)
	// LatestBlocks returns up to limit blocks in descending block number order.
	LatestBlocks(ctx context.Context, limit int) ([]*Block, error)
	CountBlocks(ctx context.Context) (int64, error)
	// AllBlocks returns the full chain in ascending block number order.
	AllBlocks(ctx context.Context) ([]*Block, error)
}

// Writer appends blocks to the ledger, chaining each new block to the
// previous block's hash.
type Writer struct {
	store BlockStore

	mu      sync.RWMutex
	onBlock func(*Block)
}

// NewWriter creates a ledger writer on top of the given store.
func NewWriter(store BlockStore) *Writer {
	return &Writer{store: store}
}

// OnBlock registers a callback invoked after every successfully persisted
// block. Used to fan out new-block events without coupling the ledger to the
// event layer.
func (w *Writer) OnBlock(fn func(*Block)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onBlock = fn
}

// CreateBlock appends a block containing the given transaction records.
//
// It reads the latest block, links the new block to its hash (or to the
// all-zero sentinel for the first block), and inserts it. When a concurrent
// writer wins the race on the block number, the store reports a duplicate and
// the whole read-link-hash-insert cycle is retried with fresh values, bounded
// by createBlockMaxAttempts.
func (w *Writer) CreateBlock(ctx context.Context, transactions []TxRecord) (*Block, error) {
	var lastErr error
	for attempt := 1; attempt <= createBlockMaxAttempts; attempt++ {
		latest, err := w.store.LatestBlock(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading latest block: %w", err)
		}

		blockNumber := uint64(1)
		previousHash := GenesisPreviousHash
		if latest != nil {
			blockNumber = latest.BlockNumber + 1
			previousHash = latest.Hash
		}

		block := NewBlock(blockNumber, previousHash, transactions)

		err = w.store.InsertBlock(ctx, block)
		if err == nil {
			utils.LogDebug("Block %d appended with hash %s", block.BlockNumber, block.Hash)
			w.notify(block)
			return block, nil
		}
		if !errors.Is(err, ErrDuplicateBlockNumber) {
			return nil, fmt.Errorf("inserting block %d: %w", blockNumber, err)
		}

		lastErr = err
		utils.LogDebug("Block number %d already taken, retrying (attempt %d/%d)", blockNumber, attempt, createBlockMaxAttempts)
	}
	return nil, fmt.Errorf("creating block after %d attempts: %w", createBlockMaxAttempts, lastErr)
}

func (w *Writer) notify(block *Block) {
	w.mu.RLock()
	fn := w.onBlock
	w.mu.RUnlock()
	if fn != nil {
		fn(block)
	}
}

// Overview summarizes the current state of the ledger.
type Overview struct {
	TotalBlocks  int64    `json:"totalBlocks"`
	LatestBlocks []*Block `json:"latestBlocks"`
	ChainHeight  uint64   `json:"chainHeight"`
	LastBlockTime string  `json:"lastBlockTime,omitempty"`
}

// Overview returns the block count, the most recent blocks, the chain height
// and the last block timestamp. Pure read, no side effects.
func (w *Writer) Overview(ctx context.Context) (*Overview, error) {
	total, err := w.store.CountBlocks(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting blocks: %w", err)
	}

	latest, err := w.store.LatestBlocks(ctx, overviewBlockCount)
	if err != nil {
		return nil, fmt.Errorf("reading latest blocks: %w", err)
	}

	overview := &Overview{
		TotalBlocks:  total,
		LatestBlocks: latest,
	}
	if len(latest) > 0 {
		overview.ChainHeight = latest[0].BlockNumber
		overview.LastBlockTime = latest[0].Timestamp
	}
	return overview, nil
}

// Blocks returns up to limit recent blocks, newest first.
func (w *Writer) Blocks(ctx context.Context, limit int) ([]*Block, error) {
	return w.store.LatestBlocks(ctx, limit)
}

// Block returns the block at the given height, or ErrBlockNotFound.
func (w *Writer) Block(ctx context.Context, number uint64) (*Block, error) {
	return w.store.BlockByNumber(ctx, number)
}

// Height returns the current chain height (0 when the chain is empty).
func (w *Writer) Height(ctx context.Context) (uint64, error) {
	latest, err := w.store.LatestBlock(ctx)
	if err != nil {
		return 0, err
	}
	if latest == nil {
		return 0, nil
	}
	return latest.BlockNumber, nil
}
