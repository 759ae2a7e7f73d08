package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"agrichain_go/ledger"
	"agrichain_go/supply"
	"agrichain_go/utils"
)

// Database key prefixes for better organization
const (
	blockNumKeyPrefix  = "blocknum_"   // block JSON keyed by zero-padded number
	blockHashKeyPrefix = "blockhash_"  // block JSON keyed by hash
	chainHeightKey     = "height"      // current chain height
	userKeyPrefix      = "user_"       // user JSON keyed by id
	userEmailKeyPrefix = "useremail_"  // user id keyed by email
	userWalletPrefix   = "userwallet_" // user id keyed by wallet address
	productKeyPrefix   = "product_"    // product JSON keyed by productId
	requestKeyPrefix   = "request_"    // transfer request JSON keyed by id
	txnKeyPrefix       = "txn_"        // audit row JSON keyed by productId + insertion order
)

// LevelStore is the embedded persistence backend, used for standalone
// deployments and tests. It implements both ledger.BlockStore and
// supply.Store.
//
// The store is single-process by construction, so the uniqueness and
// compare-and-swap guarantees the interfaces demand are provided by an
// in-process mutex around every read-modify-write sequence.
type LevelStore struct {
	db   *leveldb.DB
	mu   sync.Mutex
	path string
}

var (
	_ ledger.BlockStore = (*LevelStore)(nil)
	_ supply.Store      = (*LevelStore)(nil)
)

// NewLevelStore opens (or creates) the database under dataDir.
func NewLevelStore(dataDir string) (*LevelStore, error) {
	dbPath := filepath.Join(dataDir, "agrichain")

	options := &opt.Options{
		BlockCacheCapacity: 32 * 1024 * 1024, // 32MB block cache
		WriteBuffer:        16 * 1024 * 1024, // 16MB write buffer
	}

	db, err := leveldb.OpenFile(dbPath, options)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	utils.LogInfo("LevelDB store initialized at: %s", dbPath)

	return &LevelStore{db: db, path: dbPath}, nil
}

// Close closes the database.
func (s *LevelStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *LevelStore) putJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	if err := s.db.Put([]byte(key), data, nil); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (s *LevelStore) getJSON(key string, v any, notFound error) error {
	data, err := s.db.Get([]byte(key), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return notFound
		}
		return fmt.Errorf("failed to retrieve %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}

func blockNumKey(n uint64) string {
	return fmt.Sprintf("%s%020d", blockNumKeyPrefix, n)
}

// --- ledger.BlockStore ---

// InsertBlock stores a block under both its number and its hash, and bumps
// the height key. The number must be unused.
func (s *LevelStore) InsertBlock(_ context.Context, block *ledger.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	numKey := blockNumKey(block.BlockNumber)
	if ok, err := s.db.Has([]byte(numKey), nil); err != nil {
		return fmt.Errorf("failed to check block key: %w", err)
	} else if ok {
		return fmt.Errorf("block %d: %w", block.BlockNumber, ledger.ErrDuplicateBlockNumber)
	}

	blockData, err := json.Marshal(block)
	if err != nil {
		return fmt.Errorf("failed to marshal block: %w", err)
	}

	batch := new(leveldb.Batch)
	batch.Put([]byte(numKey), blockData)
	batch.Put([]byte(blockHashKeyPrefix+block.Hash), blockData)

	height, err := s.height()
	if err != nil {
		return err
	}
	if block.BlockNumber > height {
		batch.Put([]byte(chainHeightKey), []byte(strconv.FormatUint(block.BlockNumber, 10)))
	}

	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("failed to save block: %w", err)
	}
	return nil
}

func (s *LevelStore) height() (uint64, error) {
	data, err := s.db.Get([]byte(chainHeightKey), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return 0, nil // no blocks yet
		}
		return 0, fmt.Errorf("failed to retrieve chain height: %w", err)
	}
	height, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse chain height: %w", err)
	}
	return height, nil
}

// LatestBlock returns the highest-numbered block, or nil for an empty chain.
func (s *LevelStore) LatestBlock(ctx context.Context) (*ledger.Block, error) {
	height, err := s.height()
	if err != nil {
		return nil, err
	}
	if height == 0 {
		return nil, nil
	}
	return s.BlockByNumber(ctx, height)
}

// BlockByNumber retrieves a block by its number.
func (s *LevelStore) BlockByNumber(_ context.Context, number uint64) (*ledger.Block, error) {
	var block ledger.Block
	if err := s.getJSON(blockNumKey(number), &block, ledger.ErrBlockNotFound); err != nil {
		return nil, err
	}
	return &block, nil
}

// LatestBlocks returns up to limit blocks, newest first.
func (s *LevelStore) LatestBlocks(ctx context.Context, limit int) ([]*ledger.Block, error) {
	height, err := s.height()
	if err != nil {
		return nil, err
	}

	blocks := make([]*ledger.Block, 0, limit)
	for n := height; n >= 1 && len(blocks) < limit; n-- {
		block, err := s.BlockByNumber(ctx, n)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

// CountBlocks returns the number of stored blocks. Block numbers are dense,
// so the height is the count.
func (s *LevelStore) CountBlocks(_ context.Context) (int64, error) {
	height, err := s.height()
	if err != nil {
		return 0, err
	}
	return int64(height), nil
}

// AllBlocks returns the whole chain in ascending block number order.
func (s *LevelStore) AllBlocks(_ context.Context) ([]*ledger.Block, error) {
	blocks := make([]*ledger.Block, 0)

	iter := s.db.NewIterator(util.BytesPrefix([]byte(blockNumKeyPrefix)), nil)
	defer iter.Release()
	for iter.Next() {
		var block ledger.Block
		if err := json.Unmarshal(iter.Value(), &block); err != nil {
			return nil, fmt.Errorf("failed to unmarshal block: %w", err)
		}
		blocks = append(blocks, &block)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("error iterating blocks: %w", err)
	}
	return blocks, nil
}

// --- supply.Store: users ---

// InsertUser stores a user and its email/wallet lookup keys.
func (s *LevelStore) InsertUser(_ context.Context, user *supply.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	emailKey := userEmailKeyPrefix + user.Email
	if ok, err := s.db.Has([]byte(emailKey), nil); err != nil {
		return fmt.Errorf("failed to check email key: %w", err)
	} else if ok {
		return supply.ErrDuplicateEmail
	}

	userData, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	batch := new(leveldb.Batch)
	batch.Put([]byte(userKeyPrefix+user.ID), userData)
	batch.Put([]byte(emailKey), []byte(user.ID))
	batch.Put([]byte(userWalletPrefix+user.WalletAddress), []byte(user.ID))

	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// UserByID retrieves a user by id.
func (s *LevelStore) UserByID(_ context.Context, id string) (*supply.User, error) {
	var user supply.User
	if err := s.getJSON(userKeyPrefix+id, &user, supply.ErrUserNotFound); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *LevelStore) userByLookup(ctx context.Context, key string) (*supply.User, error) {
	id, err := s.db.Get([]byte(key), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, supply.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to retrieve %s: %w", key, err)
	}
	return s.UserByID(ctx, string(id))
}

// UserByEmail retrieves a user by email.
func (s *LevelStore) UserByEmail(ctx context.Context, email string) (*supply.User, error) {
	return s.userByLookup(ctx, userEmailKeyPrefix+email)
}

// UserByWallet retrieves a user by wallet address.
func (s *LevelStore) UserByWallet(ctx context.Context, wallet string) (*supply.User, error) {
	return s.userByLookup(ctx, userWalletPrefix+wallet)
}

// Users returns all users, newest first.
func (s *LevelStore) Users(_ context.Context) ([]*supply.User, error) {
	users := make([]*supply.User, 0)

	iter := s.db.NewIterator(util.BytesPrefix([]byte(userKeyPrefix)), nil)
	defer iter.Release()
	for iter.Next() {
		var user supply.User
		if err := json.Unmarshal(iter.Value(), &user); err != nil {
			return nil, fmt.Errorf("failed to unmarshal user: %w", err)
		}
		users = append(users, &user)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	return users, nil
}

// UsersByRole returns all users with a given role, newest first.
func (s *LevelStore) UsersByRole(ctx context.Context, role supply.Role) ([]*supply.User, error) {
	all, err := s.Users(ctx)
	if err != nil {
		return nil, err
	}
	users := make([]*supply.User, 0)
	for _, user := range all {
		if user.Role == role {
			users = append(users, user)
		}
	}
	return users, nil
}

// --- supply.Store: products ---

// InsertProduct stores a new product.
func (s *LevelStore) InsertProduct(_ context.Context, product *supply.Product) error {
	return s.putJSON(productKeyPrefix+product.ProductID, product)
}

// ProductByID retrieves a product by its product id.
func (s *LevelStore) ProductByID(_ context.Context, productID string) (*supply.Product, error) {
	var product supply.Product
	if err := s.getJSON(productKeyPrefix+productID, &product, supply.ErrProductNotFound); err != nil {
		return nil, err
	}
	return &product, nil
}

// Products returns all products, newest first.
func (s *LevelStore) Products(_ context.Context) ([]*supply.Product, error) {
	products := make([]*supply.Product, 0)

	iter := s.db.NewIterator(util.BytesPrefix([]byte(productKeyPrefix)), nil)
	defer iter.Release()
	for iter.Next() {
		var product supply.Product
		if err := json.Unmarshal(iter.Value(), &product); err != nil {
			return nil, fmt.Errorf("failed to unmarshal product: %w", err)
		}
		products = append(products, &product)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	sort.Slice(products, func(i, j int) bool { return products[i].CreatedAt.After(products[j].CreatedAt) })
	return products, nil
}

// ProductsByOwner returns the products currently owned by a user, newest first.
func (s *LevelStore) ProductsByOwner(ctx context.Context, ownerID string) ([]*supply.Product, error) {
	all, err := s.Products(ctx)
	if err != nil {
		return nil, err
	}
	products := make([]*supply.Product, 0)
	for _, product := range all {
		if product.CurrentOwner == ownerID {
			products = append(products, product)
		}
	}
	return products, nil
}

// UpdateProduct replaces the stored product.
func (s *LevelStore) UpdateProduct(_ context.Context, product *supply.Product) error {
	return s.putJSON(productKeyPrefix+product.ProductID, product)
}

// --- supply.Store: transfer requests ---

// InsertRequest stores a new transfer request.
func (s *LevelStore) InsertRequest(_ context.Context, request *supply.TransferRequest) error {
	return s.putJSON(requestKeyPrefix+request.ID, request)
}

// RequestByID retrieves a transfer request by id.
func (s *LevelStore) RequestByID(_ context.Context, id string) (*supply.TransferRequest, error) {
	var request supply.TransferRequest
	if err := s.getJSON(requestKeyPrefix+id, &request, supply.ErrRequestNotFound); err != nil {
		return nil, err
	}
	return &request, nil
}

// RequestsForUser lists a user's requests in the given direction, newest first.
func (s *LevelStore) RequestsForUser(_ context.Context, userID string, direction supply.RequestDirection) ([]*supply.TransferRequest, error) {
	requests := make([]*supply.TransferRequest, 0)

	iter := s.db.NewIterator(util.BytesPrefix([]byte(requestKeyPrefix)), nil)
	defer iter.Release()
	for iter.Next() {
		var request supply.TransferRequest
		if err := json.Unmarshal(iter.Value(), &request); err != nil {
			return nil, fmt.Errorf("failed to unmarshal request: %w", err)
		}

		match := false
		switch direction {
		case supply.RequestsReceived:
			match = request.FromUser == userID
		case supply.RequestsSent:
			match = request.ToUser == userID
		default:
			match = request.FromUser == userID || request.ToUser == userID
		}
		if match {
			requests = append(requests, &request)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("error iterating requests: %w", err)
	}

	sort.Slice(requests, func(i, j int) bool { return requests[i].CreatedAt.After(requests[j].CreatedAt) })
	return requests, nil
}

// SettleRequest is the pending→accepted/rejected compare-and-swap. The mutex
// makes the read-check-write sequence atomic within this process.
func (s *LevelStore) SettleRequest(ctx context.Context, id string, status supply.RequestStatus, respondedAt time.Time, message string) (*supply.TransferRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, err := s.RequestByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if request.Status != supply.RequestPending {
		return nil, supply.ErrRequestProcessed
	}

	request.Status = status
	request.RespondedAt = respondedAt
	if message != "" {
		request.Message = message
	}
	if err := s.putJSON(requestKeyPrefix+id, request); err != nil {
		return nil, err
	}
	return request, nil
}

// SetRequestTxHash stamps the ledger tx hash on a request.
func (s *LevelStore) SetRequestTxHash(ctx context.Context, id string, txHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	request, err := s.RequestByID(ctx, id)
	if err != nil {
		return err
	}
	request.TxHash = txHash
	return s.putJSON(requestKeyPrefix+id, request)
}

// --- supply.Store: audit transactions ---

// InsertTransaction appends an audit row. The key embeds the insertion time
// so a prefix scan yields rows in chronological order.
func (s *LevelStore) InsertTransaction(_ context.Context, txn *supply.Transaction) error {
	key := fmt.Sprintf("%s%s_%020d_%s", txnKeyPrefix, txn.ProductID, txn.Timestamp.UnixNano(), txn.ID)
	return s.putJSON(key, txn)
}

// TransactionsByProduct returns a product's audit rows, oldest first.
func (s *LevelStore) TransactionsByProduct(_ context.Context, productID string) ([]*supply.Transaction, error) {
	txns := make([]*supply.Transaction, 0)

	prefix := fmt.Sprintf("%s%s_", txnKeyPrefix, productID)
	iter := s.db.NewIterator(util.BytesPrefix([]byte(prefix)), nil)
	defer iter.Release()
	for iter.Next() {
		var txn supply.Transaction
		if err := json.Unmarshal(iter.Value(), &txn); err != nil {
			return nil, fmt.Errorf("failed to unmarshal transaction: %w", err)
		}
		txns = append(txns, &txn)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txns, nil
}
