package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"agrichain_go/ledger"
	"agrichain_go/supply"
	"agrichain_go/utils"
)

// Collection names, matching the persisted schema.
const (
	usersCollection        = "users"
	productsCollection     = "products"
	transactionsCollection = "transactions"
	requestsCollection     = "transferrequests"
	blocksCollection       = "blocks"
)

// MongoStore is the document-store persistence backend. It implements both
// ledger.BlockStore and supply.Store.
//
// Block-number uniqueness rides on a unique index; the pending→settled
// transition on transfer requests is a single FindOneAndUpdate conditioned on
// status, so concurrent accepts race safely across processes too.
type MongoStore struct {
	client       *mongo.Client
	users        *mongo.Collection
	products     *mongo.Collection
	transactions *mongo.Collection
	requests     *mongo.Collection
	blocks       *mongo.Collection
}

var (
	_ ledger.BlockStore = (*MongoStore)(nil)
	_ supply.Store      = (*MongoStore)(nil)
)

// NewMongoStore connects to MongoDB, pings it, and ensures the indexes the
// store's guarantees depend on.
func NewMongoStore(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(dbName)
	store := &MongoStore{
		client:       client,
		users:        db.Collection(usersCollection),
		products:     db.Collection(productsCollection),
		transactions: db.Collection(transactionsCollection),
		requests:     db.Collection(requestsCollection),
		blocks:       db.Collection(blocksCollection),
	}
	if err := store.ensureIndexes(ctx); err != nil {
		return nil, err
	}

	utils.LogInfo("MongoDB store connected: %s/%s", uri, dbName)
	return store, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)

	if _, err := s.blocks.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "blockNumber", Value: 1}},
		Options: unique,
	}); err != nil {
		return fmt.Errorf("failed to create block index: %w", err)
	}
	if _, err := s.users.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: unique,
	}); err != nil {
		return fmt.Errorf("failed to create user email index: %w", err)
	}
	return nil
}

// Close disconnects from MongoDB.
func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// --- ledger.BlockStore ---

// InsertBlock persists a block; the unique index reports number collisions.
func (s *MongoStore) InsertBlock(ctx context.Context, block *ledger.Block) error {
	_, err := s.blocks.InsertOne(ctx, block)
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("block %d: %w", block.BlockNumber, ledger.ErrDuplicateBlockNumber)
	}
	if err != nil {
		return fmt.Errorf("failed to insert block: %w", err)
	}
	return nil
}

// LatestBlock returns the highest-numbered block, or nil for an empty chain.
func (s *MongoStore) LatestBlock(ctx context.Context) (*ledger.Block, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "blockNumber", Value: -1}})

	var block ledger.Block
	err := s.blocks.FindOne(ctx, bson.M{}, opts).Decode(&block)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read latest block: %w", err)
	}
	return &block, nil
}

// BlockByNumber retrieves a block by its number.
func (s *MongoStore) BlockByNumber(ctx context.Context, number uint64) (*ledger.Block, error) {
	var block ledger.Block
	err := s.blocks.FindOne(ctx, bson.M{"blockNumber": number}).Decode(&block)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ledger.ErrBlockNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read block %d: %w", number, err)
	}
	return &block, nil
}

// LatestBlocks returns up to limit blocks, newest first.
func (s *MongoStore) LatestBlocks(ctx context.Context, limit int) ([]*ledger.Block, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "blockNumber", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := s.blocks.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read latest blocks: %w", err)
	}
	blocks := make([]*ledger.Block, 0, limit)
	if err := cursor.All(ctx, &blocks); err != nil {
		return nil, fmt.Errorf("failed to decode blocks: %w", err)
	}
	return blocks, nil
}

// CountBlocks returns the number of stored blocks.
func (s *MongoStore) CountBlocks(ctx context.Context) (int64, error) {
	count, err := s.blocks.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count blocks: %w", err)
	}
	return count, nil
}

// AllBlocks returns the whole chain in ascending block number order.
func (s *MongoStore) AllBlocks(ctx context.Context) ([]*ledger.Block, error) {
	opts := options.Find().SetSort(bson.D{{Key: "blockNumber", Value: 1}})

	cursor, err := s.blocks.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain: %w", err)
	}
	blocks := make([]*ledger.Block, 0)
	if err := cursor.All(ctx, &blocks); err != nil {
		return nil, fmt.Errorf("failed to decode blocks: %w", err)
	}
	return blocks, nil
}

// --- supply.Store: users ---

// InsertUser persists a user; the unique email index reports duplicates.
func (s *MongoStore) InsertUser(ctx context.Context, user *supply.User) error {
	_, err := s.users.InsertOne(ctx, user)
	if mongo.IsDuplicateKeyError(err) {
		return supply.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *MongoStore) findUser(ctx context.Context, filter bson.M) (*supply.User, error) {
	var user supply.User
	err := s.users.FindOne(ctx, filter).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, supply.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read user: %w", err)
	}
	return &user, nil
}

// UserByID retrieves a user by id.
func (s *MongoStore) UserByID(ctx context.Context, id string) (*supply.User, error) {
	return s.findUser(ctx, bson.M{"_id": id})
}

// UserByEmail retrieves a user by email.
func (s *MongoStore) UserByEmail(ctx context.Context, email string) (*supply.User, error) {
	return s.findUser(ctx, bson.M{"email": email})
}

// UserByWallet retrieves a user by wallet address.
func (s *MongoStore) UserByWallet(ctx context.Context, wallet string) (*supply.User, error) {
	return s.findUser(ctx, bson.M{"walletAddress": wallet})
}

func (s *MongoStore) findUsers(ctx context.Context, filter bson.M) ([]*supply.User, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := s.users.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read users: %w", err)
	}
	users := make([]*supply.User, 0)
	if err := cursor.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}

// Users returns all users, newest first.
func (s *MongoStore) Users(ctx context.Context) ([]*supply.User, error) {
	return s.findUsers(ctx, bson.M{})
}

// UsersByRole returns all users with a given role, newest first.
func (s *MongoStore) UsersByRole(ctx context.Context, role supply.Role) ([]*supply.User, error) {
	return s.findUsers(ctx, bson.M{"role": role})
}

// --- supply.Store: products ---

// InsertProduct persists a new product.
func (s *MongoStore) InsertProduct(ctx context.Context, product *supply.Product) error {
	if _, err := s.products.InsertOne(ctx, product); err != nil {
		return fmt.Errorf("failed to insert product: %w", err)
	}
	return nil
}

// ProductByID retrieves a product by its product id.
func (s *MongoStore) ProductByID(ctx context.Context, productID string) (*supply.Product, error) {
	var product supply.Product
	err := s.products.FindOne(ctx, bson.M{"_id": productID}).Decode(&product)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, supply.ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read product: %w", err)
	}
	return &product, nil
}

func (s *MongoStore) findProducts(ctx context.Context, filter bson.M) ([]*supply.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	cursor, err := s.products.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read products: %w", err)
	}
	products := make([]*supply.Product, 0)
	if err := cursor.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}
	return products, nil
}

// Products returns all products, newest first.
func (s *MongoStore) Products(ctx context.Context) ([]*supply.Product, error) {
	return s.findProducts(ctx, bson.M{})
}

// ProductsByOwner returns the products currently owned by a user.
func (s *MongoStore) ProductsByOwner(ctx context.Context, ownerID string) ([]*supply.Product, error) {
	return s.findProducts(ctx, bson.M{"currentOwner": ownerID})
}

// UpdateProduct replaces the stored product.
func (s *MongoStore) UpdateProduct(ctx context.Context, product *supply.Product) error {
	result, err := s.products.ReplaceOne(ctx, bson.M{"_id": product.ProductID}, product)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	if result.MatchedCount == 0 {
		return supply.ErrProductNotFound
	}
	return nil
}

// --- supply.Store: transfer requests ---

// InsertRequest persists a new transfer request.
func (s *MongoStore) InsertRequest(ctx context.Context, request *supply.TransferRequest) error {
	if _, err := s.requests.InsertOne(ctx, request); err != nil {
		return fmt.Errorf("failed to insert request: %w", err)
	}
	return nil
}

// RequestByID retrieves a transfer request by id.
func (s *MongoStore) RequestByID(ctx context.Context, id string) (*supply.TransferRequest, error) {
	var request supply.TransferRequest
	err := s.requests.FindOne(ctx, bson.M{"_id": id}).Decode(&request)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, supply.ErrRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read request: %w", err)
	}
	return &request, nil
}

// RequestsForUser lists a user's requests in the given direction, newest first.
func (s *MongoStore) RequestsForUser(ctx context.Context, userID string, direction supply.RequestDirection) ([]*supply.TransferRequest, error) {
	var filter bson.M
	switch direction {
	case supply.RequestsReceived:
		filter = bson.M{"fromUser": userID}
	case supply.RequestsSent:
		filter = bson.M{"toUser": userID}
	default:
		filter = bson.M{"$or": bson.A{bson.M{"fromUser": userID}, bson.M{"toUser": userID}}}
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := s.requests.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read requests: %w", err)
	}
	requests := make([]*supply.TransferRequest, 0)
	if err := cursor.All(ctx, &requests); err != nil {
		return nil, fmt.Errorf("failed to decode requests: %w", err)
	}
	return requests, nil
}

// SettleRequest is a single conditional update on {_id, status: pending}, so
// exactly one of any number of concurrent accept/reject calls wins.
func (s *MongoStore) SettleRequest(ctx context.Context, id string, status supply.RequestStatus, respondedAt time.Time, message string) (*supply.TransferRequest, error) {
	set := bson.M{
		"status":      status,
		"respondedAt": respondedAt,
	}
	if message != "" {
		set["message"] = message
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var request supply.TransferRequest
	err := s.requests.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "status": supply.RequestPending},
		bson.M{"$set": set},
		opts,
	).Decode(&request)
	if errors.Is(err, mongo.ErrNoDocuments) {
		// Lost the race or never existed; look up which.
		if _, lookupErr := s.RequestByID(ctx, id); lookupErr != nil {
			return nil, lookupErr
		}
		return nil, supply.ErrRequestProcessed
	}
	if err != nil {
		return nil, fmt.Errorf("failed to settle request: %w", err)
	}
	return &request, nil
}

// SetRequestTxHash stamps the ledger tx hash on a request.
func (s *MongoStore) SetRequestTxHash(ctx context.Context, id string, txHash string) error {
	result, err := s.requests.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"txHash": txHash}})
	if err != nil {
		return fmt.Errorf("failed to stamp request tx hash: %w", err)
	}
	if result.MatchedCount == 0 {
		return supply.ErrRequestNotFound
	}
	return nil
}

// --- supply.Store: audit transactions ---

// InsertTransaction appends an audit row.
func (s *MongoStore) InsertTransaction(ctx context.Context, txn *supply.Transaction) error {
	if _, err := s.transactions.InsertOne(ctx, txn); err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// TransactionsByProduct returns a product's audit rows, oldest first.
func (s *MongoStore) TransactionsByProduct(ctx context.Context, productID string) ([]*supply.Transaction, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})

	cursor, err := s.transactions.Find(ctx, bson.M{"productId": productID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}
	txns := make([]*supply.Transaction, 0)
	if err := cursor.All(ctx, &txns); err != nil {
		return nil, fmt.Errorf("failed to decode transactions: %w", err)
	}
	return txns, nil
}
