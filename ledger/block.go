package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"time"
)

// GenesisPreviousHash is the previousHash of the first block in the chain.
const GenesisPreviousHash = "0000000000000000000000000000000000000000000000000000000000000000"

// ZeroMiner is the cosmetic miner address stamped on every block.
const ZeroMiner = "0x0000000000000000000000000000000000000000"

// TxType identifies the kind of event a TxRecord captures.
type TxType string

const (
	TxProductRegistration TxType = "PRODUCT_REGISTRATION"
	TxStatusUpdate        TxType = "STATUS_UPDATE"
	TxTransferRequest     TxType = "TRANSFER_REQUEST"
	TxTransferAccepted    TxType = "TRANSFER_ACCEPTED"
)

// TxData is the payload of a TxRecord. It is a tagged union keyed by the
// record's Type: each type populates its own subset of fields and leaves the
// rest empty. Keeping this a fixed struct (rather than a free-form map) makes
// JSON marshaling deterministic, so a block's hash recomputes identically
// after a round-trip through any store.
type TxData struct {
	// PRODUCT_REGISTRATION
	Name     string `bson:"name,omitempty" json:"name,omitempty"`
	Category string `bson:"category,omitempty" json:"category,omitempty"`
	Origin   string `bson:"origin,omitempty" json:"origin,omitempty"`
	Farmer   string `bson:"farmer,omitempty" json:"farmer,omitempty"`

	// TRANSFER_REQUEST
	Requester string `bson:"requester,omitempty" json:"requester,omitempty"`
	Role      string `bson:"role,omitempty" json:"role,omitempty"`
	Message   string `bson:"message,omitempty" json:"message,omitempty"`

	// TRANSFER_ACCEPTED
	AcceptedBy string `bson:"acceptedBy,omitempty" json:"acceptedBy,omitempty"`
	ReceivedBy string `bson:"receivedBy,omitempty" json:"receivedBy,omitempty"`
	NewStatus  string `bson:"newStatus,omitempty" json:"newStatus,omitempty"`

	// STATUS_UPDATE
	Location  string `bson:"location,omitempty" json:"location,omitempty"`
	UpdatedBy string `bson:"updatedBy,omitempty" json:"updatedBy,omitempty"`
}

// TxRecord is a single transaction record embedded in a block. Records are
// immutable once a block is written.
type TxRecord struct {
	TxHash    string `bson:"txHash" json:"txHash"`
	Type      TxType `bson:"type" json:"type"`
	From      string `bson:"from" json:"from"`
	To        string `bson:"to" json:"to"`
	ProductID string `bson:"productId" json:"productId"`
	Data      TxData `bson:"data" json:"data"`
}

// Block is a single block in the ledger. The Timestamp is kept as an RFC3339
// string because it is part of the hash input; storing a native time value
// would lose precision in the document store and break hash recomputation.
//
// Nonce, GasUsed, Difficulty and Miner are cosmetic display fields. No
// proof-of-work search is performed.
type Block struct {
	BlockNumber  uint64     `bson:"blockNumber" json:"blockNumber"`
	Timestamp    string     `bson:"timestamp" json:"timestamp"`
	Transactions []TxRecord `bson:"transactions" json:"transactions"`
	PreviousHash string     `bson:"previousHash" json:"previousHash"`
	Hash         string     `bson:"hash" json:"hash"`
	Nonce        uint64     `bson:"nonce" json:"nonce"`
	Miner        string     `bson:"miner" json:"miner"`
	GasUsed      string     `bson:"gasUsed" json:"gasUsed"`
	Difficulty   uint64     `bson:"difficulty" json:"difficulty"`
}

// ComputeHash hashes the identifying fields of a block:
// SHA256(blockNumber ‖ timestamp ‖ JSON(transactions) ‖ previousHash ‖ nonce).
func ComputeHash(blockNumber uint64, timestamp string, transactions []TxRecord, previousHash string, nonce uint64) string {
	txJSON, _ := json.Marshal(transactions)

	record := strconv.FormatUint(blockNumber, 10) + timestamp + string(txJSON) + previousHash + strconv.FormatUint(nonce, 10)

	sum := sha256.Sum256([]byte(record))
	return hex.EncodeToString(sum[:])
}

// CalculateHash recomputes the block's hash from its own fields.
func (b *Block) CalculateHash() string {
	return ComputeHash(b.BlockNumber, b.Timestamp, b.Transactions, b.PreviousHash, b.Nonce)
}

// NewBlock initializes a block linked to the given predecessor state and
// seals it with its content hash.
func NewBlock(blockNumber uint64, previousHash string, transactions []TxRecord) *Block {
	b := &Block{
		BlockNumber:  blockNumber,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Transactions: transactions,
		PreviousHash: previousHash,
		Nonce:        randomNonce(),
		Miner:        ZeroMiner,
		GasUsed:      displayGasUsed(),
		Difficulty:   randomDifficulty(),
	}
	b.Hash = b.CalculateHash()
	return b
}
