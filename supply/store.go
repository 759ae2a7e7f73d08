package supply

import (
	"context"
	"time"
)

// RequestDirection filters transfer request listings for a user.
type RequestDirection string

const (
	// RequestsReceived selects requests where the user is the current owner.
	RequestsReceived RequestDirection = "received"
	// RequestsSent selects requests the user created.
	RequestsSent RequestDirection = "sent"
	// RequestsAll selects both directions.
	RequestsAll RequestDirection = "all"
)

// Store is the persistence the service needs. Both the leveldb and the mongo
// implementations in the storage package satisfy it.
type Store interface {
	// InsertUser persists a new user. Email uniqueness is enforced by the
	// service via UserByEmail before insert and by the store's own constraint,
	// which reports ErrDuplicateEmail.
	InsertUser(ctx context.Context, user *User) error
	// UserByID returns ErrUserNotFound when the user does not exist.
	UserByID(ctx context.Context, id string) (*User, error)
	// UserByEmail returns ErrUserNotFound when no user has the email.
	UserByEmail(ctx context.Context, email string) (*User, error)
	// UserByWallet returns ErrUserNotFound when no user has the wallet address.
	UserByWallet(ctx context.Context, wallet string) (*User, error)
	// Users returns all users, newest first.
	Users(ctx context.Context) ([]*User, error)
	// UsersByRole returns all users with the given role, newest first.
	UsersByRole(ctx context.Context, role Role) ([]*User, error)

	// InsertProduct persists a new product.
	InsertProduct(ctx context.Context, product *Product) error
	// ProductByID returns ErrProductNotFound when the product does not exist.
	ProductByID(ctx context.Context, productID string) (*Product, error)
	// Products returns all products, newest first.
	Products(ctx context.Context) ([]*Product, error)
	// ProductsByOwner returns the products currently owned by a user, newest first.
	ProductsByOwner(ctx context.Context, ownerID string) ([]*Product, error)
	// UpdateProduct replaces the stored product.
	UpdateProduct(ctx context.Context, product *Product) error

	// InsertRequest persists a new transfer request.
	InsertRequest(ctx context.Context, request *TransferRequest) error
	// RequestByID returns ErrRequestNotFound when the request does not exist.
	RequestByID(ctx context.Context, id string) (*TransferRequest, error)
	// RequestsForUser lists a user's requests in the given direction, newest first.
	RequestsForUser(ctx context.Context, userID string, direction RequestDirection) ([]*TransferRequest, error)
	// SettleRequest atomically moves a pending request to a terminal status,
	// stamping respondedAt and, when non-empty, replacing the message. It is a
	// compare-and-swap on the status field: a request that is no longer pending
	// yields ErrRequestProcessed, a missing one ErrRequestNotFound. The updated
	// request is returned.
	SettleRequest(ctx context.Context, id string, status RequestStatus, respondedAt time.Time, message string) (*TransferRequest, error)
	// SetRequestTxHash stamps the ledger tx hash on a settled request.
	SetRequestTxHash(ctx context.Context, id string, txHash string) error

	// InsertTransaction appends an audit row. Rows are never mutated.
	InsertTransaction(ctx context.Context, txn *Transaction) error
	// TransactionsByProduct returns a product's audit rows, oldest first.
	TransactionsByProduct(ctx context.Context, productID string) ([]*Transaction, error)
}
