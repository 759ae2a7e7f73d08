package supply

import (
	"time"
)

// User is a supply-chain participant. The wallet address is generated at
// registration and never changes.
type User struct {
	ID            string    `bson:"_id" json:"id"`
	Name          string    `bson:"name" json:"name"`
	Email         string    `bson:"email" json:"email"`
	WalletAddress string    `bson:"walletAddress" json:"walletAddress"`
	Role          Role      `bson:"role" json:"role"`
	Location      string    `bson:"location" json:"location"`
	CreatedAt     time.Time `bson:"createdAt" json:"createdAt"`
}

// Image is an opaque uploaded-image reference attached to a product.
type Image struct {
	URL      string `bson:"url" json:"url"`
	PublicID string `bson:"publicId" json:"publicId"`
}

// Certification is a quality/origin certificate attached to a product.
type Certification struct {
	Name           string    `bson:"name" json:"name"`
	IssuedBy       string    `bson:"issuedBy" json:"issuedBy"`
	IssuedDate     time.Time `bson:"issuedDate" json:"issuedDate"`
	CertificateURL string    `bson:"certificateUrl" json:"certificateUrl"`
}

// QualityMetrics is the latest sensor snapshot for a product.
type QualityMetrics struct {
	Temperature float64   `bson:"temperature,omitempty" json:"temperature,omitempty"`
	Humidity    float64   `bson:"humidity,omitempty" json:"humidity,omitempty"`
	PH          float64   `bson:"ph,omitempty" json:"ph,omitempty"`
	LastChecked time.Time `bson:"lastChecked,omitempty" json:"lastChecked,omitempty"`
}

// LocationEntry is an append-only location snapshot in a product's history.
type LocationEntry struct {
	Location  string        `bson:"location" json:"location"`
	Latitude  float64       `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude float64       `bson:"longitude,omitempty" json:"longitude,omitempty"`
	Timestamp time.Time     `bson:"timestamp" json:"timestamp"`
	Status    ProductStatus `bson:"status" json:"status"`
	UpdatedBy string        `bson:"updatedBy" json:"updatedBy"`
}

// CustodyEntry is an append-only record of who held a product and when.
// The last entry's User always matches Product.CurrentOwner.
type CustodyEntry struct {
	Role       Role          `bson:"role" json:"role"`
	User       string        `bson:"user" json:"user"`
	Wallet     string        `bson:"wallet" json:"wallet"`
	ReceivedAt time.Time     `bson:"receivedAt" json:"receivedAt"`
	Status     ProductStatus `bson:"status" json:"status"`
	TxHash     string        `bson:"txHash" json:"txHash"`
}

// Product is an agricultural product tracked through the supply chain. It is
// created once by a farmer and never deleted; ownership and status mutate
// only through accepted transfer requests and status updates.
type Product struct {
	ProductID          string          `bson:"_id" json:"productId"`
	Name               string          `bson:"name" json:"name"`
	Description        string          `bson:"description,omitempty" json:"description,omitempty"`
	Category           string          `bson:"category" json:"category"`
	Quantity           float64         `bson:"quantity" json:"quantity"`
	Unit               string          `bson:"unit" json:"unit"`
	Price              float64         `bson:"price" json:"price"`
	Images             []Image         `bson:"images,omitempty" json:"images,omitempty"`
	CurrentOwner       string          `bson:"currentOwner" json:"currentOwner"`
	CurrentOwnerWallet string          `bson:"currentOwnerWallet" json:"currentOwnerWallet"`
	Status             ProductStatus   `bson:"status" json:"status"`
	OriginLocation     string          `bson:"originLocation" json:"originLocation"`
	OriginLatitude     float64         `bson:"originLatitude,omitempty" json:"originLatitude,omitempty"`
	OriginLongitude    float64         `bson:"originLongitude,omitempty" json:"originLongitude,omitempty"`
	CurrentLocation    string          `bson:"currentLocation" json:"currentLocation"`
	CurrentLatitude    float64         `bson:"currentLatitude,omitempty" json:"currentLatitude,omitempty"`
	CurrentLongitude   float64         `bson:"currentLongitude,omitempty" json:"currentLongitude,omitempty"`
	LocationHistory    []LocationEntry `bson:"locationHistory" json:"locationHistory"`
	HarvestDate        time.Time       `bson:"harvestDate" json:"harvestDate"`
	ExpiryDate         time.Time       `bson:"expiryDate,omitempty" json:"expiryDate,omitempty"`
	Certifications     []Certification `bson:"certifications,omitempty" json:"certifications,omitempty"`
	QualityMetrics     QualityMetrics  `bson:"qualityMetrics,omitempty" json:"qualityMetrics,omitempty"`
	SupplyChain        []CustodyEntry  `bson:"supplyChain" json:"supplyChain"`
	QRCode             string          `bson:"qrCode,omitempty" json:"qrCode,omitempty"`
	TxHash             string          `bson:"txHash,omitempty" json:"txHash,omitempty"`
	IsAvailable        bool            `bson:"isAvailable" json:"isAvailable"`
	CreatedAt          time.Time       `bson:"createdAt" json:"createdAt"`
}

// TransferRequest is a proposal by a prospective receiver to take custody of
// a product from its current owner. It mutates exactly once, from pending to
// accepted or rejected, and is immutable thereafter.
type TransferRequest struct {
	ID                   string        `bson:"_id" json:"id"`
	ProductID            string        `bson:"productId" json:"productId"`
	FromUser             string        `bson:"fromUser" json:"fromUser"`
	FromWallet           string        `bson:"fromWallet" json:"fromWallet"`
	ToUser               string        `bson:"toUser" json:"toUser"`
	ToWallet             string        `bson:"toWallet" json:"toWallet"`
	RequestType          RequestType   `bson:"requestType" json:"requestType"`
	Status               RequestStatus `bson:"status" json:"status"`
	Message              string        `bson:"message,omitempty" json:"message,omitempty"`
	ProposedPrice        float64       `bson:"proposedPrice,omitempty" json:"proposedPrice,omitempty"`
	Location             string        `bson:"location,omitempty" json:"location,omitempty"`
	ExpectedDeliveryDate time.Time     `bson:"expectedDeliveryDate,omitempty" json:"expectedDeliveryDate,omitempty"`
	CreatedAt            time.Time     `bson:"createdAt" json:"createdAt"`
	RespondedAt          time.Time     `bson:"respondedAt,omitempty" json:"respondedAt,omitempty"`
	TxHash               string        `bson:"txHash,omitempty" json:"txHash,omitempty"`
}

// TransactionType classifies audit rows by the lifecycle event they record.
type TransactionType string

const (
	TxnRegister     TransactionType = "register"
	TxnRequest      TransactionType = "request"
	TxnAccept       TransactionType = "accept"
	TxnTransfer     TransactionType = "transfer"
	TxnStatusUpdate TransactionType = "status_update"
)

// TxnMetadata links an audit row back to the transfer request that caused it.
type TxnMetadata struct {
	RequestID   string      `bson:"requestId,omitempty" json:"requestId,omitempty"`
	RequestType RequestType `bson:"requestType,omitempty" json:"requestType,omitempty"`
}

// Transaction is an append-only audit row, one per product lifecycle event.
// Distinct from ledger.TxRecord: this is the queryable history, the TxRecord
// is what gets hashed into a block.
type Transaction struct {
	ID          string          `bson:"_id" json:"id"`
	ProductID   string          `bson:"productId" json:"productId"`
	FromOwner   string          `bson:"fromOwner" json:"fromOwner"`
	FromWallet  string          `bson:"fromWallet" json:"fromWallet"`
	ToOwner     string          `bson:"toOwner" json:"toOwner"`
	ToWallet    string          `bson:"toWallet" json:"toWallet"`
	Type        TransactionType `bson:"type" json:"type"`
	TxHash      string          `bson:"txHash" json:"txHash"`
	GasUsed     string          `bson:"gasUsed,omitempty" json:"gasUsed,omitempty"`
	BlockNumber uint64          `bson:"blockNumber,omitempty" json:"blockNumber,omitempty"`
	Location    string          `bson:"location,omitempty" json:"location,omitempty"`
	Latitude    float64         `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude   float64         `bson:"longitude,omitempty" json:"longitude,omitempty"`
	Temperature float64         `bson:"temperature,omitempty" json:"temperature,omitempty"`
	Humidity    float64         `bson:"humidity,omitempty" json:"humidity,omitempty"`
	Notes       string          `bson:"notes,omitempty" json:"notes,omitempty"`
	Metadata    TxnMetadata     `bson:"metadata,omitempty" json:"metadata,omitempty"`
	Timestamp   time.Time       `bson:"timestamp" json:"timestamp"`
}

// CurrentCustody returns the last custody entry, or nil for a product with an
// empty supply chain (which should not occur for persisted products).
func (p *Product) CurrentCustody() *CustodyEntry {
	if len(p.SupplyChain) == 0 {
		return nil
	}
	return &p.SupplyChain[len(p.SupplyChain)-1]
}
