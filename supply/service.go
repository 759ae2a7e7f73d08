package supply

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"agrichain_go/ledger"
	"agrichain_go/qr"
	"agrichain_go/utils"
)

// DefaultVerifyBaseURL is where product QR codes point consumers for
// verification when no override is configured.
const DefaultVerifyBaseURL = "http://localhost:3000/verify"

// Service enforces the ownership/status state machine and records every
// transition on the ledger plus an audit Transaction row.
type Service struct {
	store         Store
	chain         *ledger.Writer
	verifyBaseURL string
}

// NewService creates the supply-chain service.
func NewService(store Store, chain *ledger.Writer) *Service {
	return &Service{
		store:         store,
		chain:         chain,
		verifyBaseURL: DefaultVerifyBaseURL,
	}
}

// SetVerifyBaseURL overrides the base URL embedded in product QR codes.
func (s *Service) SetVerifyBaseURL(url string) {
	if url != "" {
		s.verifyBaseURL = url
	}
}

// RegisterUserInput carries the fields for a new participant.
type RegisterUserInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	Location string `json:"location"`
}

// RegisterUser creates a participant with a freshly generated wallet address.
func (s *Service) RegisterUser(ctx context.Context, in RegisterUserInput) (*User, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if in.Email == "" {
		return nil, fmt.Errorf("%w: email is required", ErrValidation)
	}
	if !in.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, in.Role)
	}

	if _, err := s.store.UserByEmail(ctx, in.Email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("checking email: %w", err)
	}

	user := &User{
		ID:            uuid.NewString(),
		Name:          in.Name,
		Email:         in.Email,
		WalletAddress: ledger.NewWalletAddress(),
		Role:          in.Role,
		Location:      in.Location,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.InsertUser(ctx, user); err != nil {
		return nil, fmt.Errorf("inserting user: %w", err)
	}

	utils.LogInfo("User %s registered as %s with wallet %s", user.Name, user.Role, user.WalletAddress)
	return user, nil
}

// UserByID looks up a single user.
func (s *Service) UserByID(ctx context.Context, id string) (*User, error) {
	return s.store.UserByID(ctx, id)
}

// UserByWallet looks up a user by wallet address.
func (s *Service) UserByWallet(ctx context.Context, wallet string) (*User, error) {
	return s.store.UserByWallet(ctx, wallet)
}

// Users lists all users, newest first.
func (s *Service) Users(ctx context.Context) ([]*User, error) {
	return s.store.Users(ctx)
}

// UsersByRole lists users with a given role.
func (s *Service) UsersByRole(ctx context.Context, role Role) ([]*User, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	return s.store.UsersByRole(ctx, role)
}

// RegisterProductInput carries the fields for a new product registration.
type RegisterProductInput struct {
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Category        string    `json:"category"`
	Quantity        float64   `json:"quantity"`
	Unit            string    `json:"unit"`
	Price           float64   `json:"price"`
	OwnerID         string    `json:"ownerId"`
	OriginLocation  string    `json:"originLocation"`
	OriginLatitude  float64   `json:"originLatitude"`
	OriginLongitude float64   `json:"originLongitude"`
	HarvestDate     time.Time `json:"harvestDate"`
	ExpiryDate      time.Time `json:"expiryDate"`
}

// RegisterProductResult bundles the created product with its ledger block.
type RegisterProductResult struct {
	Product *Product      `json:"product"`
	Block   *ledger.Block `json:"block"`
}

// RegisterProduct creates a product owned by a farmer, seeds its custody and
// location history, generates the tracking QR code, and records a
// PRODUCT_REGISTRATION block plus the matching audit row.
func (s *Service) RegisterProduct(ctx context.Context, in RegisterProductInput) (*RegisterProductResult, error) {
	if in.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if in.Category == "" {
		return nil, fmt.Errorf("%w: category is required", ErrValidation)
	}
	if in.OriginLocation == "" {
		return nil, fmt.Errorf("%w: originLocation is required", ErrValidation)
	}
	if in.HarvestDate.IsZero() {
		return nil, fmt.Errorf("%w: harvestDate is required", ErrValidation)
	}

	farmer, err := s.store.UserByID(ctx, in.OwnerID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrNotFarmer
		}
		return nil, fmt.Errorf("loading owner: %w", err)
	}
	if farmer.Role != RoleFarmer {
		return nil, ErrNotFarmer
	}

	now := time.Now().UTC()
	productID := NewProductID()
	txHash := ledger.NewTxHash()

	unit := in.Unit
	if unit == "" {
		unit = "kg"
	}

	block, err := s.chain.CreateBlock(ctx, []ledger.TxRecord{{
		TxHash:    txHash,
		Type:      ledger.TxProductRegistration,
		From:      farmer.WalletAddress,
		To:        farmer.WalletAddress,
		ProductID: productID,
		Data: ledger.TxData{
			Name:     in.Name,
			Category: in.Category,
			Origin:   in.OriginLocation,
			Farmer:   farmer.Name,
		},
	}})
	if err != nil {
		return nil, fmt.Errorf("recording registration block: %w", err)
	}

	product := &Product{
		ProductID:          productID,
		Name:               in.Name,
		Description:        in.Description,
		Category:           in.Category,
		Quantity:           in.Quantity,
		Unit:               unit,
		Price:              in.Price,
		CurrentOwner:       farmer.ID,
		CurrentOwnerWallet: farmer.WalletAddress,
		Status:             StatusRegistered,
		OriginLocation:     in.OriginLocation,
		OriginLatitude:     in.OriginLatitude,
		OriginLongitude:    in.OriginLongitude,
		CurrentLocation:    in.OriginLocation,
		CurrentLatitude:    in.OriginLatitude,
		CurrentLongitude:   in.OriginLongitude,
		HarvestDate:        in.HarvestDate,
		ExpiryDate:         in.ExpiryDate,
		TxHash:             txHash,
		IsAvailable:        true,
		CreatedAt:          now,
		SupplyChain: []CustodyEntry{{
			Role:       RoleFarmer,
			User:       farmer.ID,
			Wallet:     farmer.WalletAddress,
			ReceivedAt: now,
			Status:     StatusRegistered,
			TxHash:     txHash,
		}},
		LocationHistory: []LocationEntry{{
			Location:  in.OriginLocation,
			Latitude:  in.OriginLatitude,
			Longitude: in.OriginLongitude,
			Timestamp: now,
			Status:    StatusRegistered,
			UpdatedBy: farmer.ID,
		}},
	}

	qrCode, err := qr.DataURL(productID, in.Name, farmer.WalletAddress, s.verifyBaseURL)
	if err != nil {
		// The QR code is a convenience; registration proceeds without it.
		utils.LogError("QR code generation failed for %s: %v", productID, err)
	} else {
		product.QRCode = qrCode
	}

	if err := s.store.InsertProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("inserting product: %w", err)
	}

	txn := &Transaction{
		ID:          uuid.NewString(),
		ProductID:   productID,
		FromOwner:   farmer.ID,
		FromWallet:  farmer.WalletAddress,
		ToOwner:     farmer.ID,
		ToWallet:    farmer.WalletAddress,
		Type:        TxnRegister,
		TxHash:      txHash,
		GasUsed:     block.GasUsed,
		BlockNumber: block.BlockNumber,
		Location:    in.OriginLocation,
		Latitude:    in.OriginLatitude,
		Longitude:   in.OriginLongitude,
		Notes:       "Product registered on blockchain",
		Timestamp:   now,
	}
	if err := s.store.InsertTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("inserting audit transaction: %w", err)
	}

	utils.LogInfo("Product %s registered by farmer %s in block %d", productID, farmer.Name, block.BlockNumber)
	return &RegisterProductResult{Product: product, Block: block}, nil
}

// ProductWithHistory returns a product along with its full audit history,
// oldest event first.
func (s *Service) ProductWithHistory(ctx context.Context, productID string) (*Product, []*Transaction, error) {
	product, err := s.store.ProductByID(ctx, productID)
	if err != nil {
		return nil, nil, err
	}
	history, err := s.store.TransactionsByProduct(ctx, productID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading history: %w", err)
	}
	return product, history, nil
}

// Products lists all products, newest first.
func (s *Service) Products(ctx context.Context) ([]*Product, error) {
	return s.store.Products(ctx)
}

// ProductsByOwner lists the products a user currently holds.
func (s *Service) ProductsByOwner(ctx context.Context, ownerID string) ([]*Product, error) {
	return s.store.ProductsByOwner(ctx, ownerID)
}

// CreateRequestInput carries the fields for a new transfer request. The
// requester is the authenticated caller.
type CreateRequestInput struct {
	ProductID            string    `json:"productId"`
	ToUserID             string    `json:"toUserId"`
	Message              string    `json:"message"`
	ProposedPrice        float64   `json:"proposedPrice"`
	ExpectedDeliveryDate time.Time `json:"expectedDeliveryDate"`
}

// CreateRequestResult bundles a new transfer request with its audit row.
type CreateRequestResult struct {
	Request     *TransferRequest `json:"request"`
	Transaction *Transaction     `json:"transaction"`
}

// CreateTransferRequest proposes a custody transfer from the product's
// current owner to the requesting user. Legality is decided purely by the
// (owner role, requester role) pair. Creating a request does not write a
// ledger block; only the acceptance does.
func (s *Service) CreateTransferRequest(ctx context.Context, in CreateRequestInput) (*CreateRequestResult, error) {
	if in.ProductID == "" {
		return nil, fmt.Errorf("%w: productId is required", ErrValidation)
	}
	if in.ToUserID == "" {
		return nil, fmt.Errorf("%w: toUserId is required", ErrValidation)
	}

	product, err := s.store.ProductByID(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.IsAvailable {
		return nil, ErrProductUnavailable
	}

	owner, err := s.store.UserByID(ctx, product.CurrentOwner)
	if err != nil {
		return nil, fmt.Errorf("loading current owner: %w", err)
	}
	requester, err := s.store.UserByID(ctx, in.ToUserID)
	if err != nil {
		return nil, err
	}

	requestType, err := RequestTypeFor(owner.Role, requester.Role)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	request := &TransferRequest{
		ID:                   uuid.NewString(),
		ProductID:            product.ProductID,
		FromUser:             owner.ID,
		FromWallet:           owner.WalletAddress,
		ToUser:               requester.ID,
		ToWallet:             requester.WalletAddress,
		RequestType:          requestType,
		Status:               RequestPending,
		Message:              in.Message,
		ProposedPrice:        in.ProposedPrice,
		Location:             requester.Location,
		ExpectedDeliveryDate: in.ExpectedDeliveryDate,
		CreatedAt:            now,
	}
	if err := s.store.InsertRequest(ctx, request); err != nil {
		return nil, fmt.Errorf("inserting transfer request: %w", err)
	}

	txn := &Transaction{
		ID:         uuid.NewString(),
		ProductID:  product.ProductID,
		FromOwner:  owner.ID,
		FromWallet: owner.WalletAddress,
		ToOwner:    requester.ID,
		ToWallet:   requester.WalletAddress,
		Type:       TxnRequest,
		TxHash:     ledger.NewTxHash(),
		Location:   requester.Location,
		Notes:      fmt.Sprintf("Transfer request from %s", requester.Role),
		Metadata: TxnMetadata{
			RequestID:   request.ID,
			RequestType: requestType,
		},
		Timestamp: now,
	}
	if err := s.store.InsertTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("inserting audit transaction: %w", err)
	}

	utils.LogInfo("Transfer request %s created: %s -> %s for %s", request.ID, owner.Role, requester.Role, product.ProductID)
	return &CreateRequestResult{Request: request, Transaction: txn}, nil
}

// RequestsForUser lists a user's transfer requests.
func (s *Service) RequestsForUser(ctx context.Context, userID string, direction RequestDirection) ([]*TransferRequest, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: userId is required", ErrValidation)
	}
	switch direction {
	case RequestsReceived, RequestsSent, RequestsAll:
	default:
		direction = RequestsAll
	}
	return s.store.RequestsForUser(ctx, userID, direction)
}

// AcceptInput carries the optional handover details supplied by the accepting
// owner.
type AcceptInput struct {
	Location  string  `json:"location"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// AcceptResult bundles everything an accepted transfer produced.
type AcceptResult struct {
	Request     *TransferRequest `json:"request"`
	Product     *Product         `json:"product"`
	Transaction *Transaction     `json:"transaction"`
	Block       *ledger.Block    `json:"block"`
}

// AcceptTransferRequest runs the accept transition: settle the request
// (pending→accepted, a compare-and-swap that defeats concurrent double
// accepts), record the TRANSFER_ACCEPTED block, reassign ownership, advance
// the product status for the receiver's role, append custody and location
// history, and write the audit row. Only the current owner may accept.
func (s *Service) AcceptTransferRequest(ctx context.Context, requestID, actorID string, in AcceptInput) (*AcceptResult, error) {
	request, err := s.store.RequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.FromUser != actorID {
		return nil, ErrNotCurrentOwner
	}

	receiver, err := s.store.UserByID(ctx, request.ToUser)
	if err != nil {
		return nil, fmt.Errorf("loading receiver: %w", err)
	}
	owner, err := s.store.UserByID(ctx, request.FromUser)
	if err != nil {
		return nil, fmt.Errorf("loading owner: %w", err)
	}
	newStatus, err := StatusForRole(receiver.Role)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()

	// Claim the transition first. After this point no concurrent accept or
	// reject can touch the request again.
	request, err = s.store.SettleRequest(ctx, requestID, RequestAccepted, now, "")
	if err != nil {
		return nil, err
	}

	product, err := s.store.ProductByID(ctx, request.ProductID)
	if err != nil {
		return nil, err
	}

	location := in.Location
	if location == "" {
		location = request.Location
	}

	txHash := ledger.NewTxHash()
	block, err := s.chain.CreateBlock(ctx, []ledger.TxRecord{{
		TxHash:    txHash,
		Type:      ledger.TxTransferAccepted,
		From:      request.FromWallet,
		To:        request.ToWallet,
		ProductID: product.ProductID,
		Data: ledger.TxData{
			AcceptedBy: owner.Name,
			ReceivedBy: receiver.Name,
			NewStatus:  string(newStatus),
		},
	}})
	if err != nil {
		return nil, fmt.Errorf("recording transfer block: %w", err)
	}

	product.CurrentOwner = receiver.ID
	product.CurrentOwnerWallet = request.ToWallet
	product.CurrentLocation = location
	product.CurrentLatitude = in.Latitude
	product.CurrentLongitude = in.Longitude
	product.Status = newStatus
	product.TxHash = txHash
	if newStatus.Terminal() {
		product.IsAvailable = false
	}
	product.SupplyChain = append(product.SupplyChain, CustodyEntry{
		Role:       receiver.Role,
		User:       receiver.ID,
		Wallet:     request.ToWallet,
		ReceivedAt: now,
		Status:     newStatus,
		TxHash:     txHash,
	})
	product.LocationHistory = append(product.LocationHistory, LocationEntry{
		Location:  location,
		Latitude:  in.Latitude,
		Longitude: in.Longitude,
		Timestamp: now,
		Status:    newStatus,
		UpdatedBy: receiver.ID,
	})

	if err := s.store.UpdateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("updating product: %w", err)
	}

	txn := &Transaction{
		ID:          uuid.NewString(),
		ProductID:   product.ProductID,
		FromOwner:   request.FromUser,
		FromWallet:  request.FromWallet,
		ToOwner:     request.ToUser,
		ToWallet:    request.ToWallet,
		Type:        TxnAccept,
		TxHash:      txHash,
		GasUsed:     block.GasUsed,
		BlockNumber: block.BlockNumber,
		Location:    location,
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		Notes:       fmt.Sprintf("Transfer accepted by %s", owner.Name),
		Metadata: TxnMetadata{
			RequestID:   request.ID,
			RequestType: request.RequestType,
		},
		Timestamp: now,
	}
	if err := s.store.InsertTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("inserting audit transaction: %w", err)
	}

	if err := s.store.SetRequestTxHash(ctx, request.ID, txHash); err != nil {
		return nil, fmt.Errorf("stamping request tx hash: %w", err)
	}
	request.TxHash = txHash

	utils.LogInfo("Transfer request %s accepted: %s now owned by %s (%s), block %d",
		request.ID, product.ProductID, receiver.Name, newStatus, block.BlockNumber)
	return &AcceptResult{Request: request, Product: product, Transaction: txn, Block: block}, nil
}

// RejectTransferRequest settles a pending request as rejected. Only the
// current owner may reject. The product is untouched and, matching observed
// behavior, no ledger block is written for a rejection.
func (s *Service) RejectTransferRequest(ctx context.Context, requestID, actorID, reason string) (*TransferRequest, error) {
	request, err := s.store.RequestByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request.FromUser != actorID {
		return nil, ErrNotCurrentOwner
	}

	if reason == "" {
		reason = "Request rejected"
	}
	request, err = s.store.SettleRequest(ctx, requestID, RequestRejected, time.Now().UTC(), reason)
	if err != nil {
		return nil, err
	}

	utils.LogInfo("Transfer request %s rejected", request.ID)
	return request, nil
}

// StatusUpdateInput carries an operational status/location/quality update.
// Status is optional: an empty value updates the side-channel fields without
// advancing the state machine.
type StatusUpdateInput struct {
	Status      ProductStatus `json:"status"`
	Location    string        `json:"location"`
	Latitude    float64       `json:"latitude"`
	Longitude   float64       `json:"longitude"`
	Temperature float64       `json:"temperature"`
	Humidity    float64       `json:"humidity"`
	PH          float64       `json:"ph"`
	Notes       string        `json:"notes"`
}

// StatusUpdateResult bundles the outcome of a status update.
type StatusUpdateResult struct {
	Product     *Product      `json:"product"`
	Transaction *Transaction  `json:"transaction"`
	Block       *ledger.Block `json:"block"`
}

// UpdateProductStatus applies an operational update to a product: location,
// coordinates, quality metrics, and optionally the status field itself. Only
// the current owner may update. The update is recorded as a STATUS_UPDATE
// block and audit row.
func (s *Service) UpdateProductStatus(ctx context.Context, productID, actorID string, in StatusUpdateInput) (*StatusUpdateResult, error) {
	product, err := s.store.ProductByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.CurrentOwner != actorID {
		return nil, ErrNotCurrentOwner
	}
	if in.Status != "" && !in.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, in.Status)
	}

	actor, err := s.store.UserByID(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("loading actor: %w", err)
	}

	now := time.Now().UTC()
	if in.Status != "" {
		product.Status = in.Status
		if in.Status.Terminal() {
			product.IsAvailable = false
		}
	}
	if in.Location != "" {
		product.CurrentLocation = in.Location
		product.CurrentLatitude = in.Latitude
		product.CurrentLongitude = in.Longitude
	}
	if in.Temperature != 0 || in.Humidity != 0 || in.PH != 0 {
		product.QualityMetrics = QualityMetrics{
			Temperature: in.Temperature,
			Humidity:    in.Humidity,
			PH:          in.PH,
			LastChecked: now,
		}
	}
	product.LocationHistory = append(product.LocationHistory, LocationEntry{
		Location:  product.CurrentLocation,
		Latitude:  product.CurrentLatitude,
		Longitude: product.CurrentLongitude,
		Timestamp: now,
		Status:    product.Status,
		UpdatedBy: actor.ID,
	})

	txHash := ledger.NewTxHash()
	block, err := s.chain.CreateBlock(ctx, []ledger.TxRecord{{
		TxHash:    txHash,
		Type:      ledger.TxStatusUpdate,
		From:      product.CurrentOwnerWallet,
		To:        product.CurrentOwnerWallet,
		ProductID: product.ProductID,
		Data: ledger.TxData{
			NewStatus: string(product.Status),
			Location:  product.CurrentLocation,
			UpdatedBy: actor.Name,
		},
	}})
	if err != nil {
		return nil, fmt.Errorf("recording status update block: %w", err)
	}
	product.TxHash = txHash

	if err := s.store.UpdateProduct(ctx, product); err != nil {
		return nil, fmt.Errorf("updating product: %w", err)
	}

	txn := &Transaction{
		ID:          uuid.NewString(),
		ProductID:   product.ProductID,
		FromOwner:   actor.ID,
		FromWallet:  product.CurrentOwnerWallet,
		ToOwner:     actor.ID,
		ToWallet:    product.CurrentOwnerWallet,
		Type:        TxnStatusUpdate,
		TxHash:      txHash,
		GasUsed:     block.GasUsed,
		BlockNumber: block.BlockNumber,
		Location:    product.CurrentLocation,
		Latitude:    product.CurrentLatitude,
		Longitude:   product.CurrentLongitude,
		Temperature: in.Temperature,
		Humidity:    in.Humidity,
		Notes:       in.Notes,
		Timestamp:   now,
	}
	if err := s.store.InsertTransaction(ctx, txn); err != nil {
		return nil, fmt.Errorf("inserting audit transaction: %w", err)
	}

	utils.LogInfo("Product %s status updated to %s by %s", product.ProductID, product.Status, actor.Name)
	return &StatusUpdateResult{Product: product, Transaction: txn, Block: block}, nil
}

// NewProductID generates a unique product identifier of the form
// PROD-<unix millis>-<9 char token>.
func NewProductID() string {
	token := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:9]
	return fmt.Sprintf("PROD-%d-%s", time.Now().UnixMilli(), token)
}
