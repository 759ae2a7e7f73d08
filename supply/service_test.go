package supply_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrichain_go/ledger"
	"agrichain_go/storage"
	"agrichain_go/supply"
)

type fixture struct {
	service *supply.Service
	chain   *ledger.Writer
	store   *storage.LevelStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.NewLevelStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	chain := ledger.NewWriter(store)
	return &fixture{
		service: supply.NewService(store, chain),
		chain:   chain,
		store:   store,
	}
}

func (f *fixture) registerUser(t *testing.T, name string, role supply.Role) *supply.User {
	t.Helper()
	user, err := f.service.RegisterUser(context.Background(), supply.RegisterUserInput{
		Name:     name,
		Email:    strings.ToLower(name) + "@example.com",
		Role:     role,
		Location: "Da Lat",
	})
	require.NoError(t, err)
	return user
}

func (f *fixture) registerProduct(t *testing.T, farmer *supply.User) *supply.RegisterProductResult {
	t.Helper()
	result, err := f.service.RegisterProduct(context.Background(), supply.RegisterProductInput{
		Name:           "Arabica Coffee",
		Description:    "Single origin beans",
		Category:       "coffee",
		Quantity:       50,
		Unit:           "kg",
		Price:          12.5,
		OwnerID:        farmer.ID,
		OriginLocation: "Da Lat",
		HarvestDate:    time.Now().UTC().AddDate(0, 0, -3),
	})
	require.NoError(t, err)
	return result
}

func (f *fixture) height(t *testing.T) uint64 {
	t.Helper()
	height, err := f.chain.Height(context.Background())
	require.NoError(t, err)
	return height
}

func TestRegisterUser(t *testing.T) {
	f := newFixture(t)

	user := f.registerUser(t, "Alice", supply.RoleFarmer)
	assert.NotEmpty(t, user.ID)
	assert.True(t, strings.HasPrefix(user.WalletAddress, "0x"))
	assert.Len(t, user.WalletAddress, 42)
	assert.Equal(t, supply.RoleFarmer, user.Role)
}

func TestRegisterUserValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.service.RegisterUser(ctx, supply.RegisterUserInput{Email: "a@b.com", Role: supply.RoleFarmer})
	assert.ErrorIs(t, err, supply.ErrValidation)

	_, err = f.service.RegisterUser(ctx, supply.RegisterUserInput{Name: "A", Email: "a@b.com", Role: "admin"})
	assert.ErrorIs(t, err, supply.ErrValidation)
}

func TestRegisterUserDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := supply.RegisterUserInput{Name: "Alice", Email: "alice@example.com", Role: supply.RoleFarmer}
	_, err := f.service.RegisterUser(ctx, in)
	require.NoError(t, err)

	_, err = f.service.RegisterUser(ctx, in)
	assert.ErrorIs(t, err, supply.ErrDuplicateEmail)
}

func TestRegisterProduct(t *testing.T) {
	f := newFixture(t)
	farmer := f.registerUser(t, "Alice", supply.RoleFarmer)

	result := f.registerProduct(t, farmer)
	product := result.Product

	assert.True(t, strings.HasPrefix(product.ProductID, "PROD-"))
	assert.Equal(t, farmer.ID, product.CurrentOwner)
	assert.Equal(t, supply.StatusRegistered, product.Status)
	assert.True(t, product.IsAvailable)
	require.Len(t, product.SupplyChain, 1)
	assert.Equal(t, supply.RoleFarmer, product.SupplyChain[0].Role)
	require.Len(t, product.LocationHistory, 1)
	assert.True(t, strings.HasPrefix(product.QRCode, "data:image/png;base64,"))

	// Registration writes block 1.
	require.NotNil(t, result.Block)
	assert.Equal(t, uint64(1), result.Block.BlockNumber)
	assert.Equal(t, ledger.TxProductRegistration, result.Block.Transactions[0].Type)
	assert.Equal(t, uint64(1), f.height(t))

	_, history, err := f.service.ProductWithHistory(context.Background(), product.ProductID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, supply.TxnRegister, history[0].Type)
}

func TestRegisterProductRequiresFarmer(t *testing.T) {
	f := newFixture(t)
	distributor := f.registerUser(t, "Bob", supply.RoleDistributor)

	_, err := f.service.RegisterProduct(context.Background(), supply.RegisterProductInput{
		Name:           "Arabica Coffee",
		Category:       "coffee",
		OwnerID:        distributor.ID,
		OriginLocation: "Da Lat",
		HarvestDate:    time.Now().UTC(),
	})
	assert.ErrorIs(t, err, supply.ErrNotFarmer)
	assert.Equal(t, uint64(0), f.height(t))
}

func TestCreateTransferRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	farmer := f.registerUser(t, "Alice", supply.RoleFarmer)
	distributor := f.registerUser(t, "Bob", supply.RoleDistributor)
	product := f.registerProduct(t, farmer).Product

	result, err := f.service.CreateTransferRequest(ctx, supply.CreateRequestInput{
		ProductID: product.ProductID,
		ToUserID:  distributor.ID,
		Message:   "Ready for distribution",
	})
	require.NoError(t, err)

	request := result.Request
	assert.Equal(t, supply.RequestDistributor, request.RequestType)
	assert.Equal(t, supply.RequestPending, request.Status)
	assert.Equal(t, farmer.ID, request.FromUser)
	assert.Equal(t, distributor.ID, request.ToUser)

	// A request alone never extends the chain; only registration did.
	assert.Equal(t, uint64(1), f.height(t))

	_, history, err := f.service.ProductWithHistory(ctx, product.ProductID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, supply.TxnRequest, history[1].Type)
}

func TestCreateTransferRequestIllegalPair(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	farmer := f.registerUser(t, "Alice", supply.RoleFarmer)
	consumer := f.registerUser(t, "Carol", supply.RoleConsumer)
	product := f.registerProduct(t, farmer).Product

	_, err := f.service.CreateTransferRequest(ctx, supply.CreateRequestInput{
		ProductID: product.ProductID,
		ToUserID:  consumer.ID,
	})
	assert.ErrorIs(t, err, supply.ErrInvalidRolePair)
}

func TestAcceptTransferRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	farmer := f.registerUser(t, "Alice", supply.RoleFarmer)
	distributor := f.registerUser(t, "Bob", supply.RoleDistributor)
	product := f.registerProduct(t, farmer).Product

	created, err := f.service.CreateTransferRequest(ctx, supply.CreateRequestInput{
		ProductID: product.ProductID,
		ToUserID:  distributor.ID,
	})
	require.NoError(t, err)

	result, err := f.service.AcceptTransferRequest(ctx, created.Request.ID, farmer.ID, supply.AcceptInput{
		Location: "Saigon warehouse",
	})
	require.NoError(t, err)

	assert.Equal(t, supply.RequestAccepted, result.Request.Status)
	assert.False(t, result.Request.RespondedAt.IsZero())

	updated := result.Product
	assert.Equal(t, distributor.ID, updated.CurrentOwner)
	assert.Equal(t, distributor.WalletAddress, updated.CurrentOwnerWallet)
	assert.Equal(t, supply.StatusAtDistributor, updated.Status)
	assert.Equal(t, "Saigon warehouse", updated.CurrentLocation)
	assert.True(t, updated.IsAvailable)
	require.Len(t, updated.SupplyChain, 2)
	assert.Equal(t, supply.RoleDistributor, updated.SupplyChain[1].Role)

	// Registration + acceptance: exactly two blocks.
	assert.Equal(t, uint64(2), f.height(t))
	assert.Equal(t, ledger.TxTransferAccepted, result.Block.Transactions[0].Type)

	verify, err := f.chain.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, verify.Valid)
}

func TestAcceptTransferRequestTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	farmer := f.registerUser(t, "Alice", supply.RoleFarmer)
	distributor := f.registerUser(t, "Bob", supply.RoleDistributor)
	product := f.registerProduct(t, farmer).Product

	created, err := f.service.CreateTransferRequest(ctx, supply.CreateRequestInput{
		ProductID: product.ProductID,
		ToUserID:  distributor.ID,
	})
	require.NoError(t, err)

	_, err = f.service.AcceptTransferRequest(ctx, created.Request.ID, farmer.ID, supply.AcceptInput{})
	require.NoError(t, err)

	_, err = f.service.AcceptTransferRequest(ctx, created.Request.ID, farmer.ID, supply.AcceptInput{})
	assert.ErrorIs(t, err, supply.ErrRequestProcessed)
}

func TestAcceptTransferRequestNotOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	farmer := f.registerUser(t, "Alice", supply.RoleFarmer)
	distributor := f.registerUser(t, "Bob", supply.RoleDistributor)
	product := f.registerProduct(t, farmer).Product

	created, err := f.service.CreateTransferRequest(ctx, supply.CreateRequestInput{
		ProductID: product.ProductID,
		ToUserID:  distributor.ID,
	})
	require.NoError(t, err)

	_, err = f.service.AcceptTransferRequest(ctx, created.Request.ID, distributor.ID, supply.AcceptInput{})
	assert.ErrorIs(t, err, supply.ErrNotCurrentOwner)
}

func TestRejectTransferRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	farmer := f.registerUser(t, "Alice", supply.RoleFarmer)
	distributor := f.registerUser(t, "Bob", supply.RoleDistributor)
	product := f.registerProduct(t, farmer).Product

	created, err := f.service.CreateTransferRequest(ctx, supply.CreateRequestInput{
		ProductID: product.ProductID,
		ToUserID:  distributor.ID,
	})
	require.NoError(t, err)

	rejected, err := f.service.RejectTransferRequest(ctx, created.Request.ID, farmer.ID, "quality hold")
	require.NoError(t, err)
	assert.Equal(t, supply.RequestRejected, rejected.Status)
	assert.Equal(t, "quality hold", rejected.Message)
	assert.False(t, rejected.RespondedAt.IsZero())

	// Rejection leaves the product and the chain untouched.
	current, _, err := f.service.ProductWithHistory(ctx, product.ProductID)
	require.NoError(t, err)
	assert.Equal(t, farmer.ID, current.CurrentOwner)
	assert.Equal(t, supply.StatusRegistered, current.Status)
	assert.Equal(t, uint64(1), f.height(t))

	_, err = f.service.AcceptTransferRequest(ctx, created.Request.ID, farmer.ID, supply.AcceptInput{})
	assert.ErrorIs(t, err, supply.ErrRequestProcessed)
}

func TestFullChainToConsumer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	farmer := f.registerUser(t, "Alice", supply.RoleFarmer)
	distributor := f.registerUser(t, "Bob", supply.RoleDistributor)
	retailer := f.registerUser(t, "Rita", supply.RoleRetailer)
	consumer := f.registerUser(t, "Carol", supply.RoleConsumer)
	product := f.registerProduct(t, farmer).Product

	transfer := func(owner, receiver *supply.User) *supply.AcceptResult {
		created, err := f.service.CreateTransferRequest(ctx, supply.CreateRequestInput{
			ProductID: product.ProductID,
			ToUserID:  receiver.ID,
		})
		require.NoError(t, err)
		result, err := f.service.AcceptTransferRequest(ctx, created.Request.ID, owner.ID, supply.AcceptInput{})
		require.NoError(t, err)
		return result
	}

	transfer(farmer, distributor)
	transfer(distributor, retailer)
	final := transfer(retailer, consumer)

	assert.Equal(t, supply.StatusSold, final.Product.Status)
	assert.False(t, final.Product.IsAvailable)
	require.Len(t, final.Product.SupplyChain, 4)
	assert.Equal(t, uint64(4), f.height(t))

	// A sold product cannot receive new requests.
	_, err := f.service.CreateTransferRequest(ctx, supply.CreateRequestInput{
		ProductID: product.ProductID,
		ToUserID:  distributor.ID,
	})
	assert.ErrorIs(t, err, supply.ErrProductUnavailable)

	verify, err := f.chain.Verify(ctx)
	require.NoError(t, err)
	assert.True(t, verify.Valid)
	assert.Equal(t, 4, verify.BlocksChecked)
}

func TestRequestsForUserDirections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	farmer := f.registerUser(t, "Alice", supply.RoleFarmer)
	distributor := f.registerUser(t, "Bob", supply.RoleDistributor)
	product := f.registerProduct(t, farmer).Product

	_, err := f.service.CreateTransferRequest(ctx, supply.CreateRequestInput{
		ProductID: product.ProductID,
		ToUserID:  distributor.ID,
	})
	require.NoError(t, err)

	sent, err := f.service.RequestsForUser(ctx, distributor.ID, supply.RequestsSent)
	require.NoError(t, err)
	assert.Len(t, sent, 1)

	received, err := f.service.RequestsForUser(ctx, farmer.ID, supply.RequestsReceived)
	require.NoError(t, err)
	assert.Len(t, received, 1)

	none, err := f.service.RequestsForUser(ctx, farmer.ID, supply.RequestsSent)
	require.NoError(t, err)
	assert.Empty(t, none)

	all, err := f.service.RequestsForUser(ctx, farmer.ID, supply.RequestsAll)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUpdateProductStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	farmer := f.registerUser(t, "Alice", supply.RoleFarmer)
	product := f.registerProduct(t, farmer).Product

	result, err := f.service.UpdateProductStatus(ctx, product.ProductID, farmer.ID, supply.StatusUpdateInput{
		Status:      supply.StatusInTransit,
		Location:    "Highway 20",
		Temperature: 4.5,
		Humidity:    60,
		Notes:       "Cold chain truck",
	})
	require.NoError(t, err)

	updated := result.Product
	assert.Equal(t, supply.StatusInTransit, updated.Status)
	assert.Equal(t, "Highway 20", updated.CurrentLocation)
	assert.Equal(t, 4.5, updated.QualityMetrics.Temperature)
	require.Len(t, updated.LocationHistory, 2)

	assert.Equal(t, uint64(2), f.height(t))
	assert.Equal(t, ledger.TxStatusUpdate, result.Block.Transactions[0].Type)
}

func TestUpdateProductStatusAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	farmer := f.registerUser(t, "Alice", supply.RoleFarmer)
	other := f.registerUser(t, "Bob", supply.RoleDistributor)
	product := f.registerProduct(t, farmer).Product

	_, err := f.service.UpdateProductStatus(ctx, product.ProductID, other.ID, supply.StatusUpdateInput{
		Status: supply.StatusInTransit,
	})
	assert.ErrorIs(t, err, supply.ErrNotCurrentOwner)

	_, err = f.service.UpdateProductStatus(ctx, product.ProductID, farmer.ID, supply.StatusUpdateInput{
		Status: "teleported",
	})
	assert.ErrorIs(t, err, supply.ErrValidation)
}

func TestNewProductIDFormat(t *testing.T) {
	id := supply.NewProductID()
	parts := strings.SplitN(id, "-", 3)
	require.Len(t, parts, 3)
	assert.Equal(t, "PROD", parts[0])
	assert.Len(t, parts[2], 9)
	assert.NotEqual(t, id, supply.NewProductID())
}
