package supply

// Role is a participant's position in the supply chain.
type Role string

const (
	RoleFarmer      Role = "farmer"
	RoleDistributor Role = "distributor"
	RoleRetailer    Role = "retailer"
	RoleConsumer    Role = "consumer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleFarmer, RoleDistributor, RoleRetailer, RoleConsumer:
		return true
	}
	return false
}

// ProductStatus is a product's current supply-chain stage.
type ProductStatus string

const (
	StatusRegistered          ProductStatus = "registered"
	StatusPendingDistribution ProductStatus = "pending_distribution"
	StatusInTransit           ProductStatus = "in_transit"
	StatusAtDistributor       ProductStatus = "at_distributor"
	StatusAtRetailer          ProductStatus = "at_retailer"
	StatusSold                ProductStatus = "sold"
	StatusDelivered           ProductStatus = "delivered"
)

// Valid reports whether s is a known product status.
func (s ProductStatus) Valid() bool {
	switch s {
	case StatusRegistered, StatusPendingDistribution, StatusInTransit,
		StatusAtDistributor, StatusAtRetailer, StatusSold, StatusDelivered:
		return true
	}
	return false
}

// Terminal reports whether s ends a product's lifecycle.
func (s ProductStatus) Terminal() bool {
	return s == StatusSold || s == StatusDelivered
}

// RequestType classifies a transfer request by the role pair that created it.
type RequestType string

const (
	RequestDistributor      RequestType = "distributor_request"
	RequestRetailer         RequestType = "retailer_request"
	RequestConsumerPurchase RequestType = "consumer_purchase"
)

// RequestStatus is the lifecycle state of a transfer request. Accepted and
// rejected are terminal.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestAccepted RequestStatus = "accepted"
	RequestRejected RequestStatus = "rejected"
)

// RequestTypeFor returns the transfer request type for the
// (current owner role, requester role) pair. Only the three pairs along the
// farmer→distributor→retailer→consumer axis are legal; every other pairing
// gets ErrInvalidRolePair.
func RequestTypeFor(ownerRole, requesterRole Role) (RequestType, error) {
	switch {
	case ownerRole == RoleFarmer && requesterRole == RoleDistributor:
		return RequestDistributor, nil
	case ownerRole == RoleDistributor && requesterRole == RoleRetailer:
		return RequestRetailer, nil
	case ownerRole == RoleRetailer && requesterRole == RoleConsumer:
		return RequestConsumerPurchase, nil
	}
	return "", ErrInvalidRolePair
}

// StatusForRole maps the receiving role to the product status set when a
// transfer to that role is accepted.
func StatusForRole(r Role) (ProductStatus, error) {
	switch r {
	case RoleDistributor:
		return StatusAtDistributor, nil
	case RoleRetailer:
		return StatusAtRetailer, nil
	case RoleConsumer:
		return StatusSold, nil
	}
	return "", ErrInvalidRolePair
}
