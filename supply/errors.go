package supply

import "errors"

// Error kinds surfaced by the service. Handlers map these onto HTTP statuses;
// none of them is fatal to the process.
var (
	// ErrUserNotFound signals a missing user.
	ErrUserNotFound = errors.New("user not found")
	// ErrProductNotFound signals a missing product.
	ErrProductNotFound = errors.New("product not found")
	// ErrRequestNotFound signals a missing transfer request.
	ErrRequestNotFound = errors.New("transfer request not found")
	// ErrNotCurrentOwner signals that the acting user does not hold the product.
	ErrNotCurrentOwner = errors.New("unauthorized: you are not the current owner")
	// ErrNotFarmer signals a product registration by a non-farmer.
	ErrNotFarmer = errors.New("invalid farmer ID or user is not a farmer")
	// ErrInvalidRolePair signals a transfer request between incompatible roles.
	ErrInvalidRolePair = errors.New("invalid request: transfer not allowed between these roles")
	// ErrRequestProcessed signals a second accept/reject on a settled request.
	ErrRequestProcessed = errors.New("request has already been processed")
	// ErrProductUnavailable signals a transfer request for an unavailable product.
	ErrProductUnavailable = errors.New("product is not available for transfer")
	// ErrDuplicateEmail signals a user registration with a taken email.
	ErrDuplicateEmail = errors.New("user with this email already exists")
	// ErrValidation signals a missing or malformed required field.
	ErrValidation = errors.New("validation failed")
)
