package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	// Authorization.
	ErrUnauthorized       = "E_UNAUTHORIZED"
	ErrNotOwnerOrApproved = "E_NOT_OWNER_OR_APPROVED"

	// Targets and role sets.
	ErrInvalidTarget    = "E_INVALID_TARGET"
	ErrCapacityExceeded = "E_CAPACITY_EXCEEDED"
	ErrAlreadyExists    = "E_ALREADY_EXISTS"
	ErrNotFound         = "E_NOT_FOUND"

	// Balances.
	ErrInsufficientBalance   = "E_INSUFFICIENT_BALANCE"
	ErrInsufficientAllowance = "E_INSUFFICIENT_ALLOWANCE"
	ErrOverflow              = "E_OVERFLOW"

	// Rule layer.
	ErrBadRequest          = "E_BAD_REQUEST"
	ErrArrayLengthMismatch = "E_ARRAY_LENGTH_MISMATCH"
	ErrInvalidPrice        = "E_INVALID_PRICE"
	ErrRateLimit           = "E_RATE_LIMIT"
	ErrKitchenClosed       = "E_KITCHEN_CLOSED"
	ErrNotEligible         = "E_NOT_ELIGIBLE"
	ErrNothingToDistribute = "E_NOTHING_TO_DISTRIBUTE"
	ErrInternal            = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest:       {},
	ErrUnauthorized:          {},
	ErrNotOwnerOrApproved:    {},
	ErrInvalidTarget:         {},
	ErrCapacityExceeded:      {},
	ErrAlreadyExists:         {},
	ErrNotFound:              {},
	ErrInsufficientBalance:   {},
	ErrInsufficientAllowance: {},
	ErrOverflow:              {},
	ErrBadRequest:            {},
	ErrArrayLengthMismatch:   {},
	ErrInvalidPrice:          {},
	ErrRateLimit:             {},
	ErrKitchenClosed:         {},
	ErrNotEligible:           {},
	ErrNothingToDistribute:   {},
	ErrInternal:              {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
