package protocol

import "testing"

func TestIsKnownCode(t *testing.T) {
	cases := []string{
		"",
		ErrProtoBadRequest,
		ErrUnauthorized,
		ErrNotOwnerOrApproved,
		ErrInvalidTarget,
		ErrCapacityExceeded,
		ErrAlreadyExists,
		ErrNotFound,
		ErrInsufficientBalance,
		ErrInsufficientAllowance,
		ErrOverflow,
		ErrBadRequest,
		ErrArrayLengthMismatch,
		ErrInvalidPrice,
		ErrRateLimit,
		ErrKitchenClosed,
		ErrNotEligible,
		ErrNothingToDistribute,
		ErrInternal,
	}
	for _, c := range cases {
		if !IsKnownCode(c) {
			t.Fatalf("expected known code: %q", c)
		}
	}
	if IsKnownCode("E_NOT_DEFINED") {
		t.Fatalf("expected unknown code rejected")
	}
}
