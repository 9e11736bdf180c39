package ledger

import (
	"errors"
	"fmt"

	"cryptotown.ai/internal/protocol"
)

// Error is a rule violation. Code is one of the protocol.Err* codes.
type Error struct {
	Code string
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return e.Code
	}
	return e.Code + ": " + e.Msg
}

func Errf(code string, format string, args ...any) error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf returns the rule code carried by err, or E_INTERNAL for anything else.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return protocol.ErrInternal
}

func IsCode(err error, code string) bool { return err != nil && CodeOf(err) == code }

// Unauthorized is the shared guard failure for role checks.
func Unauthorized(role string) error {
	return Errf(protocol.ErrUnauthorized, "allowed only for %s", role)
}
