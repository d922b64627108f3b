package registry

import (
	"errors"
	"fmt"

	"github.com/roach88/tokenx/internal/ir"
)

// ErrorCode categorizes registry failures.
type ErrorCode string

const (
	// CodeInvalidRecipient: the target of a create or transfer is the zero address.
	CodeInvalidRecipient ErrorCode = "INVALID_RECIPIENT"

	// CodeNotOwner: the transfer source does not currently own the token.
	CodeNotOwner ErrorCode = "NOT_OWNER"

	// CodeNonexistentToken: the token ID was never created.
	CodeNonexistentToken ErrorCode = "NONEXISTENT_TOKEN"

	// CodeIndexOutOfBounds: an enumeration query ran past the end.
	CodeIndexOutOfBounds ErrorCode = "INDEX_OUT_OF_BOUNDS"

	// CodeInternalConsistency: a structural invariant does not hold. This is
	// a bug, never a normal outcome.
	CodeInternalConsistency ErrorCode = "INTERNAL_CONSISTENCY"

	// CodeInvalidBatchSize: a batch outside 1..MaxBatchSize was requested.
	CodeInvalidBatchSize ErrorCode = "INVALID_BATCH_SIZE"

	// CodeReentrantCall: a mutation was attempted from inside another
	// mutation of the same registry (for example from a notification sink).
	CodeReentrantCall ErrorCode = "REENTRANT_CALL"
)

// Error is a registry failure with structured context.
//
// Errors compare equal under errors.Is when their codes match, so callers
// test against the sentinels below:
//
//	if errors.Is(err, registry.ErrNotOwner) { ... }
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// TokenID is the token involved, if any.
	TokenID ir.TokenID

	// Address is the address involved, if any.
	Address ir.Address

	// Index is the enumeration index involved, if any.
	Index uint64
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.TokenID != 0 && e.Address != "":
		return fmt.Sprintf("%s: %s (token=%s, address=%s)", e.Code, e.Message, e.TokenID, e.Address)
	case e.TokenID != 0:
		return fmt.Sprintf("%s: %s (token=%s)", e.Code, e.Message, e.TokenID)
	case e.Address != "":
		return fmt.Sprintf("%s: %s (address=%s)", e.Code, e.Message, e.Address)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is.
var (
	ErrInvalidRecipient    = &Error{Code: CodeInvalidRecipient, Message: "recipient is the zero address"}
	ErrNotOwner            = &Error{Code: CodeNotOwner, Message: "transfer of token that is not own"}
	ErrNonexistentToken    = &Error{Code: CodeNonexistentToken, Message: "token does not exist"}
	ErrIndexOutOfBounds    = &Error{Code: CodeIndexOutOfBounds, Message: "index out of bounds"}
	ErrInternalConsistency = &Error{Code: CodeInternalConsistency, Message: "internal consistency violation"}
	ErrInvalidBatchSize    = &Error{Code: CodeInvalidBatchSize, Message: "invalid batch size"}
	ErrReentrantCall       = &Error{Code: CodeReentrantCall, Message: "re-entrant registry mutation"}
)

// CodeOf returns the registry error code carried by err, or "" if err is
// not a registry error.
func CodeOf(err error) ErrorCode {
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// IsInternal reports whether err signals a broken invariant.
func IsInternal(err error) bool {
	return errors.Is(err, ErrInternalConsistency)
}

func newInvalidRecipient(op string, to ir.Address) *Error {
	return &Error{
		Code:    CodeInvalidRecipient,
		Message: op + " to the zero address",
		Address: to,
	}
}

func newNotOwner(from ir.Address, id ir.TokenID) *Error {
	return &Error{
		Code:    CodeNotOwner,
		Message: "transfer of token that is not own",
		TokenID: id,
		Address: from,
	}
}

func newNonexistent(id ir.TokenID) *Error {
	return &Error{
		Code:    CodeNonexistentToken,
		Message: "token does not exist",
		TokenID: id,
	}
}

func newOutOfBounds(index, length uint64, owner ir.Address) *Error {
	return &Error{
		Code:    CodeIndexOutOfBounds,
		Message: fmt.Sprintf("index %d >= length %d", index, length),
		Address: owner,
		Index:   index,
	}
}

func newInternal(format string, args ...any) *Error {
	return &Error{
		Code:    CodeInternalConsistency,
		Message: fmt.Sprintf(format, args...),
	}
}
