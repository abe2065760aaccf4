package gtypes

import "errors"

// Sentinel errors shared across the core packages (§7 error taxonomy).
// Package-specific errors live alongside their package; these are the ones
// that cross package boundaries often enough to warrant a single home.
var (
	ErrOutOfGas               = errors.New("out of gas")
	ErrExceedMaxMessageDepth  = errors.New("exceeded max message depth")
	ErrExceedMaxQueryDepth    = errors.New("exceeded max query depth")
	ErrImmutableState         = errors.New("write attempted in read-only (immutable state) mode")
	ErrIncorrectBlockHeight   = errors.New("incorrect block height")
	ErrAccountExists          = errors.New("account already exists at this address")
	ErrCodeExists             = errors.New("code already uploaded")
	ErrAdminNotSet            = errors.New("contract has no admin")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrNotFound               = errors.New("not found")
	ErrInvalidDenom           = errors.New("invalid denom")
	ErrZeroAmount             = errors.New("amount must be non-zero")
	ErrEmptyCoins             = errors.New("coins must not be empty")
	ErrEmptyMsgs              = errors.New("transaction must contain at least one message")
)
