package models

import "errors"

// Every failed operation leaves the ledger unchanged; callers match these
// with errors.Is. Storage failures are returned wrapped, not as sentinels.
var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrUnknownSymbol      = errors.New("unknown symbol")
	ErrNoSuchHolding      = errors.New("no holding for symbol")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrInsufficientShares = errors.New("insufficient shares")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrUserNotFound       = errors.New("user not found")
	ErrBadCredentials     = errors.New("invalid username or password")
)
