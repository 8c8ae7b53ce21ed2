package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrRateLimited      = errors.New("rate limited")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidOrder     = errors.New("invalid order parameters")
	ErrInvalidRange     = errors.New("value out of range")
	ErrInvalidSignature = errors.New("invalid signature")
	ErrUnknownWallet    = errors.New("wallet not managed by signer")
	ErrDigestMismatch   = errors.New("digest does not match typed data")
	ErrSaltExhausted    = errors.New("no unique salt available")
	ErrLockHeld         = errors.New("lock already held")
)

// EncodingError reports a calldata encoder rejecting a method call.
type EncodingError struct {
	Method string
	Err    error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("encode %s: %v", e.Method, e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// SigningError reports a signer refusing or failing to sign for Address.
type SigningError struct {
	Address string
	Err     error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("sign for %s: %v", e.Address, e.Err)
}

func (e *SigningError) Unwrap() error { return e.Err }
