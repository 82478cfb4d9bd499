// Package common defines shared constants and sentinel errors used across
// terminal and server layers of FareKeeper. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// ErrIntegrity means stored ciphertext failed authentication: the data
	// was tampered with or the key is wrong. Never to be treated as absent.
	ErrIntegrity = errors.New("integrity check failed")

	// Ledger errors. Server-side rejection reasons travel as
	// syncapi.Reason* strings, not as sentinels.
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("amount must be positive")

	// Transport errors.
	ErrUnavailable  = errors.New("server unavailable")
	ErrInvalidToken = errors.New("invalid token")
)
