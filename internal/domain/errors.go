package domain

import "errors"

// Sentinel errors for the layout lifecycle. Callers match with errors.Is;
// every one of them aborts the operation with no partial state change.
var (
	// profile / layout state
	ErrProfileNotFound = errors.New("profile not found")
	ErrAlreadyComputed = errors.New("layout already computed")
	ErrNotComputed     = errors.New("layout not computed")
	ErrAlreadyRevealed = errors.New("layout already revealed")
	ErrNotRevealed     = errors.New("layout not revealed")

	// oracle callback
	ErrUnknownHandle = errors.New("unknown decryption request")
	ErrInvalidProof  = errors.New("invalid decryption proof")
)
