// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"errors"
	"fmt"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrState              = errors.New("invalid state")
	ErrPaymentMismatch    = errors.New("payment does not match entry fee")
	ErrInvalidProof       = errors.New("invalid input proof")
	ErrDecryptionPending  = errors.New("decryption pending")
	ErrDecryptionCallback = errors.New("decryption callback rejected")
	ErrAlreadyClaimed     = errors.New("already claimed")
	ErrNotWinner          = errors.New("not a winner")
	ErrUnauthorized       = errors.New("unauthorized")
)

func fail(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}
