// Package repository provides the account record store backends.
package repository

import "errors"

// Common errors for repository operations. Every backend returns these.
var (
	ErrAccountNotFound  = errors.New("account not found")
	ErrAccountExists    = errors.New("account already exists")
	ErrAlreadyActivated = errors.New("account already activated")
	ErrNotActivated     = errors.New("account not activated")
	// ErrCodeTaken means the referral code is assigned to another account.
	ErrCodeTaken = errors.New("referral code already taken")
	// ErrSponsorNotFound means the sponsor does not exist or is not activated.
	ErrSponsorNotFound = errors.New("sponsor not found")
	// ErrDuplicateReference means a ledger entry of the same type already
	// carries the reference.
	ErrDuplicateReference = errors.New("ledger reference already recorded")
)
