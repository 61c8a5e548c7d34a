package domain

import "errors"

var (
	ErrGenerationExhausted = errors.New("alias generation exhausted")
	ErrDuplicateToken      = errors.New("alias token already exists")
	ErrInvalidAliasFormat  = errors.New("invalid alias format")
	ErrAliasNotFound       = errors.New("alias not found")
	ErrAliasDisabled       = errors.New("alias disabled")
	ErrForwardingFailed    = errors.New("email forwarding failed")
	ErrStorageUnavailable  = errors.New("storage unavailable")

	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")
)
