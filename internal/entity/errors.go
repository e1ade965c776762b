package entity

import "errors"

// Domain errors for the vocabulary dataset and the sync engine.
var (
	ErrInvalidWordBook     = errors.New("invalid word book")
	ErrInvalidWordCard     = errors.New("invalid word card")
	ErrWordBookNotFound    = errors.New("word book not found")
	ErrWordCardNotFound    = errors.New("word card not found")
	ErrNotAuthenticated    = errors.New("not authenticated")
	ErrInvalidSessionToken = errors.New("invalid session token")
	ErrSessionExpired      = errors.New("session expired")
	ErrSyncInProgress      = errors.New("sync already in progress")
	ErrCapabilityMissing   = errors.New("remote capability missing")
	ErrRemoteUnavailable   = errors.New("remote store unavailable")
)
