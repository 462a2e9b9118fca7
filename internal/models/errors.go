package models

import "errors"

// Error kinds shared by the store, the matching engine and the HTTP layer.
// Callers compare with errors.Is; store failures wrap ErrStoreUnavailable.
var (
	ErrNotVerified      = errors.New("member is not verified or has no rank")
	ErrAlreadyQueued    = errors.New("member already has an active queue entry")
	ErrRaceLost         = errors.New("queue entry was modified concurrently")
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("member is not a participant of this session")
	ErrSessionExpired   = errors.New("session has expired")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrInvalidPair      = errors.New("entries are not a matched pair")
	ErrUnknownRank      = errors.New("rank is not one of the configured ranks")
)
