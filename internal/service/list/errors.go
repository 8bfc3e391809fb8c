package list

import "errors"

// Sentinel errors for the list service layer.
var (
	ErrListNotFound       = errors.New("list not found")
	ErrMembershipNotFound = errors.New("membership not found")
	ErrDuplicateRound     = errors.New("an active list already exists for this round")
)
