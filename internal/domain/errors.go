package domain

import "errors"

var (
	ErrPlayerNotFound      = errors.New("player not found")
	ErrGroupNotFound       = errors.New("group not found")
	ErrGroupExists         = errors.New("group already exists")
	ErrGainsNotFound       = errors.New("gain record not found")
	ErrInsufficientData    = errors.New("insufficient snapshot data")
	ErrNoMembersComputable = errors.New("no members had enough snapshots")
	ErrUpstreamStatus      = errors.New("upstream returned non-OK status")
)
