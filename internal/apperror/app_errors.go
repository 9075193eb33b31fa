package apperror

import "errors"

var (
	ErrUnknownMarker    = errors.New("marker is not in the allowed set")
	ErrUnknownPlayer    = errors.New("unknown player")
	ErrInvalidMarkerSet = errors.New("invalid marker set")
	ErrSameMarkers      = errors.New("players must have distinct markers")
	ErrSessionNotFound  = errors.New("session not found")
)
