package codec

import "errors"

// Codec errors.
var (
	// ErrInvalidColour is returned when an "r:g:b" string cannot be parsed.
	ErrInvalidColour = errors.New("codec: invalid colour")
)
