package journal

import "errors"

var (
	ErrMissingAudio  = errors.New("missing audio data")
	ErrInvalidFormat = errors.New("invalid audio format: expected webm")
	ErrNotFound      = errors.New("journal not found")
)
