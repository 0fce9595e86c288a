package embedding

import "errors"

var (
	// ErrModelUnavailable indicates the encoder backend could not be
	// reached or verified during construction.
	ErrModelUnavailable = errors.New("embedding model unavailable")

	// ErrEmptyText indicates nothing was left to embed after preprocessing.
	ErrEmptyText = errors.New("empty text")
)
