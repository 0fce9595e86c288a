package storage

import "errors"

var (
	ErrQdrantUnreachable   = errors.New("qdrant server unreachable")
	ErrPublicationNotFound = errors.New("publication not found")
	ErrDimensionMismatch   = errors.New("embedding dimension mismatch")
)
