package store

import "errors"

var (
	// ErrOutOfRange is returned for negative dataset or timestep indices.
	ErrOutOfRange = errors.New("store: dataset or timestep out of range")
	// ErrOverflow reports more records than a fixed-capacity buffer can hold.
	// Growable lists never return it; wire decoders with a hard cap do.
	ErrOverflow = errors.New("store: record overflow")
)
