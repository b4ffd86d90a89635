package storage

import "errors"

var (
	// ErrNotAnImage means the sniffed content type is not an allowed
	// image format.
	ErrNotAnImage = errors.New("not a supported image format")

	// ErrInvalidRef means the storage ref does not match the shape Save
	// produces.
	ErrInvalidRef = errors.New("invalid storage ref")
)
