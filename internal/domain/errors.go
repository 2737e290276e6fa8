package domain

import "errors"

var (
	// ErrDownloadFailure marks a station file that could not be fetched.
	ErrDownloadFailure = errors.New("download failure")

	// ErrMalformedRecord marks a data row that does not match its header.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrProjectionMismatch marks a spatial layer with an undefined,
	// non-planar, or inconsistent coordinate reference system.
	ErrProjectionMismatch = errors.New("projection mismatch")

	// ErrDuplicateKey marks a repeated (station id, timestamp) pair.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrMissingJoinKey marks a record without a station id or timestamp.
	ErrMissingJoinKey = errors.New("missing join key")
)
