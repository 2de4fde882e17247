// Package errors holds the sentinel errors shared by the stretch packages.
package errors

import "errors"

var (
	ErrTimeout          = errors.New("timeout")
	ErrConnectionClosed = errors.New("connection closed")
	// ErrInvalidInterval is returned for a non-positive timer interval or a
	// configured interval outside 1..480 minutes.
	ErrInvalidInterval = errors.New("stretch: invalid interval")
)
