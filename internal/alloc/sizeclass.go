package alloc

import (
	ierrors "github.com/dabernado/iris-go/internal/errors"
)

// SizeClass buckets an allocation request by byte footprint (spec.md §4.1).
type SizeClass int

const (
	Small SizeClass = iota
	Medium
	Large
)

// ClassOf returns the SizeClass for an n-byte request.
func ClassOf(n uintptr) SizeClass {
	switch {
	case n <= SmallObjectMax:
		return Small
	case n <= MediumObjectMax:
		return Medium
	default:
		return Large
	}
}

// CheckRequest validates n against the supported size classes, returning
// BadRequest for Large requests or a zero-size request.
func CheckRequest(n uintptr) error {
	if n == 0 {
		return ierrors.New(ierrors.BadRequest, "allocation request must be non-zero")
	}
	if ClassOf(n) == Large {
		return ierrors.New(ierrors.BadRequest, "large objects (%d bytes) are unsupported", n)
	}
	return nil
}
