package objectstore

import (
	"errors"
	"fmt"
)

// Sentinel errors a Raw implementation should wrap (with %w) so that
// classifyErr can recover the taxonomy kind regardless of transport.
var (
	ErrNotFound      = fmt.Errorf("object not found")
	ErrNotModified   = fmt.Errorf("object not modified")
	ErrPrecondition  = fmt.Errorf("precondition failed")
	errObjectExists  = fmt.Errorf("object already exists")
	errObjectMissing = fmt.Errorf("object does not exist")
	errETagMismatch  = fmt.Errorf("etag precondition failed")
)

// classifyErr maps a Raw transport error onto the taxonomy from spec.md 7.
func classifyErr(path string, err error) *Error {
	switch {
	case errors.Is(err, ErrNotFound):
		return newErr(KindNotFound, path, err)
	case errors.Is(err, ErrPrecondition):
		return newErr(KindPrecondition, path, err)
	case errors.Is(err, ErrNotModified):
		return newErr(KindNotModified, path, err)
	default:
		return newErr(KindRequest, path, err)
	}
}

func isChecksumErr(err error) bool {
	return errors.Is(err, errChecksumMismatch)
}
