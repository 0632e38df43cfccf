// Package errs defines the error taxonomy shared by every redit component.
package errs

import "errors"

var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrInvalidState     = errors.New("invalid state")
	ErrInvalidSize      = errors.New("invalid size")
	ErrNotFound         = errors.New("not found")
	ErrNoMemory         = errors.New("out of memory")
	ErrIO               = errors.New("i/o failure")
	ErrNotReady         = errors.New("storage not ready")
	ErrVersionMismatch  = errors.New("version mismatch")
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// Kind returns a short label for status-line display, or "error" for
// errors outside the taxonomy.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrInvalidArgument):
		return "invalid argument"
	case errors.Is(err, ErrInvalidState):
		return "invalid state"
	case errors.Is(err, ErrInvalidSize):
		return "invalid size"
	case errors.Is(err, ErrNotFound):
		return "not found"
	case errors.Is(err, ErrNoMemory):
		return "out of memory"
	case errors.Is(err, ErrNotReady):
		return "storage not ready"
	case errors.Is(err, ErrVersionMismatch):
		return "version mismatch"
	case errors.Is(err, ErrChecksumMismatch):
		return "checksum mismatch"
	case errors.Is(err, ErrIO):
		return "i/o failure"
	case err != nil:
		return "error"
	default:
		return ""
	}
}
