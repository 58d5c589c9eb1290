package planstore

import "errors"

// Standard plan store errors.
//
// These give the connection handler a consistent way to classify
// failures without inspecting error text. Implementations wrap them with
// context:
//
//	return Target{}, fmt.Errorf("resolve %q: %w", identifier, ErrNotFound)
//
// and callers classify with errors.Is. None of the wrapped detail is
// ever written to the wire; the handler maps each class to a fixed
// plaintext line.
var (
	// ErrInvalidPath indicates a traversal or root-escape attempt:
	// absolute paths, ".." segments, or an identifier that would
	// canonicalize outside the served root. Client-caused and
	// non-retryable. The offending path is never echoed to the client.
	ErrInvalidPath = errors.New("invalid path")

	// ErrNotFound indicates a well-formed identifier that does not name
	// an existing regular file under a year directory. Client-caused and
	// non-retryable.
	ErrNotFound = errors.New("plan not found")

	// ErrIO indicates a filesystem failure while resolving or reading
	// (permission denied, file vanished mid-request). Surfaced to the
	// client as generic unavailability; detail goes to the operator log.
	ErrIO = errors.New("plan store I/O failure")
)
