package finger

// Request is the parsed form of one finger request line.
//
// A request either names a single plan file ("2025/andrews.project") or,
// with an empty Target, asks for the full listing. Long selects the
// verbose response format.
type Request struct {
	// Long is true when the line carried a /W or -l flag.
	Long bool

	// Target is the requested identifier, relative to the served root.
	// Empty means "list everything".
	Target string
}

// IsList reports whether the request asks for the full listing.
func (r Request) IsList() bool {
	return r.Target == ""
}
