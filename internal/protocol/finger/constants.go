package finger

// DefaultPort is the IANA-assigned TCP port for the finger protocol.
const DefaultPort = 79

// Long-format flag tokens accepted at the start of a request line.
// "/W" is the RFC 1288 verbose switch; "-l" is what classic BSD finger
// clients put on the wire.
const (
	FlagVerbose = "/W"
	FlagLong    = "-l"
)
