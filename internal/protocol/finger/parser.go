// Package finger implements the request-line grammar of the finger
// protocol (RFC 1288) as consumed by the plan-file server.
//
// The grammar is deliberately permissive: anything that is not a
// recognized flag token is treated as a literal target and handed to the
// path resolver, which is the actual validation authority. Parsing never
// fails.
package finger

import "strings"

// Parse decodes a single request line.
//
// Accepted shapes:
//
//	""                  short listing (the classic bare-CRLF request)
//	"/W"                long listing
//	"-l 2025/a.project" long single-file lookup
//	"2025/a.project"    short single-file lookup
//	"2025/a.project@host"  host suffix is stripped; forwarding is refused
//
// The line terminator must already be removed by the caller; a trailing
// "\r" left over from CRLF framing is tolerated.
func Parse(line string) Request {
	line = strings.TrimSuffix(line, "\r")
	line = strings.TrimSpace(line)

	// Standard finger clients encode the queried host after an "@"
	// (e.g. "2025/a.project@example.org"). RFC 1288 allows a server to
	// refuse query forwarding, so everything from the first "@" on is
	// dropped and the request is handled locally.
	if at := strings.IndexByte(line, '@'); at >= 0 {
		line = strings.TrimSpace(line[:at])
	}

	var req Request

	switch {
	case line == FlagVerbose || line == FlagLong:
		req.Long = true
		line = ""
	case strings.HasPrefix(line, FlagVerbose+" ") || strings.HasPrefix(line, FlagLong+" "):
		req.Long = true
		line = strings.TrimSpace(line[len(FlagVerbose)+1:])
	}

	req.Target = line
	return req
}
