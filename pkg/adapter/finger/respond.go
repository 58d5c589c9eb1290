package finger

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/thumbplan/fingerd/pkg/planstore"
)

// Fixed response lines. Quota refusals and I/O failures share one
// message on purpose: clients must not be able to distinguish them.
const (
	msgInvalid     = "Invalid or malformed request\n"
	msgUnavailable = "Service temporarily unavailable\n"
)

const (
	// previewRunes caps the first-line excerpt shown in long listings.
	previewRunes = 40

	// previewReadLimit bounds how much of each file the long listing
	// reads while building previews.
	previewReadLimit = 512
)

func msgNotFound(target string) string {
	return fmt.Sprintf("Project %s not found\n", target)
}

// formatListing renders the short listing: one relative path per line,
// in the order the store returned them.
func formatListing(entries []planstore.Entry) []byte {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.Rel)
		b.WriteByte('\n')
	}
	return []byte(b.String())
}

// formatListingLong renders the verbose listing: path, size, modified
// timestamp and a first-line preview per entry.
func formatListingLong(entries []planstore.Entry, root string) []byte {
	var b strings.Builder
	for _, e := range entries {
		fmt.Fprintf(&b, "%-30s %8d bytes  %s  %s\n",
			e.Rel, e.Size,
			e.Modified.UTC().Format(time.RFC3339),
			preview(filepath.Join(root, filepath.FromSlash(e.Rel))))
	}
	return []byte(b.String())
}

// formatFileLong wraps file content in a metadata header.
func formatFileLong(entry planstore.Entry, content []byte) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "Project:  %s\n", projectName(entry.Rel))
	fmt.Fprintf(&b, "Location: %s\n", entry.Rel)
	fmt.Fprintf(&b, "Size:     %d bytes\n", entry.Size)
	fmt.Fprintf(&b, "Modified: %s\n", entry.Modified.UTC().Format(time.RFC3339))
	b.WriteByte('\n')
	b.Write(content)
	return b.Bytes()
}

// projectName derives the display name from a relative path: the file
// name with its extension stripped.
func projectName(rel string) string {
	name := rel
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return name
}

// preview reads the first line of a file, truncated to previewRunes
// runes. Unreadable files yield an empty preview rather than failing
// the listing.
func preview(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	buf := make([]byte, previewReadLimit)
	n, _ := f.Read(buf)
	line := buf[:n]
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = bytes.TrimSuffix(line, []byte("\r"))

	text := strings.TrimSpace(string(line))
	if utf8.RuneCountInString(text) > previewRunes {
		runes := []rune(text)
		text = string(runes[:previewRunes])
	}
	return text
}
