// Package planstore maps client-supplied identifiers onto the served
// plan-file tree and enumerates its contents.
//
// The served tree is laid out as <root>/<year>/<name>, where <year> is a
// 4-digit directory and <name> is any regular file (.project, .plan or
// otherwise; the resolver is extension-agnostic). The store is strictly
// read-only: nothing here ever mutates the tree.
//
// Resolve is the security boundary of the server. Every identifier taken
// from the wire passes through it before any filesystem access, and
// anything that could reach outside the root is rejected as
// ErrInvalidPath. Symlinks inside the tree are followed only when their
// canonical target stays under the root; the same policy applies to
// listings, so the listed set and the servable set agree.
package planstore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// yearPattern matches the 4-digit directory names the tree is
// partitioned by. Anything else directly under the root is ignored.
var yearPattern = regexp.MustCompile(`^\d{4}$`)

// Target is the result of resolving an identifier.
//
// Either List is true (the empty identifier, meaning "enumerate
// everything") or Rel/Abs name a single regular file that existed at
// resolve time.
type Target struct {
	List bool

	// Rel is the canonical "<year>/<name>" form. Safe to echo to
	// clients.
	Rel string

	// Abs is the canonical absolute filesystem path, symlinks already
	// resolved. Never written to the wire.
	Abs string
}

// Entry describes one served file as seen at enumeration time.
type Entry struct {
	Rel      string
	Size     int64
	Modified time.Time
}

// Store serves a single root directory.
type Store struct {
	root string
}

// New creates a Store over root. The root must exist and be a
// directory; it is canonicalized (absolute, symlinks resolved) so that
// prefix checks in Resolve are meaningful.
func New(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("canonicalize root %s: %w", root, err)
	}
	abs, err = filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("canonicalize root %s: %w", root, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat root %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %s is not a directory", abs)
	}

	return &Store{root: abs}, nil
}

// Root returns the absolute served root.
func (s *Store) Root() string {
	return s.root
}

// Resolve maps an identifier from a parsed request to a Target.
//
// The empty identifier resolves to the list target. A non-empty
// identifier must have the shape <4-digit-year>/<name> and name an
// existing regular file; otherwise ErrNotFound. Absolute paths, "\"
// separators that normalize into escapes, ".." segments and anything
// canonicalizing outside the root yield ErrInvalidPath.
func (s *Store) Resolve(identifier string) (Target, error) {
	// Windows finger clients send backslash separators.
	identifier = strings.ReplaceAll(identifier, "\\", "/")
	identifier = strings.TrimSpace(identifier)

	if identifier == "" {
		return Target{List: true}, nil
	}

	if strings.HasPrefix(identifier, "/") || hasDrivePrefix(identifier) {
		return Target{}, fmt.Errorf("absolute identifier: %w", ErrInvalidPath)
	}

	segments := strings.Split(identifier, "/")
	for _, seg := range segments {
		if seg == ".." {
			return Target{}, fmt.Errorf("traversal segment: %w", ErrInvalidPath)
		}
	}

	if len(segments) != 2 {
		return Target{}, fmt.Errorf("identifier %q: %w", identifier, ErrNotFound)
	}

	year, name := segments[0], segments[1]
	if !yearPattern.MatchString(year) || name == "" || name == "." {
		return Target{}, fmt.Errorf("identifier %q: %w", identifier, ErrNotFound)
	}

	abs := filepath.Join(s.root, year, name)

	// Join cleans the path; after the segment checks above it cannot
	// escape lexically, but a symlink inside the tree still can. The
	// canonical path is what gets prefix-checked and read.
	canonical, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Target{}, fmt.Errorf("identifier %q: %w", identifier, ErrNotFound)
		}
		return Target{}, fmt.Errorf("canonicalize %q: %w", identifier, ErrIO)
	}
	if !s.contains(canonical) {
		return Target{}, fmt.Errorf("escapes served root: %w", ErrInvalidPath)
	}

	info, err := os.Stat(canonical)
	if err != nil {
		if os.IsNotExist(err) {
			return Target{}, fmt.Errorf("identifier %q: %w", identifier, ErrNotFound)
		}
		return Target{}, fmt.Errorf("stat %q: %w", identifier, ErrIO)
	}
	if !info.Mode().IsRegular() {
		return Target{}, fmt.Errorf("identifier %q is not a regular file: %w", identifier, ErrNotFound)
	}

	return Target{Rel: year + "/" + name, Abs: canonical}, nil
}

// contains reports whether a canonical path lies strictly inside the
// served root.
func (s *Store) contains(path string) bool {
	return strings.HasPrefix(path, s.root+string(filepath.Separator))
}

// List enumerates every served file under every 4-digit year directory,
// sorted lexicographically by "<year>/<name>". Symlinks are followed
// under the same policy as Resolve: entries whose canonical target is a
// regular file inside the root are listed, everything else is skipped.
//
// Listings always reflect the current state of the tree; they are never
// cached (directory contents are cheap to re-enumerate and must be
// fresh).
func (s *Store) List() ([]Entry, error) {
	years, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read root: %w", ErrIO)
	}

	var entries []Entry
	for _, year := range years {
		if !yearPattern.MatchString(year.Name()) {
			continue
		}
		yearPath, ok := s.resolveDir(year)
		if !ok {
			continue
		}

		files, err := os.ReadDir(yearPath)
		if err != nil {
			// A year directory vanishing mid-listing is not fatal.
			continue
		}

		for _, file := range files {
			if file.IsDir() {
				continue
			}
			path := filepath.Join(yearPath, file.Name())
			if file.Type()&fs.ModeSymlink != 0 {
				canonical, err := filepath.EvalSymlinks(path)
				if err != nil || !s.contains(canonical) {
					continue
				}
				path = canonical
			}
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
			entries = append(entries, Entry{
				Rel:      year.Name() + "/" + file.Name(),
				Size:     info.Size(),
				Modified: info.ModTime(),
			})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Rel < entries[j].Rel
	})

	return entries, nil
}

// resolveDir returns the filesystem path for a year entry, following an
// in-root symlink. ok is false for non-directories and for links whose
// canonical target leaves the root.
func (s *Store) resolveDir(entry fs.DirEntry) (path string, ok bool) {
	path = filepath.Join(s.root, entry.Name())
	if entry.Type()&fs.ModeSymlink == 0 {
		return path, entry.IsDir()
	}

	canonical, err := filepath.EvalSymlinks(path)
	if err != nil || !s.contains(canonical) {
		return "", false
	}
	info, err := os.Stat(canonical)
	if err != nil || !info.IsDir() {
		return "", false
	}
	return canonical, true
}

// hasDrivePrefix reports whether the identifier starts with a Windows
// drive letter ("C:").
func hasDrivePrefix(identifier string) bool {
	if len(identifier) < 2 || identifier[1] != ':' {
		return false
	}
	c := identifier[0]
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
