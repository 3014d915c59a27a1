// ABOUTME: Path derivation for the on-disk record hierarchy
// ABOUTME: root/<context>/<name>/<timestamp>/<context>-<name>-<timestamp>.<ext>

package rxtdb

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// PathScheme maps keys and key prefixes to filesystem paths. Apart from the
// optional verify checks it performs no I/O, so the read and write paths of a
// FileStore always agree on layout.
type PathScheme struct {
	root string
	ext  string
}

// NewPathScheme creates a PathScheme rooted at root. An empty ext selects DefaultExtension.
func NewPathScheme(root, ext string) PathScheme {
	if ext == "" {
		ext = DefaultExtension
	}
	return PathScheme{root: root, ext: strings.TrimPrefix(ext, ".")}
}

// Root returns the store root.
func (p PathScheme) Root() string {
	return p.root
}

// Extension returns the record file extension without the leading dot.
func (p PathScheme) Extension() string {
	return p.ext
}

// ContextsDir returns the directory holding every context.
func (p PathScheme) ContextsDir(verify bool) (string, error) {
	dir := p.root
	if verify && !isDir(dir) {
		return "", fmt.Errorf("contexts directory %s does not exist: %w", dir, ErrNotFound)
	}
	return dir, nil
}

// ContextDir returns the directory for a single context.
func (p PathScheme) ContextDir(context string, verify bool) (string, error) {
	dir := filepath.Join(p.root, context)
	if verify && (!validSegment(context) || !isDir(dir)) {
		return "", fmt.Errorf("context %q: directory %s does not exist: %w", context, dir, ErrNotFound)
	}
	return dir, nil
}

// NamesDir returns the directory listing the names of a context.
func (p PathScheme) NamesDir(context string, verify bool) (string, error) {
	dir, err := p.ContextDir(context, false)
	if err != nil {
		return "", err
	}
	if verify && (!validSegment(context) || !isDir(dir)) {
		return "", fmt.Errorf("no packages exist for context %q (%s): %w", context, dir, ErrNotFound)
	}
	return dir, nil
}

// NameDir returns the directory for a context and name.
func (p PathScheme) NameDir(context, name string, verify bool) (string, error) {
	names, err := p.NamesDir(context, verify)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(names, name)
	if verify && (!validSegment(name) || !isDir(dir)) {
		return "", fmt.Errorf("context %q name %q: directory %s does not exist: %w", context, name, dir, ErrNotFound)
	}
	return dir, nil
}

// TimestampsDir returns the directory listing the timestamps of a context and name.
func (p PathScheme) TimestampsDir(context, name string, verify bool) (string, error) {
	dir, err := p.NameDir(context, name, verify)
	if err != nil {
		return "", fmt.Errorf("no timestamps exist for context %q name %q: %w", context, name, err)
	}
	return dir, nil
}

// TimestampDir returns the directory holding the record for a key.
func (p PathScheme) TimestampDir(context, name string, ts int64, verify bool) (string, error) {
	parent, err := p.TimestampsDir(context, name, verify)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(parent, strconv.FormatInt(ts, 10))
	if verify && !isDir(dir) {
		return "", fmt.Errorf("context %q name %q timestamp %d: directory %s does not exist: %w",
			context, name, ts, dir, ErrNotFound)
	}
	return dir, nil
}

// RecordName returns the deterministic file name of a record.
func (p PathScheme) RecordName(context, name string, ts int64) string {
	return fmt.Sprintf("%s-%s-%d.%s", context, name, ts, p.ext)
}

// RecordPath returns the full path of a record file. With verify set only the
// timestamp directory is checked, not the file itself.
func (p PathScheme) RecordPath(context, name string, ts int64, verify bool) (string, error) {
	dir, err := p.TimestampDir(context, name, ts, verify)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, p.RecordName(context, name, ts)), nil
}

// layout derives the name directory, timestamp directory and record file of a
// key. It never touches the filesystem.
func (p PathScheme) layout(context, name string, ts int64) (nameDir, tsDir, file string) {
	nameDir = filepath.Join(p.root, context, name)
	tsDir = filepath.Join(nameDir, strconv.FormatInt(ts, 10))
	file = filepath.Join(tsDir, p.RecordName(context, name, ts))
	return nameDir, tsDir, file
}

// ValidateKey reports whether context and name can be used as path segments.
func ValidateKey(context, name string) error {
	if !validSegment(context) {
		return fmt.Errorf("%w: context %q", ErrInvalidKey, context)
	}
	if !validSegment(name) {
		return fmt.Errorf("%w: name %q", ErrInvalidKey, name)
	}
	return nil
}

// validSegment rejects empty, hidden and path-escaping segments. Hidden
// entries are reserved for in-flight temp files.
func validSegment(s string) bool {
	if s == "" || strings.HasPrefix(s, ".") {
		return false
	}
	return !strings.ContainsAny(s, `/\`) && !strings.ContainsRune(s, os.PathSeparator)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
