// ABOUTME: Filesystem implementation of the Store interface
// ABOUTME: Every call re-reads the directory tree; no state is cached between calls

package rxtdb

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Options configures a store backend.
type Options struct {
	Root         string       // FileStore root directory
	DatabasePath string       // SQLiteStore database file
	Extension    string       // record file extension, DefaultExtension if empty
	Logger       *slog.Logger // slog.Default() if nil
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger.With("component", "rxtdb")
	}
	return slog.Default().With("component", "rxtdb")
}

// FileStore implements Store over a directory tree. It holds no mutable
// state, so concurrent readers are safe. Writers to the same key are not
// coordinated: the loser of a race either sees ErrAlreadyExists or silently
// replaces the winner's file.
type FileStore struct {
	paths  PathScheme
	logger *slog.Logger
}

// NewFileStore opens a FileStore at opts.Root, which must be an existing directory.
func NewFileStore(opts Options) (*FileStore, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("%w: root path is empty", ErrInvalidRoot)
	}
	info, err := os.Stat(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRoot, opts.Root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, opts.Root)
	}

	s := &FileStore{
		paths:  NewPathScheme(opts.Root, opts.Extension),
		logger: opts.logger(),
	}
	s.logger.Debug("file store opened", "root", opts.Root, "ext", s.paths.Extension())
	return s, nil
}

// Paths returns the store's path scheme.
func (s *FileStore) Paths() PathScheme {
	return s.paths
}

// Close is a no-op; FileStore holds no open handles.
func (s *FileStore) Close() error {
	return nil
}

// Contexts lists the context directories under the root, sorted by name.
func (s *FileStore) Contexts(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.paths.ContextsDir(true)
	if err != nil {
		return nil, err
	}
	return listDirs(dir)
}

// Names lists the package names stored under a context, sorted by name.
func (s *FileStore) Names(ctx context.Context, contextName string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.paths.NamesDir(contextName, true)
	if err != nil {
		return nil, err
	}
	return listDirs(dir)
}

// Timestamps lists the stored timestamps in ascending order. Hidden entries
// and plain files are ignored; any other entry that is not the canonical
// decimal form of a non-negative integer fails with ErrParse.
func (s *FileStore) Timestamps(ctx context.Context, contextName, name string) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, err := s.paths.TimestampsDir(contextName, name, true)
	if err != nil {
		return nil, err
	}
	entries, err := listDirs(dir)
	if err != nil {
		return nil, err
	}

	stamps := make([]int64, 0, len(entries))
	for _, entry := range entries {
		ts, err := parseTimestamp(entry)
		if err != nil {
			return nil, fmt.Errorf("context %q name %q: entry %q in %s: %w", contextName, name, entry, dir, err)
		}
		stamps = append(stamps, ts)
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i] < stamps[j] })
	return stamps, nil
}

// Resolve returns the full path of a record file.
func (s *FileStore) Resolve(ctx context.Context, contextName, name string, ts int64, approximate bool) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if approximate {
		stamps, err := s.Timestamps(ctx, contextName, name)
		if err != nil {
			return "", err
		}
		nearest, ok := Nearest(stamps, ts)
		if !ok {
			return "", fmt.Errorf("no timestamps stored for context %q name %q: %w", contextName, name, ErrNotFound)
		}
		s.logger.Debug("approximate timestamp resolved",
			"context", contextName, "name", name, "query", ts, "resolved", nearest)
		ts = nearest
	}

	path, err := s.paths.RecordPath(contextName, name, ts, true)
	if err != nil {
		return "", err
	}
	if !isFile(path) {
		return "", fmt.Errorf("context %q name %q timestamp %d: record file %s does not exist: %w",
			contextName, name, ts, path, ErrNotFound)
	}
	return path, nil
}

// Record resolves a key and decodes the record file.
func (s *FileStore) Record(ctx context.Context, contextName, name string, ts int64, approximate bool) (Record, error) {
	path, err := s.Resolve(ctx, contextName, name, ts, approximate)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening record %s: %w", path, err)
	}
	defer f.Close()

	rec, err := DecodeRecord(f)
	if err != nil {
		return nil, fmt.Errorf("reading record %s: %w", path, err)
	}
	return rec, nil
}

// RecordPaths returns the path of every record for a context and name in ascending timestamp order.
func (s *FileStore) RecordPaths(ctx context.Context, contextName, name string) ([]string, error) {
	stamps, err := s.Timestamps(ctx, contextName, name)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(stamps))
	for _, ts := range stamps {
		path, err := s.Resolve(ctx, contextName, name, ts, false)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Add creates the directory for the record's key and writes the record into it.
func (s *FileStore) Add(ctx context.Context, contextName, name string, record Record) (Key, error) {
	if err := ctx.Err(); err != nil {
		return Key{}, err
	}
	ts, err := record.Timestamp()
	if err != nil {
		return Key{}, err
	}
	if err := ValidateKey(contextName, name); err != nil {
		return Key{}, err
	}
	key := Key{Context: contextName, Name: name, Timestamp: ts}

	data, err := record.Encode()
	if err != nil {
		return Key{}, err
	}

	nameDir, tsDir, path := s.paths.layout(contextName, name, ts)
	if err := os.MkdirAll(nameDir, 0o755); err != nil {
		return Key{}, fmt.Errorf("creating %s: %w", nameDir, err)
	}

	if err := os.Mkdir(tsDir, 0o755); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return Key{}, fmt.Errorf("context %q name %q timestamp %d: %w", contextName, name, ts, ErrAlreadyExists)
		}
		return Key{}, fmt.Errorf("creating %s: %w", tsDir, err)
	}

	if err := writeFileAtomic(path, data); err != nil {
		os.Remove(tsDir)
		return Key{}, fmt.Errorf("writing record %s: %w", key, err)
	}

	s.logger.Info("record added", "context", contextName, "name", name, "timestamp", ts, "path", path)
	return key, nil
}

// Update overwrites the record stored at an exact key.
func (s *FileStore) Update(ctx context.Context, contextName, name string, ts int64, record Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkUpdate(contextName, name, ts, record); err != nil {
		return err
	}

	path, err := s.Resolve(ctx, contextName, name, ts, false)
	if err != nil {
		return err
	}

	data, err := record.Encode()
	if err != nil {
		return err
	}
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("writing record %s: %w", Key{Context: contextName, Name: name, Timestamp: ts}, err)
	}

	s.logger.Info("record updated", "context", contextName, "name", name, "timestamp", ts, "path", path)
	return nil
}

// checkUpdate validates the key and requires the record to carry the key's timestamp.
func checkUpdate(contextName, name string, ts int64, record Record) error {
	if err := ValidateKey(contextName, name); err != nil {
		return err
	}
	rts, err := record.Timestamp()
	if err != nil {
		return err
	}
	if rts != ts {
		return fmt.Errorf("%w: record timestamp %d does not match key timestamp %d", ErrInvalidRecord, rts, ts)
	}
	return nil
}

// listDirs returns the visible subdirectories of dir, sorted by name.
func listDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("listing %s: %w", dir, ErrNotFound)
		}
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") || !e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// parseTimestamp accepts only the form strconv.FormatInt produces, so a
// parsed entry always maps back to the same directory.
func parseTimestamp(entry string) (int64, error) {
	ts, err := strconv.ParseInt(entry, 10, 64)
	if err != nil || ts < 0 || strconv.FormatInt(ts, 10) != entry {
		return 0, ErrParse
	}
	return ts, nil
}

// writeFileAtomic writes data next to path and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
