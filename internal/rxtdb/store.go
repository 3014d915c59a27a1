// ABOUTME: Store interfaces, key type and error taxonomy for the rxt record database
// ABOUTME: Defines Reader and Writer so file-backed and database-backed stores are interchangeable

package rxtdb

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// DefaultExtension is the file extension used for stored records.
const DefaultExtension = "rxt"

var (
	// ErrInvalidRoot is returned when a store is opened over a path that is not an existing directory
	ErrInvalidRoot = errors.New("invalid store root")

	// ErrNotFound is returned when a context, name, timestamp or record does not exist
	ErrNotFound = errors.New("not found")

	// ErrParse is returned when a timestamp directory name is not a non-negative integer
	ErrParse = errors.New("malformed timestamp entry")

	// ErrDecode is returned when stored record content is not a JSON object
	ErrDecode = errors.New("malformed record content")

	// ErrAlreadyExists is returned when adding a record at a key that is already present
	ErrAlreadyExists = errors.New("record already exists")

	// ErrInvalidRecord is returned when a record lacks a usable timestamp field
	ErrInvalidRecord = errors.New("invalid record")

	// ErrInvalidKey is returned when a context or name cannot be used as a path segment
	ErrInvalidKey = errors.New("invalid key")
)

// Key identifies at most one stored record.
type Key struct {
	Context   string
	Name      string
	Timestamp int64
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%d", k.Context, k.Name, k.Timestamp)
}

// Reader enumerates stored keys and resolves them to records.
type Reader interface {
	// Contexts lists every context in the store.
	Contexts(ctx context.Context) ([]string, error)
	// Names lists the package names stored under a context.
	Names(ctx context.Context, contextName string) ([]string, error)
	// Timestamps lists the stored timestamps for a context and name in ascending order.
	Timestamps(ctx context.Context, contextName, name string) ([]int64, error)
	// Resolve returns the location of the record for a key. When approximate is
	// set, the latest timestamp at or before ts is chosen, or the earliest stored
	// timestamp if every stored timestamp is after ts.
	Resolve(ctx context.Context, contextName, name string, ts int64, approximate bool) (string, error)
	// Record resolves a key and decodes the stored record.
	Record(ctx context.Context, contextName, name string, ts int64, approximate bool) (Record, error)
	// RecordPaths returns the location of every stored record for a context and name,
	// ordered by ascending timestamp.
	RecordPaths(ctx context.Context, contextName, name string) ([]string, error)
}

// Writer persists records.
type Writer interface {
	// Add stores a new record under the timestamp carried in the record itself.
	Add(ctx context.Context, contextName, name string, record Record) (Key, error)
	// Update overwrites the record stored at an exact key.
	Update(ctx context.Context, contextName, name string, ts int64, record Record) error
}

// Store is a Reader and Writer over the same backend.
type Store interface {
	Reader
	Writer
	io.Closer
}
