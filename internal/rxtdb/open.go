package rxtdb

import (
	"context"
	"fmt"
)

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open creates the Store selected by backend. An empty backend means BackendFile.
func Open(backend string, opts Options) (Store, error) {
	switch backend {
	case "", BackendFile:
		return NewFileStore(opts)
	case BackendSQLite:
		return NewSQLiteStore(opts)
	default:
		return nil, fmt.Errorf("unknown store backend %q (want %q or %q)", backend, BackendFile, BackendSQLite)
	}
}

// ListKeys returns the key of every record stored for a context and name.
func ListKeys(ctx context.Context, r Reader, contextName, name string) ([]Key, error) {
	stamps, err := r.Timestamps(ctx, contextName, name)
	if err != nil {
		return nil, err
	}
	keys := make([]Key, 0, len(stamps))
	for _, ts := range stamps {
		keys = append(keys, Key{Context: contextName, Name: name, Timestamp: ts})
	}
	return keys, nil
}
