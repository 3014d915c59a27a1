// Package rxtdb stores resolve records ("rxt" files) keyed by context,
// package name and timestamp.
//
// # Layout
//
// FileStore keeps one file per key in a directory hierarchy:
//
//	<root>/<context>/<name>/<timestamp>/<context>-<name>-<timestamp>.rxt
//
// The hierarchy is the only persistent state. There are no index files and
// no locks, and every call re-reads the tree. PathScheme derives every path
// so readers and writers cannot disagree on layout.
//
// SQLiteStore implements the same interfaces on a single table and is
// selected with Open(BackendSQLite, ...). MockStore is an in-memory variant
// for tests of callers.
//
// # Approximate resolution
//
// Resolve and Record accept an approximate flag. When set, the query
// timestamp resolves to the latest stored timestamp at or before it; when
// every stored timestamp is later, it resolves to the earliest one. See
// Nearest.
//
// # Error Handling
//
// Errors wrap one of the sentinels below and name the offending key:
//
//   - ErrInvalidRoot: the store root is not an existing directory
//   - ErrNotFound: context, name, timestamp or record file is missing
//   - ErrParse: a timestamp directory name is not a non-negative integer
//   - ErrDecode: a record file does not hold a JSON object
//   - ErrAlreadyExists: Add found the key already present
//   - ErrInvalidRecord: the record's timestamp field is missing or unusable
//   - ErrInvalidKey: a context or name cannot be used as a path segment
//
// # Testing
//
// Use NewMockStore() for unit tests of code that consumes a Reader or Writer.
package rxtdb
