// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows callers of the store to be tested without a filesystem or SQLite

package rxtdb

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu      sync.RWMutex
	paths   PathScheme
	records map[Key][]byte // encoded so callers cannot mutate stored records
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		paths:   NewPathScheme("", DefaultExtension),
		records: make(map[Key][]byte),
	}
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

func (m *MockStore) location(k Key) string {
	return fmt.Sprintf("mock://%s/%s/%s", k.Context, k.Name, m.paths.RecordName(k.Context, k.Name, k.Timestamp))
}

// Contexts lists every context holding a record.
func (m *MockStore) Contexts(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	for k := range m.records {
		seen[k.Context] = true
	}
	return sortedKeys(seen), nil
}

// Names lists the names stored under a context.
func (m *MockStore) Names(ctx context.Context, contextName string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	for k := range m.records {
		if k.Context == contextName {
			seen[k.Name] = true
		}
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("no packages exist for context %q: %w", contextName, ErrNotFound)
	}
	return sortedKeys(seen), nil
}

// Timestamps lists the stored timestamps for a context and name in ascending order.
func (m *MockStore) Timestamps(ctx context.Context, contextName, name string) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.timestampsLocked(contextName, name)
}

func (m *MockStore) timestampsLocked(contextName, name string) ([]int64, error) {
	var stamps []int64
	for k := range m.records {
		if k.Context == contextName && k.Name == name {
			stamps = append(stamps, k.Timestamp)
		}
	}
	if len(stamps) == 0 {
		return nil, fmt.Errorf("no timestamps exist for context %q name %q: %w", contextName, name, ErrNotFound)
	}
	sort.Slice(stamps, func(i, j int) bool { return stamps[i] < stamps[j] })
	return stamps, nil
}

func (m *MockStore) resolveLocked(contextName, name string, ts int64, approximate bool) (Key, error) {
	if approximate {
		stamps, err := m.timestampsLocked(contextName, name)
		if err != nil {
			return Key{}, err
		}
		ts, _ = Nearest(stamps, ts)
	}
	k := Key{Context: contextName, Name: name, Timestamp: ts}
	if _, ok := m.records[k]; !ok {
		return Key{}, fmt.Errorf("no record exists for context %q name %q timestamp %d: %w", contextName, name, ts, ErrNotFound)
	}
	return k, nil
}

// Resolve returns the mock location of a record.
func (m *MockStore) Resolve(ctx context.Context, contextName, name string, ts int64, approximate bool) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	k, err := m.resolveLocked(contextName, name, ts, approximate)
	if err != nil {
		return "", err
	}
	return m.location(k), nil
}

// Record returns a copy of a stored record.
func (m *MockStore) Record(ctx context.Context, contextName, name string, ts int64, approximate bool) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	k, err := m.resolveLocked(contextName, name, ts, approximate)
	if err != nil {
		return nil, err
	}
	return ParseRecord(m.records[k])
}

// RecordPaths returns the mock location of every record for a context and name.
func (m *MockStore) RecordPaths(ctx context.Context, contextName, name string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stamps, err := m.timestampsLocked(contextName, name)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(stamps))
	for _, ts := range stamps {
		out = append(out, m.location(Key{Context: contextName, Name: name, Timestamp: ts}))
	}
	return out, nil
}

// Add stores a new record.
func (m *MockStore) Add(ctx context.Context, contextName, name string, record Record) (Key, error) {
	ts, err := record.Timestamp()
	if err != nil {
		return Key{}, err
	}
	if err := ValidateKey(contextName, name); err != nil {
		return Key{}, err
	}
	data, err := record.Encode()
	if err != nil {
		return Key{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	k := Key{Context: contextName, Name: name, Timestamp: ts}
	if _, ok := m.records[k]; ok {
		return Key{}, fmt.Errorf("context %q name %q timestamp %d: %w", contextName, name, ts, ErrAlreadyExists)
	}
	m.records[k] = data
	return k, nil
}

// Update overwrites an existing record.
func (m *MockStore) Update(ctx context.Context, contextName, name string, ts int64, record Record) error {
	if err := checkUpdate(contextName, name, ts, record); err != nil {
		return err
	}
	data, err := record.Encode()
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	k := Key{Context: contextName, Name: name, Timestamp: ts}
	if _, ok := m.records[k]; !ok {
		return fmt.Errorf("no record exists for context %q name %q timestamp %d: %w", contextName, name, ts, ErrNotFound)
	}
	m.records[k] = data
	return nil
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

var _ Store = (*MockStore)(nil)
