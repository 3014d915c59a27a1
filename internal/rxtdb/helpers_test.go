package rxtdb

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

// houdiniRxt is a trimmed resolve document as written by rez.
const houdiniRxt = `{
    "rez_version": "2.12.0",
    "package_requests": ["houdini", "renderman"],
    "serialize_version": "4.3",
    "resolved_packages": [
        {
            "variables": {
                "index": 0,
                "version": "16.0.564",
                "repository_type": "filesystem",
                "location": "/rez-packages/ext",
                "name": "houdini"
            },
            "key": "filesystem.variant"
        }
    ],
    "num_loaded_packages": 5,
    "requested_timestamp": null,
    "solve_time": 0.010216951370239258,
    "building": false,
    "status": "solved",
    "created": 1503265457,
    "timestamp": 1503265457
}`

// rxtWithTimestamp returns a minimal resolve document for ts.
func rxtWithTimestamp(ts int64) string {
	return `{"status": "solved", "timestamp": ` + strconv.FormatInt(ts, 10) + `}`
}

// writeFixture lays out a record file by hand, bypassing the writer.
func writeFixture(t *testing.T, root, contextName, name string, ts int64, content string) string {
	t.Helper()
	stamp := strconv.FormatInt(ts, 10)
	dir := filepath.Join(root, contextName, name, stamp)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, contextName+"-"+name+"-"+stamp+".rxt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// setupFixtureRoot builds the store used throughout the reader tests:
// model/houdini {1503265457, 1503266406}, model/modo {1503265000}, fx/nuke {100}.
func setupFixtureRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFixture(t, root, "model", "houdini", 1503265457, houdiniRxt)
	writeFixture(t, root, "model", "houdini", 1503266406, rxtWithTimestamp(1503266406))
	writeFixture(t, root, "model", "modo", 1503265000, rxtWithTimestamp(1503265000))
	writeFixture(t, root, "fx", "nuke", 100, rxtWithTimestamp(100))
	return root
}

func setupFileStore(t *testing.T, root string) *FileStore {
	t.Helper()
	store, err := NewFileStore(Options{Root: root})
	require.NoError(t, err)
	return store
}

func mustParse(t *testing.T, content string) Record {
	t.Helper()
	rec, err := ParseRecord([]byte(content))
	require.NoError(t, err)
	return rec
}
