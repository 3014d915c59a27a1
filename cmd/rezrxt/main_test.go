package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/rezrxt/internal/config"
	"github.com/2389/rezrxt/internal/rxtdb"
)

func init() {
	color.NoColor = true
}

const solvedRxt = `{
    "status": "solved",
    "timestamp": %d,
    "resolved_packages": [
        {"variables": {"name": "houdini", "version": "16.0.564", "tools": ["houdini", "hython"]}},
        {"variables": {"name": "renderman", "version": "21.4", "tools": ["prman"]}}
    ]
}`

func writeRecord(t *testing.T, root, contextName, name string, ts int64, content string) {
	t.Helper()
	stamp := strconv.FormatInt(ts, 10)
	dir := filepath.Join(root, contextName, name, stamp)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	path := filepath.Join(dir, contextName+"-"+name+"-"+stamp+".rxt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func setupRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeRecord(t, root, "model", "houdini", 1503265457, strings.Replace(solvedRxt, "%d", "1503265457", 1))
	writeRecord(t, root, "model", "houdini", 1503266406, `{"status": "failed", "timestamp": 1503266406}`)
	writeRecord(t, root, "fx", "nuke", 100, `{"status": "solved", "timestamp": 100}`)
	return root
}

// testEnv returns a getenv that only knows the given variables. XDG_CONFIG_HOME
// points at an empty directory so no user config is picked up.
func testEnv(t *testing.T, vars map[string]string) func(string) string {
	t.Helper()
	xdg := t.TempDir()
	return func(key string) string {
		if key == "XDG_CONFIG_HOME" {
			return xdg
		}
		return vars[key]
	}
}

func runCLI(t *testing.T, getenv func(string) string, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, strings.NewReader(stdin), &stdout, &stderr, getenv)
	return stdout.String(), stderr.String(), err
}

func TestRun_NoCommand(t *testing.T) {
	out, _, err := runCLI(t, testEnv(t, nil), "")
	require.Error(t, err)
	assert.Contains(t, out, "Usage: rezrxt")
}

func TestRun_HelpAndVersion(t *testing.T) {
	out, _, err := runCLI(t, testEnv(t, nil), "", "help")
	require.NoError(t, err)
	assert.Contains(t, out, "Commands:")

	out, _, err = runCLI(t, testEnv(t, nil), "", "version")
	require.NoError(t, err)
	assert.Equal(t, "rezrxt dev\n", out)
}

func TestRun_RequiresStoreRoot(t *testing.T) {
	_, _, err := runCLI(t, testEnv(t, nil), "", "contexts")
	require.Error(t, err)
	assert.Contains(t, err.Error(), config.EnvDBRoot)
}

func TestRun_InvalidRoot(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing")
	_, _, err := runCLI(t, testEnv(t, nil), "", "--db", missing, "contexts")
	assert.ErrorIs(t, err, rxtdb.ErrInvalidRoot)
}

func TestRun_Contexts(t *testing.T) {
	root := setupRoot(t)

	out, _, err := runCLI(t, testEnv(t, map[string]string{config.EnvDBRoot: root}), "", "contexts")
	require.NoError(t, err)
	assert.Equal(t, "fx\nmodel\n", out)
}

func TestRun_Contexts_Empty(t *testing.T) {
	out, _, err := runCLI(t, testEnv(t, nil), "", "-d", t.TempDir(), "ls")
	require.NoError(t, err)
	assert.Equal(t, "(no contexts)\n", out)
}

func TestRun_Names(t *testing.T) {
	root := setupRoot(t)
	env := testEnv(t, map[string]string{config.EnvDBRoot: root, config.EnvContext: "model"})

	out, _, err := runCLI(t, env, "", "names")
	require.NoError(t, err)
	assert.Equal(t, "houdini\n", out)

	out, _, err = runCLI(t, env, "", "names", "fx")
	require.NoError(t, err)
	assert.Equal(t, "nuke\n", out)

	_, _, err = runCLI(t, env, "", "names", "lighting")
	assert.ErrorIs(t, err, rxtdb.ErrNotFound)
}

func TestRun_MissingContext(t *testing.T) {
	root := setupRoot(t)

	_, _, err := runCLI(t, testEnv(t, nil), "", "-d", root, "resolve", "houdini")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no context given")
}

func TestRun_Timestamps(t *testing.T) {
	root := setupRoot(t)

	out, _, err := runCLI(t, testEnv(t, nil), "", "-d", root, "-c", "model", "timestamps", "houdini")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"TIMESTAMP", "UTC", "LOCAL"}, strings.Fields(lines[0]))
	assert.Contains(t, lines[1], "1503265457")
	assert.Contains(t, lines[1], "Sun Aug 20 21:44:17 2017")
	assert.Contains(t, lines[2], "1503266406")
}

func TestRun_Resolve(t *testing.T) {
	root := setupRoot(t)
	env := testEnv(t, map[string]string{config.EnvDBRoot: root, config.EnvContext: "model"})
	want := filepath.Join(root, "model", "houdini", "1503265457", "model-houdini-1503265457.rxt")

	out, _, err := runCLI(t, env, "", "resolve", "houdini", "--time", "1503265459")
	require.NoError(t, err)
	assert.Equal(t, want+"\n", out)

	// asctime form of the same query
	out, _, err = runCLI(t, env, "", "resolve", "houdini", "-t", "Sun Aug 20 21:44:19 2017")
	require.NoError(t, err)
	assert.Equal(t, want+"\n", out)

	// before every stored timestamp falls back to the earliest
	out, _, err = runCLI(t, env, "", "resolve", "houdini", "--ts", "5")
	require.NoError(t, err)
	assert.Equal(t, want+"\n", out)

	_, _, err = runCLI(t, env, "", "resolve", "houdini", "--time", "1503265459", "--exact")
	assert.ErrorIs(t, err, rxtdb.ErrNotFound)
}

func TestRun_Show(t *testing.T) {
	root := setupRoot(t)

	out, _, err := runCLI(t, testEnv(t, nil), "", "-d", root, "-c", "fx", "show", "nuke", "--time", "100", "--exact")
	require.NoError(t, err)

	rec, err := rxtdb.ParseRecord([]byte(out))
	require.NoError(t, err)
	ts, err := rec.Timestamp()
	require.NoError(t, err)
	assert.Equal(t, int64(100), ts)
	assert.Equal(t, "solved", rec["status"])
}

func TestRun_Paths(t *testing.T) {
	root := setupRoot(t)

	out, _, err := runCLI(t, testEnv(t, nil), "", "-d", root, "-c", "model", "paths", "houdini")
	require.NoError(t, err)
	assert.Equal(t,
		filepath.Join(root, "model", "houdini", "1503265457", "model-houdini-1503265457.rxt")+"\n"+
			filepath.Join(root, "model", "houdini", "1503266406", "model-houdini-1503266406.rxt")+"\n",
		out)
}

func TestRun_AddAndUpdate(t *testing.T) {
	root := t.TempDir()
	env := testEnv(t, map[string]string{config.EnvDBRoot: root, config.EnvContext: "lighting"})

	out, _, err := runCLI(t, env, `{"status": "solved", "timestamp": 42}`, "add", "katana", "-")
	require.NoError(t, err)
	assert.Contains(t, out, "added lighting/katana/42")
	assert.FileExists(t, filepath.Join(root, "lighting", "katana", "42", "lighting-katana-42.rxt"))

	_, _, err = runCLI(t, env, `{"status": "solved", "timestamp": 42}`, "add", "katana", "-")
	assert.ErrorIs(t, err, rxtdb.ErrAlreadyExists)

	file := filepath.Join(t.TempDir(), "update.rxt")
	require.NoError(t, os.WriteFile(file, []byte(`{"status": "failed", "timestamp": 42}`), 0o644))

	out, _, err = runCLI(t, env, "", "update", "katana", "42", file)
	require.NoError(t, err)
	assert.Contains(t, out, "updated lighting/katana/42")

	out, _, err = runCLI(t, env, "", "show", "katana", "--time", "42")
	require.NoError(t, err)
	assert.Contains(t, out, `"failed"`)

	_, _, err = runCLI(t, env, `{"status": "solved", "timestamp": 43}`, "update", "katana", "43", "-")
	assert.ErrorIs(t, err, rxtdb.ErrNotFound)

	_, _, err = runCLI(t, env, "", "update", "katana", "43", file)
	assert.ErrorIs(t, err, rxtdb.ErrInvalidRecord)

	_, _, err = runCLI(t, env, "", "update", "katana", "soon", file)
	require.Error(t, err)
}

func TestRun_AddInvalidRecord(t *testing.T) {
	env := testEnv(t, map[string]string{config.EnvDBRoot: t.TempDir(), config.EnvContext: "lighting"})

	_, _, err := runCLI(t, env, `{"status": "solved"}`, "add", "katana", "-")
	assert.ErrorIs(t, err, rxtdb.ErrInvalidRecord)

	_, _, err = runCLI(t, env, `not json`, "add", "katana", "-")
	assert.ErrorIs(t, err, rxtdb.ErrDecode)
}

func TestRun_Status(t *testing.T) {
	root := setupRoot(t)
	env := testEnv(t, map[string]string{config.EnvDBRoot: root, config.EnvContext: "model"})

	out, _, err := runCLI(t, env, "", "status", "houdini", "--time", "1503265500")
	require.NoError(t, err)
	assert.Equal(t, "model-houdini-1503265457.rxt: solved\n  houdini-16.0.564\n  renderman-21.4\n", out)

	_, _, err = runCLI(t, env, "", "status", "houdini", "--time", "1503266406")
	assert.Error(t, err)
}

func TestRun_StatusExact(t *testing.T) {
	root := setupRoot(t)
	env := testEnv(t, map[string]string{config.EnvDBRoot: root, config.EnvContext: "model"})

	_, _, err := runCLI(t, env, "", "status", "houdini", "--time", "1503265460", "--exact")
	assert.ErrorIs(t, err, rxtdb.ErrNotFound)

	out, _, err := runCLI(t, env, "", "status", "houdini", "--time", "1503265457", "--exact")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "model-houdini-1503265457.rxt: solved\n"))
}

func TestRun_Tools(t *testing.T) {
	root := setupRoot(t)
	env := testEnv(t, map[string]string{config.EnvDBRoot: root, config.EnvContext: "model"})

	out, _, err := runCLI(t, env, "", "tools", "houdini", "--time", "1503265500")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, []string{"TOOL", "PACKAGE"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"houdini", "houdini-16.0.564"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"hython", "houdini-16.0.564"}, strings.Fields(lines[2]))
	assert.Equal(t, []string{"prman", "renderman-21.4"}, strings.Fields(lines[3]))

	out, _, err = runCLI(t, testEnv(t, nil), "", "-d", root, "-c", "fx", "tools", "nuke", "--time", "100")
	require.NoError(t, err)
	assert.Equal(t, "(no tools)\n", out)
}

func TestRun_BackendFlagRoutesEnvLocation(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "rxt.db")
	env := testEnv(t, map[string]string{config.EnvDBRoot: dbPath})

	out, _, err := runCLI(t, env, "", "--backend", "sqlite", "contexts")
	require.NoError(t, err)
	assert.Equal(t, "(no contexts)\n", out)
	assert.FileExists(t, dbPath)
}

func TestRun_BackendFlagOverridesEnvBackend(t *testing.T) {
	root := setupRoot(t)
	env := testEnv(t, map[string]string{config.EnvBackend: rxtdb.BackendSQLite, config.EnvDBRoot: root})

	out, _, err := runCLI(t, env, "", "--backend", "file", "contexts")
	require.NoError(t, err)
	assert.Equal(t, "fx\nmodel\n", out)
}

func TestRun_SQLiteBackend(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "rxt.db")
	env := testEnv(t, map[string]string{
		config.EnvBackend: rxtdb.BackendSQLite,
		config.EnvDBRoot:  dbPath,
		config.EnvContext: "model",
	})

	_, _, err := runCLI(t, env, `{"status": "solved", "timestamp": 1503265457}`, "add", "houdini", "-")
	require.NoError(t, err)

	out, _, err := runCLI(t, env, "", "resolve", "houdini", "--time", "1503265459")
	require.NoError(t, err)
	assert.Equal(t, "sqlite://"+dbPath+"/model/houdini/model-houdini-1503265457.rxt\n", out)
}

func TestRun_ConfigFile(t *testing.T) {
	root := setupRoot(t)
	cfgPath := filepath.Join(t.TempDir(), "rezrxt.toml")
	content := "[store]\nroot = \"" + filepath.ToSlash(root) + "\"\n\n[defaults]\ncontext = \"fx\"\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(content), 0o644))

	out, _, err := runCLI(t, testEnv(t, nil), "", "--config", cfgPath, "names")
	require.NoError(t, err)
	assert.Equal(t, "nuke\n", out)
}

func TestRun_UnknownCommand(t *testing.T) {
	_, stderr, err := runCLI(t, testEnv(t, nil), "", "-d", t.TempDir(), "frobnicate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command: frobnicate")
	assert.Contains(t, stderr, "Usage:")
}

func TestRun_VerboseLogsToStderr(t *testing.T) {
	root := setupRoot(t)

	_, stderr, err := runCLI(t, testEnv(t, nil), "", "-v", "-d", root, "-c", "model", "resolve", "houdini", "--time", "1503265459")
	require.NoError(t, err)
	assert.Contains(t, stderr, "DBG")
	assert.Contains(t, stderr, "component=rxtdb")
}

func TestParseGlobal(t *testing.T) {
	opts, rest, err := parseGlobal([]string{"--config", "c.yaml", "-d", "/db", "--backend", "sqlite", "-c", "model", "-v", "resolve", "houdini"})
	require.NoError(t, err)
	assert.Equal(t, globalOptions{configPath: "c.yaml", dbRoot: "/db", backend: "sqlite", context: "model", verbose: true}, opts)
	assert.Equal(t, []string{"resolve", "houdini"}, rest)

	_, _, err = parseGlobal([]string{"--db"})
	assert.Error(t, err)
}

func TestParseLookup(t *testing.T) {
	a := &app{}

	l, err := a.parseLookup([]string{"houdini", "--time", "1503265457", "--exact"})
	require.NoError(t, err)
	assert.Equal(t, lookup{pkg: "houdini", timestamp: 1503265457, exact: true}, l)

	_, err = a.parseLookup([]string{"--exact"})
	assert.Error(t, err)

	_, err = a.parseLookup([]string{"houdini", "modo"})
	assert.Error(t, err)

	_, err = a.parseLookup([]string{"houdini", "--time", "yesterday"})
	assert.Error(t, err)
}

func TestSetupLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "info", Format: "json"}, &buf)
	logger.Debug("hidden")
	logger.Info("shown", "key", "value")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"key":"value"`)
}

func TestColorHandler_GroupedAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "info"}, &buf)

	logger.With("component", "rxtdb").WithGroup("store").With("root", "/rxt").Info("opened", "ext", "rxt")

	out := buf.String()
	assert.Contains(t, out, " component=rxtdb")
	assert.Contains(t, out, " store.root=/rxt")
	assert.Contains(t, out, " store.ext=rxt")
	assert.NotContains(t, out, " root=/rxt")
}
