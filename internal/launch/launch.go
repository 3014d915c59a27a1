// ABOUTME: Boundary to the external resolve-context runtime
// ABOUTME: Loads a stored record into an executable environment and lists its tools

package launch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/2389/rezrxt/internal/rxtdb"
)

// ErrUnsolved is returned when a stored resolve did not solve.
var ErrUnsolved = errors.New("cannot enter a failed context")

// Status is the solver outcome reported by an Environment.
type Status string

const (
	StatusSolved Status = "solved"
	StatusFailed Status = "failed"
)

// Tool describes one executable exposed by a resolved package.
type Tool struct {
	Name    string
	Package string
}

// ShellOptions is passed through to Environment.ExecuteShell unchanged.
type ShellOptions struct {
	Shell           string
	RCFile          string
	NoRC            bool
	Command         []string
	Stdin           bool
	Quiet           bool
	StartNewSession bool
	Detached        bool
	PreCommand      string
}

// Environment is a resolved context that can run commands.
type Environment interface {
	Status() Status
	// Tools maps tool name to its metadata.
	Tools() (map[string]Tool, error)
	ExecuteShell(ctx context.Context, opts ShellOptions) (int, error)
}

// Loader builds an Environment from a decoded record. displayName is the
// record file name the environment reports itself as.
type Loader interface {
	Load(record rxtdb.Record, displayName string) (Environment, error)
}

// Request selects a stored resolve. Timestamp is matched approximately
// unless Exact is set.
type Request struct {
	Context   string
	Package   string
	Timestamp int64
	Exact     bool
}

// Launcher joins a record store with a Loader.
type Launcher struct {
	reader rxtdb.Reader
	loader Loader
	names  rxtdb.PathScheme
	logger *slog.Logger
}

// New creates a Launcher. ext is the store's record extension and only
// affects the environment's display name.
func New(reader rxtdb.Reader, loader Loader, ext string, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{
		reader: reader,
		loader: loader,
		names:  rxtdb.NewPathScheme("", ext),
		logger: logger.With("component", "launch"),
	}
}

// Environment loads the resolve selected by req and checks that it solved.
// The display name carries the resolved timestamp, not the query.
func (l *Launcher) Environment(ctx context.Context, req Request) (Environment, error) {
	rec, err := l.reader.Record(ctx, req.Context, req.Package, req.Timestamp, !req.Exact)
	if err != nil {
		return nil, err
	}
	ts, err := rec.Timestamp()
	if err != nil {
		return nil, err
	}

	display := l.names.RecordName(req.Context, req.Package, ts)
	env, err := l.loader.Load(rec, display)
	if err != nil {
		return nil, fmt.Errorf("loading context %s: %w", display, err)
	}
	if env.Status() != StatusSolved {
		return nil, fmt.Errorf("%s has status %q: %w", display, env.Status(), ErrUnsolved)
	}

	l.logger.Debug("environment loaded", "record", display, "query", req.Timestamp)
	return env, nil
}

// ListTools returns the tools of the resolved environment sorted by package, then name.
func (l *Launcher) ListTools(ctx context.Context, req Request) ([]Tool, error) {
	env, err := l.Environment(ctx, req)
	if err != nil {
		return nil, err
	}
	tools, err := env.Tools()
	if err != nil {
		return nil, fmt.Errorf("listing tools: %w", err)
	}

	out := make([]Tool, 0, len(tools))
	for name, tool := range tools {
		if tool.Name == "" {
			tool.Name = name
		}
		out = append(out, tool)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Package != out[j].Package {
			return out[i].Package < out[j].Package
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
