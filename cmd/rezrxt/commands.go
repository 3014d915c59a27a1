// ABOUTME: Command implementations for the rezrxt CLI
// ABOUTME: Each command reads from or writes to the configured rxtdb store

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"

	"github.com/2389/rezrxt/internal/config"
	"github.com/2389/rezrxt/internal/launch"
	"github.com/2389/rezrxt/internal/rxtdb"
	"github.com/2389/rezrxt/internal/timeutil"
)

type app struct {
	store  rxtdb.Store
	cfg    *config.Config
	logger *slog.Logger
	stdin  io.Reader
	out    io.Writer
	now    func() time.Time
	loc    *time.Location
}

// lookup holds the positional package and the lookup flags shared by resolve, show, status and tools.
type lookup struct {
	pkg       string
	timestamp int64
	exact     bool
}

func (a *app) defaultContext() (string, error) {
	if a.cfg.Defaults.Context == "" {
		return "", fmt.Errorf("no context given: use --context or set %s", config.EnvContext)
	}
	return a.cfg.Defaults.Context, nil
}

func (a *app) currentTime() int64 {
	if a.now != nil {
		return a.now().Unix()
	}
	return time.Now().Unix()
}

func (a *app) location() *time.Location {
	if a.loc != nil {
		return a.loc
	}
	return time.Local
}

func (a *app) parseLookup(args []string) (lookup, error) {
	l := lookup{timestamp: a.currentTime()}

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--time", "--ts", "-t":
			if i+1 >= len(args) {
				return l, fmt.Errorf("%s requires a value", args[i])
			}
			ts, err := timeutil.ParseTimestamp(args[i+1])
			if err != nil {
				return l, err
			}
			l.timestamp = ts
			i++
		case "--exact":
			l.exact = true
		default:
			if l.pkg != "" {
				return l, fmt.Errorf("unexpected argument: %s", args[i])
			}
			l.pkg = args[i]
		}
	}

	if l.pkg == "" {
		return l, fmt.Errorf("package name is required")
	}
	return l, nil
}

func (a *app) cmdContexts(ctx context.Context) error {
	contexts, err := a.store.Contexts(ctx)
	if err != nil {
		return err
	}
	if len(contexts) == 0 {
		fmt.Fprintln(a.out, "(no contexts)")
		return nil
	}
	for _, c := range contexts {
		fmt.Fprintln(a.out, c)
	}
	return nil
}

func (a *app) cmdNames(ctx context.Context, args []string) error {
	var contextName string
	switch len(args) {
	case 0:
		c, err := a.defaultContext()
		if err != nil {
			return err
		}
		contextName = c
	case 1:
		contextName = args[0]
	default:
		return fmt.Errorf("usage: names [context]")
	}

	names, err := a.store.Names(ctx, contextName)
	if err != nil {
		return err
	}
	for _, n := range names {
		fmt.Fprintln(a.out, n)
	}
	return nil
}

func (a *app) cmdTimestamps(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: timestamps <pkg>")
	}
	contextName, err := a.defaultContext()
	if err != nil {
		return err
	}

	keys, err := rxtdb.ListKeys(ctx, a.store, contextName, args[0])
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIMESTAMP\tUTC\tLOCAL")
	for _, k := range keys {
		fmt.Fprintf(w, "%d\t%s\t%s\n", k.Timestamp,
			timeutil.FormatAsctime(k.Timestamp), timeutil.FormatLocalAsctime(k.Timestamp, a.location()))
	}
	return w.Flush()
}

func (a *app) cmdResolve(ctx context.Context, args []string) error {
	l, err := a.parseLookup(args)
	if err != nil {
		return err
	}
	contextName, err := a.defaultContext()
	if err != nil {
		return err
	}

	path, err := a.store.Resolve(ctx, contextName, l.pkg, l.timestamp, !l.exact)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, path)
	return nil
}

func (a *app) cmdShow(ctx context.Context, args []string) error {
	l, err := a.parseLookup(args)
	if err != nil {
		return err
	}
	contextName, err := a.defaultContext()
	if err != nil {
		return err
	}

	rec, err := a.store.Record(ctx, contextName, l.pkg, l.timestamp, !l.exact)
	if err != nil {
		return err
	}
	data, err := rec.Encode()
	if err != nil {
		return err
	}
	_, err = a.out.Write(data)
	return err
}

func (a *app) cmdPaths(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: paths <pkg>")
	}
	contextName, err := a.defaultContext()
	if err != nil {
		return err
	}

	paths, err := a.store.RecordPaths(ctx, contextName, args[0])
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintln(a.out, p)
	}
	return nil
}

func (a *app) cmdAdd(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: add <pkg> <file|->")
	}
	contextName, err := a.defaultContext()
	if err != nil {
		return err
	}

	rec, err := a.readRecord(args[1])
	if err != nil {
		return err
	}
	key, err := a.store.Add(ctx, contextName, args[0], rec)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Fprintf(a.out, "added %s (%s)\n", key, timeutil.FormatAsctime(key.Timestamp))
	return nil
}

func (a *app) cmdUpdate(ctx context.Context, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: update <pkg> <ts> <file|->")
	}
	contextName, err := a.defaultContext()
	if err != nil {
		return err
	}
	ts, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", args[1], err)
	}

	rec, err := a.readRecord(args[2])
	if err != nil {
		return err
	}
	if err := a.store.Update(ctx, contextName, args[0], ts, rec); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Fprintf(a.out, "updated %s\n", rxtdb.Key{Context: contextName, Name: args[0], Timestamp: ts})
	return nil
}

func (a *app) cmdStatus(ctx context.Context, args []string) error {
	l, err := a.parseLookup(args)
	if err != nil {
		return err
	}
	contextName, err := a.defaultContext()
	if err != nil {
		return err
	}

	env, err := a.launcher().Environment(ctx, l.request(contextName))
	if err != nil {
		return err
	}

	recEnv, ok := env.(*launch.RecordEnvironment)
	if !ok {
		fmt.Fprintf(a.out, "status: %s\n", env.Status())
		return nil
	}

	green := color.New(color.FgGreen)
	fmt.Fprintf(a.out, "%s: ", recEnv.Name())
	green.Fprintln(a.out, recEnv.Status())
	for _, pkg := range recEnv.Packages() {
		fmt.Fprintf(a.out, "  %s\n", pkg)
	}
	return nil
}

func (a *app) cmdTools(ctx context.Context, args []string) error {
	l, err := a.parseLookup(args)
	if err != nil {
		return err
	}
	contextName, err := a.defaultContext()
	if err != nil {
		return err
	}

	tools, err := a.launcher().ListTools(ctx, l.request(contextName))
	if err != nil {
		return err
	}
	if len(tools) == 0 {
		fmt.Fprintln(a.out, "(no tools)")
		return nil
	}

	w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TOOL\tPACKAGE")
	for _, tool := range tools {
		fmt.Fprintf(w, "%s\t%s\n", tool.Name, tool.Package)
	}
	return w.Flush()
}

func (a *app) launcher() *launch.Launcher {
	return launch.New(a.store, launch.RecordLoader{}, a.cfg.Store.Extension, a.logger)
}

func (l lookup) request(contextName string) launch.Request {
	return launch.Request{Context: contextName, Package: l.pkg, Timestamp: l.timestamp, Exact: l.exact}
}

// readRecord decodes a record from a file, or from stdin when path is "-".
func (a *app) readRecord(path string) (rxtdb.Record, error) {
	if path == "-" {
		return rxtdb.DecodeRecord(a.stdin)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	rec, err := rxtdb.DecodeRecord(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return rec, nil
}
