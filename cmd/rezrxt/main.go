// ABOUTME: Command line interface for the rez resolve database
// ABOUTME: Lists, resolves, shows and stores rxt records by context, package and timestamp

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/rezrxt/internal/config"
	"github.com/2389/rezrxt/internal/rxtdb"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                          _
 _ __ ___ ____ _ ____  __| |_
| '__/ _ \_  /| '__\ \/ /| __|
| | |  __// / | |   >  < | |_
|_|  \___/___||_|  /_/\_\ \__|
`

// globalOptions are accepted before the command name.
type globalOptions struct {
	configPath string
	dbRoot     string
	backend    string
	context    string
	verbose    bool
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr, os.Getenv); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run parses args, builds the configured store and dispatches the command.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, getenv func(string) string) error {
	opts, rest, err := parseGlobal(args)
	if err != nil {
		return err
	}
	if len(rest) == 0 {
		printUsage(stdout)
		return fmt.Errorf("no command given")
	}

	cmd, cmdArgs := rest[0], rest[1:]
	switch cmd {
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	case "version":
		fmt.Fprintf(stdout, "rezrxt %s\n", version)
		return nil
	}

	cfg, err := loadConfig(opts, getenv)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging, stderr)
	storeOpts := cfg.StoreOptions()
	storeOpts.Logger = logger

	store, err := rxtdb.Open(cfg.Store.Backend, storeOpts)
	if err != nil {
		return err
	}
	defer store.Close()

	a := &app{
		store:  store,
		cfg:    cfg,
		logger: logger,
		stdin:  stdin,
		out:    stdout,
	}

	switch cmd {
	case "contexts", "ls":
		return a.cmdContexts(ctx)
	case "names":
		return a.cmdNames(ctx, cmdArgs)
	case "timestamps":
		return a.cmdTimestamps(ctx, cmdArgs)
	case "resolve":
		return a.cmdResolve(ctx, cmdArgs)
	case "show":
		return a.cmdShow(ctx, cmdArgs)
	case "paths":
		return a.cmdPaths(ctx, cmdArgs)
	case "add":
		return a.cmdAdd(ctx, cmdArgs)
	case "update":
		return a.cmdUpdate(ctx, cmdArgs)
	case "status":
		return a.cmdStatus(ctx, cmdArgs)
	case "tools":
		return a.cmdTools(ctx, cmdArgs)
	default:
		printUsage(stderr)
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

// parseGlobal consumes the options that precede the command name.
func parseGlobal(args []string) (globalOptions, []string, error) {
	var opts globalOptions

	i := 0
	for ; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "--config", "--db", "-d", "--backend", "--context", "-c":
			if i+1 >= len(args) {
				return opts, nil, fmt.Errorf("%s requires a value", arg)
			}
			value := args[i+1]
			i++
			switch arg {
			case "--config":
				opts.configPath = value
			case "--db", "-d":
				opts.dbRoot = value
			case "--backend":
				opts.backend = value
			case "--context", "-c":
				opts.context = value
			}
		case "--verbose", "-v":
			opts.verbose = true
		default:
			return opts, args[i:], nil
		}
	}
	return opts, nil, nil
}

// loadConfig layers config file, environment and flags, in that order.
func loadConfig(opts globalOptions, getenv func(string) string) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if opts.configPath != "" {
		cfg, err = config.Load(opts.configPath)
	} else {
		cfg, err = config.LoadOrDefault(config.ConfigPath(getenv))
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	// the backend flag must be in place before the env location is routed
	if opts.backend != "" {
		envBackend := getenv
		getenv = func(key string) string {
			if key == config.EnvBackend {
				return opts.backend
			}
			return envBackend(key)
		}
	}
	cfg.ApplyEnv(getenv)

	if opts.dbRoot != "" {
		cfg.SetLocation(opts.dbRoot)
	}
	if opts.context != "" {
		cfg.Defaults.Context = opts.context
	}
	if opts.verbose {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.RequireStore(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func printUsage(w io.Writer) {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Fprint(w, banner)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: rezrxt [options] <command> [args]")
	fmt.Fprintln(w)
	yellow.Fprintln(w, "Options:")
	fmt.Fprintln(w, "  --config PATH            Config file (YAML or TOML)")
	fmt.Fprintln(w, "  -d, --db ROOT            Store root directory (or sqlite database file)")
	fmt.Fprintln(w, "  --backend NAME           Store backend: file, sqlite")
	fmt.Fprintln(w, "  -c, --context CTX        Context to operate in")
	fmt.Fprintln(w, "  -v, --verbose            Debug logging")
	fmt.Fprintln(w)
	yellow.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  contexts                 List contexts")
	fmt.Fprintln(w, "  names [context]          List packages in a context")
	fmt.Fprintln(w, "  timestamps <pkg>         List stored resolve timestamps")
	fmt.Fprintln(w, "  resolve <pkg>            Print the path of the resolve for --time (default: now)")
	fmt.Fprintln(w, "  show <pkg>               Print the resolve document for --time")
	fmt.Fprintln(w, "  paths <pkg>              Print every stored resolve path")
	fmt.Fprintln(w, "  add <pkg> <file|->       Store a resolve under its own timestamp")
	fmt.Fprintln(w, "  update <pkg> <ts> <file|->  Overwrite an existing resolve")
	fmt.Fprintln(w, "  status <pkg>             Show solve status and packages of a resolve")
	fmt.Fprintln(w, "  tools <pkg>              List the tools a resolve provides")
	fmt.Fprintln(w)
	yellow.Fprintln(w, "Lookup options (resolve, show, status, tools):")
	fmt.Fprintln(w, "  --time, --ts T           Epoch seconds or asctime, e.g. \"Sun Aug 20 21:44:17 2017\"")
	fmt.Fprintln(w, "  --exact                  Require a resolve at exactly T")
	fmt.Fprintln(w)
	yellow.Fprintln(w, "Environment:")
	fmt.Fprintf(w, "  %-24s Config file path\n", config.EnvConfig)
	fmt.Fprintf(w, "  %-24s Store root directory or database file\n", config.EnvDBRoot)
	fmt.Fprintf(w, "  %-24s Store backend\n", config.EnvBackend)
	fmt.Fprintf(w, "  %-24s Default context\n", config.EnvContext)
	fmt.Fprintln(w)
}
