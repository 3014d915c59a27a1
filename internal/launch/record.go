package launch

import (
	"context"
	"errors"
	"fmt"

	"github.com/2389/rezrxt/internal/rxtdb"
)

// ErrNoRuntime is returned by environments that only inspect a record.
var ErrNoRuntime = errors.New("no resolve runtime available")

// RecordLoader builds environments straight from the stored document, without
// a rez runtime. They report the record's status, resolved packages and tools
// but cannot execute shells.
type RecordLoader struct{}

// Load implements Loader.
func (RecordLoader) Load(record rxtdb.Record, displayName string) (Environment, error) {
	status, _ := record["status"].(string)
	if status == "" {
		return nil, fmt.Errorf("%s: record has no status field", displayName)
	}

	env := &RecordEnvironment{name: displayName, status: Status(status), tools: map[string]Tool{}}
	list, _ := record["resolved_packages"].([]any)
	for _, item := range list {
		v, ok := parseVariant(item)
		if !ok {
			continue
		}
		env.packages = append(env.packages, v.qualified)
		for _, tool := range v.tools {
			// the first package to provide a tool owns it
			if _, seen := env.tools[tool]; !seen {
				env.tools[tool] = Tool{Name: tool, Package: v.qualified}
			}
		}
	}
	return env, nil
}

type variant struct {
	qualified string // name-version, or name when unversioned
	tools     []string
}

// parseVariant reads the "variables" block of a serialized variant entry.
func parseVariant(item any) (variant, bool) {
	entry, ok := item.(map[string]any)
	if !ok {
		return variant{}, false
	}
	vars, ok := entry["variables"].(map[string]any)
	if !ok {
		return variant{}, false
	}
	name, _ := vars["name"].(string)
	if name == "" {
		return variant{}, false
	}

	v := variant{qualified: name}
	if version, _ := vars["version"].(string); version != "" {
		v.qualified = name + "-" + version
	}
	tools, _ := vars["tools"].([]any)
	for _, t := range tools {
		if tool, ok := t.(string); ok && tool != "" {
			v.tools = append(v.tools, tool)
		}
	}
	return v, true
}

// RecordEnvironment is the Environment produced by RecordLoader.
type RecordEnvironment struct {
	name     string
	status   Status
	packages []string
	tools    map[string]Tool
}

// Name returns the display name the environment was loaded under.
func (e *RecordEnvironment) Name() string { return e.name }

// Status implements Environment.
func (e *RecordEnvironment) Status() Status { return e.status }

// Packages returns the resolved packages in document order.
func (e *RecordEnvironment) Packages() []string { return e.packages }

// Tools implements Environment.
func (e *RecordEnvironment) Tools() (map[string]Tool, error) {
	out := make(map[string]Tool, len(e.tools))
	for name, tool := range e.tools {
		out[name] = tool
	}
	return out, nil
}

// ExecuteShell implements Environment.
func (e *RecordEnvironment) ExecuteShell(ctx context.Context, opts ShellOptions) (int, error) {
	return 1, fmt.Errorf("%s: executing shell: %w", e.name, ErrNoRuntime)
}
