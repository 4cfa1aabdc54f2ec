package exec

import (
	"fmt"
	"strings"
	"sync"

	"github.com/fish-shell/execcore/internal/parser"
)

// MapFunctionRegistry is a minimal, mutex-guarded FunctionRegistry backed
// by a map, suitable for the demo CLI and for tests (spec §6
// FunctionRegistry contract).
type MapFunctionRegistry struct {
	mu    sync.RWMutex
	funcs map[string]FunctionProperties
}

// NewMapFunctionRegistry returns an empty registry.
func NewMapFunctionRegistry() *MapFunctionRegistry {
	return &MapFunctionRegistry{funcs: map[string]FunctionProperties{}}
}

func (r *MapFunctionRegistry) Get(name string) (FunctionProperties, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.funcs[name]
	return p, ok
}

func (r *MapFunctionRegistry) Add(name string, props FunctionProperties) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.funcs[name] = props
}

func (r *MapFunctionRegistry) Exists(name string, _ *Context) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.funcs[name]
	return ok
}

// BasicBuiltins implements the small set of builtins the walker itself
// doesn't special-case (break/continue/return are handled directly by the
// walker, spec §4.8) but that a minimal driver still needs to be useful:
// echo, true, false, set. Grounded on the teacher's cmd package pattern of
// one function per subcommand (spec §6 BuiltinDispatcher contract).
type BasicBuiltins struct{}

func (BasicBuiltins) Exists(name string) bool {
	switch name {
	case "echo", "true", "false", "set":
		return true
	default:
		return false
	}
}

func (b BasicBuiltins) Run(p *parser.Parser, argv []string, streams Streams) int {
	switch argv[0] {
	case "echo":
		text := strings.Join(argv[1:], " ")
		(*streams.Stdout).Append(text + "\n")
		return 0

	case "true":
		return 0

	case "false":
		return 1

	case "set":
		return b.runSet(p, argv, streams)

	default:
		(*streams.Stderr).Append(fmt.Sprintf("%s: unknown builtin\n", argv[0]))
		return 127
	}
}

// runSet implements `set [-l] NAME VALUE...`, enough to exercise the
// variable-scope stack (internal/parser) from the demo CLI and tests.
func (b BasicBuiltins) runSet(p *parser.Parser, argv []string, streams Streams) int {
	args := argv[1:]

	local := false
	if len(args) > 0 && args[0] == "-l" {
		local = true
		args = args[1:]
	}

	if len(args) == 0 {
		(*streams.Stderr).Append("set: expected a variable name\n")
		return 1
	}

	name := args[0]
	values := args[1:]

	if local {
		p.Stack.Scope().SetLocal(name, values)
	} else {
		p.Stack.Scope().Set(name, values)
	}

	return 0
}
