// Package exec implements the execution walker (spec §4.9) and the
// subshell driver (spec §4.10): the AST -> running-process core. It
// consumes an already-built AST (internal/ast), parser runtime state
// (internal/parser), and external oracles (expansion, builtins, functions,
// events) through small interfaces matching spec §6's "External
// interfaces" section — those subsystems are out of scope and are
// provided by the embedding application.
package exec

import (
	"github.com/fish-shell/execcore/internal/ast"
	"github.com/fish-shell/execcore/internal/event"
	"github.com/fish-shell/execcore/internal/parser"
	"github.com/fish-shell/execcore/internal/redirect"
	"github.com/fish-shell/execcore/internal/signals"
	"github.com/fish-shell/execcore/shared/subprocess"
)

// EndReason is the sum type every run_* routine returns instead of
// throwing (spec §9 "Exceptions-for-control-flow", §7).
type EndReason int

const (
	EndOK EndReason = iota
	EndCancelled
	EndError
	EndControlFlow
)

func (r EndReason) String() string {
	switch r {
	case EndOK:
		return "ok"
	case EndCancelled:
		return "cancelled"
	case EndError:
		return "error"
	case EndControlFlow:
		return "control_flow"
	default:
		return "unknown"
	}
}

// ControlFlowKind tags which control-flow signal is propagating when
// EndReason == EndControlFlow.
type ControlFlowKind int

const (
	FlowBreak ControlFlowKind = iota
	FlowContinue
	FlowReturn
)

// Result is returned by every run_* routine in the walker.
type Result struct {
	Reason    EndReason
	Flow      ControlFlowKind
	Err       error
	LoopLevel int // for break/continue: which enclosing loop they target (0 = innermost)
}

// OK is the zero-cost successful result.
var OK = Result{Reason: EndOK}

// Cancelled builds an EndCancelled result.
func Cancelled() Result { return Result{Reason: EndCancelled} }

// Error builds an EndError result wrapping err.
func Error(err error) Result { return Result{Reason: EndError, Err: err} }

// Completion is one result of expanding an argument (spec §6 Expander
// contract).
type Completion struct {
	Text string
}

// ExpandFlags bags the expansion mode flags the walker passes through.
type ExpandFlags struct {
	FailOnCmdsubst bool
	Failglob       bool
	Nullglob       bool
}

// Expander is the external word-expansion oracle (spec §6): wildcards,
// command substitution, brace expansion are all out of scope and reached
// only through this interface.
type Expander interface {
	ExpandString(src string, flags ExpandFlags, ctx *Context) ([]Completion, error)
	ExpandOne(s *string, flags ExpandFlags, ctx *Context) (bool, error)
}

// Streams bundles the output streams (stdout and stderr) a builtin or
// function runs against.
type Streams struct {
	Stdout *ioAppender
	Stderr *ioAppender
}

type ioAppender interface {
	Append(text string)
}

// BuiltinDispatcher is the external builtin-command oracle (spec §6).
type BuiltinDispatcher interface {
	Run(p *parser.Parser, argv []string, streams Streams) int
	Exists(name string) bool
}

// FunctionProperties describes a registered user function (spec §6).
type FunctionProperties struct {
	Name string
	Args []string
	Body *ast.JobList
}

// FunctionRegistry is the external function-definition oracle (spec §6).
type FunctionRegistry interface {
	Get(name string) (FunctionProperties, bool)
	Add(name string, props FunctionProperties)
	Exists(name string, ctx *Context) bool
}

// Context is the OperationContext passed to every evaluation routine
// (spec §9: "pass an OperationContext... to every evaluation routine"):
// the parser handle, a cancel checker, and the expansion oracles.
type Context struct {
	Parser    *parser.Parser
	Signals   *signals.Handler
	Expand    Expander
	Builtins  BuiltinDispatcher
	Functions FunctionRegistry
	Events    *event.Registry
	Waits     *subprocess.WaitHandleStore

	// AmbientIO is the IoChain every pipeline in this Context builds on top
	// of (spec §4.10): nil at the top level (real stdin/stdout/stderr), set
	// to a bufferfill write-end binding while a command substitution's body
	// is running so nested pipelines capture instead of inheriting the
	// real terminal.
	AmbientIO *redirect.IoChain
}

// WithAmbientIO returns a shallow copy of c with AmbientIO replaced,
// leaving c itself untouched (spec §4.10: a substitution's capture context
// must not leak into the caller's).
func (c *Context) WithAmbientIO(chain *redirect.IoChain) *Context {
	clone := *c
	clone.AmbientIO = chain
	return &clone
}

// CheckCancel reports whether execution should stop at this scheduling
// point (spec §4.2, §5 "Cancellation & timeouts").
func (c *Context) CheckCancel() bool {
	if c.Signals == nil {
		return false
	}

	return c.Signals.CheckCancel()
}
