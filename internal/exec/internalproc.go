package exec

import (
	"os"

	"github.com/fish-shell/execcore/internal/ast"
	"github.com/fish-shell/execcore/internal/parser"
	"github.com/fish-shell/execcore/shared/subprocess"
)

// fdAppender adapts an *os.File to the ioAppender contract so builtin and
// function output can flow through the same resolved fd table a forked
// child would have inherited.
type fdAppender struct {
	f *os.File
}

func (a fdAppender) Append(text string) {
	if a.f == nil || text == "" {
		return
	}

	_, _ = a.f.WriteString(text)
}

func newStreams(stdout, stderr *os.File) Streams {
	var out ioAppender = fdAppender{f: stdout}
	var errOut ioAppender = fdAppender{f: stderr}
	return Streams{Stdout: &out, Stderr: &errOut}
}

// builtinHandle runs a dispatched builtin command (spec §6 BuiltinDispatcher
// contract) on its own goroutine so a pipeline like `string split ... | wc`
// doesn't deadlock waiting for the external reader to start.
type builtinHandle struct {
	w      *Walker
	argv   []string
	stdout *os.File
	stderr *os.File
}

func (h *builtinHandle) Run() (subprocess.ProcStatus, error) {
	code := h.w.ctx.Builtins.Run(h.w.ctx.Parser, h.argv, newStreams(h.stdout, h.stderr))
	return subprocess.ProcStatus{ExitCode: code}, nil
}

func (h *builtinHandle) Cancel() {}

// functionHandle invokes a user function's body through the walker,
// pushing a BlockFunctionCall frame and the infinite-recursion guard (spec
// §4.8).
type functionHandle struct {
	w      *Walker
	name   string
	argv   []string
	stdout *os.File
	stderr *os.File
}

func (h *functionHandle) Run() (subprocess.ProcStatus, error) {
	props, ok := h.w.ctx.Functions.Get(h.name)
	if !ok {
		return subprocess.ProcStatus{ExitCode: 127}, nil
	}

	if first, decorated := firstLiteralCommand(props.Body); first != "" {
		if parser.IsInfiniteRecursion(h.name, first, decorated) {
			return subprocess.ProcStatus{ExitCode: 1}, parser.ErrCallStackLimitExceeded
		}
	}

	block, release := h.w.pushFunctionFrame(h.name, h.argv[1:], false)
	defer release()

	scope := h.w.ctx.Parser.Stack.Scope()
	scope.SetLocal("argv", h.argv[1:])
	_ = block

	res := h.w.RunJobList(props.Body)
	if res.Reason == EndError {
		return subprocess.ProcStatus{ExitCode: 1}, res.Err
	}

	return subprocess.ProcStatus{ExitCode: h.w.ctx.Parser.GetLastStatus()}, nil
}

func (h *functionHandle) Cancel() {}

// firstLiteralCommand extracts the literal command word of body's first job
// and whether it carries a `command`/`exec` decorator — used by the
// infinite-recursion guard (spec §4.8), which only inspects syntax, never
// performs real expansion. The guard backs off when the decorator is
// present (e.g. `function ls; command ls --color=auto; end`), so the
// decorator must travel with the literal word rather than being assumed
// away.
func firstLiteralCommand(body *ast.JobList) (text string, decorated bool) {
	if body == nil || len(body.Conjunctions) == 0 {
		return "", false
	}

	pipeline := body.Conjunctions[0].Pipeline
	if pipeline == nil || len(pipeline.Statements) == 0 {
		return "", false
	}

	stmt := pipeline.Statements[0]
	if stmt.Kind != ast.StatementDecorated {
		return "", false
	}

	d := stmt.Decorated
	hasDecorator := d.Decorator == ast.DecoratorCommand || d.Decorator == ast.DecoratorExec

	return d.Command.Text, hasDecorator
}

// blockNodeHandle runs an inline block (`begin ... end | cmd`) as a pipe
// segment of its own.
type blockNodeHandle struct {
	w    *Walker
	node *ast.Statement
}

func (h *blockNodeHandle) Run() (subprocess.ProcStatus, error) {
	res := h.w.EvalNode(h.node)
	if res.Reason == EndError {
		return subprocess.ProcStatus{ExitCode: 1}, res.Err
	}

	return subprocess.ProcStatus{ExitCode: h.w.ctx.Parser.GetLastStatus()}, nil
}

func (h *blockNodeHandle) Cancel() {}
