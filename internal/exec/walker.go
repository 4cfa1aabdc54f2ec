package exec

import (
	"github.com/fish-shell/execcore/internal/ast"
	"github.com/fish-shell/execcore/internal/parser"
)

// Walker is the AST -> execution state machine (spec §4.9).
type Walker struct {
	ctx *Context
}

// NewWalker returns a Walker bound to ctx.
func NewWalker(ctx *Context) *Walker { return &Walker{ctx: ctx} }

// EvalNode dispatches a Statement to the appropriate run_* routine (spec
// §4.9's dispatch table).
func (w *Walker) EvalNode(stmt *ast.Statement) Result {
	if err := w.ctx.Parser.CheckRecursion(); err != nil {
		return Error(err)
	}

	if w.ctx.CheckCancel() {
		return Cancelled()
	}

	switch stmt.Kind {
	case ast.StatementBlock:
		return w.runBlockStatement(stmt.Block)
	case ast.StatementIf:
		return w.runIf(stmt.If)
	case ast.StatementSwitch:
		return w.runSwitch(stmt.Switch)
	case ast.StatementNot:
		return w.runNot(stmt.Not)
	case ast.StatementDecorated:
		return w.runDecoratedAsJob(stmt.Decorated)
	default:
		return OK
	}
}

// RunJobList evaluates a JobList: every job conjunction in sequence, honoring
// `and`/`or` skip semantics (spec §4.9: "job_list -> for each
// job_conjunction: test_and_run_1_conjunction").
func (w *Walker) RunJobList(list *ast.JobList) Result {
	level := w.ctx.Parser.Scoped.EvalLevel
	defer func() { w.ctx.Parser.Scoped.EvalLevel = level }()

	for _, conj := range list.Conjunctions {
		if w.ctx.CheckCancel() {
			return Cancelled()
		}

		res := w.testAndRunConjunction(conj)
		if res.Reason != EndOK {
			return res
		}
	}

	return OK
}

// testAndRunConjunction evaluates one job conjunction: its leading
// decorator against $status, then the pipeline and its and/or tail (spec
// §4.9).
func (w *Walker) testAndRunConjunction(conj *ast.JobConjunction) Result {
	if skipByDecorator(conj.Decorator, w.ctx.Parser.GetLastStatus()) {
		// A skipped job is treated as success for exit-status purposes
		// (spec §4.9).
		w.ctx.Parser.SetLastStatus(0)
		return OK
	}

	res := w.runPipeline(conj.Pipeline)
	if res.Reason != EndOK {
		return res
	}

	for _, cont := range conj.Continuation {
		if w.ctx.CheckCancel() {
			return Cancelled()
		}

		if skipByDecorator(cont.Decorator, w.ctx.Parser.GetLastStatus()) {
			continue
		}

		res = w.runPipeline(cont.Job)
		if res.Reason != EndOK {
			return res
		}
	}

	return OK
}

// skipByDecorator implements the and/or gating against the previous
// $status (spec §4.9): `and` runs only after success (status 0), `or`
// only after failure.
func skipByDecorator(dec ast.Decorator, lastStatus int) bool {
	switch dec {
	case ast.DecoratorAnd:
		return lastStatus != 0
	case ast.DecoratorOr:
		return lastStatus == 0
	default:
		return false
	}
}

// runNot runs the body conjunction and, if it ended normally, negates the
// resulting $status (spec §4.9: "not prefix").
func (w *Walker) runNot(n *ast.NotStatement) Result {
	res := w.testAndRunConjunction(n.Body)
	if res.Reason == EndOK {
		w.ctx.Parser.SetLastStatus(negateStatus(w.ctx.Parser.GetLastStatus()))
	}

	return res
}

func negateStatus(status int) int {
	if status == 0 {
		return 1
	}

	return 0
}

// runDecoratedAsJob wraps a single DecoratedStatement into a trivial
// one-statement job conjunction so the simple-block fast path and ordinary
// pipeline machinery both flow through runPipeline.
func (w *Walker) runDecoratedAsJob(d *ast.DecoratedStatement) Result {
	pipeline := &ast.JobPipeline{Statements: []*ast.Statement{{Kind: ast.StatementDecorated, Decorated: d}}}
	return w.runPipeline(pipeline)
}

// pushFunctionFrame is a small helper shared by function dispatch
// (functionHandle.Run) and event-handler invocation: pushes a
// BlockFunctionCall frame and returns a release func that pops it. It does
// not check the infinite-recursion guard.
func (w *Walker) pushFunctionFrame(name string, args []string, shadows bool) (*parser.Block, func()) {
	block := w.ctx.Parser.Stack.Push(parser.BlockFunctionCall, shadows)
	block.FunctionCall = &parser.FunctionCallData{Name: name, Args: args, Shadows: shadows}

	return block, func() { _ = w.ctx.Parser.Stack.Pop(block.ID()) }
}
