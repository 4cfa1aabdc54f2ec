package exec

import (
	"path"
	"strconv"

	"github.com/fish-shell/execcore/internal/ast"
	"github.com/fish-shell/execcore/internal/parser"
)

// runBlockStatement dispatches a compound statement to its header-specific
// runner (spec §4.9).
func (w *Walker) runBlockStatement(b *ast.BlockStatement) Result {
	switch b.HeaderKind {
	case ast.HeaderBegin:
		return w.runBeginBlock(b)
	case ast.HeaderFor:
		return w.runForBlock(b)
	case ast.HeaderWhile:
		return w.runWhileBlock(b)
	case ast.HeaderFunction:
		return w.runFunctionDef(b)
	default:
		return OK
	}
}

func (w *Walker) runBeginBlock(b *ast.BlockStatement) Result {
	block := w.ctx.Parser.Stack.Push(parser.BlockBegin, false)
	defer func() { _ = w.ctx.Parser.Stack.Pop(block.ID()) }()

	return w.RunJobList(b.Body)
}

// runForBlock implements `for VAR in ARGS...; BODY; end` (spec §4.9):
// expands Args once up front, then runs Body once per value, honoring
// break/continue. VAR is bound local to the enclosing scope, so it keeps
// its last value after the loop ends.
func (w *Walker) runForBlock(b *ast.BlockStatement) Result {
	values, err := w.expandArgumentList(b.For.Args)
	if err != nil {
		return Error(err)
	}

	w.ctx.Parser.Stack.Scope().SetLocal(b.For.Var, []string{})

	block := w.ctx.Parser.Stack.Push(parser.BlockFor, false)
	defer func() { _ = w.ctx.Parser.Stack.Pop(block.ID()) }()

	for _, v := range values {
		if w.ctx.CheckCancel() {
			return Cancelled()
		}

		w.ctx.Parser.Stack.Scope().Set(b.For.Var, []string{v})

		res := w.RunJobList(b.Body)
		stop, out := consumeLoopSignal(res)
		if stop {
			return out
		}
	}

	return OK
}

// runWhileBlock implements `while COND; BODY; end` (spec §4.9).
func (w *Walker) runWhileBlock(b *ast.BlockStatement) Result {
	block := w.ctx.Parser.Stack.Push(parser.BlockWhile, false)
	defer func() { _ = w.ctx.Parser.Stack.Pop(block.ID()) }()

	for {
		if w.ctx.CheckCancel() {
			return Cancelled()
		}

		condRes := w.testAndRunConjunction(b.While.Cond)
		if condRes.Reason != EndOK {
			return condRes
		}

		if w.ctx.Parser.GetLastStatus() != 0 {
			return OK
		}

		res := w.RunJobList(b.Body)
		stop, out := consumeLoopSignal(res)
		if stop {
			return out
		}
	}
}

// consumeLoopSignal interprets a body Result at loop level 0: break/continue
// targeting this loop are absorbed (stop=false means "keep looping" for
// continue, the loop decides what "stop" means for break/fallthrough);
// anything else (error, cancelled, return) propagates to the caller.
func consumeLoopSignal(res Result) (propagate bool, out Result) {
	switch res.Reason {
	case EndOK:
		return false, OK
	case EndControlFlow:
		switch res.Flow {
		case FlowBreak:
			return true, OK
		case FlowContinue:
			return false, OK
		default: // FlowReturn
			return true, res
		}
	default:
		return true, res
	}
}

// runFunctionDef registers `function NAME ARGS...; BODY; end` in the
// function registry (spec §6 FunctionRegistry contract); defining a
// function is itself a no-op job that always succeeds.
func (w *Walker) runFunctionDef(b *ast.BlockStatement) Result {
	if w.ctx.Functions == nil {
		return OK
	}

	args := make([]string, len(b.Function.Args))
	for i, a := range b.Function.Args {
		args[i] = a.Text
	}

	w.ctx.Functions.Add(b.Function.Name, FunctionProperties{
		Name: b.Function.Name,
		Args: args,
		Body: b.Body,
	})

	w.ctx.Parser.SetLastStatus(0)
	return OK
}

// runIf implements `if COND; BODY; else if COND; BODY; else; BODY; end`
// (spec §4.9): the first clause whose condition succeeds runs its body; if
// none do, Else runs if present.
func (w *Walker) runIf(s *ast.IfStatement) Result {
	for _, clause := range s.Clauses {
		if w.ctx.CheckCancel() {
			return Cancelled()
		}

		res := w.testAndRunConjunction(clause.Condition)
		if res.Reason != EndOK {
			return res
		}

		if w.ctx.Parser.GetLastStatus() == 0 {
			block := w.ctx.Parser.Stack.Push(parser.BlockIf, false)
			res := w.RunJobList(clause.Body)
			_ = w.ctx.Parser.Stack.Pop(block.ID())

			return res
		}
	}

	if s.Else != nil {
		block := w.ctx.Parser.Stack.Push(parser.BlockIf, false)
		res := w.RunJobList(s.Else)
		_ = w.ctx.Parser.Stack.Pop(block.ID())

		return res
	}

	w.ctx.Parser.SetLastStatus(0)
	return OK
}

// runSwitch implements `switch SUBJECT; case PATTERN...; BODY; end` (spec
// §4.9): the subject is expanded once, matched against each case's glob
// patterns in order, and the first matching case's body runs.
func (w *Walker) runSwitch(s *ast.SwitchStatement) Result {
	subject, err := w.expandArgument(s.Subject)
	if err != nil {
		return Error(err)
	}

	for _, c := range s.Cases {
		if w.ctx.CheckCancel() {
			return Cancelled()
		}

		matched, err := caseMatches(w, c.Patterns, subject)
		if err != nil {
			return Error(err)
		}

		if !matched {
			continue
		}

		block := w.ctx.Parser.Stack.Push(parser.BlockSwitch, false)
		res := w.RunJobList(c.Body)
		_ = w.ctx.Parser.Stack.Pop(block.ID())

		return res
	}

	w.ctx.Parser.SetLastStatus(0)
	return OK
}

// caseMatches reports whether subject matches any of patterns, using the
// shell's wildcard matcher after unescaping (spec §4.9): `*` matches any run
// of characters, `?` matches a single one. A literal pattern with no
// wildcard metacharacters falls back to exact equality so a malformed
// pattern (path.Match's ErrBadPattern) never silently swallows a legitimate
// case label.
func caseMatches(w *Walker, patterns []ast.Argument, subject string) (bool, error) {
	for _, p := range patterns {
		value, err := w.expandArgument(p)
		if err != nil {
			return false, err
		}

		if value == subject {
			return true, nil
		}

		matched, err := path.Match(value, subject)
		if err != nil {
			continue
		}

		if matched {
			return true, nil
		}
	}

	return false, nil
}

func (w *Walker) expandArgumentList(args []ast.Argument) ([]string, error) {
	out := make([]string, 0, len(args))

	for _, a := range args {
		v, err := w.expandArgument(a)
		if err != nil {
			return nil, err
		}

		out = append(out, v)
	}

	return out, nil
}

func (w *Walker) expandArgument(a ast.Argument) (string, error) {
	if w.ctx.Expand == nil {
		return a.Text, nil
	}

	s := a.Text
	_, err := w.ctx.Expand.ExpandOne(&s, ExpandFlags{}, w.ctx)
	if err != nil {
		return "", err
	}

	return s, nil
}

// controlFlowStatement recognizes the undecorated break/continue/return
// commands, which the walker handles directly instead of dispatching to the
// external builtin registry, since only the walker holds the block stack
// needed to target the right enclosing loop or function call (spec §4.8,
// §9).
func controlFlowStatement(stmt *ast.Statement) (ControlFlowKind, []string, bool) {
	if stmt.Kind != ast.StatementDecorated {
		return 0, nil, false
	}

	d := stmt.Decorated
	if d.Decorator == ast.DecoratorCommand || d.Decorator == ast.DecoratorExec {
		return 0, nil, false
	}

	switch d.Command.Text {
	case "break":
		return FlowBreak, nil, true
	case "continue":
		return FlowContinue, nil, true
	case "return":
		argv := make([]string, len(d.Args))
		for i, a := range d.Args {
			argv[i] = a.Text
		}

		return FlowReturn, argv, true
	default:
		return 0, nil, false
	}
}

func parseReturnStatus(argv []string) int {
	if len(argv) == 0 {
		return 0
	}

	n, err := strconv.Atoi(argv[0])
	if err != nil {
		return 0
	}

	return n
}
