package exec

import (
	"testing"

	"github.com/fish-shell/execcore/internal/ast"
)

func TestBeginBlockRunsBodyInItsOwnScope(t *testing.T) {
	ctx := newTestContext()
	w := NewWalker(ctx)

	ctx.Parser.Stack.Scope().SetLocal("x", []string{"outer"})

	stmt := &ast.Statement{
		Kind: ast.StatementBlock,
		Block: &ast.BlockStatement{
			HeaderKind: ast.HeaderBegin,
			Body:       singleStatementJobList(decoratedStatement("/bin/true")),
		},
	}

	res := w.EvalNode(stmt)
	if res.Reason != EndOK {
		t.Fatalf("EvalNode(begin...end) = %+v, want EndOK", res)
	}

	if got := ctx.Parser.GetLastStatus(); got != 0 {
		t.Errorf("$status after begin; true; end = %d, want 0", got)
	}

	if got, ok := ctx.Parser.Stack.Scope().Get("x"); !ok || got[0] != "outer" {
		t.Errorf("outer binding x = %v (%v), want untouched after the block popped", got, ok)
	}
}

func TestWhileLoopWithFalseConditionNeverRunsBody(t *testing.T) {
	ctx := newTestContext()
	w := NewWalker(ctx)

	ctx.Parser.Stack.Scope().SetLocal("i", []string{"0"})

	whileStmt := &ast.Statement{
		Kind: ast.StatementBlock,
		Block: &ast.BlockStatement{
			HeaderKind: ast.HeaderWhile,
			While: &ast.WhileHeader{
				Cond: &ast.JobConjunction{Pipeline: &ast.JobPipeline{Statements: []*ast.Statement{decoratedStatement("/bin/false")}}},
			},
			Body: singleStatementJobList(decoratedStatement("break")),
		},
	}

	res := w.EvalNode(whileStmt)
	if res.Reason != EndOK {
		t.Fatalf("EvalNode(while false; break; end) = %+v, want EndOK (condition never true, body never runs)", res)
	}
}

func TestWhileLoopBreakStopsIteration(t *testing.T) {
	ctx := newTestContext()
	w := NewWalker(ctx)

	whileStmt := &ast.Statement{
		Kind: ast.StatementBlock,
		Block: &ast.BlockStatement{
			HeaderKind: ast.HeaderWhile,
			While: &ast.WhileHeader{
				Cond: &ast.JobConjunction{Pipeline: &ast.JobPipeline{Statements: []*ast.Statement{decoratedStatement("/bin/true")}}},
			},
			Body: singleStatementJobList(decoratedStatement("break")),
		},
	}

	res := w.EvalNode(whileStmt)
	if res.Reason != EndOK {
		t.Fatalf("EvalNode(while true; break; end) = %+v, want EndOK: break must stop an otherwise-infinite loop", res)
	}
}

func TestControlFlowStatementRecognizesBreakContinueReturn(t *testing.T) {
	kind, argv, ok := controlFlowStatement(decoratedStatement("break"))
	if !ok || kind != FlowBreak {
		t.Errorf("controlFlowStatement(break) = (%v, %v, %v), want (FlowBreak, nil, true)", kind, argv, ok)
	}

	kind, _, ok = controlFlowStatement(decoratedStatement("continue"))
	if !ok || kind != FlowContinue {
		t.Errorf("controlFlowStatement(continue) = (%v, _, %v), want (FlowContinue, true)", kind, ok)
	}

	kind, argv, ok = controlFlowStatement(decoratedStatement("return", "7"))
	if !ok || kind != FlowReturn || len(argv) != 1 || argv[0] != "7" {
		t.Errorf("controlFlowStatement(return 7) = (%v, %v, %v), want (FlowReturn, [7], true)", kind, argv, ok)
	}

	_, _, ok = controlFlowStatement(decoratedStatement("echo", "hi"))
	if ok {
		t.Errorf("controlFlowStatement(echo hi) reported a control-flow command")
	}
}

func TestParseReturnStatusDefaultsToZero(t *testing.T) {
	if got := parseReturnStatus(nil); got != 0 {
		t.Errorf("parseReturnStatus(nil) = %d, want 0", got)
	}

	if got := parseReturnStatus([]string{"5"}); got != 5 {
		t.Errorf("parseReturnStatus([5]) = %d, want 5", got)
	}

	if got := parseReturnStatus([]string{"not-a-number"}); got != 0 {
		t.Errorf("parseReturnStatus([not-a-number]) = %d, want 0 (falls back silently)", got)
	}
}
