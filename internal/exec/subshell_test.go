package exec

import "testing"

func TestRunSubshellCapturesAndSplitsOnIFS(t *testing.T) {
	ctx := newTestContext()

	body := singleStatementJobList(decoratedStatement("echo", "one", "two"))

	lines, status, err := RunSubshell(ctx, body, "\n", false)
	if err != nil {
		t.Fatalf("RunSubshell: %v", err)
	}

	if status != 0 {
		t.Errorf("status = %d, want 0", status)
	}

	if len(lines) != 1 || lines[0] != "one two" {
		t.Fatalf("lines = %v, want [\"one two\"] (echo joins args with a single space)", lines)
	}
}

func TestRunSubshellDoesNotLeakStatusUnlessApplied(t *testing.T) {
	ctx := newTestContext()
	ctx.Parser.SetLastStatus(0)

	body := singleStatementJobList(decoratedStatement("/bin/false"))

	_, status, err := RunSubshell(ctx, body, "\n", false)
	if err != nil {
		t.Fatalf("RunSubshell: %v", err)
	}

	if status != 1 {
		t.Errorf("returned status = %d, want 1 (the substitution's own status)", status)
	}

	if got := ctx.Parser.GetLastStatus(); got != 0 {
		t.Errorf("caller's $status = %d, want 0 (unaffected since applyStatus=false)", got)
	}
}

func TestRunSubshellAppliesStatusWhenRequested(t *testing.T) {
	ctx := newTestContext()
	ctx.Parser.SetLastStatus(0)

	body := singleStatementJobList(decoratedStatement("/bin/false"))

	_, _, err := RunSubshell(ctx, body, "\n", true)
	if err != nil {
		t.Fatalf("RunSubshell: %v", err)
	}

	if got := ctx.Parser.GetLastStatus(); got != 1 {
		t.Errorf("caller's $status = %d, want 1 (applyStatus=true propagates it)", got)
	}
}

func TestRunSubshellNestedPipelineIsCaptured(t *testing.T) {
	ctx := newTestContext()

	body := pipelineJobList(decoratedStatement("echo", "hello"), decoratedStatement("/bin/cat"))

	lines, status, err := RunSubshell(ctx, body, "\n", false)
	if err != nil {
		t.Fatalf("RunSubshell: %v", err)
	}

	if status != 0 {
		t.Errorf("status = %d, want 0", status)
	}

	if len(lines) != 1 || lines[0] != "hello" {
		t.Fatalf("lines = %v, want [\"hello\"] captured through the nested pipeline's AmbientIO", lines)
	}
}
