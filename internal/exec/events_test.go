package exec

import (
	"testing"

	"github.com/fish-shell/execcore/internal/event"
)

func TestLaunchAndWaitRecordsWaitHandleForEveryProcess(t *testing.T) {
	ctx := newTestContext()
	w := NewWalker(ctx)

	list := pipelineJobList(decoratedStatement("/bin/echo", "hi"), decoratedStatement("/bin/cat"))

	res := w.RunJobList(list)
	if res.Reason != EndOK {
		t.Fatalf("RunJobList = %+v, want EndOK", res)
	}

	handles := ctx.Waits.All()
	if len(handles) != 2 {
		t.Fatalf("ctx.Waits.All() = %d handles, want 2 (one per pipeline process)", len(handles))
	}

	for _, h := range handles {
		if _, ok := ctx.Waits.Get(h.Pid); !ok {
			t.Errorf("ctx.Waits.Get(%d) not found after All() returned it", h.Pid)
		}
	}
}

func TestLaunchAndWaitFiresOnJobExitHandler(t *testing.T) {
	ctx := newTestContext()
	w := NewWalker(ctx)

	ctx.Parser.Stack.Scope().SetLocal("observed", []string{"no"})
	ctx.Functions.Add("mark_observed", FunctionProperties{
		Name: "mark_observed",
		Body: singleStatementJobList(decoratedStatement("set", "observed", "yes")),
	})
	ctx.Events.Add(event.Handler{Kind: event.OnJobExit, FunctionName: "mark_observed"})

	res := w.RunJobList(singleStatementJobList(decoratedStatement("/bin/true")))
	if res.Reason != EndOK {
		t.Fatalf("RunJobList = %+v, want EndOK", res)
	}

	got, _ := ctx.Parser.Stack.Scope().Get("observed")
	if len(got) != 1 || got[0] != "yes" {
		t.Fatalf("observed = %v, want [yes]: the on-job-exit handler should have run and mutated the pre-existing global", got)
	}
}

func TestLaunchAndWaitDoesNotLeakHandlerStatusIntoCaller(t *testing.T) {
	ctx := newTestContext()
	w := NewWalker(ctx)

	ctx.Functions.Add("fails", FunctionProperties{
		Name: "fails",
		Body: singleStatementJobList(decoratedStatement("/bin/false")),
	})
	ctx.Events.Add(event.Handler{Kind: event.OnJobExit, FunctionName: "fails"})

	res := w.RunJobList(singleStatementJobList(decoratedStatement("/bin/true")))
	if res.Reason != EndOK {
		t.Fatalf("RunJobList = %+v, want EndOK", res)
	}

	if got := ctx.Parser.GetLastStatus(); got != 0 {
		t.Errorf("$status = %d, want 0: the handler's own failure must not overwrite the job's $status", got)
	}
}
