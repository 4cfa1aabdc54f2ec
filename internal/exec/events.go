package exec

import (
	"strconv"

	"github.com/fish-shell/execcore/internal/event"
	"github.com/fish-shell/execcore/shared/subprocess"
)

// recordWaitHandles retains a WaitHandle for every process of the reaped
// job that has an OS pid; builtins and other internal processes get none (spec
// §4.5: "a compact record is retained for later `wait` builtins and
// --on-process-exit/--on-job-exit handlers"), then replays this core's
// OnJobExit/OnProcessExit handlers (SPEC_FULL.md §4 supplement) using the
// job's last process as its representative exit, matching fish's own
// $status convention of reporting the last pipeline stage.
func (w *Walker) recordWaitHandles(job *subprocess.Job) {
	if w.ctx.Waits == nil {
		return
	}

	pgid, _ := job.Group.Pgid()

	var last *subprocess.WaitHandle
	for _, proc := range job.Procs {
		if !proc.PidAssigned() {
			continue
		}

		wh := &subprocess.WaitHandle{
			Pid:    proc.Pid,
			Pgid:   pgid,
			JobID:  job.ID,
			Status: proc.Status,
		}

		w.ctx.Waits.Record(wh)
		last = wh
	}

	if last == nil || w.ctx.Events == nil {
		return
	}

	w.ctx.Events.FireJobExit(job.ID, last, w.invokeEventHandler)
}

// invokeEventHandler runs a registered handler's function body (spec §4.5
// supplement, grounded on original_source/src/function.rs) the same way an
// ordinary function call dispatches (internal/exec/internalproc.go's
// functionHandle.Run): a BlockFunctionCall frame via pushFunctionFrame, with
// the reaping job/process's exit status seeded as the handler's initial
// $status before its body runs. While a handler runs, ScopedData.IsEvent is
// set and jobs it reaps do not invoke handlers again.
func (w *Walker) invokeEventHandler(h event.Handler, wh *subprocess.WaitHandle) {
	if w.ctx.Functions == nil || w.ctx.Parser.Scoped.IsEvent {
		return
	}

	w.ctx.Parser.Scoped.IsEvent = true
	defer func() { w.ctx.Parser.Scoped.IsEvent = false }()

	props, ok := w.ctx.Functions.Get(h.FunctionName)
	if !ok {
		return
	}

	argv := []string{h.FunctionName, strconv.Itoa(wh.Pid)}
	if h.Kind == event.OnJobExit {
		argv = []string{h.FunctionName, strconv.FormatUint(wh.JobID, 10)}
	}

	_, release := w.pushFunctionFrame(h.FunctionName, argv[1:], false)
	defer release()

	savedStatus := w.ctx.Parser.GetLastStatus()
	w.ctx.Parser.SetLastStatus(wh.Status.Code())

	w.ctx.Parser.Stack.Scope().SetLocal("argv", argv[1:])
	w.RunJobList(props.Body)

	w.ctx.Parser.SetLastStatus(savedStatus)
}
