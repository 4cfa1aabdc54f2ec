package subprocess

import "testing"

func TestProcStatusNegatedAndCode(t *testing.T) {
	ok := ProcStatus{ExitCode: 0}
	if got := ok.Negated().ExitCode; got != 1 {
		t.Errorf("Negated() of exit 0 = %d, want 1", got)
	}

	fail := ProcStatus{ExitCode: 3}
	if got := fail.Negated().ExitCode; got != 0 {
		t.Errorf("Negated() of exit 3 = %d, want 0", got)
	}

	signalled := ProcStatus{Signal: 2}
	if got := signalled.Negated(); got != signalled {
		t.Errorf("Negated() of a signalled status should be a no-op, got %+v", got)
	}

	if got := signalled.Code(); got != 130 {
		t.Errorf("Code() of SIGINT status = %d, want 130", got)
	}
}

func TestJobLaunchOrderDefersInternalProcessBeforeExternal(t *testing.T) {
	group := NewJobGroup(false)

	procs := []*Process{
		NewBuiltinProcess([]string{"echo", "hi"}),
		NewExternalProcess([]string{"cat"}),
	}

	job, err := NewJob("echo hi | cat", procs, group, nil)
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}

	if got := job.DeferredIndex(); got != 0 {
		t.Fatalf("DeferredIndex() = %d, want 0 (the builtin feeding an external)", got)
	}

	order := job.LaunchOrder()
	if len(order) != 2 || order[len(order)-1] != 0 {
		t.Fatalf("LaunchOrder() = %v, want the deferred index last", order)
	}

	if !procs[0].IsFirstInJob || procs[0].IsLastInJob {
		t.Errorf("first process flags wrong: %+v", procs[0])
	}

	if procs[1].IsFirstInJob || !procs[1].IsLastInJob {
		t.Errorf("last process flags wrong: %+v", procs[1])
	}
}

func TestJobLaunchOrderNoDeferralWhenAllExternal(t *testing.T) {
	group := NewJobGroup(true)

	procs := []*Process{
		NewExternalProcess([]string{"true"}),
		NewExternalProcess([]string{"cat"}),
	}

	job, err := NewJob("true | cat", procs, group, nil)
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}

	if got := job.DeferredIndex(); got != -1 {
		t.Fatalf("DeferredIndex() = %d, want -1 for an all-external pipeline", got)
	}

	if got := job.LaunchOrder(); got[0] != 0 || got[1] != 1 {
		t.Fatalf("LaunchOrder() = %v, want left-to-right order", got)
	}

	if !procs[0].LeadsPgrp {
		t.Errorf("first process should lead the pgroup when job control is on")
	}
}

func TestJobFinalStatusAppliesNegate(t *testing.T) {
	group := NewJobGroup(false)

	proc := NewExternalProcess([]string{"false"})
	proc.Status = ProcStatus{ExitCode: 1}
	proc.Completed = true

	job, err := NewJob("not false", []*Process{proc}, group, nil)
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}

	job.Flags.Negate = true

	if got := job.FinalStatus().ExitCode; got != 0 {
		t.Errorf("FinalStatus().ExitCode = %d, want 0 after negate", got)
	}

	if got := job.Pipestatus(); len(got) != 1 || got[0] != 1 {
		t.Errorf("Pipestatus() = %v, want [1] (negate must not affect pipestatus)", got)
	}
}

func TestJobAbortFromMarksRemainingProcesses(t *testing.T) {
	group := NewJobGroup(false)

	procs := []*Process{
		NewExternalProcess([]string{"false"}),
		NewExternalProcess([]string{"cat"}),
		NewExternalProcess([]string{"wc"}),
	}

	job, err := NewJob("false | cat | wc", procs, group, nil)
	if err != nil {
		t.Fatalf("NewJob: %v", err)
	}

	job.AbortFrom(1)

	if procs[0].AbortedBeforeLaunch {
		t.Errorf("process 0 should not be aborted")
	}

	if !procs[1].AbortedBeforeLaunch || !procs[2].AbortedBeforeLaunch {
		t.Errorf("processes 1 and 2 should be marked aborted")
	}

	if !job.AllCompleted() {
		t.Errorf("AllCompleted() should treat aborted processes as done")
	}
}

func TestJobGroupPgidSetOnce(t *testing.T) {
	group := NewJobGroup(true)

	if _, ok := group.Pgid(); ok {
		t.Fatalf("fresh JobGroup should report no pgid set")
	}

	group.SetPgid(4242)

	pgid, ok := group.Pgid()
	if !ok || pgid != 4242 {
		t.Fatalf("Pgid() = (%d, %v), want (4242, true)", pgid, ok)
	}

	group.SetPgid(4242) // repeating the same value must not panic
}

func TestJobGroupPgidChangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("SetPgid with a different value should panic")
		}
	}()

	group := NewJobGroup(true)
	group.SetPgid(1)
	group.SetPgid(2)
}
