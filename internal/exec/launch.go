package exec

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"syscall"

	"github.com/fish-shell/execcore/internal/fork"
	"github.com/fish-shell/execcore/internal/redirect"
	"github.com/fish-shell/execcore/shared/fds"
	"github.com/fish-shell/execcore/shared/subprocess"
)

// wrapFd wraps a raw fd this package still owns and closes explicitly via
// fds.CloseQuietly; clearing the finalizer keeps *os.File's GC-triggered
// close from racing that explicit close once the fd number gets reused.
func wrapFd(fd int, name string) *os.File {
	f := os.NewFile(uintptr(fd), name)
	runtime.SetFinalizer(f, nil)
	return f
}

// launchOne resolves chain's redirections against job's IoChain and
// launches the process, returning a function that blocks until it has
// exited (spec §4.4, §4.6).
func (w *Walker) launchOne(job *subprocess.Job, chain *procChain, deferredCloses []int) (func() (subprocess.ProcStatus, error), error) {
	proc := chain.proc

	resolved, err := redirect.Resolve(chain.parentIO, proc.Redirs, deferredCloses)
	if err != nil {
		return nil, err
	}

	openFds := map[int]*os.File{}
	for _, of := range resolved.Opened {
		openFds[of.Fd] = wrapFd(of.Fd, of.Path)
	}

	for _, e := range chain.parentIO.Entries() {
		if e.Kind == redirect.IoPipeEnd || e.Kind == redirect.IoBufferfill {
			if _, ok := openFds[e.SourceFd]; !ok {
				openFds[e.SourceFd] = wrapFd(e.SourceFd, "pipe")
			}
		}
	}

	maxFd := 2
	for _, a := range resolved.Dup2List.Actions() {
		if a.Src > maxFd {
			maxFd = a.Src
		}
	}

	table, err := fork.BuildFileTable(resolved.Dup2List, openFds, maxFd)

	closeOwned := func() {
		for _, fd := range chain.ownedFds {
			fds.CloseQuietly(fd)
		}

		for _, of := range resolved.Opened {
			fds.CloseQuietly(of.Fd)
		}
	}

	if err != nil {
		closeOwned()
		return nil, err
	}

	switch proc.Kind {
	case subprocess.KindExternal, subprocess.KindExecReplace:
		wait, err := w.launchExternal(job, proc, table)
		closeOwned()

		return wait, err

	default:
		stdout := resolveStreamFile(1, resolved.Dup2List, openFds, os.Stdout)
		stderr := resolveStreamFile(2, resolved.Dup2List, openFds, os.Stderr)

		wait := w.launchInternal(proc, stdout, stderr)
		closeOwned()

		return wait, nil
	}
}

func resolveStreamFile(fd int, list *redirect.Dup2List, openFds map[int]*os.File, fallback *os.File) *os.File {
	target := list.FdForTarget(fd)
	if target < 0 {
		return nil
	}

	if f, ok := openFds[target]; ok {
		return f
	}

	return fallback
}

func (w *Walker) launchExternal(job *subprocess.Job, proc *subprocess.Process, table *fork.FileTable) (func() (subprocess.ProcStatus, error), error) {
	path, lookErr := exec.LookPath(proc.Argv[0])
	if lookErr != nil {
		return func() (subprocess.ProcStatus, error) { return subprocess.ProcStatus{ExitCode: 127}, lookErr }, nil
	}

	req := &fork.SpawnRequest{
		Path:  path,
		Argv:  proc.Argv,
		Env:   buildEnv(proc),
		Dir:   ".",
		Files: table,
	}

	pgid, havePgid := job.Group.Pgid()
	switch {
	case proc.LeadsPgrp:
		req.PgroupPolicy = fork.PgroupLead
	case job.Group.JobControl && havePgid:
		req.PgroupPolicy = fork.PgroupJoin
		req.JoinPgid = pgid
	default:
		req.PgroupPolicy = fork.PgroupInherit
	}

	if !job.Flags.JobControl || job.Flags.FromEventHandler {
		req.BlockedSignals = []syscall.Signal{syscall.SIGINT, syscall.SIGQUIT}
	}

	result, spawnErr := fork.Spawn(req)
	if spawnErr != nil {
		var execErr *fork.ExecError
		if asExecError(spawnErr, &execErr) && execErr.RetryViaShell {
			shArgv := fork.BuildThompsonFallback(path, proc.Argv)
			req.Path = shArgv[0]
			req.Argv = shArgv
			result, spawnErr = fork.Spawn(req)
		}

		if spawnErr != nil {
			status := subprocess.ProcStatus{ExitCode: 1}
			if execErr != nil {
				status.ExitCode = execErr.Status
			}

			return func() (subprocess.ProcStatus, error) { return status, spawnErr }, nil
		}
	}

	if job.Group.JobControl {
		groupPgid := result.Pid
		if !proc.LeadsPgrp {
			if pgid, ok := job.Group.Pgid(); ok {
				groupPgid = pgid
			}
		}

		job.Group.SetPgid(groupPgid)
	}

	proc.SetPid(result.Pid)

	return func() (subprocess.ProcStatus, error) {
		err := result.Cmd.Wait()
		return waitStatusToProcStatus(result.Cmd, err)
	}, nil
}

func asExecError(err error, target **fork.ExecError) bool {
	ee, ok := err.(*fork.ExecError)
	if !ok {
		return false
	}

	*target = ee
	return true
}

func waitStatusToProcStatus(cmd *exec.Cmd, waitErr error) (subprocess.ProcStatus, error) {
	if cmd.ProcessState == nil {
		return subprocess.ProcStatus{ExitCode: 1}, waitErr
	}

	ws, ok := cmd.ProcessState.Sys().(syscall.WaitStatus)
	if !ok {
		return subprocess.ProcStatus{ExitCode: cmd.ProcessState.ExitCode()}, nil
	}

	if ws.Signaled() {
		return subprocess.ProcStatus{Signal: int(ws.Signal())}, nil
	}

	return subprocess.ProcStatus{ExitCode: fds.WaitStatusExitCode(ws)}, nil
}

func buildEnv(proc *subprocess.Process) []string {
	env := append([]string(nil), os.Environ()...)
	if len(proc.Assignments) == 0 {
		return env
	}

	overrides := make(map[string]string, len(proc.Assignments))
	for _, a := range proc.Assignments {
		overrides[a.Name] = a.Value
	}

	out := env[:0]
	for _, kv := range env {
		name := kv
		if i := strings.IndexByte(kv, '='); i >= 0 {
			name = kv[:i]
		}

		if v, ok := overrides[name]; ok {
			out = append(out, fmt.Sprintf("%s=%s", name, v))
			delete(overrides, name)
			continue
		}

		out = append(out, kv)
	}

	for name, v := range overrides {
		out = append(out, fmt.Sprintf("%s=%s", name, v))
	}

	return out
}

func (w *Walker) launchInternal(proc *subprocess.Process, stdout, stderr *os.File) func() (subprocess.ProcStatus, error) {
	var handle subprocess.InternalProcHandle

	switch proc.Kind {
	case subprocess.KindBuiltin:
		handle = &builtinHandle{w: w, argv: proc.Argv, stdout: stdout, stderr: stderr}
	case subprocess.KindFunction:
		handle = &functionHandle{w: w, name: proc.Argv[0], argv: proc.Argv, stdout: stdout, stderr: stderr}
	default:
		handle = &blockNodeHandle{w: w, node: proc.BlockNode}
	}

	proc.Internal = handle

	type outcome struct {
		status subprocess.ProcStatus
		err    error
	}

	ch := make(chan outcome, 1)

	go func() {
		status, err := handle.Run()
		ch <- outcome{status: status, err: err}
	}()

	return func() (subprocess.ProcStatus, error) {
		out := <-ch
		return out.status, out.err
	}
}
