package exec

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fish-shell/execcore/internal/ast"
	"github.com/fish-shell/execcore/internal/redirect"
	"github.com/fish-shell/execcore/internal/rusage"
	"github.com/fish-shell/execcore/shared/fds"
	"github.com/fish-shell/execcore/shared/logger"
	"github.com/fish-shell/execcore/shared/subprocess"
)

// runPipeline populates a Job from pipeline's statements and pipe tokens,
// then executes it (spec §4.9 "Pipeline population", §4.5, §4.6).
func (w *Walker) runPipeline(pipeline *ast.JobPipeline) Result {
	if len(pipeline.Statements) == 1 {
		if flow, argv, ok := controlFlowStatement(pipeline.Statements[0]); ok {
			return w.runControlFlow(flow, argv)
		}
	}

	if res, ok := w.runSimpleBlockFastPath(pipeline); ok {
		return res
	}

	var sample rusage.Sample
	if pipeline.Time {
		sample = rusage.Now()
	}

	job, procChains, err := w.buildJob(pipeline)
	if err != nil {
		w.ctx.Parser.SetLastStatus(1)
		return Error(err)
	}

	w.applyAssignments(pipeline.Assignments)

	res := w.launchAndWait(job, procChains)

	if pipeline.Time {
		report := rusage.Since(sample, rusage.Now())
		fmt.Fprintf(os.Stderr, "\n   %-12s %s\n   %-12s %s\n   %-12s %s\n",
			"wall time:", report.Wall, "user time:", report.User, "sys time:", report.Sys)
	}

	return res
}

// runSimpleBlockFastPath implements spec §4.9's "a job consisting of a
// single block-header node with no redirections is run inline (no
// Process, no fork), preserving exit status propagation."
func (w *Walker) runSimpleBlockFastPath(pipeline *ast.JobPipeline) (Result, bool) {
	if pipeline.Time || pipeline.Background || len(pipeline.Assignments) > 0 {
		return Result{}, false
	}

	if len(pipeline.Statements) != 1 {
		return Result{}, false
	}

	stmt := pipeline.Statements[0]
	if stmt.Kind != ast.StatementBlock {
		return Result{}, false
	}

	if len(stmt.Block.Redirs) > 0 {
		return Result{}, false
	}

	return w.runBlockStatement(stmt.Block), true
}

// runControlFlow handles the break/continue/return builtins directly (spec
// §4.8, §9): they never spawn a Process, they just produce an
// EndControlFlow Result for the enclosing loop or function frame to catch.
func (w *Walker) runControlFlow(flow ControlFlowKind, argv []string) Result {
	switch flow {
	case FlowBreak, FlowContinue:
		w.ctx.Parser.SetLastStatus(0)
		return Result{Reason: EndControlFlow, Flow: flow}
	default: // FlowReturn
		status := parseReturnStatus(argv)
		w.ctx.Parser.SetLastStatus(status)
		return Result{Reason: EndControlFlow, Flow: FlowReturn}
	}
}

// procChain bundles a subprocess.Process with its own IoChain entry point
// (the parent-facing view used by the redirection resolver) and any
// OS-level pipe fds that must be closed once launch has finished with
// them.
type procChain struct {
	proc      *subprocess.Process
	parentIO  *redirect.IoChain
	ownedFds  []int // fds this chain opened and must close after launch attempts
}

// buildJob turns pipeline.Statements + PipeTokens into a subprocess.Job,
// allocating the inter-process pipes (spec §4.9 "Pipeline population").
func (w *Walker) buildJob(pipeline *ast.JobPipeline) (*subprocess.Job, []*procChain, error) {
	n := len(pipeline.Statements)
	procs := make([]*subprocess.Process, n)
	chains := make([]*procChain, n)

	baseIO := redirect.NewIoChain()
	if w.ctx.AmbientIO != nil {
		baseIO = w.ctx.AmbientIO.Clone()
	}

	for i, stmt := range pipeline.Statements {
		proc, err := w.buildProcess(stmt)
		if err != nil {
			return nil, nil, err
		}

		procs[i] = proc
		chains[i] = &procChain{proc: proc, parentIO: baseIO.Clone()}
	}

	// Wire inter-process pipes: process i's stdout -> process i+1's stdin.
	for i := 0; i < n-1; i++ {
		read, write, err := fds.AutoclosePipe()
		if err != nil {
			// PipeError mid-pipeline: abort remaining processes (spec §7
			// "PipeError").
			for j := i; j < n; j++ {
				procs[j].AbortedBeforeLaunch = true
			}

			break
		}

		chains[i].parentIO.Append(redirect.IoEntry{Kind: redirect.IoPipeEnd, TargetFd: procs[i].PipeWriteFd, SourceFd: write})
		chains[i].ownedFds = append(chains[i].ownedFds, write)

		chains[i+1].parentIO.Append(redirect.IoEntry{Kind: redirect.IoPipeEnd, TargetFd: 0, SourceFd: read})
		chains[i+1].ownedFds = append(chains[i+1].ownedFds, read)

		if strings.Contains(pipeline.PipeTokens[i], "2>&1") || strings.HasPrefix(pipeline.PipeTokens[i], "&") {
			chains[i].parentIO.Append(redirect.IoEntry{Kind: redirect.IoFdAlias, TargetFd: 2, AliasOf: 1})
		}
	}

	group := subprocess.NewJobGroup(true)
	group.Foreground = !pipeline.Background
	group.WantsTerminal = !pipeline.Background

	job, err := subprocess.NewJob(jobCommandString(pipeline), procs, group, baseIO)
	if err != nil {
		return nil, nil, err
	}

	job.Flags.Foreground = group.Foreground
	job.Flags.JobControl = true

	return job, chains, nil
}

func jobCommandString(pipeline *ast.JobPipeline) string {
	parts := make([]string, len(pipeline.Statements))
	for i, stmt := range pipeline.Statements {
		if stmt.Kind == ast.StatementDecorated {
			parts[i] = stmt.Decorated.Command.Text
		}
	}

	return strings.Join(parts, " | ")
}

// buildProcess classifies a single pipe-segment Statement into a
// subprocess.Process (spec §3, §4.9).
func (w *Walker) buildProcess(stmt *ast.Statement) (*subprocess.Process, error) {
	switch stmt.Kind {
	case ast.StatementBlock:
		return subprocess.NewBlockNodeProcess(stmt), nil

	case ast.StatementDecorated:
		d := stmt.Decorated
		argv, err := w.expandArgv(d)
		if err != nil {
			return nil, err
		}

		if len(argv) == 0 {
			return nil, fmt.Errorf("exec: command expands to nothing")
		}

		specs := make([]redirect.RedirectionSpec, 0, len(d.Redirs))
		for _, r := range d.Redirs {
			expanded, err := redirNodeToSpecs(r)
			if err != nil {
				return nil, err
			}

			specs = append(specs, expanded...)
		}

		var proc *subprocess.Process
		switch {
		case d.Decorator == ast.DecoratorBuiltin:
			proc = subprocess.NewBuiltinProcess(argv)
		case w.ctx.Functions != nil && func() bool { _, ok := w.ctx.Functions.Get(argv[0]); return ok }() && d.Decorator != ast.DecoratorCommand && d.Decorator != ast.DecoratorExec:
			proc = &subprocess.Process{Kind: subprocess.KindFunction, Argv: argv, PipeWriteFd: 1}
		case w.ctx.Builtins != nil && w.ctx.Builtins.Exists(argv[0]) && d.Decorator != ast.DecoratorCommand && d.Decorator != ast.DecoratorExec:
			proc = subprocess.NewBuiltinProcess(argv)
		default:
			proc = subprocess.NewExternalProcess(argv)
			if d.Decorator == ast.DecoratorExec {
				proc.Kind = subprocess.KindExecReplace
			}
		}

		proc.Redirs = specs
		return proc, nil

	default:
		return nil, fmt.Errorf("exec: unsupported statement kind in pipeline")
	}
}

func (w *Walker) expandArgv(d *ast.DecoratedStatement) ([]string, error) {
	argv := make([]string, 0, len(d.Args)+1)
	argv = append(argv, d.Command.Text)

	for _, a := range d.Args {
		if w.ctx.Expand == nil {
			argv = append(argv, a.Text)
			continue
		}

		completions, err := w.ctx.Expand.ExpandString(a.Text, ExpandFlags{}, w.ctx)
		if err != nil {
			return nil, err
		}

		for _, c := range completions {
			argv = append(argv, c.Text)
		}
	}

	return argv, nil
}

// redirNodeToSpecs translates one AST-level redirection into the one or two
// redirect.RedirectionSpecs it resolves to. `&>` is the only multi-action
// mode (spec §4.6): it expands to the file/pipe redirection on fd 1 plus a
// synthetic `2>&1`, in that order, so fd 2 ends up wherever fd 1 was just
// pointed.
func redirNodeToSpecs(r ast.RedirectionNode) ([]redirect.RedirectionSpec, error) {
	fd := 1
	if r.Fd != nil {
		fd = *r.Fd
	}

	switch r.Mode {
	case ">":
		return []redirect.RedirectionSpec{{Fd: fd, Mode: redirect.ModeOverwrite, Target: r.Target}}, nil
	case ">>":
		return []redirect.RedirectionSpec{{Fd: fd, Mode: redirect.ModeAppend, Target: r.Target}}, nil
	case ">|":
		return []redirect.RedirectionSpec{{Fd: fd, Mode: redirect.ModeNoClobber, Target: r.Target}}, nil
	case "<":
		return []redirect.RedirectionSpec{{Fd: fd, Mode: redirect.ModeInput, Target: r.Target}}, nil
	case "<?":
		return []redirect.RedirectionSpec{{Fd: fd, Mode: redirect.ModeTryInput, Target: r.Target}}, nil
	case ">&", "<&":
		return []redirect.RedirectionSpec{{Fd: fd, Mode: redirect.ModeFdAlias, Target: r.Target}}, nil
	case "&>":
		return []redirect.RedirectionSpec{
			{Fd: 1, Mode: redirect.ModeOverwrite, Target: r.Target},
			{Fd: 2, Mode: redirect.ModeFdAlias, Target: "1"},
		}, nil
	default:
		if _, err := strconv.Atoi(r.Mode); err == nil {
			return []redirect.RedirectionSpec{{Fd: fd, Mode: redirect.ModeFdAlias, Target: r.Mode}}, nil
		}

		return nil, fmt.Errorf("exec: unsupported redirection mode %q", r.Mode)
	}
}

func (w *Walker) applyAssignments(assigns []ast.VariableAssignment) {
	for _, a := range assigns {
		w.ctx.Parser.Stack.Scope().SetLocal(a.Name, []string{a.Value})
	}
}

// launchAndWait resolves redirections, launches every process in
// LaunchOrder (deferred process last, per spec §4.5), waits for them, and
// aggregates the job's final status and $pipestatus.
func (w *Walker) launchAndWait(job *subprocess.Job, chains []*procChain) Result {
	deferredCloses := collectDeferredCloses(job, chains)

	waiters := make([]func() (subprocess.ProcStatus, error), len(job.Procs))

	for _, idx := range job.LaunchOrder() {
		if w.ctx.CheckCancel() {
			job.AbortFrom(idx)
			break
		}

		proc := job.Procs[idx]
		if proc.AbortedBeforeLaunch {
			continue
		}

		// Every child other than the deferred process itself closes the
		// deferred process's private pipe fds (spec §4.6): it hasn't
		// launched yet, so those fds are otherwise inherited unnecessarily.
		closes := []int(nil)
		if idx != job.DeferredIndex() {
			closes = deferredCloses
		}

		wait, err := w.launchOne(job, chains[idx], closes)
		if err != nil {
			logger.Warn("failed to launch process", logger.Ctx{"err": err.Error(), "job": job.ID})
			job.AbortFrom(idx)
			break
		}

		waiters[idx] = wait
	}

	for i, proc := range job.Procs {
		if proc.AbortedBeforeLaunch || waiters[i] == nil {
			proc.Completed = true
			if !proc.AbortedBeforeLaunch {
				proc.Status = subprocess.ProcStatus{ExitCode: 1}
			}

			continue
		}

		status, err := waiters[i]()
		proc.Completed = true
		proc.Status = status

		if err != nil {
			logger.Debug("process wait returned error", logger.Ctx{"err": err.Error()})
		}
	}

	final := job.FinalStatus()
	w.ctx.Parser.SetLastStatus(final.Code())
	w.ctx.Parser.Library.LastPipestatus = job.Pipestatus()

	w.recordWaitHandles(job)

	if w.ctx.CheckCancel() {
		return Cancelled()
	}

	return OK
}

// collectDeferredCloses returns the pipe fds every *other* child must close
// because they were only meant for the deferred process (spec §4.6:
// "Stashed pipes from the deferred process are injected as closes at the
// end of every other child's list").
func collectDeferredCloses(job *subprocess.Job, chains []*procChain) []int {
	idx := job.DeferredIndex()
	if idx < 0 {
		return nil
	}

	return append([]int(nil), chains[idx].ownedFds...)
}
