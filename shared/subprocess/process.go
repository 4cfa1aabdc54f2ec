// Package subprocess implements the process/job model (spec §4.5):
// Process, Job, JobGroup, pid/pgid assignment, the wait-handle store, and
// status aggregation. Grounded on the teacher's own process wrapper
// (shared/subprocess/bgpm_test.go's NewProcess/Start/Wait/Signal shape)
// generalized from "one external command" to the full external/
// builtin/function/block-node/exec taxonomy spec.md requires.
package subprocess

import (
	"github.com/fish-shell/execcore/internal/ast"
	"github.com/fish-shell/execcore/internal/redirect"
)

// Kind tags the variant of a Process (spec glossary: "Process kinds").
type Kind int

const (
	KindExternal Kind = iota
	KindBuiltin
	KindFunction
	KindBlockNode
	KindExecReplace
)

// VariableAssignment is a pre-command `NAME=value` binding scoped to one
// process (`NAME=value cmd args...`).
type VariableAssignment struct {
	Name  string
	Value string
}

// ProcStatus is the terminal status of a Process: either an exit code or a
// terminating signal, never both.
type ProcStatus struct {
	ExitCode int
	Signal   int // 0 if the process exited normally
}

// Negated returns a ProcStatus with ExitCode flipped 0<->1, used when a
// job's `negate` flag is set (spec §4.5). A signal-terminated status is
// never negated: $status still reports 128+signal.
func (s ProcStatus) Negated() ProcStatus {
	if s.Signal != 0 {
		return s
	}

	if s.ExitCode == 0 {
		return ProcStatus{ExitCode: 1}
	}

	return ProcStatus{ExitCode: 0}
}

// Code returns the $status-shaped integer for this ProcStatus (spec §6:
// "$status reflects... when a job dies by signal N, $status = 128 + N").
func (s ProcStatus) Code() int {
	if s.Signal != 0 {
		return 128 + s.Signal
	}

	return s.ExitCode
}

// InternalProcHandle is the handle to a running internal process (builtin,
// function, or block-node), which does not have an OS pid of its own but
// still participates in job/pipeline bookkeeping.
type InternalProcHandle interface {
	// Run executes the internal process to completion (or until
	// cancelled) and returns its ProcStatus.
	Run() (ProcStatus, error)
	// Cancel requests early termination, e.g. on SIGINT.
	Cancel()
}

// Process is one element of a Job's pipeline (spec §3).
type Process struct {
	Kind Kind

	// Argv holds the owned argument strings for external/builtin
	// processes. BlockNode holds a reference to the AST subtree instead.
	Argv      []string
	BlockNode *ast.Statement

	Redirs      []redirect.RedirectionSpec
	Assignments []VariableAssignment

	// PipeWriteFd is the fd this process's stdout-equivalent pipe token
	// targets; defaults to 1 but is configurable per pipe token (e.g.
	// `&|` routes both 1 and 2).
	PipeWriteFd int

	// Mutable state, set as the process moves through its lifecycle.
	Pid       int
	pidSet    bool
	Completed bool
	Stopped   bool
	Status    ProcStatus

	Internal InternalProcHandle

	IsFirstInJob       bool
	IsLastInJob        bool
	LeadsPgrp          bool
	AbortedBeforeLaunch bool
}

// NewExternalProcess builds a Process that will exec(1) argv[0].
func NewExternalProcess(argv []string) *Process {
	return &Process{Kind: KindExternal, Argv: argv, PipeWriteFd: 1}
}

// NewBuiltinProcess builds a Process dispatched to the builtin registry.
func NewBuiltinProcess(argv []string) *Process {
	return &Process{Kind: KindBuiltin, Argv: argv, PipeWriteFd: 1}
}

// NewBlockNodeProcess builds a Process that executes an AST subtree
// in-process (spec glossary: "block-node").
func NewBlockNodeProcess(node *ast.Statement) *Process {
	return &Process{Kind: KindBlockNode, BlockNode: node, PipeWriteFd: 1}
}

// SetPid records the OS pid assigned to this process post-fork. A Process
// is assigned a pid at most once (spec §3 lifecycle).
func (p *Process) SetPid(pid int) {
	if p.pidSet {
		panic("subprocess: pid assigned twice")
	}

	p.Pid = pid
	p.pidSet = true
}

// PidAssigned reports whether SetPid has been called.
func (p *Process) PidAssigned() bool { return p.pidSet }
