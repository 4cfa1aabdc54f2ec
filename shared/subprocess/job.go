package subprocess

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/fish-shell/execcore/internal/redirect"
)

// JobFlags bags the boolean switches a Job carries (spec §3).
type JobFlags struct {
	Negate          bool
	IsGroupRoot     bool
	Foreground      bool
	JobControl      bool
	NotifyOnExit    bool
	FromEventHandler bool
}

// Job owns an ordered, non-empty list of Processes sharing one pipeline
// lifetime (spec glossary, §3).
type Job struct {
	ID      uint64
	Command string // for diagnostics only
	Flags   JobFlags
	Procs   []*Process
	Group   *JobGroup
	ParentIO *redirect.IoChain

	// deferredIdx indexes the single internal process, if any, that was
	// deferred to launch last to avoid the pipe-deadlock spec §4.5
	// describes ("Deferred process"). -1 if none.
	deferredIdx int
}

var jobIDSeq struct {
	mu   sync.Mutex
	next uint64
}

func nextJobID() uint64 {
	jobIDSeq.mu.Lock()
	defer jobIDSeq.mu.Unlock()

	jobIDSeq.next++
	return jobIDSeq.next
}

// NewJob builds a Job from an ordered, non-empty process list, tagging
// IsFirstInJob/IsLastInJob and locating the deferred process if the
// pipeline's last non-external process has an external successor (spec
// §4.5: "fish internal -> external" buffer-deadlock avoidance).
func NewJob(command string, procs []*Process, group *JobGroup, parentIO *redirect.IoChain) (*Job, error) {
	if len(procs) == 0 {
		return nil, fmt.Errorf("subprocess: a job must have at least one process")
	}

	procs[0].IsFirstInJob = true
	procs[len(procs)-1].IsLastInJob = true

	if group.JobControl {
		procs[0].LeadsPgrp = true
	}

	j := &Job{
		ID:          nextJobID(),
		Command:     command,
		Procs:       procs,
		Group:       group,
		ParentIO:    parentIO,
		deferredIdx: locateDeferred(procs),
	}

	group.jobs = append(group.jobs, j)
	return j, nil
}

// locateDeferred finds the last internal process whose immediate successor
// is external: that process is the one deferred to launch last (spec
// §4.5). Returns -1 if no such process exists.
func locateDeferred(procs []*Process) int {
	for i := len(procs) - 2; i >= 0; i-- {
		if procs[i].Kind != KindExternal && procs[i+1].Kind == KindExternal {
			return i
		}
	}

	return -1
}

// DeferredIndex returns the index of the deferred process, or -1.
func (j *Job) DeferredIndex() int { return j.deferredIdx }

// LaunchOrder returns process indices in the order they should be started:
// left-to-right, except the deferred process (if any) moves to the end
// (spec §4.5, §5 "Ordering guarantees").
func (j *Job) LaunchOrder() []int {
	order := make([]int, 0, len(j.Procs))

	for i := range j.Procs {
		if i == j.deferredIdx {
			continue
		}

		order = append(order, i)
	}

	if j.deferredIdx >= 0 {
		order = append(order, j.deferredIdx)
	}

	return order
}

// AbortFrom marks procs[i:] as AbortedBeforeLaunch, implementing the
// pipeline-aborting-error contract (spec §4.5: "A pipeline-aborting error
// on process i marks all of processes i..n as aborted_before_launch; no
// further processes are launched").
func (j *Job) AbortFrom(i int) {
	for ; i < len(j.Procs); i++ {
		j.Procs[i].AbortedBeforeLaunch = true
	}
}

// FinalStatus aggregates the job's status from its last process, applying
// the `negate` flag (spec §4.5).
func (j *Job) FinalStatus() ProcStatus {
	last := j.Procs[len(j.Procs)-1].Status

	if j.Flags.Negate {
		return last.Negated()
	}

	return last
}

// Pipestatus returns the per-process status list of the pipeline at reap
// time (spec §6 "$pipestatus"), unaffected by the `negate` flag (see
// SPEC_FULL.md §4: "$pipestatus propagation through not/time/background").
func (j *Job) Pipestatus() []int {
	out := make([]int, len(j.Procs))
	for i, p := range j.Procs {
		out[i] = p.Status.Code()
	}

	return out
}

// AllCompleted reports whether every process in the job has been reaped
// (or was aborted before launch).
func (j *Job) AllCompleted() bool {
	for _, p := range j.Procs {
		if !p.Completed && !p.AbortedBeforeLaunch {
			return false
		}
	}

	return true
}

// JobGroup is the pgroup/tty-ownership shard shared by jobs participating
// in the same pgroup/tty context (spec §3, glossary).
type JobGroup struct {
	ID uuid.UUID

	pgidMu  sync.Mutex
	pgid    int
	pgidSet bool

	WantsTerminal bool
	WantsJobID    bool
	Foreground    bool
	JobControl    bool

	// CancelSignal, set once, carries the signal that cancelled this
	// group's job(s) (spec §3: "cancel-signal cell").
	CancelSignal int

	jobs []*Job
}

// NewJobGroup returns a fresh JobGroup with no pgid assigned yet.
func NewJobGroup(jobControl bool) *JobGroup {
	return &JobGroup{ID: uuid.New(), JobControl: jobControl}
}

// SetPgid assigns the group's pgid. Invariant: once set, it never changes
// (spec §3, §8 invariant) — a second call with a different value panics,
// since that would indicate a bug in the launcher.
func (g *JobGroup) SetPgid(pgid int) {
	g.pgidMu.Lock()
	defer g.pgidMu.Unlock()

	if g.pgidSet {
		if g.pgid != pgid {
			panic(fmt.Sprintf("subprocess: JobGroup pgid changed from %d to %d", g.pgid, pgid))
		}

		return
	}

	g.pgid = pgid
	g.pgidSet = true
}

// Pgid returns the group's pgid and whether it has been set yet.
func (g *JobGroup) Pgid() (int, bool) {
	g.pgidMu.Lock()
	defer g.pgidMu.Unlock()

	return g.pgid, g.pgidSet
}
