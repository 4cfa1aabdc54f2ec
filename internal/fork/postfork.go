// Package fork implements the post-fork region (spec §4.3) and the
// launcher (spec §4.4). Go gives user code no safe way to call a bare
// fork(2) and keep running Go code before execve(2) — goroutines, the
// garbage collector, and the scheduler all assume a multi-threaded runtime
// that a raw fork() would leave in an inconsistent state in the child.
// Go's standard library instead does the fork+exec dance atomically inside
// the runtime (runtime.forkAndExecInChild), which already satisfies the
// "no allocation, no locks between fork and exec" contract spec §4.3
// demands — we drive it through os/exec's SysProcAttr/ProcAttr.Files
// rather than reimplementing it. See DESIGN.md for why this is the right
// adaptation rather than hand-rolled assembly.
package fork

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"
	"golang.org/x/sys/unix"

	"github.com/fish-shell/execcore/internal/redirect"
)

// ForkLaps is the number of times execute_fork retries fork()-equivalent
// failures (EAGAIN) before giving up (spec §4.3).
const ForkLaps = 5

// ForkSleep is the delay between fork() retry attempts.
const ForkSleep = 1 * time.Millisecond

// PgroupPolicy selects how a launched process's pgroup is assigned (spec
// §4.4).
type PgroupPolicy int

const (
	// PgroupInherit keeps the process in the shell's own pgroup.
	PgroupInherit PgroupPolicy = iota
	// PgroupJoin puts the process into an existing pgid.
	PgroupJoin
	// PgroupLead makes the process the leader of a brand-new pgroup
	// (pgid == its own pid).
	PgroupLead
)

// FileTable translates a resolved Dup2List into the file-descriptor table
// a child process should inherit, expressed the way Go's os.ProcAttr wants
// it: index 0/1/2 become Stdin/Stdout/Stderr, anything else becomes an
// ExtraFiles entry. This is the Go-idiomatic equivalent of spec §4.3 step
// 1 ("Apply the Dup2List to wire pipes and redirections"): instead of
// hand-replaying dup2(2)/close(2) in a forked child, we hand the desired
// final fd table to the runtime and let it perform the wiring in the
// already-audited forkAndExecInChild path.
type FileTable struct {
	// ByFd maps child fd number -> parent-side *os.File to install there.
	// A nil entry at a fd means "closed".
	ByFd map[int]*os.File
}

// BuildFileTable walks dup2list's resolved actions and, for every fd an
// action ultimately targets, determines the *os.File backing it via the
// opened-files table supplied by the resolver plus any already-open
// pipe/bufferfill fds the caller passes in openFds.
func BuildFileTable(dup2list *redirect.Dup2List, openFds map[int]*os.File, maxFd int) (*FileTable, error) {
	table := &FileTable{ByFd: map[int]*os.File{}}

	for fd := 0; fd <= maxFd; fd++ {
		resolved := dup2list.FdForTarget(fd)
		if resolved < 0 {
			table.ByFd[fd] = nil
			continue
		}

		f, ok := openFds[resolved]
		if !ok {
			// No action touched this fd: it passes through unchanged,
			// i.e. it is not part of the child's requested table at all
			// (the caller only asked about fds 0..maxFd that mattered).
			continue
		}

		table.ByFd[fd] = f
	}

	return table, nil
}

// ExecuteSetpgid assigns pgid to pid, tolerating the benign races spec
// §4.3 documents: EACCES when the child has already exec'd (only
// acceptable when isParent), EINTR (always retried), and EPERM (retried a
// bounded number of times — "quirks of some kernels", notably WSL).
func ExecuteSetpgid(pid, pgid int, isParent bool) error {
	epermCount := 0

	for {
		err := unix.Setpgid(pid, pgid)
		if err == nil {
			return nil
		}

		switch err {
		case unix.EACCES:
			if isParent {
				// Benign race: the child has already called exec().
				return nil
			}

			return reportSetpgidError(err, isParent, pid, pgid)

		case unix.EINTR:
			continue

		case unix.EPERM:
			if epermCount < 100 {
				epermCount++
				continue
			}

			return reportSetpgidError(err, isParent, pid, pgid)

		case unix.ESRCH:
			if isParent {
				// BSD/macOS: a child that already exec'd and exited may
				// not be considered to "exist"; treat like EACCES.
				return nil
			}

			return reportSetpgidError(err, isParent, pid, pgid)

		default:
			return reportSetpgidError(err, isParent, pid, pgid)
		}
	}
}

func reportSetpgidError(err error, isParent bool, pid, pgid int) error {
	cur, _ := unix.Getpgid(pid)
	who := "self"
	if isParent {
		who = "child"
	}

	safeLog("setpgid: could not send ", who, " ", itoa(pid), " from group ", itoa(cur), " to group ", itoa(pgid))
	return fmt.Errorf("setpgid(%d, %d): %w", pid, pgid, err)
}

// ExecuteFork retries the supplied start function, which should attempt to
// bring a new OS process into existence (a Start() call on an *exec.Cmd,
// or an internal-process dispatch), up to ForkLaps-1 additional times on
// EAGAIN before giving up (spec §4.3 "execute_fork").
func ExecuteFork(start func() error) error {
	attempt := 0

	err := retry.Retry(func(uint) error {
		attempt++
		err := start()
		if err == nil {
			return nil
		}

		if errors.Is(err, unix.EAGAIN) {
			return err
		}

		return retry.Unrecoverable(err)
	}, strategy.Limit(ForkLaps), strategy.Backoff(backoff.Linear(ForkSleep)))

	if err != nil && attempt >= ForkLaps {
		safeLog("fork: exhausted ", itoa(ForkLaps), " attempts")
	}

	return err
}
