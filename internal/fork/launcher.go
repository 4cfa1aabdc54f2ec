package fork

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/fish-shell/execcore/shared/logger"
)

// SpawnRequest describes everything the launcher needs to bring up one
// process (spec §4.4).
type SpawnRequest struct {
	Path string
	Argv []string
	Env  []string
	Dir  string

	Files *FileTable

	PgroupPolicy PgroupPolicy
	JoinPgid     int // meaningful when PgroupPolicy == PgroupJoin

	// WantsTerminal claims the controlling tty in the child (spec §4.3
	// step 2); disables the "posix_spawn path" (spec §4.4) to avoid the
	// tcsetpgrp/exec race.
	WantsTerminal bool

	// HasSelfDup2 is true when any Dup2Action in this process's list is a
	// self-dup2 (target == src), which needs the CLOEXEC-clear trick and
	// so also disables the fast path (spec §4.4).
	HasSelfDup2 bool

	// BlockedSignals is the sigmask to restore in the child (spec §4.3
	// step 3): background jobs without job control block SIGINT/SIGQUIT.
	BlockedSignals []syscall.Signal
}

// SpawnResult is what the launcher hands back once a process is running.
type SpawnResult struct {
	Pid int
	Cmd *exec.Cmd
}

// disablePosixSpawn mirrors spec §4.4's "Disable posix_spawn if" list. Go's
// os/exec always goes through the runtime's forkAndExecInChild regardless,
// so this codebase has a single launch path: Spawn handles the terminal
// claim inline and does not call disablePosixSpawn.
func disablePosixSpawn(req *SpawnRequest) bool {
	return req.HasSelfDup2 || req.WantsTerminal
}

// Spawn launches req through os/exec, retrying fork-equivalent EAGAIN
// failures via
// ExecuteFork, and performing the belt-and-braces ExecuteSetpgid call from
// the parent afterward (spec §4.4: "On success, immediately call
// execute_setpgid(pid, pgid, true) from the parent").
func Spawn(req *SpawnRequest) (*SpawnResult, error) {
	cmd := exec.Command(req.Path, req.Argv[1:]...)
	cmd.Env = req.Env
	cmd.Dir = req.Dir

	applyFileTable(cmd, req.Files)

	cmd.SysProcAttr = &syscall.SysProcAttr{}
	switch req.PgroupPolicy {
	case PgroupLead:
		cmd.SysProcAttr.Setpgid = true
		cmd.SysProcAttr.Pgid = 0
	case PgroupJoin:
		cmd.SysProcAttr.Setpgid = true
		cmd.SysProcAttr.Pgid = req.JoinPgid
	case PgroupInherit:
		// leave Setpgid false: child stays in the shell's own pgroup.
	}

	if req.WantsTerminal && req.PgroupPolicy != PgroupInherit {
		// The terminal is claimed only inside the child, via Foreground:
		// the child calls tcsetpgrp on its fd Ctty (its stdin) after fork
		// and before exec, closing the race spec §4.3 step 2 describes.
		// This happens only when that stdin is a tty whose foreground
		// pgroup is currently the shell's own.
		if f, ok := cmd.Stdin.(*os.File); ok && f != nil {
			if pg, err := unix.IoctlGetInt(int(f.Fd()), unix.TIOCGPGRP); err == nil && pg == unix.Getpgrp() {
				cmd.SysProcAttr.Foreground = true
				cmd.SysProcAttr.Ctty = 0
			}
		}
	}

	var startErr error
	err := ExecuteFork(func() error {
		startErr = cmd.Start()
		return startErr
	})
	if err != nil {
		return nil, classifyExecError(req, startErr)
	}

	pid := cmd.Process.Pid

	switch req.PgroupPolicy {
	case PgroupLead:
		_ = ExecuteSetpgid(pid, pid, true)
	case PgroupJoin:
		_ = ExecuteSetpgid(pid, req.JoinPgid, true)
	}

	return &SpawnResult{Pid: pid, Cmd: cmd}, nil
}

func applyFileTable(cmd *exec.Cmd, files *FileTable) {
	if files == nil {
		return
	}

	maxFd := 2
	for fd := range files.ByFd {
		if fd > maxFd {
			maxFd = fd
		}
	}

	get := func(fd int) *os.File {
		f, ok := files.ByFd[fd]
		if !ok {
			return nil
		}

		return f
	}

	cmd.Stdin = get(0)
	cmd.Stdout = get(1)
	cmd.Stderr = get(2)

	for fd := 3; fd <= maxFd; fd++ {
		cmd.ExtraFiles = append(cmd.ExtraFiles, get(fd))
	}
}

// classifyExecError maps a launch failure to the exit-code convention of
// spec §6 and attempts the Thompson-shell fallback (spec §4.3, §9) when
// the failure looks like ENOEXEC against a text file.
func classifyExecError(req *SpawnRequest, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) {
		return &ExecError{Status: 127, Err: err}
	}

	if errors.Is(err, fs.ErrPermission) {
		return &ExecError{Status: 126, Err: err}
	}

	if errors.Is(err, unix.ENOEXEC) {
		if looksLikeScript(req.Path) {
			return &ExecError{Status: -1, Err: err, RetryViaShell: true}
		}

		return &ExecError{Status: 126, Err: err}
	}

	return &ExecError{Status: 1, Err: err}
}

// ExecError carries the exit-code classification described by spec §6/§7.
type ExecError struct {
	Status        int
	Err           error
	RetryViaShell bool
}

func (e *ExecError) Error() string { return e.Err.Error() }
func (e *ExecError) Unwrap() error { return e.Err }

// looksLikeScript implements the Thompson-shell heuristic (spec §9): peek
// the first 256 bytes of the file; if a lowercase letter or `$`/`` ` ``
// appears before the first NUL on a line, treat it as a shell script and
// retry via /bin/sh.
func looksLikeScript(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, 256)
	n, _ := f.Read(buf)
	buf = buf[:n]

	if idx := bytes.IndexByte(buf, 0); idx >= 0 {
		buf = buf[:idx]
	}

	for _, line := range bytes.Split(buf, []byte("\n")) {
		for _, b := range line {
			if (b >= 'a' && b <= 'z') || b == '$' || b == '`' {
				return true
			}
		}
	}

	return false
}

// ThompsonFallbackArgvCap caps the total argv size, in bytes, of the
// /bin/sh retry per spec §4.3.
const ThompsonFallbackArgvCap = 4096

// BuildThompsonFallback constructs the argv for the `/bin/sh` retry.
func BuildThompsonFallback(path string, argv []string) []string {
	out := make([]string, 0, len(argv)+2)
	out = append(out, "/bin/sh", path)
	out = append(out, argv[1:]...)

	total := 0
	for i, a := range out {
		total += len(a) + 1
		if total > ThompsonFallbackArgvCap {
			logger.Warn("Thompson-shell fallback argv truncated", logger.Ctx{"cap": strconv.Itoa(ThompsonFallbackArgvCap)})
			return out[:i]
		}
	}

	return out
}
