package fds

import (
	"os"
	"syscall"
	"testing"

	"golang.org/x/sys/unix"
)

func TestAutoclosePipeReturnsFdsAboveThreshold(t *testing.T) {
	read, write, err := AutoclosePipe()
	if err != nil {
		t.Fatalf("AutoclosePipe: %v", err)
	}
	defer CloseQuietly(read)
	defer CloseQuietly(write)

	if read < UserFdThreshold || write < UserFdThreshold {
		t.Fatalf("AutoclosePipe = (%d, %d), want both >= %d", read, write, UserFdThreshold)
	}

	msg := []byte("hi")
	if _, err := unix.Write(write, msg); err != nil {
		t.Fatalf("write: %v", err)
	}

	buf := make([]byte, len(msg))
	if _, err := unix.Read(read, buf); err != nil {
		t.Fatalf("read: %v", err)
	}

	if string(buf) != "hi" {
		t.Errorf("read back %q, want %q", buf, "hi")
	}
}

func TestHeightenizeLeavesAnAlreadyHighFdUnchanged(t *testing.T) {
	f, err := os.Open(os.DevNull)
	if err != nil {
		t.Fatalf("open /dev/null: %v", err)
	}
	defer f.Close()

	raw := int(f.Fd())
	if raw < UserFdThreshold {
		t.Skipf("test fd %d happened to land below the threshold", raw)
	}

	got, err := Heightenize(raw)
	if err != nil {
		t.Fatalf("Heightenize: %v", err)
	}

	if got != raw {
		t.Errorf("Heightenize(%d) = %d, want unchanged", raw, got)
	}
}

func TestHeightenizeMovesALowFdAboveTheThresholdAndClosesTheOriginal(t *testing.T) {
	fd0, fd1, err := unix.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer CloseQuietly(fd1)

	if fd0 >= UserFdThreshold {
		CloseQuietly(fd0)
		t.Skipf("test pipe fd %d happened to land above the threshold", fd0)
	}

	newFd, err := Heightenize(fd0)
	if err != nil {
		t.Fatalf("Heightenize: %v", err)
	}
	defer CloseQuietly(newFd)

	if newFd < UserFdThreshold {
		t.Errorf("Heightenize(%d) = %d, want >= %d", fd0, newFd, UserFdThreshold)
	}

	if err := unix.Close(fd0); err == nil {
		t.Errorf("original fd %d should already be closed by Heightenize", fd0)
	}
}

func TestSetCloexecTogglesFlagIdempotently(t *testing.T) {
	f, err := os.Open(os.DevNull)
	if err != nil {
		t.Fatalf("open /dev/null: %v", err)
	}
	defer f.Close()

	fd := int(f.Fd())

	if err := SetCloexec(fd, true); err != nil {
		t.Fatalf("SetCloexec(true): %v", err)
	}

	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	if err != nil {
		t.Fatalf("FcntlInt F_GETFD: %v", err)
	}

	if flags&unix.FD_CLOEXEC == 0 {
		t.Errorf("FD_CLOEXEC not set after SetCloexec(true)")
	}

	if err := SetCloexec(fd, false); err != nil {
		t.Fatalf("SetCloexec(false): %v", err)
	}

	flags, _ = unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	if flags&unix.FD_CLOEXEC != 0 {
		t.Errorf("FD_CLOEXEC still set after SetCloexec(false)")
	}
}

func TestSetNonblockingAndSetBlockingRoundTrip(t *testing.T) {
	r, w, err := unix.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer CloseQuietly(r)
	defer CloseQuietly(w)

	if err := SetNonblocking(r); err != nil {
		t.Fatalf("SetNonblocking: %v", err)
	}

	flags, _ := unix.FcntlInt(uintptr(r), unix.F_GETFL, 0)
	if flags&unix.O_NONBLOCK == 0 {
		t.Errorf("O_NONBLOCK not set after SetNonblocking")
	}

	if err := SetBlocking(r); err != nil {
		t.Fatalf("SetBlocking: %v", err)
	}

	flags, _ = unix.FcntlInt(uintptr(r), unix.F_GETFL, 0)
	if flags&unix.O_NONBLOCK != 0 {
		t.Errorf("O_NONBLOCK still set after SetBlocking")
	}
}

func TestWaitStatusExitCodeReportsExitCode(t *testing.T) {
	exited := syscall.WaitStatus(0) // exit status 0, not signaled
	if got := WaitStatusExitCode(exited); got != 0 {
		t.Errorf("WaitStatusExitCode(exit 0) = %d, want 0", got)
	}
}
