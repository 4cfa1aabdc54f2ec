package redirect

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/fish-shell/execcore/shared/fds"
)

// ErrAlreadyExists is returned (wrapped with the offending path) when a
// ModeNoClobber redirection targets a path that already exists.
var ErrAlreadyExists = errors.New("file already exists")

// OpenedFile is a file the resolver opened while building a Dup2List; the
// caller is responsible for closing it once the Dup2List has been applied
// (the post-fork region dup2's it then closes all opened files, the
// internal-process path closes it directly).
type OpenedFile struct {
	Fd   int
	Path string
}

// Resolved is the output of Resolve: the Dup2List ready for replay by the
// post-fork region, plus every fd the resolver opened so the caller can
// close them after the dup2 list has been applied (or on error, before
// ever forking).
type Resolved struct {
	Dup2List *Dup2List
	Opened   []OpenedFile
}

// Resolve turns parentChain (the pipeline-supplied IoChain: pipe ends,
// bufferfills, inherited fd-aliases) plus this process's own declared
// RedirectionSpecs into a concrete Dup2List (spec §4.6).
//
// Ordering rules, user-observable (spec §4.6):
//   - the pipe write end (destined for stdout) is applied BEFORE declared
//     redirections, so `foo 2>&1 | bar` routes stderr into the pipe;
//   - the pipe read end is applied AFTER declared redirections, so
//     `cmd < file.txt | …` reads from the file;
//   - stashed closes from a deferred process are injected at the END of
//     every other child's list.
//
// On any file-open failure the resolver inserts a closed fd rather than
// aborting (spec §4.6, §7 "Recovery policy"): execution proceeds and the
// child simply sees fd `n` closed.
func Resolve(parentChain *IoChain, specs []RedirectionSpec, deferredCloses []int) (*Resolved, error) {
	list := NewDup2List()
	var opened []OpenedFile

	pipeWrite, hasPipeWrite := parentChain.IoForFd(1)
	if hasPipeWrite && (pipeWrite.Kind == IoPipeEnd || pipeWrite.Kind == IoBufferfill) {
		list.AddDup2(1, pipeWrite.SourceFd)
	}

	for _, spec := range specs {
		if err := applySpec(list, &opened, spec); err != nil {
			return nil, err
		}
	}

	pipeRead, hasPipeRead := parentChain.IoForFd(0)
	if hasPipeRead && pipeRead.Kind == IoPipeEnd {
		list.AddDup2(0, pipeRead.SourceFd)
	}

	for _, fd := range deferredCloses {
		list.AddClose(fd)
	}

	return &Resolved{Dup2List: list, Opened: opened}, nil
}

func applySpec(list *Dup2List, opened *[]OpenedFile, spec RedirectionSpec) error {
	switch spec.Mode {
	case ModeFdAlias:
		if spec.Target == "-" {
			list.AddClose(spec.Fd)
			return nil
		}

		var target int
		if _, err := fmt.Sscanf(spec.Target, "%d", &target); err != nil {
			// An unparsable fd alias target inserts a closed fd instead of
			// aborting the whole pipeline (spec §4.6 recovery policy).
			list.AddClose(spec.Fd)
			return nil
		}

		list.AddDup2(spec.Fd, target)
		return nil

	case ModeOverwrite, ModeAppend, ModeInput, ModeTryInput, ModeNoClobber:
		fd, err := openFile(spec)
		if err != nil {
			if spec.Mode == ModeTryInput && os.IsNotExist(err) {
				list.AddClose(spec.Fd)
				return nil
			}

			// Recovery policy: insert a closed fd, keep going.
			list.AddClose(spec.Fd)
			return nil
		}

		*opened = append(*opened, OpenedFile{Fd: fd, Path: spec.Target})
		list.AddDup2(spec.Fd, fd)
		return nil

	default:
		return fmt.Errorf("redirect: unknown mode %v", spec.Mode)
	}
}

func openFlags(mode Mode) (int, error) {
	switch mode {
	case ModeOverwrite:
		return unix.O_CREAT | unix.O_TRUNC | unix.O_WRONLY, nil
	case ModeAppend:
		return unix.O_CREAT | unix.O_APPEND | unix.O_WRONLY, nil
	case ModeNoClobber:
		return unix.O_CREAT | unix.O_EXCL | unix.O_WRONLY, nil
	case ModeInput, ModeTryInput:
		return unix.O_RDONLY, nil
	default:
		return 0, fmt.Errorf("redirect: mode %v has no file-open flags", mode)
	}
}

func openFile(spec RedirectionSpec) (int, error) {
	flags, err := openFlags(spec.Mode)
	if err != nil {
		return -1, err
	}

	fd, err := fds.OpenCloexec(spec.Target, flags, 0o644, nil)
	if err != nil {
		if spec.Mode == ModeNoClobber && errors.Is(err, unix.EEXIST) {
			return -1, fmt.Errorf("%s: %w", spec.Target, ErrAlreadyExists)
		}

		return -1, diagnoseOpenError(spec.Target, err)
	}

	return fds.Heightenize(fd)
}

// diagnoseOpenError walks the parent directory chain to identify the first
// problematic path component, matching the resolver's diagnostic contract
// (spec §4.6: "the resolver walks the parent chain to identify the first
// problematic component").
func diagnoseOpenError(path string, cause error) error {
	dir := filepath.Dir(path)

	for dir != "." && dir != "/" {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("%s: %w (missing path component %s)", path, cause, dir)
		}

		if !info.IsDir() {
			return fmt.Errorf("%s: %w (%s is not a directory)", path, cause, dir)
		}

		dir = filepath.Dir(dir)
	}

	return fmt.Errorf("%s: %w", path, cause)
}
