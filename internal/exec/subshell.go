package exec

import (
	"errors"

	"github.com/fish-shell/execcore/internal/ast"
	"github.com/fish-shell/execcore/internal/iostreams"
	"github.com/fish-shell/execcore/internal/parser"
	"github.com/fish-shell/execcore/internal/redirect"
)

// SubshellBufferLimit bounds a command substitution's captured output
// (spec §4.7, §8 boundary behavior): past this many bytes the buffer is
// discarded rather than growing unbounded.
const SubshellBufferLimit = 100 * 1024 * 1024

// ErrSubshellOutputTooLarge is returned when a substitution's output
// exceeds SubshellBufferLimit.
var ErrSubshellOutputTooLarge = errors.New("exec: command substitution output exceeded the buffer limit")

// RunSubshell drives one command-substitution invocation `(cmd)`/`$(cmd)`
// (spec §4.10): runs body as a nested JobList against a fresh
// bufferfill-backed stdout reached through a derived Context's AmbientIO,
// then splits the captured bytes on IFS. Command substitution shares the
// caller's block/scope stack (spec §4.10: "runs on the same thread") and
// marks ScopedData as a subshell via PushScoped for its duration. The
// caller's $status is saved beforehand and restored afterwards unless
// applyStatus is set.
func RunSubshell(ctx *Context, body *ast.JobList, ifs string, applyStatus bool) ([]string, int, error) {
	fill, err := iostreams.NewBufferfill(SubshellBufferLimit)
	if err != nil {
		return nil, 1, err
	}

	captureIO := redirect.NewIoChain()
	captureIO.Append(redirect.IoEntry{Kind: redirect.IoBufferfill, TargetFd: 1, SourceFd: fill.WriteFd()})
	subCtx := ctx.WithAmbientIO(captureIO)

	guard := parser.PushScoped(&ctx.Parser.Scoped, func(s *parser.ScopedData) {
		s.IsSubshell = true
		s.EvalLevel++
	})
	defer guard.Release()

	savedStatus := ctx.Parser.GetLastStatus()

	w := NewWalker(subCtx)
	res := w.RunJobList(body)

	buf := iostreams.Finish(fill)
	status := ctx.Parser.GetLastStatus()

	if !applyStatus {
		ctx.Parser.SetLastStatus(savedStatus)
	}

	if res.Reason == EndError {
		return nil, 1, res.Err
	}

	if res.Reason == EndCancelled {
		return nil, status, errSubshellCancelled
	}

	if buf.Discarded {
		return nil, status, ErrSubshellOutputTooLarge
	}

	return iostreams.SplitOnIFS(buf, ifs), status, nil
}

var errSubshellCancelled = errors.New("exec: command substitution cancelled")
