// Package iostreams implements IO streams & buffers (spec §4.7):
// OutputStream and Bufferfill, the only lazy sequence in the core.
package iostreams

import (
	"errors"
	"io"
	"os"
	"strings"
	"syscall"
)

// SinkKind tags an OutputStream's backing.
type SinkKind int

const (
	SinkFd SinkKind = iota
	SinkBuffered
	SinkString
	SinkNull
)

// OutputStream is polymorphic over {fd, buffered (bufferfill), string,
// null} (spec §4.7).
type OutputStream struct {
	kind SinkKind

	file *os.File
	fill *Bufferfill
	buf  strings.Builder

	// sticky holds the first write error seen; subsequent appends remain
	// best-effort (spec §4.7: "append(text) is best-effort; a prior error
	// is sticky").
	sticky error
}

// NewFdOutputStream wraps an already-open fd/file.
func NewFdOutputStream(f *os.File) *OutputStream {
	return &OutputStream{kind: SinkFd, file: f}
}

// NewBufferedOutputStream wraps a Bufferfill.
func NewBufferedOutputStream(b *Bufferfill) *OutputStream {
	return &OutputStream{kind: SinkBuffered, fill: b}
}

// NewStringOutputStream captures writes into an in-memory string.
func NewStringOutputStream() *OutputStream {
	return &OutputStream{kind: SinkString}
}

// NewNullOutputStream discards every write.
func NewNullOutputStream() *OutputStream {
	return &OutputStream{kind: SinkNull}
}

// Append writes text to the stream. Best-effort: once a write error has
// been observed, further Append calls are no-ops (the error stays sticky).
func (o *OutputStream) Append(text string) {
	if o.sticky != nil {
		return
	}

	switch o.kind {
	case SinkFd:
		_, err := io.WriteString(o.file, text)
		if err != nil {
			o.recordError(err)
		}

	case SinkBuffered:
		o.fill.Append(text, true)

	case SinkString:
		o.buf.WriteString(text)

	case SinkNull:
		// discard
	}
}

func (o *OutputStream) recordError(err error) {
	// Every EINTR suppresses the diagnostic; no check is made for a
	// pending SIGINT.
	if errors.Is(err, syscall.EINTR) {
		return
	}

	if errors.Is(err, syscall.EPIPE) {
		// EPIPE on a broken downstream pipe is not reported (spec §4.7:
		// "write errors other than EPIPE are reported").
		return
	}

	if o.sticky == nil {
		o.sticky = err
	}
}

// String returns the accumulated text for a SinkString stream.
func (o *OutputStream) String() string { return o.buf.String() }

// FlushAndCheckError returns a normalized status code: 0 on success,
// non-zero if a non-EPIPE/EINTR write error was ever recorded (spec
// §4.7).
func (o *OutputStream) FlushAndCheckError() int {
	if o.kind == SinkFd {
		_ = o.file.Sync()
	}

	if o.sticky != nil {
		return 1
	}

	return 0
}
