package iostreams

import (
	"os"
	"strings"
	"sync"

	"github.com/fish-shell/execcore/shared/fds"
)

// ElementTag distinguishes buffer elements that may later be split by IFS
// ("inferred") from ones that must not be ("explicit") — spec §4.7.
type ElementTag int

const (
	ElementInferred ElementTag = iota
	ElementExplicit
)

// BufferElement is one chunk of a SeparatedBuffer.
type BufferElement struct {
	Text string
	Tag  ElementTag
}

// SeparatedBuffer accumulates BufferElements, merging adjacent Inferred
// elements (spec §4.7), up to a hard byte limit past which it discards all
// content and sets Discarded.
type SeparatedBuffer struct {
	mu        sync.Mutex
	elements  []BufferElement
	size      int
	limit     int
	Discarded bool
}

// NewSeparatedBuffer returns a buffer that discards everything once more
// than limit bytes have been appended.
func NewSeparatedBuffer(limit int) *SeparatedBuffer {
	return &SeparatedBuffer{limit: limit}
}

// Append adds text tagged tag, merging it into the previous element if
// both are Inferred (spec §4.7: "adjacent inferred elements are merged").
func (b *SeparatedBuffer) Append(text string, tag ElementTag) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.Discarded {
		return
	}

	b.size += len(text)
	if b.limit > 0 && b.size > b.limit {
		b.Discarded = true
		b.elements = nil
		b.size = 0
		return
	}

	if n := len(b.elements); n > 0 && b.elements[n-1].Tag == ElementInferred && tag == ElementInferred {
		b.elements[n-1].Text += text
		return
	}

	b.elements = append(b.elements, BufferElement{Text: text, Tag: tag})
}

// Elements returns a snapshot of the accumulated elements.
func (b *SeparatedBuffer) Elements() []BufferElement {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]BufferElement, len(b.elements))
	copy(out, b.elements)
	return out
}

// Bufferfill is an internal pipe plus a background task that reads the
// read end and appends to a SeparatedBuffer (spec §4.7, glossary). It is
// the only lazy sequence in the core.
type Bufferfill struct {
	writeFd int
	readEnd *os.File

	buffer *SeparatedBuffer

	shutdown chan struct{}
	done     chan struct{}
	once     sync.Once

	finishOnce sync.Once
	finished   *SeparatedBuffer
}

// NewBufferfill creates an autoclose pipe, wraps its read end for the
// background fillthread, and returns the Bufferfill plus the fd the child
// process should write to.
func NewBufferfill(limit int) (*Bufferfill, error) {
	read, write, err := fds.AutoclosePipe()
	if err != nil {
		return nil, err
	}

	b := &Bufferfill{
		writeFd:  write,
		readEnd:  os.NewFile(uintptr(read), "bufferfill-read"),
		buffer:   NewSeparatedBuffer(limit),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}

	go b.fillThread()
	return b, nil
}

// WriteFd is the fd the spawned/internal process should have as its
// stdout.
func (b *Bufferfill) WriteFd() int { return b.writeFd }

// Append is used directly by in-process writers (e.g. an OutputStream
// wrapping this Bufferfill) rather than through the pipe.
func (b *Bufferfill) Append(text string, inferred bool) {
	tag := ElementInferred
	if !inferred {
		tag = ElementExplicit
	}

	b.buffer.Append(text, tag)
}

func (b *Bufferfill) fillThread() {
	defer close(b.done)

	buf := make([]byte, 64*1024)

	for {
		select {
		case <-b.shutdown:
			b.drain(buf)
			return
		default:
		}

		n, err := b.readEnd.Read(buf)
		if n > 0 {
			b.buffer.Append(string(buf[:n]), ElementInferred)
		}

		if err != nil {
			return
		}
	}
}

// drain reads until EOF or a non-blocking EAGAIN once shutdown has been
// requested (spec §4.7: "on shutdown it drains until EAGAIN or EOF").
func (b *Bufferfill) drain(buf []byte) {
	for {
		n, err := b.readEnd.Read(buf)
		if n > 0 {
			b.buffer.Append(string(buf[:n]), ElementInferred)
		}

		if err != nil {
			return
		}
	}
}

// RequestShutdown signals the fillthread to drain and exit.
func (b *Bufferfill) RequestShutdown() {
	b.once.Do(func() { close(b.shutdown) })
}

// Finish moves the buffer out atomically and closes the write end (spec
// §4.7: "finish(bufferfill) moves the buffer out atomically and closes the
// write end"). Monotonically one-shot: later calls return the same
// SeparatedBuffer.
func Finish(b *Bufferfill) *SeparatedBuffer {
	b.finishOnce.Do(func() {
		fds.CloseQuietly(b.writeFd)
		b.RequestShutdown()
		<-b.done
		_ = b.readEnd.Close()
		b.finished = b.buffer
	})

	return b.finished
}

// SplitOnIFS splits a SeparatedBuffer's contents into lines the way the
// subshell driver's output-capture does (spec §4.10): Inferred elements
// are split on "\n" (unless ifs == ""), Explicit elements are kept intact.
func SplitOnIFS(buf *SeparatedBuffer, ifs string) []string {
	var out []string

	for _, el := range buf.Elements() {
		if el.Tag == ElementExplicit || ifs == "" {
			out = append(out, el.Text)
			continue
		}

		lines := strings.Split(el.Text, "\n")
		// A trailing empty element after the final newline is dropped,
		// matching classic shell command-substitution trimming.
		if len(lines) > 0 && lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}

		out = append(out, lines...)
	}

	return out
}
