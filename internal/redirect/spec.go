// Package redirect implements the redirection resolver (spec §4.6) and its
// supporting data model (spec §3): RedirectionSpec, Dup2List, IoChain.
package redirect

import "fmt"

// Mode enumerates how a RedirectionSpec's target fd is wired up.
type Mode int

const (
	// ModeOverwrite truncates (or creates) the target file for writing.
	ModeOverwrite Mode = iota
	// ModeAppend opens (or creates) the target file for appending.
	ModeAppend
	// ModeInput opens the target file read-only.
	ModeInput
	// ModeTryInput is like ModeInput but a missing file is silently
	// downgraded to a closed fd instead of failing.
	ModeTryInput
	// ModeNoClobber creates the target file, failing if it already exists.
	ModeNoClobber
	// ModeFdAlias aliases the fd onto another fd (e.g. `2>&1`) or closes it
	// (target "-").
	ModeFdAlias
)

// RedirectionSpec is a single user-declared redirection, immutable once
// built (spec §3).
type RedirectionSpec struct {
	// Fd is the fd being redirected (e.g. 1 for `>`, 2 for `2>`).
	Fd int
	// Mode selects how Target is interpreted.
	Mode Mode
	// Target is either a filesystem path (ModeOverwrite/Append/Input/
	// TryInput/NoClobber) or the textual fd alias target: a decimal fd
	// number, or "-" to close Fd (ModeFdAlias).
	Target string
}

func (r RedirectionSpec) String() string {
	return fmt.Sprintf("RedirectionSpec{fd:%d mode:%v target:%q}", r.Fd, r.Mode, r.Target)
}

// Dup2Action is one step of a Dup2List: dup Target onto Src, or close Src
// if Target < 0. Self-dup2s (Target == Src) are the signal to the
// post-fork region that CLOEXEC should be cleared on Src instead of
// calling dup2 (spec §4.3 step 1, §4.1 "clear_cloexec").
type Dup2Action struct {
	Src    int
	Target int
}

const closeTarget = -1

// IsClose reports whether this action closes Src rather than aliasing it.
func (a Dup2Action) IsClose() bool { return a.Target == closeTarget }

// IsSelfDup reports whether this action is a self-dup2 (CLOEXEC-clear)
// marker rather than a real dup2.
func (a Dup2Action) IsSelfDup() bool { return a.Target == a.Src }

// Dup2List is an ordered sequence of Dup2Actions. Ordering matters: later
// actions override the effect of earlier actions on the same target fd
// (spec §3 invariant, §8 "Ordering" law).
type Dup2List struct {
	actions []Dup2Action
}

// NewDup2List returns an empty Dup2List.
func NewDup2List() *Dup2List { return &Dup2List{} }

// AddDup2 appends an action that will alias target onto src when replayed.
func (d *Dup2List) AddDup2(src, target int) {
	d.actions = append(d.actions, Dup2Action{Src: src, Target: target})
}

// AddClose appends an action that will close src when replayed.
func (d *Dup2List) AddClose(src int) {
	d.actions = append(d.actions, Dup2Action{Src: src, Target: closeTarget})
}

// Actions returns the ordered action list for replay by the post-fork
// region.
func (d *Dup2List) Actions() []Dup2Action { return d.actions }

// FdForTarget resolves, by replaying the list in order, which real fd
// `target` ultimately ends up aliasing. Used to locate the real write end
// for stdout (spec §3 invariant on Dup2List). Returns target itself if no
// action in the list ever rebinds it.
func (d *Dup2List) FdForTarget(target int) int {
	alias := map[int]int{}
	resolve := func(fd int) int {
		if v, ok := alias[fd]; ok {
			return v
		}

		return fd
	}

	for _, a := range d.actions {
		if a.IsClose() {
			alias[a.Src] = -1
			continue
		}

		alias[a.Src] = resolve(a.Target)
	}

	return resolve(target)
}

// IoModeKind tags the variant of an IoChain entry (spec §3 IoChain).
type IoModeKind int

const (
	IoClose IoModeKind = iota
	IoFdAlias
	IoFile
	IoPipeEnd
	IoBufferfill
)

// IoEntry is one polymorphic binding in an IoChain.
type IoEntry struct {
	Kind IoModeKind
	// TargetFd is the fd this entry binds (e.g. 1 for stdout).
	TargetFd int
	// SourceFd is the real fd backing this entry (file fd, pipe end, or
	// bufferfill write end). Unused for IoClose.
	SourceFd int
	// AliasOf is set for IoFdAlias: the fd TargetFd aliases.
	AliasOf int
}

// IoChain is an ordered list of IO bindings, shared (by pointer) across the
// sibling jobs of a pipeline (spec §3 "Ownership summary").
type IoChain struct {
	entries []IoEntry
}

// NewIoChain returns an empty IoChain.
func NewIoChain() *IoChain { return &IoChain{} }

// Append adds e as the newest (highest priority) binding.
func (c *IoChain) Append(e IoEntry) { c.entries = append(c.entries, e) }

// Clone returns a shallow copy whose entry slice is independent, so a child
// process's per-process redirections can extend a shared parent IoChain
// without mutating it.
func (c *IoChain) Clone() *IoChain {
	out := &IoChain{entries: make([]IoEntry, len(c.entries))}
	copy(out.entries, c.entries)
	return out
}

// IoForFd returns the *last* binding whose target is fd, matching spec §3
// and the "Ordering" law in §8: later redirections override earlier ones
// for the same fd.
func (c *IoChain) IoForFd(fd int) (IoEntry, bool) {
	for i := len(c.entries) - 1; i >= 0; i-- {
		if c.entries[i].TargetFd == fd {
			return c.entries[i], true
		}
	}

	return IoEntry{}, false
}

// Entries returns the chain's bindings in application order.
func (c *IoChain) Entries() []IoEntry { return c.entries }
