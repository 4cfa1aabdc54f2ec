// Package event implements the supplemented `--on-process-exit` /
// `--on-job-exit` handler replay (SPEC_FULL.md §4), grounded on
// original_source/fish-rust/src/function.rs and src/exec.rs: handlers fire
// from the parser thread strictly after the wait-handle is recorded, in
// registration order. Each handler runs in its own function-call frame with
// the reaping job's exit status as its initial $status; jobs that a handler
// runs do not fire handlers again.
package event

import (
	"sync"

	"github.com/fish-shell/execcore/shared/subprocess"
)

// Kind distinguishes the two handler classes this core replays directly
// (variable-set and signal events are owned by the external event
// subsystem spec.md scopes out; see spec.md §6 "Event subsystem").
type Kind int

const (
	OnProcessExit Kind = iota
	OnJobExit
)

// Handler is a registered callback. FunctionName is informational only —
// actually invoking a user function is the external function registry's
// job (spec.md §6); this package is only responsible for firing handlers
// in the right order at the right time relative to job reaping.
type Handler struct {
	Kind         Kind
	FunctionName string
	// Pid filters OnProcessExit handlers to one pid; 0 means "any".
	Pid int
}

// Invoke is called once per matching Handler, in registration order, with
// the WaitHandle that triggered it.
type Invoke func(h Handler, wh *subprocess.WaitHandle)

// Registry holds registered handlers and replays them against reaped jobs.
type Registry struct {
	mu       sync.Mutex
	handlers []Handler
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry { return &Registry{} }

// Add registers h, appended after any existing handlers (registration
// order is preserved for replay).
func (r *Registry) Add(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers = append(r.handlers, h)
}

// RemoveFunctionHandlers drops every handler registered for fnName,
// mirroring the external event::remove_function_handlers collaborator
// named in spec.md §6 (here scoped to the two handler classes this
// package owns).
func (r *Registry) RemoveFunctionHandlers(fnName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.handlers[:0]
	for _, h := range r.handlers {
		if h.FunctionName != fnName {
			kept = append(kept, h)
		}
	}

	r.handlers = kept
}

// FireJobExit replays every OnJobExit handler, then every OnProcessExit
// handler matching a process in wh, strictly after wh has been recorded in
// the wait-handle store (the caller is responsible for that ordering).
func (r *Registry) FireJobExit(jobID uint64, wh *subprocess.WaitHandle, invoke Invoke) {
	r.mu.Lock()
	handlers := append([]Handler(nil), r.handlers...)
	r.mu.Unlock()

	for _, h := range handlers {
		if h.Kind != OnJobExit {
			continue
		}

		invoke(h, wh)
	}

	for _, h := range handlers {
		if h.Kind != OnProcessExit {
			continue
		}

		if h.Pid != 0 && h.Pid != wh.Pid {
			continue
		}

		invoke(h, wh)
	}
}
