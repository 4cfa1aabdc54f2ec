// Package signals implements the process-wide signal machinery (spec §4.2):
// a central routing point for every signal the shell intercepts, a
// cancellation cell, and a topic monitor. Go delivers signals to a channel
// rather than invoking a handler on the signalled thread directly, so the
// "no allocation, no locks" discipline (spec §5: "Discipline for locks
// inside signal handlers: none") is satisfied by construction for the
// parts modeled here; the genuinely async-signal-safe code is confined to
// internal/fork, which runs between fork(2) and execve(2) where Go's
// runtime-mediated signal delivery does not apply.
package signals

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/fish-shell/execcore/shared/cancel"
	"github.com/fish-shell/execcore/shared/logger"
)

// Topic identifies one of the generation-counted event classes consumers
// poll against (spec glossary: "Topic").
type Topic int

const (
	TopicSIGCHLD Topic = iota
	TopicSIGHUPINT
	TopicSIGWINCH
	topicCount
)

// Handler is the process-wide singleton signal router (spec §9: "model
// them as a singleton initialized at startup and never torn down").
type Handler struct {
	mainPID int

	cancelSignal int32 // atomic: last cancellation signal, 0 if none
	topics       [topicCount]uint64

	mu           sync.Mutex
	eventQueue   []Event
	observedSigs map[syscall.Signal]bool

	ch   chan os.Signal
	once sync.Once

	cancel *cancel.Canceller
}

// Event is an asynchronous user-defined event-handler invocation enqueued
// when an observed signal fires (spec §4.2: "event queue").
type Event struct {
	Signal syscall.Signal
}

var (
	singleton *Handler
	initOnce  sync.Once
)

// Install initializes the process-wide Handler. Idempotent: subsequent
// calls are no-ops, matching the "initialized at startup and never torn
// down" singleton discipline.
func Install() *Handler {
	initOnce.Do(func() {
		singleton = &Handler{
			mainPID:      os.Getpid(),
			observedSigs: map[syscall.Signal]bool{},
			ch:           make(chan os.Signal, 64),
			cancel:       cancel.New(),
		}
		singleton.installBaseHandlers()
	})

	return singleton
}

// Get returns the installed singleton, or nil if Install has not been
// called yet.
func Get() *Handler { return singleton }

func (h *Handler) installBaseHandlers() {
	// SIGPIPE and SIGQUIT are ignored (spec §4.2).
	signal.Ignore(syscall.SIGPIPE, syscall.SIGQUIT)

	// SIGCHLD, SIGINT, SIGTERM, SIGWINCH, SIGHUP are routed through the
	// central dispatch loop.
	signal.Notify(h.ch, syscall.SIGCHLD, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGWINCH)

	go h.dispatchLoop()
}

func (h *Handler) dispatchLoop() {
	for sig := range h.ch {
		s, ok := sig.(syscall.Signal)
		if !ok {
			continue
		}

		switch s {
		case syscall.SIGCHLD:
			atomic.AddUint64(&h.topics[TopicSIGCHLD], 1)
		case syscall.SIGWINCH:
			atomic.AddUint64(&h.topics[TopicSIGWINCH], 1)
		case syscall.SIGHUP:
			atomic.AddUint64(&h.topics[TopicSIGHUPINT], 1)
		case syscall.SIGINT:
			// SIGINT cancels scripted execution but is NOT re-raised; the
			// walker observes cancellation via CheckCancel (spec §4.2).
			atomic.StoreInt32(&h.cancelSignal, int32(s))
			atomic.AddUint64(&h.topics[TopicSIGHUPINT], 1)
			h.cancel.Cancel()
		case syscall.SIGTERM:
			// SIGTERM restores the controlling pgroup then re-raises
			// default (spec §4.2). Restoring the pgroup is the caller's
			// (launcher's) job since it owns the JobGroup bookkeeping;
			// here we just log and re-raise.
			logger.Warn("SIGTERM received, terminating")
			signal.Reset(syscall.SIGTERM)
			_ = syscall.Kill(os.Getpid(), syscall.SIGTERM)
			return
		}

		h.mu.Lock()
		if h.observedSigs[s] {
			h.eventQueue = append(h.eventQueue, Event{Signal: s})
		}
		h.mu.Unlock()
	}
}

// Observe marks sig as one whose delivery should enqueue an Event (spec
// §4.2: "enqueued when the observed-signals set includes the signal"),
// used by `--on-signal` style event handlers.
func (h *Handler) Observe(sig syscall.Signal) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.observedSigs[sig] = true
}

// DrainEvents removes and returns all queued Events, for the parser thread
// to dispatch between scheduling points.
func (h *Handler) DrainEvents() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	events := h.eventQueue
	h.eventQueue = nil
	return events
}

// CancelSignal returns the last cancellation signal observed, or 0 if
// none.
func (h *Handler) CancelSignal() syscall.Signal {
	return syscall.Signal(atomic.LoadInt32(&h.cancelSignal))
}

// CheckCancel reports whether a cancellation signal is currently pending.
// Every loop that can block on user-level progress consults this (spec
// §4.2).
func (h *Handler) CheckCancel() bool {
	return atomic.LoadInt32(&h.cancelSignal) != 0
}

// ClearCancel resets the cancellation cell, e.g. once the walker has fully
// unwound back to the top-level prompt.
func (h *Handler) ClearCancel() {
	atomic.StoreInt32(&h.cancelSignal, 0)
}

// Canceller exposes the shared cancellation token for callers that want to
// select on its Done() channel rather than polling CheckCancel().
func (h *Handler) Canceller() *cancel.Canceller { return h.cancel }

// TopicGeneration returns the current generation counter for topic t.
// Observed topic counters are monotonically non-decreasing (spec §5);
// consumers compare generations across calls rather than reading an
// absolute count.
func (h *Handler) TopicGeneration(t Topic) uint64 {
	return atomic.LoadUint64(&h.topics[t])
}

// EnterInteractive layers the second set of handlers used once the shell
// is interactive (spec §4.2): SIGTSTP/SIGTTOU ignored, SIGTTIN/SIGALRM
// trapped via the same dispatch channel. Applied once; subsequent calls
// are no-ops.
func (h *Handler) EnterInteractive() {
	h.once.Do(func() {
		signal.Ignore(syscall.SIGTSTP, syscall.SIGTTOU)
		signal.Notify(h.ch, syscall.SIGTTIN, syscall.SIGALRM)
	})
}
