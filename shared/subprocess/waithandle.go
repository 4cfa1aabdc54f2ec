package subprocess

import "sync"

// WaitHandle is a compact record retained after a background job reaps,
// for later `wait` builtins and `--on-process-exit`/`--on-job-exit`
// handlers (spec §4.5).
type WaitHandle struct {
	Pid    int
	Pgid   int
	JobID  uint64
	Status ProcStatus
}

// WaitHandleStore is the guarded table of retained WaitHandles (spec §5:
// "worker threads read via get_wait_handles which is guarded").
type WaitHandleStore struct {
	mu      sync.Mutex
	byPid   map[int]*WaitHandle
	history []*WaitHandle
}

// NewWaitHandleStore returns an empty store.
func NewWaitHandleStore() *WaitHandleStore {
	return &WaitHandleStore{byPid: map[int]*WaitHandle{}}
}

// Record stores h, evicting any existing record for the same pid first
// (spec §4.5: "Reaping a pid that collides with a retained record evicts
// the old record first").
func (s *WaitHandleStore) Record(h *WaitHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.byPid[h.Pid]; ok {
		s.evictLocked(old)
	}

	s.byPid[h.Pid] = h
	s.history = append(s.history, h)
}

func (s *WaitHandleStore) evictLocked(h *WaitHandle) {
	for i, cand := range s.history {
		if cand == h {
			s.history = append(s.history[:i], s.history[i+1:]...)
			break
		}
	}
}

// Get returns the retained WaitHandle for pid, if any.
func (s *WaitHandleStore) Get(pid int) (*WaitHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.byPid[pid]
	return h, ok
}

// All returns every currently retained WaitHandle, most-recent first.
func (s *WaitHandleStore) All() []*WaitHandle {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*WaitHandle, len(s.history))
	for i, h := range s.history {
		out[len(out)-1-i] = h
	}

	return out
}

// Forget removes any retained record for pid (e.g. once a `wait` builtin
// has consumed it).
func (s *WaitHandleStore) Forget(pid int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.byPid[pid]; ok {
		delete(s.byPid, pid)
		s.evictLocked(h)
	}
}
