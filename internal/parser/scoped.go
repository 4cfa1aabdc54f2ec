package parser

// ScopedData is a small value-typed record manipulated via RAII-style
// scoped mutation; restored on scope exit regardless of cancellation
// (spec §3, §4.8).
type ScopedData struct {
	EvalLevel        int
	IsSubshell       bool
	IsEvent          bool
	IsInteractive    bool
	SuppressTrace    bool
	ReadByteLimit    int
	IsCleaning       bool
	CallerID         uint64
	// StatusGeneration is bumped every time $status changes (supplemented
	// feature, see SPEC_FULL.md §4: "status current-command /
	// $status_generation").
	StatusGeneration uint64
}

// ScopedGuard restores the prior ScopedData value on Release, even if the
// caller is unwinding due to an error or cancellation (spec §4.8: "restored
// on drop, even during unwinding").
type ScopedGuard struct {
	target *ScopedData
	prior  ScopedData
}

// PushScoped mutates *target via mutate and returns a guard that restores
// the previous value when Release is called. Callers should `defer
// guard.Release()` immediately after constructing it.
func PushScoped(target *ScopedData, mutate func(*ScopedData)) *ScopedGuard {
	prior := *target
	mutate(target)
	return &ScopedGuard{target: target, prior: prior}
}

// Release restores the ScopedData to its value before the matching
// PushScoped call. Idempotent: calling it more than once is a no-op after
// the first call.
func (g *ScopedGuard) Release() {
	if g == nil || g.target == nil {
		return
	}

	*g.target = g.prior
	g.target = nil
}
