package redirect

import "testing"

func TestDup2ListFdForTargetFollowsChain(t *testing.T) {
	list := NewDup2List()
	list.AddDup2(3, 7)
	list.AddDup2(1, 3)

	if got := list.FdForTarget(1); got != 7 {
		t.Errorf("FdForTarget(1) = %d, want 7 (via fd 3)", got)
	}

	if got := list.FdForTarget(2); got != 2 {
		t.Errorf("FdForTarget(2) = %d, want 2 (untouched fd resolves to itself)", got)
	}
}

func TestDup2ListFdForTargetClosedFd(t *testing.T) {
	list := NewDup2List()
	list.AddClose(1)

	if got := list.FdForTarget(1); got != -1 {
		t.Errorf("FdForTarget(1) after close = %d, want -1", got)
	}
}

func TestDup2ActionIsSelfDup(t *testing.T) {
	self := Dup2Action{Src: 4, Target: 4}
	if !self.IsSelfDup() {
		t.Errorf("self-dup2 not detected")
	}

	if self.IsClose() {
		t.Errorf("a self-dup should not read as a close")
	}

	closeAction := Dup2Action{Src: 4, Target: -1}
	if !closeAction.IsClose() {
		t.Errorf("close action not detected")
	}
}

func TestIoChainIoForFdReturnsLastMatch(t *testing.T) {
	chain := NewIoChain()
	chain.Append(IoEntry{Kind: IoFile, TargetFd: 1, SourceFd: 5})
	chain.Append(IoEntry{Kind: IoFile, TargetFd: 1, SourceFd: 9})

	entry, ok := chain.IoForFd(1)
	if !ok || entry.SourceFd != 9 {
		t.Errorf("IoForFd(1) = %+v, want the most recently appended entry", entry)
	}

	if _, ok := chain.IoForFd(2); ok {
		t.Errorf("IoForFd(2) should report no binding")
	}
}

func TestIoChainCloneIsIndependent(t *testing.T) {
	chain := NewIoChain()
	chain.Append(IoEntry{Kind: IoFile, TargetFd: 1, SourceFd: 5})

	clone := chain.Clone()
	clone.Append(IoEntry{Kind: IoFile, TargetFd: 2, SourceFd: 6})

	if len(chain.Entries()) != 1 {
		t.Errorf("appending to a clone mutated the original chain")
	}

	if len(clone.Entries()) != 2 {
		t.Errorf("clone should see both its own and the inherited entry")
	}
}

func TestResolvePipeWriteAppliedBeforeDeclaredRedirs(t *testing.T) {
	parent := NewIoChain()
	parent.Append(IoEntry{Kind: IoPipeEnd, TargetFd: 1, SourceFd: 20})

	specs := []RedirectionSpec{{Fd: 2, Mode: ModeFdAlias, Target: "1"}}

	resolved, err := Resolve(parent, specs, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	// fd 2 should end up aliased through fd 1, which the pipe write end
	// already rebound to fd 20 before the declared `2>&1` was applied.
	if got := resolved.Dup2List.FdForTarget(2); got != 20 {
		t.Errorf("FdForTarget(2) = %d, want 20 (2>&1 after the pipe write end is wired)", got)
	}
}

func TestResolvePipeReadAppliedAfterDeclaredRedirs(t *testing.T) {
	parent := NewIoChain()
	parent.Append(IoEntry{Kind: IoPipeEnd, TargetFd: 0, SourceFd: 30})

	resolved, err := Resolve(parent, nil, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	actions := resolved.Dup2List.Actions()
	if len(actions) != 1 || actions[0].Src != 0 || actions[0].Target != 30 {
		t.Fatalf("expected a single dup2(0, 30) action, got %+v", actions)
	}
}

func TestResolveDeferredClosesAppendedLast(t *testing.T) {
	resolved, err := Resolve(NewIoChain(), nil, []int{9, 10})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	actions := resolved.Dup2List.Actions()
	if len(actions) != 2 {
		t.Fatalf("expected 2 deferred-close actions, got %d", len(actions))
	}

	for i, fd := range []int{9, 10} {
		if !actions[i].IsClose() || actions[i].Src != fd {
			t.Errorf("action %d = %+v, want a close of fd %d", i, actions[i], fd)
		}
	}
}

func TestResolveFdAliasCloseTarget(t *testing.T) {
	resolved, err := Resolve(NewIoChain(), []RedirectionSpec{{Fd: 3, Mode: ModeFdAlias, Target: "-"}}, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	actions := resolved.Dup2List.Actions()
	if len(actions) != 1 || !actions[0].IsClose() || actions[0].Src != 3 {
		t.Fatalf("expected a close of fd 3, got %+v", actions)
	}
}

func TestResolveUnreadableInputDowngradesToClosedFd(t *testing.T) {
	specs := []RedirectionSpec{{Fd: 0, Mode: ModeTryInput, Target: "/no/such/path/for/execcore/tests"}}

	resolved, err := Resolve(NewIoChain(), specs, nil)
	if err != nil {
		t.Fatalf("Resolve should not fail for ModeTryInput on a missing file: %v", err)
	}

	actions := resolved.Dup2List.Actions()
	if len(actions) != 1 || !actions[0].IsClose() || actions[0].Src != 0 {
		t.Fatalf("expected fd 0 closed, got %+v", actions)
	}
}
