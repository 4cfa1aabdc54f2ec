package fork

import (
	"os"
	"testing"

	"github.com/fish-shell/execcore/internal/redirect"
)

func TestBuildFileTableMapsDup2sAndCloses(t *testing.T) {
	list := redirect.NewDup2List()
	list.AddDup2(1, 9)
	list.AddClose(2)

	pipeEnd, _ := os.Open(os.DevNull)
	defer pipeEnd.Close()

	openFds := map[int]*os.File{9: pipeEnd}

	table, err := BuildFileTable(list, openFds, 2)
	if err != nil {
		t.Fatalf("BuildFileTable: %v", err)
	}

	if table.ByFd[1] != pipeEnd {
		t.Errorf("ByFd[1] = %v, want the file backing fd 9", table.ByFd[1])
	}

	f, ok := table.ByFd[2]
	if !ok || f != nil {
		t.Errorf("ByFd[2] = (%v, %v), want (nil, true) for a closed fd", f, ok)
	}

	if _, ok := table.ByFd[0]; ok {
		t.Errorf("ByFd[0] should be absent: no action ever touched fd 0")
	}
}

func TestBuildFileTableUntouchedFdPassesThrough(t *testing.T) {
	table, err := BuildFileTable(redirect.NewDup2List(), nil, 2)
	if err != nil {
		t.Fatalf("BuildFileTable: %v", err)
	}

	if len(table.ByFd) != 0 {
		t.Errorf("ByFd = %v, want empty: an untouched Dup2List maps no fd", table.ByFd)
	}
}
