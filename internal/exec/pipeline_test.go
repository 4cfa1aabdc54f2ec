package exec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fish-shell/execcore/internal/ast"
	"github.com/fish-shell/execcore/internal/redirect"
)

func TestRedirNodeToSpecsTranslatesEachSingleActionMode(t *testing.T) {
	fd1 := 1

	cases := []struct {
		node ast.RedirectionNode
		want redirect.RedirectionSpec
	}{
		{ast.RedirectionNode{Fd: &fd1, Mode: ">", Target: "out"}, redirect.RedirectionSpec{Fd: 1, Mode: redirect.ModeOverwrite, Target: "out"}},
		{ast.RedirectionNode{Mode: ">>", Target: "out"}, redirect.RedirectionSpec{Fd: 1, Mode: redirect.ModeAppend, Target: "out"}},
		{ast.RedirectionNode{Mode: ">|", Target: "out"}, redirect.RedirectionSpec{Fd: 1, Mode: redirect.ModeNoClobber, Target: "out"}},
		{ast.RedirectionNode{Mode: "<", Target: "in"}, redirect.RedirectionSpec{Fd: 1, Mode: redirect.ModeInput, Target: "in"}},
		{ast.RedirectionNode{Mode: "<?", Target: "in"}, redirect.RedirectionSpec{Fd: 1, Mode: redirect.ModeTryInput, Target: "in"}},
		{ast.RedirectionNode{Mode: "2", Target: ""}, redirect.RedirectionSpec{Fd: 1, Mode: redirect.ModeFdAlias, Target: "2"}},
	}

	for _, c := range cases {
		got, err := redirNodeToSpecs(c.node)
		if err != nil {
			t.Fatalf("redirNodeToSpecs(%+v): %v", c.node, err)
		}

		if len(got) != 1 || got[0] != c.want {
			t.Errorf("redirNodeToSpecs(%+v) = %+v, want [%+v]", c.node, got, c.want)
		}
	}
}

func TestRedirNodeToSpecsExpandsAmpGtToTwoActions(t *testing.T) {
	got, err := redirNodeToSpecs(ast.RedirectionNode{Mode: "&>", Target: "out.log"})
	if err != nil {
		t.Fatalf("redirNodeToSpecs(&>): %v", err)
	}

	want := []redirect.RedirectionSpec{
		{Fd: 1, Mode: redirect.ModeOverwrite, Target: "out.log"},
		{Fd: 2, Mode: redirect.ModeFdAlias, Target: "1"},
	}

	if len(got) != len(want) {
		t.Fatalf("redirNodeToSpecs(&>) = %+v, want %+v", got, want)
	}

	for i := range want {
		if got[i] != want[i] {
			t.Errorf("redirNodeToSpecs(&>)[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestRedirNodeToSpecsRejectsUnknownMode(t *testing.T) {
	if _, err := redirNodeToSpecs(ast.RedirectionNode{Mode: "~>", Target: "x"}); err == nil {
		t.Fatalf("redirNodeToSpecs(~>) = nil error, want an error for an unsupported mode")
	}
}

func TestWalkerAppliesAmpGtRedirectionToBothStreams(t *testing.T) {
	ctx := newTestContext()
	w := NewWalker(ctx)

	dir := t.TempDir()
	path := filepath.Join(dir, "combined.log")

	stmt := &ast.Statement{
		Kind: ast.StatementDecorated,
		Decorated: &ast.DecoratedStatement{
			Command: arg("/bin/sh"),
			Args:    []ast.Argument{arg("-c"), arg("echo out; echo err 1>&2")},
			Redirs:  []ast.RedirectionNode{{Mode: "&>", Target: path}},
		},
	}

	res := w.RunJobList(singleStatementJobList(stmt))
	if res.Reason != EndOK {
		t.Fatalf("RunJobList(/bin/sh -c ... &> file) = %+v, want EndOK", res)
	}

	if got := ctx.Parser.GetLastStatus(); got != 0 {
		t.Fatalf("$status = %d, want 0", got)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s): %v", path, err)
	}

	if string(data) != "out\nerr\n" {
		t.Errorf("file contents = %q, want %q (stdout and stderr interleaved into one file)", data, "out\nerr\n")
	}
}

func TestWalkerAppliesFileRedirectionOnExternalCommand(t *testing.T) {
	ctx := newTestContext()
	w := NewWalker(ctx)

	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	stmt := &ast.Statement{
		Kind: ast.StatementDecorated,
		Decorated: &ast.DecoratedStatement{
			Command: arg("echo"),
			Args:    []ast.Argument{arg("hello")},
			Redirs:  []ast.RedirectionNode{{Mode: ">", Target: path}},
		},
	}

	res := w.RunJobList(singleStatementJobList(stmt))
	if res.Reason != EndOK {
		t.Fatalf("RunJobList(echo hello > file) = %+v, want EndOK", res)
	}

	if got := ctx.Parser.GetLastStatus(); got != 0 {
		t.Fatalf("$status = %d, want 0", got)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s): %v", path, err)
	}

	if string(data) != "hello\n" {
		t.Errorf("file contents = %q, want %q", data, "hello\n")
	}
}
