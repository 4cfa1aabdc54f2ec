// Command fishexec is a small demo/debug driver over the execution core:
// it builds a JobPipeline by hand from a `;`/`|`-separated command line
// (a stand-in for the external parser spec.md scopes out) and runs it
// through internal/exec's Walker. It exits with the final $status and prints
// $pipestatus only when --pipestatus is given.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fish-shell/execcore/internal/ast"
	"github.com/fish-shell/execcore/internal/event"
	execcore "github.com/fish-shell/execcore/internal/exec"
	"github.com/fish-shell/execcore/internal/parser"
	"github.com/fish-shell/execcore/internal/signals"
	"github.com/fish-shell/execcore/shared/cmd"
	"github.com/fish-shell/execcore/shared/logger"
	"github.com/fish-shell/execcore/shared/subprocess"
)

type cmdGlobal struct {
	flagDebug      bool
	flagCommand    string
	flagPipestatus string
}

func main() {
	global := &cmdGlobal{}

	app := &cobra.Command{
		Use:   "fishexec",
		Short: "Run a command line through the execution core",
		RunE:  global.run,
	}

	app.PersistentFlags().BoolVar(&global.flagDebug, "debug", false, "enable debug logging")
	app.Flags().StringVarP(&global.flagCommand, "command", "c", "", "command line to execute")
	app.Flags().StringVar(&global.flagPipestatus, "pipestatus", "", "print the finished pipeline's per-process exit statuses as a report table (csv, compact, or table)")

	if err := app.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (g *cmdGlobal) run(cmd *cobra.Command, args []string) error {
	logger.SetDebug(g.flagDebug)

	line := g.flagCommand
	if line == "" && len(args) > 0 {
		line = strings.Join(args, " ")
	}

	if line == "" {
		return fmt.Errorf("nothing to run: pass -c \"cmd args...\"")
	}

	signals.Install()

	ctx := &execcore.Context{
		Parser:    parser.NewParser(),
		Signals:   signals.Get(),
		Expand:    execcore.BasicExpander{},
		Builtins:  execcore.BasicBuiltins{},
		Functions: execcore.NewMapFunctionRegistry(),
		Events:    event.NewRegistry(),
		Waits:     subprocess.NewWaitHandleStore(),
	}

	list := parseJobList(line)

	w := execcore.NewWalker(ctx)
	res := w.RunJobList(list)

	status := ctx.Parser.GetLastStatus()

	if g.flagDebug {
		logger.Debug("run finished", logger.Ctx{
			"reason": res.Reason.String(),
			"status": strconv.Itoa(status),
		})
	}

	if res.Reason == execcore.EndError {
		fmt.Fprintln(os.Stderr, "Error:", res.Err)
	}

	if g.flagPipestatus != "" {
		if err := printPipestatus(g.flagPipestatus, ctx.Parser.Library.LastPipestatus); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}

	if status != 0 {
		os.Exit(status)
	}

	return nil
}

// pipestatusRow is one row of the --pipestatus report: a pipeline stage's
// position and the exit status it finished with.
type pipestatusRow struct {
	stage  int
	status int
}

var pipestatusColumns = map[rune]cmd.Column{
	's': {
		Header: "Stage",
		DataFunc: func(a any) (string, error) {
			return strconv.Itoa(a.(pipestatusRow).stage), nil
		},
	},
	'x': {
		Header: "Exit Status",
		DataFunc: func(a any) (string, error) {
			return strconv.Itoa(a.(pipestatusRow).status), nil
		},
	},
}

// printPipestatus renders the last run pipeline's per-stage exit statuses
// using the same table/Context reporting tooling fishexec's other
// diagnostics lean on (spec §6 supplement).
func printPipestatus(format string, statuses []int) error {
	rows := make([]pipestatusRow, len(statuses))
	for i, s := range statuses {
		rows[i] = pipestatusRow{stage: i, status: s}
	}

	return cmd.RenderSlice(rows, format, "sx", "", pipestatusColumns)
}

// parseJobList is a deliberately minimal stand-in for the real fish
// parser (out of scope, spec §1): it splits line on ";" into conjunctions
// and each conjunction's jobs on "|" into pipeline statements, then splits
// each statement on whitespace into argv. No quoting, globbing, or
// expansion syntax is understood here; BasicExpander handles bare `$NAME`
// words once the walker asks it to expand an argument.
func parseJobList(line string) *ast.JobList {
	list := &ast.JobList{}

	for _, jobText := range strings.Split(line, ";") {
		jobText = strings.TrimSpace(jobText)
		if jobText == "" {
			continue
		}

		list.Conjunctions = append(list.Conjunctions, &ast.JobConjunction{
			Pipeline: parsePipeline(jobText),
		})
	}

	return list
}

func parsePipeline(jobText string) *ast.JobPipeline {
	segments := strings.Split(jobText, "|")
	pipeline := &ast.JobPipeline{}

	for i, seg := range segments {
		words := strings.Fields(seg)
		if len(words) == 0 {
			continue
		}

		pipeline.Statements = append(pipeline.Statements, &ast.Statement{
			Kind: ast.StatementDecorated,
			Decorated: &ast.DecoratedStatement{
				Command: ast.Argument{Text: words[0]},
				Args:    wordsToArgs(words[1:]),
			},
		})

		if i < len(segments)-1 {
			pipeline.PipeTokens = append(pipeline.PipeTokens, "|")
		}
	}

	return pipeline
}

func wordsToArgs(words []string) []ast.Argument {
	out := make([]ast.Argument, len(words))
	for i, w := range words {
		out[i] = ast.Argument{Text: w}
	}

	return out
}
