// Package cmd holds small command-line helpers shared by fishexec's
// driver: an interactive-prompt Context and a table renderer for
// diagnostic output (spec §6 supplement).
package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Context wraps the streams a command-line driver asks questions on and
// reports diagnostics through.
type Context struct {
	stdin  *bufio.Reader
	stdout io.Writer
	stderr io.Writer
}

// NewContext returns a Context reading from stdin and writing to stdout/stderr.
func NewContext(stdin io.Reader, stdout io.Writer, stderr io.Writer) *Context {
	return &Context{stdin: bufio.NewReader(stdin), stdout: stdout, stderr: stderr}
}

// AskBool prints question, reads a yes/no answer, and retries on anything
// else. A blank line accepts defaultAnswer.
func (c *Context) AskBool(question string, defaultAnswer string) bool {
	for {
		fmt.Fprint(c.stdout, question)

		answer, _ := c.stdin.ReadString('\n')
		answer = strings.TrimSpace(answer)
		if answer == "" {
			answer = defaultAnswer
		}

		switch strings.ToLower(answer) {
		case "yes", "y":
			return true
		case "no", "n":
			return false
		default:
			fmt.Fprint(c.stderr, "Invalid input, try again.\n\n")
		}
	}
}
