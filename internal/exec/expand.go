package exec

import "strings"

// BasicExpander implements the minimal `$NAME` variable substitution the
// demo CLI and tests need; wildcard globbing, command substitution, and
// brace expansion are all out of scope (spec §1) and live in the external
// expansion subsystem this interface stands in for.
type BasicExpander struct{}

// ExpandString expands src into zero or more Completions: `$NAME` expands
// to one Completion per value the variable holds (fish's list semantics),
// anything else is returned unchanged as a single Completion.
func (BasicExpander) ExpandString(src string, _ ExpandFlags, ctx *Context) ([]Completion, error) {
	name, ok := dollarVarName(src)
	if !ok {
		return []Completion{{Text: src}}, nil
	}

	values, ok := ctx.Parser.Stack.Scope().Get(name)
	if !ok || len(values) == 0 {
		return nil, nil
	}

	out := make([]Completion, len(values))
	for i, v := range values {
		out[i] = Completion{Text: v}
	}

	return out, nil
}

// ExpandOne expands *s in place to a single string, joining a
// multi-valued variable with spaces (used where the grammar only allows
// one word, e.g. a `switch` subject).
func (BasicExpander) ExpandOne(s *string, _ ExpandFlags, ctx *Context) (bool, error) {
	name, ok := dollarVarName(*s)
	if !ok {
		return true, nil
	}

	values, ok := ctx.Parser.Stack.Scope().Get(name)
	if !ok {
		*s = ""
		return true, nil
	}

	*s = strings.Join(values, " ")
	return true, nil
}

func dollarVarName(s string) (string, bool) {
	if len(s) < 2 || s[0] != '$' {
		return "", false
	}

	return s[1:], true
}
