package cmd

import (
	"fmt"
	"sort"
	"strings"
)

// StringList sorts rows of strings lexicographically column by column,
// with empty strings sorting last.
type StringList [][]string

func (s StringList) Len() int      { return len(s) }
func (s StringList) Swap(i, j int) { s[i], s[j] = s[j], s[i] }

func (s StringList) Less(i, j int) bool {
	a, b := s[i], s[j]

	for k := 0; k < len(a) && k < len(b); k++ {
		if c := compareCell(a[k], b[k]); c != 0 {
			return c < 0
		}
	}

	return false
}

func compareCell(a, b string) int {
	switch {
	case a == "" && b == "":
		return 0
	case a == "":
		return 1
	case b == "":
		return -1
	default:
		return strings.Compare(a, b)
	}
}

// SortByPrecedence sorts data in place using sortColumns as a precedence
// list of column identifiers into displayColumns (spec §6 supplement,
// grounded on the teacher's column/row report tooling).
func SortByPrecedence(data [][]string, displayColumns string, sortColumns string) error {
	if sortColumns == "" {
		return nil
	}

	indices := make([]int, 0, len(sortColumns))
	for _, r := range sortColumns {
		idx := strings.IndexRune(displayColumns, r)
		if idx < 0 {
			return fmt.Errorf("Invalid sort column %q, not present in display columns %q", string(r), displayColumns)
		}

		indices = append(indices, idx)
	}

	for i, idx := range indices {
		for _, row := range data {
			if idx >= len(row) {
				return fmt.Errorf("Index of sort column %q outside data range", string(sortColumns[i]))
			}
		}
	}

	sort.SliceStable(data, func(i, j int) bool {
		for _, idx := range indices {
			if c := compareCell(data[i][idx], data[j][idx]); c != 0 {
				return c < 0
			}
		}

		return false
	})

	return nil
}
