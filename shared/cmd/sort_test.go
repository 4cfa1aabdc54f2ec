package cmd

import (
	"sort"
	"testing"
)

func TestStringListSort(t *testing.T) {
	data := StringList{{"foo", "bar"}, {"baz", "bza"}}
	sort.Sort(data)

	want := StringList{{"baz", "bza"}, {"foo", "bar"}}
	for i := range want {
		if data[i][0] != want[i][0] || data[i][1] != want[i][1] {
			t.Fatalf("sorted = %v, want %v", data, want)
		}
	}
}

func TestStringListEmptyStringsSortLast(t *testing.T) {
	data := StringList{{"", "bar"}, {"foo", "baz"}}
	sort.Sort(data)

	if data[0][0] != "foo" || data[1][0] != "" {
		t.Fatalf("sorted = %v, want empty-first-column row last", data)
	}
}

func TestSortByPrecedenceRejectsColumnNotInDisplaySet(t *testing.T) {
	data := [][]string{{"b", "b", "c"}, {"a", "b", "c"}}

	err := SortByPrecedence(data, "123", "234")
	if err == nil {
		t.Fatalf("SortByPrecedence with sort column outside display columns = nil error, want one")
	}
}

func TestSortByPrecedenceRejectsIndexOutsideDataRange(t *testing.T) {
	data := [][]string{{"b", "b", "c", "d"}, {"c", "b", "a"}}

	err := SortByPrecedence(data, "1234", "4")
	if err == nil {
		t.Fatalf("SortByPrecedence with a short row = nil error, want one")
	}
}

func TestSortByPrecedenceOrdersByFirstDifferingColumn(t *testing.T) {
	data := [][]string{
		{"b", "b", "c"},
		{"a", "b", "c"},
		{"c", "b", "a"},
	}

	if err := SortByPrecedence(data, "123", "31"); err != nil {
		t.Fatalf("SortByPrecedence: %v", err)
	}

	want := [][]string{
		{"c", "b", "a"},
		{"a", "b", "c"},
		{"b", "b", "c"},
	}

	for i := range want {
		for j := range want[i] {
			if data[i][j] != want[i][j] {
				t.Fatalf("sorted = %v, want %v", data, want)
			}
		}
	}
}
