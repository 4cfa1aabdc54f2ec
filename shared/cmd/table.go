package cmd

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"reflect"

	"github.com/olekukonko/tablewriter"
)

// Table output formats (spec §6 supplement: a --pipestatus report table).
const (
	TableFormatCSV     = "csv"
	TableFormatCompact = "compact"
	TableFormatTable   = "table"
)

// Column describes one reportable field of a row type: a header and a
// function extracting its text for a given element.
type Column struct {
	Header   string
	DataFunc func(any) (string, error)
}

// RenderSlice prints data (which must be a slice) as a table in the given
// format, including only displayColumns (an ordered string of columnMap
// keys) and sorted by sortColumns (same alphabet, precedence order).
// Grounded on the teacher's lxc/util table printer and shared/cmd table
// renderer: tablewriter for the "table"/"compact" formats, encoding/csv for
// "csv".
func RenderSlice(data any, format string, displayColumns string, sortColumns string, columnMap map[rune]Column) error {
	switch format {
	case TableFormatCSV, TableFormatCompact, TableFormatTable:
	default:
		return fmt.Errorf("Invalid format %q", format)
	}

	v := reflect.ValueOf(data)
	if v.Kind() != reflect.Slice {
		return fmt.Errorf("Cannot render table: %w", errors.New("Provided argument is not a slice"))
	}

	header := make([]string, 0, len(displayColumns))
	columns := make([]Column, 0, len(displayColumns))
	for _, r := range displayColumns {
		col, ok := columnMap[r]
		if !ok {
			return fmt.Errorf("Cannot render table: %w", fmt.Errorf("no column registered for %q", string(r)))
		}

		header = append(header, col.Header)
		columns = append(columns, col)
	}

	rows := make([][]string, v.Len())
	for i := 0; i < v.Len(); i++ {
		elem := v.Index(i).Interface()

		row := make([]string, len(columns))
		for c, col := range columns {
			text, err := col.DataFunc(elem)
			if err != nil {
				return fmt.Errorf("Cannot render table: %w", err)
			}

			row[c] = text
		}

		rows[i] = row
	}

	if err := SortByPrecedence(rows, displayColumns, sortColumns); err != nil {
		return fmt.Errorf("Cannot render table: %w", err)
	}

	switch format {
	case TableFormatCSV:
		w := csv.NewWriter(os.Stdout)
		if err := w.WriteAll(rows); err != nil {
			return fmt.Errorf("Cannot render table: %w", err)
		}

		return nil

	case TableFormatCompact:
		table := baseTable(header, rows)
		table.SetColumnSeparator("")
		table.SetHeaderLine(false)
		table.SetBorder(false)
		table.Render()
		return nil

	default: // TableFormatTable
		table := baseTable(header, rows)
		table.SetRowLine(true)
		table.Render()
		return nil
	}
}

func baseTable(header []string, rows [][]string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader(header)
	table.AppendBulk(rows)
	return table
}
