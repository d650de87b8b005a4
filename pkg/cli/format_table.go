// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"
	"github.com/olekukonko/tablewriter"
)

// tableDisplayFormat identifies the rendering of tabular output.
type tableDisplayFormat int

const (
	tableDisplayPretty tableDisplayFormat = iota
	tableDisplayTSV
	tableDisplayCSV
	tableDisplayRecords
)

var tableDisplayFormats = [...]string{
	tableDisplayPretty:  "pretty",
	tableDisplayTSV:     "tsv",
	tableDisplayCSV:     "csv",
	tableDisplayRecords: "records",
}

// Type implements the pflag.Value interface.
func (f *tableDisplayFormat) Type() string { return "string" }

// String implements the pflag.Value interface.
func (f *tableDisplayFormat) String() string { return tableDisplayFormats[*f] }

// Set implements the pflag.Value interface.
func (f *tableDisplayFormat) Set(s string) error {
	for i, name := range tableDisplayFormats {
		if s == name {
			*f = tableDisplayFormat(i)
			return nil
		}
	}
	return errors.Newf("invalid table display format: %s (possible values: %s)",
		s, strings.Join(tableDisplayFormats[:], ", "))
}

func pluralize(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// printQueryOutput renders rows under the given column names.
func printQueryOutput(
	w io.Writer, cols []string, allRows [][]string, displayFormat tableDisplayFormat,
) error {
	switch displayFormat {
	case tableDisplayPretty:
		table := tablewriter.NewWriter(w)
		table.SetAutoFormatHeaders(false)
		table.SetAutoWrapText(false)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetHeader(cols)
		for _, row := range allRows {
			for i, r := range row {
				row[i] = expandTabsAndNewLines(r)
			}
			table.Append(row)
		}
		table.Render()
		fmt.Fprintf(w, "(%d row%s)\n", len(allRows), pluralize(len(allRows)))

	case tableDisplayTSV, tableDisplayCSV:
		csvWriter := csv.NewWriter(w)
		if displayFormat == tableDisplayTSV {
			csvWriter.Comma = '\t'
		}
		if err := csvWriter.Write(cols); err != nil {
			return err
		}
		return csvWriter.WriteAll(allRows)

	case tableDisplayRecords:
		maxColWidth := 0
		for _, col := range cols {
			if colLen := utf8.RuneCountInString(col); colLen > maxColWidth {
				maxColWidth = colLen
			}
		}
		for i, row := range allRows {
			fmt.Fprintf(w, "-[ RECORD %d ]\n", i+1)
			for j, r := range row {
				for l, line := range strings.Split(r, "\n") {
					colLabel := cols[j]
					if l > 0 {
						colLabel = ""
					}
					fmt.Fprintf(w, "%-*s | %s\n", maxColWidth, colLabel, line)
				}
			}
		}

	default:
		return errors.AssertionFailedf("unknown display format %d", displayFormat)
	}
	return nil
}

// expandTabsAndNewLines keeps a pretty table aligned.
func expandTabsAndNewLines(s string) string {
	s = strings.ReplaceAll(s, "\t", "    ")
	return strings.ReplaceAll(s, "\n", " ")
}
