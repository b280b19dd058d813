package console

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// PrintTable renders rows under header. Long cells are kept on one line.
func PrintTable(header []string, rows [][]string) {
	if len(rows) == 0 {
		return
	}
	table := tablewriter.NewWriter(out)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(false)
	table.SetRowLine(false)
	for _, r := range rows {
		table.Append(r)
	}
	table.Render()
}

// PrintList prints numbered items below an indented title.
func PrintList(items []string) {
	for i, it := range items {
		fmt.Fprintf(out, "\t[%s] %s\n", Highlight(fmt.Sprint(i+1)), it)
	}
}

// Truncate shortens s for table cells.
func Truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if n <= 3 || len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
