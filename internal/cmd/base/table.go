package base

import (
	"strings"

	"github.com/olekukonko/tablewriter"
)

// Table renders rows as a plain text table.
func Table(header []string, rows [][]string) string {
	var b strings.Builder
	t := tablewriter.NewWriter(&b)
	t.SetHeader(header)
	t.SetAutoWrapText(false)
	t.SetAutoFormatHeaders(false)
	t.AppendBulk(rows)
	t.Render()
	return strings.TrimRight(b.String(), "\n")
}
