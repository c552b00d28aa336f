package cmd

import (
	"io"
	"strings"

	"github.com/goccy/go-json"
	"github.com/mattn/go-runewidth"
)

// maxCellWidth caps a column so one long title cannot push the rest off
// screen.
const maxCellWidth = 40

// writeTable prints rows under headers in space-aligned columns sized
// by display width.
func writeTable(w io.Writer, headers []string, rows [][]string) error {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], min(runewidth.StringWidth(cell), maxCellWidth))
			}
		}
	}

	var b strings.Builder
	line := func(cells []string) {
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			if i == len(widths)-1 {
				b.WriteString(runewidth.Truncate(cell, maxCellWidth, "…"))
				break
			}
			b.WriteString(padToWidth(cell, widths[i]))
			b.WriteString("  ")
		}
		b.WriteString("\n")
	}

	line(headers)
	for _, row := range rows {
		line(row)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
