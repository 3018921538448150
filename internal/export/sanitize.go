package export

import (
	"strings"

	"github.com/thebtf/promptvault/pkg/models"
)

// MaxCellLength is the largest value stored in one cell. Excel caps cells at
// 32,767 characters; staying a little under leaves room for viewers that
// count differently.
const MaxCellLength = 32700

// sanitizeCell strips control characters the spreadsheet format cannot hold
// (tab, newline and carriage return survive) and truncates oversized values.
func sanitizeCell(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '\t', '\n', '\r':
			return r
		}
		if r < 0x20 || r == 0x7F {
			return -1
		}
		return r
	}, s)

	if runes := []rune(s); len(runes) > MaxCellLength {
		s = string(runes[:MaxCellLength])
	}
	return s
}

// sanitizeRows returns new rows with every field sanitized. The input rows
// are never mutated.
func sanitizeRows(rows []models.Row) []models.Row {
	clean := make([]models.Row, 0, len(rows))
	for _, r := range rows {
		clean = append(clean, models.Row{
			Date:   sanitizeCell(r.Date),
			Time:   sanitizeCell(r.Time),
			Prompt: sanitizeCell(r.Prompt),
		})
	}
	return clean
}
