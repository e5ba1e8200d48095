package calendar

import (
	"strings"

	"github.com/yukifm/remindbot/internal/table"
)

// IDsFromTable reads the holiday calendar ids from the first column of
// the holiday_calendars table. The header row and blank cells are
// skipped. Callers treat a missing table itself as a fatal
// configuration error; this only projects an opened one.
func IDsFromTable(src table.Source) []string {
	var results []string
	for row := 1; row < src.Rows(); row++ {
		id := strings.TrimSpace(src.Cell(row, 0).AsString())
		if id == "" {
			continue
		}
		results = append(results, id)
	}
	return results
}
