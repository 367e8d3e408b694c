package audit

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/api/sheets/v4"
)

// SheetsSink appends records to a Google spreadsheet, one row per record:
// timestamp, label, then the items in the following cells.
type SheetsSink struct {
	srv     *sheets.Service
	sheetID string
}

func NewSheetsSink(srv *sheets.Service, sheetID string) *SheetsSink {
	return &SheetsSink{srv: srv, sheetID: sheetID}
}

func (s *SheetsSink) Append(ctx context.Context, records []Record) error {
	var order []string
	byRange := make(map[string][][]interface{})
	for _, rec := range records {
		if _, seen := byRange[rec.Range]; !seen {
			order = append(order, rec.Range)
		}
		byRange[rec.Range] = append(byRange[rec.Range], row(rec))
	}

	for _, rng := range order {
		_, err := s.srv.Spreadsheets.Values.Append(s.sheetID, rng, &sheets.ValueRange{Values: byRange[rng]}).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do()
		if err != nil {
			return fmt.Errorf("failed to append audit rows to %s: %w", rng, err)
		}
	}
	return nil
}

func row(rec Record) []interface{} {
	cells := make([]interface{}, 0, len(rec.Items)+2)
	cells = append(cells, rec.Time.Format(time.RFC3339), rec.Label)
	for _, item := range rec.Items {
		cells = append(cells, item)
	}
	return cells
}
