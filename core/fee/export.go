package fee

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/pkg/errors"
)

var csvHeader = []string{
	"student_id", "student_name", "year", "month",
	"monthly_fee", "paid_amount", "balance_due", "status", "notes",
}

// WriteCSV writes records as CSV. `names` maps student ids to display names.
func WriteCSV(w io.Writer, records []Record, names map[string]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return errors.Wrap(err, "writing csv header")
	}
	for _, rec := range records {
		row := []string{
			rec.StudentID,
			names[rec.StudentID],
			strconv.Itoa(rec.Year),
			strconv.Itoa(rec.Month),
			formatAmount(rec.MonthlyFee),
			formatAmount(rec.PaidAmount),
			formatAmount(rec.BalanceDue),
			rec.Status.String(),
			rec.Notes,
		}
		if err := cw.Write(row); err != nil {
			return errors.Wrap(err, "writing csv row")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing csv")
}
