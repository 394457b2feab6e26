package fee

import (
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var ErrExceedsMonthlyFee = errors.New("paid amount cannot exceed the monthly fee")

// amountPlaces matches the NUMERIC(12,2) columns fee amounts are stored in.
const amountPlaces = 2

// ClampAmount rounds d to cents and clamps negative amounts to 0.
func ClampAmount(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d.Round(amountPlaces)
}

// ComputeStatus derives the status of a period from its monthly fee and paid amount.
// Inputs are expected to be clamped (>= 0).
func ComputeStatus(monthlyFee, paid decimal.Decimal) Status {
	switch {
	case paid.GreaterThanOrEqual(monthlyFee):
		return StatusPaid
	case paid.IsPositive():
		return StatusPartial
	default:
		return StatusUnpaid
	}
}

// ComputeBalance returns max(monthlyFee - paid, 0).
func ComputeBalance(monthlyFee, paid decimal.Decimal) decimal.Decimal {
	balance := monthlyFee.Sub(paid)
	if balance.IsNegative() {
		return decimal.Zero
	}
	return balance
}

// ValidatePayment rejects payments above the monthly fee. They are never clamped.
func ValidatePayment(monthlyFee, paid decimal.Decimal) error {
	if paid.GreaterThan(monthlyFee) {
		return ErrExceedsMonthlyFee
	}
	return nil
}

// latestBefore returns the most recent record of the student strictly before `target`.
// Duplicate periods are not deduplicated: the first one in `records` wins.
func latestBefore(records []Record, studentID string, target Period) (Record, bool) {
	var (
		latest Record
		found  bool
	)
	for _, rec := range records {
		if rec.StudentID != studentID || !rec.Period().Before(target) {
			continue
		}
		if !found || latest.Period().Before(rec.Period()) {
			latest = rec
			found = true
		}
	}
	return latest, found
}

// FindCarryForward returns the unpaid balance carried into (year, month) from the
// student's most recent prior period, or 0 if there is none or it is paid.
func FindCarryForward(records []Record, studentID string, year, month int) decimal.Decimal {
	prev, ok := latestBefore(records, studentID, Period{Year: year, Month: month})
	if !ok || prev.Status == StatusPaid {
		return decimal.Zero
	}
	return prev.BalanceDue
}

// BuildLedgerEntry returns the row to display/edit for the student's period.
// A blank unpaid row billed at defaultFee is returned when the period has no record yet.
func BuildLedgerEntry(records []Record, studentID string, period Period, defaultFee decimal.Decimal) LedgerEntry {
	entry := LedgerEntry{
		CarryForward: FindCarryForward(records, studentID, period.Year, period.Month),
	}
	for _, rec := range records {
		if rec.StudentID == studentID && rec.Period() == period {
			entry.Record = rec
			entry.Exists = true
			break
		}
	}
	if !entry.Exists {
		entry.Record = Record{
			StudentID:  studentID,
			Year:       period.Year,
			Month:      period.Month,
			MonthlyFee: ClampAmount(defaultFee),
			PaidAmount: decimal.Zero,
		}
		entry.Record.recompute()
	}
	entry.TotalDue = entry.Record.BalanceDue.Add(entry.CarryForward)
	return entry
}

// Summarize rolls up collected, pending and overdue amounts.
func Summarize(records []Record) Summary {
	sum := Summary{
		Collected: decimal.Zero,
		Pending:   decimal.Zero,
		Overdue:   decimal.Zero,
		Records:   len(records),
	}
	for _, rec := range records {
		switch rec.Status {
		case StatusPaid:
			sum.Collected = sum.Collected.Add(rec.PaidAmount)
		case StatusPartial:
			sum.Pending = sum.Pending.Add(rec.BalanceDue)
		default:
			sum.Overdue = sum.Overdue.Add(rec.BalanceDue)
		}
	}
	return sum
}
