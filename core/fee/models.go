package fee

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/EllowDigital/GSAI-IN-sub000/core"
)

// Status of a fee record, always derived from MonthlyFee and PaidAmount.
type Status string

const (
	StatusPaid    Status = "paid"
	StatusPartial Status = "partial"
	StatusUnpaid  Status = "unpaid"
)

var Statuses = []Status{StatusPaid, StatusPartial, StatusUnpaid}

// ParseStatus parses a string into a Status, case-insensitive.
func ParseStatus(s string) (Status, error) {
	switch st := Status(core.CleanString(s, true /* lower */)); st {
	case StatusPaid, StatusPartial, StatusUnpaid:
		return st, nil
	default:
		return "", fmt.Errorf("invalid fee status: %q", s)
	}
}

func (s Status) String() string { return string(s) }

// Period is a (year, month) billing period. Periods are ordered by year, then month.
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"` // 1-12
}

func (p Period) Before(other Period) bool {
	if p.Year != other.Year {
		return p.Year < other.Year
	}
	return p.Month < other.Month
}

var errInvalidPeriod = errors.New("invalid period")

func (p Period) validate() error {
	if p.Month < 1 || p.Month > 12 {
		return core.NewValidationError(errInvalidPeriod, core.FieldError{Field: "month", Error: "month must be between 1 and 12"})
	}
	return nil
}

func (p Period) String() string {
	if p.Month < 1 || p.Month > 12 {
		return fmt.Sprintf("%d-%02d", p.Year, p.Month)
	}
	return fmt.Sprintf("%s %d", time.Month(p.Month), p.Year)
}

// Record is one student's obligation for one period.
type Record struct {
	ID         string          `json:"id"`
	StudentID  string          `json:"student_id"`
	Year       int             `json:"year"`
	Month      int             `json:"month"`
	MonthlyFee decimal.Decimal `json:"monthly_fee"`
	PaidAmount decimal.Decimal `json:"paid_amount"`
	BalanceDue decimal.Decimal `json:"balance_due"`
	Status     Status          `json:"status"`
	Notes      string          `json:"notes"`
	CreatedAt  time.Time       `json:"created_at"` // UTC
	UpdatedAt  time.Time       `json:"updated_at"` // UTC
}

func (r Record) Period() Period { return Period{Year: r.Year, Month: r.Month} }

// recompute sets the derived fields; callers never supply them.
func (r *Record) recompute() {
	r.BalanceDue = ComputeBalance(r.MonthlyFee, r.PaidAmount)
	r.Status = ComputeStatus(r.MonthlyFee, r.PaidAmount)
}

// NewPayment contains the information needed to record a payment for a period.
// When ID is empty the record of the period is created (or updated if it already exists).
type NewPayment struct {
	ID         string          `json:"id" validate:"omitempty,uuid"`
	StudentID  string          `json:"student_id" validate:"required"`
	Year       int             `json:"year" validate:"required,min=2000,max=2100"`
	Month      int             `json:"month" validate:"required,min=1,max=12"`
	MonthlyFee decimal.Decimal `json:"monthly_fee"`
	PaidAmount decimal.Decimal `json:"paid_amount"`
	Notes      string          `json:"notes" validate:"max=500"`
}

func (np *NewPayment) Clean() {
	np.ID = core.CleanString(np.ID, true /* lower */)
	np.StudentID = core.CleanString(np.StudentID)
	np.Notes = core.CleanString(np.Notes)
	np.MonthlyFee = ClampAmount(np.MonthlyFee)
	np.PaidAmount = ClampAmount(np.PaidAmount)
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.Clean()
	if err := validate.Struct(np); err != nil {
		return err
	}
	if err := ValidatePayment(np.MonthlyFee, np.PaidAmount); err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "paid_amount", Error: err.Error()})
	}
	return nil
}

type QueryFilter struct {
	StudentID string   `query:"student_id"`
	Year      int      `query:"year"`
	Month     int      `query:"month"`
	Statuses  []string `query:"status"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.StudentID == "" && qf.Year == 0 && qf.Month == 0 && len(qf.Statuses) == 0
}

func (qf *QueryFilter) Clean() {
	qf.StudentID = core.CleanString(qf.StudentID)
	statuses := qf.Statuses[:0]
	for _, s := range qf.Statuses {
		for _, part := range strings.Split(s, ",") {
			if st, err := ParseStatus(part); err == nil {
				statuses = append(statuses, string(st))
			}
		}
	}
	qf.Statuses = statuses
}

// Match reports whether rec satisfies every set field of the filter.
func (qf *QueryFilter) Match(rec Record) bool {
	if qf == nil {
		return true
	}
	if qf.StudentID != "" && rec.StudentID != qf.StudentID {
		return false
	}
	if qf.Year != 0 && rec.Year != qf.Year {
		return false
	}
	if qf.Month != 0 && rec.Month != qf.Month {
		return false
	}
	if len(qf.Statuses) > 0 {
		for _, s := range qf.Statuses {
			if Status(s) == rec.Status {
				return true
			}
		}
		return false
	}
	return true
}

// Orderings accepted by Repository.QueryFees.
var Orderings = []string{"year", "month", "monthly_fee", "paid_amount", "balance_due", "status", "created_at", "updated_at"}

// Summary is the rollup shown on top of the fees table.
type Summary struct {
	Collected decimal.Decimal `json:"collected"` // paid_amount of paid records
	Pending   decimal.Decimal `json:"pending"`   // balance_due of partial records
	Overdue   decimal.Decimal `json:"overdue"`   // balance_due of the rest
	Records   int             `json:"records"`
}

// LedgerEntry is the effective row of a student for one period.
type LedgerEntry struct {
	Record       Record          `json:"record"`
	Exists       bool            `json:"exists"` // false when Record is a blank row for the period
	CarryForward decimal.Decimal `json:"carry_forward"`
	TotalDue     decimal.Decimal `json:"total_due"`
}
