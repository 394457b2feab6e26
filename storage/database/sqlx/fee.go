package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/EllowDigital/GSAI-IN-sub000/core"
	"github.com/EllowDigital/GSAI-IN-sub000/core/fee"
)

type feeRow struct {
	ID         string          `db:"id"`
	StudentID  string          `db:"student_id"`
	Year       int             `db:"year"`
	Month      int             `db:"month"`
	MonthlyFee decimal.Decimal `db:"monthly_fee"`
	PaidAmount decimal.Decimal `db:"paid_amount"`
	BalanceDue decimal.Decimal `db:"balance_due"`
	Status     string          `db:"status"`
	Notes      null.String     `db:"notes"`
	CreatedAt  time.Time       `db:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at"`
}

func toFeeRow(rec fee.Record) feeRow {
	return feeRow{
		ID:         rec.ID,
		StudentID:  rec.StudentID,
		Year:       rec.Year,
		Month:      rec.Month,
		MonthlyFee: rec.MonthlyFee,
		PaidAmount: rec.PaidAmount,
		BalanceDue: rec.BalanceDue,
		Status:     string(rec.Status),
		Notes:      null.NewString(rec.Notes, rec.Notes != ""),
		CreatedAt:  rec.CreatedAt.UTC(),
		UpdatedAt:  rec.UpdatedAt.UTC(),
	}
}

func (r feeRow) record() fee.Record {
	return fee.Record{
		ID:         r.ID,
		StudentID:  r.StudentID,
		Year:       r.Year,
		Month:      r.Month,
		MonthlyFee: r.MonthlyFee,
		PaidAmount: r.PaidAmount,
		BalanceDue: r.BalanceDue,
		Status:     fee.Status(r.Status),
		Notes:      r.Notes.String,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

const feeColumns = `id, student_id, year, month, monthly_fee, paid_amount, balance_due, status, notes, created_at, updated_at`

type feeRepository struct {
	db *sqlx.DB
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(db *sqlx.DB) *feeRepository {
	return &feeRepository{db: db}
}

func (repo feeRepository) QueryFees(ctx context.Context, filter *fee.QueryFilter, ordering []core.DBOrdering) ([]fee.Record, error) {
	var w where
	if filter != nil {
		if filter.StudentID != "" {
			if _, err := uuid.Parse(filter.StudentID); err != nil {
				return []fee.Record{}, nil
			}
			w.add("student_id = ?", filter.StudentID)
		}
		if filter.Year != 0 {
			w.add("year = ?", filter.Year)
		}
		if filter.Month != 0 {
			w.add("month = ?", filter.Month)
		}
		if len(filter.Statuses) > 0 {
			w.add("status = ANY(?)", pq.Array(filter.Statuses))
		}
	}

	var rows []feeRow
	q := `SELECT ` + feeColumns + ` FROM fees` + w.String() + orderBy(ordering, "year DESC, month DESC, student_id")
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying fees")
	}
	records := make([]fee.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

func (repo feeRepository) GetFee(ctx context.Context, id string) (fee.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return fee.Record{}, fee.ErrNotFound
	}
	var row feeRow
	q := `SELECT ` + feeColumns + ` FROM fees WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return fee.Record{}, trapNoRowsErr(err, fee.ErrNotFound, "finding fee")
	}
	return row.record(), nil
}

func (repo feeRepository) UpsertFee(ctx context.Context, rec fee.Record) (fee.Record, error) {
	if _, err := uuid.Parse(rec.StudentID); err != nil {
		return fee.Record{}, fee.ErrUnknownStudent
	}

	var (
		q   string
		row feeRow
	)
	if rec.ID == "" {
		rec.ID = uuid.New().String()
		q = `INSERT INTO fees (` + feeColumns + `)
			VALUES (:id, :student_id, :year, :month, :monthly_fee, :paid_amount, :balance_due, :status, :notes, :created_at, :updated_at)
			ON CONFLICT ON CONSTRAINT fees_student_period_key DO UPDATE SET
				monthly_fee = EXCLUDED.monthly_fee, paid_amount = EXCLUDED.paid_amount, balance_due = EXCLUDED.balance_due,
				status = EXCLUDED.status, notes = EXCLUDED.notes, updated_at = EXCLUDED.updated_at
			RETURNING ` + feeColumns
	} else {
		q = `UPDATE fees SET student_id = :student_id, year = :year, month = :month, monthly_fee = :monthly_fee,
				paid_amount = :paid_amount, balance_due = :balance_due, status = :status, notes = :notes, updated_at = :updated_at
			WHERE id = :id
			RETURNING ` + feeColumns
	}

	rows, err := repo.db.NamedQueryContext(ctx, q, toFeeRow(rec))
	if err != nil {
		return fee.Record{}, feeIntegrityError(err)
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		if err = rows.Err(); err != nil {
			return fee.Record{}, feeIntegrityError(err)
		}
		return fee.Record{}, fee.ErrNotFound
	}
	if err = rows.StructScan(&row); err != nil {
		return fee.Record{}, errors.Wrap(err, "scanning fee")
	}
	return row.record(), nil
}

func feeIntegrityError(err error) error {
	if pqErr, ok := pqError(err); ok {
		switch pqErr.Code {
		case pqForeignKeyViolation:
			return fee.ErrUnknownStudent
		case pqUniqueViolation:
			return fee.ErrPeriodTaken
		}
	}
	return errors.Wrap(err, "saving fee")
}
