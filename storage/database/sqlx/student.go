package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/EllowDigital/GSAI-IN-sub000/core"
	"github.com/EllowDigital/GSAI-IN-sub000/core/student"
)

type studentRow struct {
	ID         string          `db:"id"`
	Name       string          `db:"name"`
	Email      null.String     `db:"email"`
	Program    string          `db:"program"`
	MonthlyFee decimal.Decimal `db:"monthly_fee"`
	IsActive   bool            `db:"is_active"`
	JoinedAt   null.Time       `db:"joined_at"`
	CreatedAt  time.Time       `db:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at"`
}

func toStudentRow(stud student.Student) studentRow {
	return studentRow{
		ID:         stud.ID,
		Name:       stud.Name,
		Email:      null.NewString(stud.Email, stud.Email != ""),
		Program:    stud.Program,
		MonthlyFee: stud.MonthlyFee,
		IsActive:   stud.IsActive,
		JoinedAt:   null.NewTime(stud.JoinedAt.UTC(), !stud.JoinedAt.IsZero()),
		CreatedAt:  stud.CreatedAt.UTC(),
		UpdatedAt:  stud.UpdatedAt.UTC(),
	}
}

func (r studentRow) student() student.Student {
	return student.Student{
		ID:         r.ID,
		Name:       r.Name,
		Email:      r.Email.String,
		Program:    r.Program,
		MonthlyFee: r.MonthlyFee,
		IsActive:   r.IsActive,
		JoinedAt:   r.JoinedAt.Time.UTC(),
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
}

const studentColumns = `id, name, email, program, monthly_fee, is_active, joined_at, created_at, updated_at`

type studentRepository struct {
	db *sqlx.DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *sqlx.DB) *studentRepository {
	return &studentRepository{db: db}
}

func (repo studentRepository) CreateStudent(ctx context.Context, stud student.Student) (student.Student, error) {
	stud.ID = uuid.New().String()
	q := `INSERT INTO students (` + studentColumns + `)
		VALUES (:id, :name, :email, :program, :monthly_fee, :is_active, :joined_at, :created_at, :updated_at)`
	if _, err := repo.db.NamedExecContext(ctx, q, toStudentRow(stud)); err != nil {
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return stud, nil
}

func (repo studentRepository) GetStudent(ctx context.Context, id string) (student.Student, error) {
	if _, err := uuid.Parse(id); err != nil {
		return student.Student{}, student.ErrNotFound
	}
	var row studentRow
	q := `SELECT ` + studentColumns + ` FROM students WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return student.Student{}, trapNoRowsErr(err, student.ErrNotFound, "finding student")
	}
	return row.student(), nil
}

func (repo studentRepository) QueryStudents(ctx context.Context, filter *student.QueryFilter, ordering []core.DBOrdering) ([]student.Student, error) {
	var w where
	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			w.add("(name ILIKE ? OR email ILIKE ?)", val, val)
		}
		if filter.Program != "" {
			w.add("program ILIKE ?", filter.Program)
		}
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
	}

	var rows []studentRow
	q := `SELECT ` + studentColumns + ` FROM students` + w.String() + orderBy(ordering, "name ASC")
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.student())
	}
	return students, nil
}

func (repo studentRepository) UpdateStudent(ctx context.Context, stud student.Student) (student.Student, error) {
	q := `UPDATE students SET name = :name, email = :email, program = :program, monthly_fee = :monthly_fee,
		is_active = :is_active, joined_at = :joined_at, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, toStudentRow(stud))
	if err != nil {
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return repo.GetStudent(ctx, stud.ID)
}
