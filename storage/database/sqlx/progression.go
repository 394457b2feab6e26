package sqlxrepos

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/EllowDigital/GSAI-IN-sub000/core/progression"
)

type levelRow struct {
	ID           string      `db:"id"`
	Discipline   null.String `db:"discipline"`
	Rank         int         `db:"rank"`
	Label        string      `db:"label"`
	NextLevelID  null.String `db:"next_level_id"`
	Requirements null.JSON   `db:"requirements"`
}

func toLevelRow(lvl progression.Level) levelRow {
	return levelRow{
		ID:           lvl.ID,
		Discipline:   null.NewString(lvl.Discipline, !lvl.IsGeneral()),
		Rank:         lvl.Rank,
		Label:        lvl.Label,
		NextLevelID:  null.NewString(lvl.NextLevelID, lvl.NextLevelID != ""),
		Requirements: null.NewJSON(lvl.Requirements, len(lvl.Requirements) > 0),
	}
}

func (r levelRow) level() progression.Level {
	lvl := progression.Level{
		ID:          r.ID,
		Discipline:  r.Discipline.String,
		Rank:        r.Rank,
		Label:       r.Label,
		NextLevelID: r.NextLevelID.String,
	}
	if r.Requirements.Valid {
		lvl.Requirements = json.RawMessage(r.Requirements.JSON)
	}
	return lvl
}

type progressRow struct {
	ID             string      `db:"id"`
	StudentID      string      `db:"student_id"`
	LevelID        string      `db:"belt_level_id"`
	Status         string      `db:"status"`
	StripeCount    int         `db:"stripe_count"`
	CoachNotes     null.String `db:"coach_notes"`
	AssessmentDate null.Time   `db:"assessment_date"`
	Active         bool        `db:"active"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

func toProgressRow(rec progression.Record) progressRow {
	return progressRow{
		ID:             rec.ID,
		StudentID:      rec.StudentID,
		LevelID:        rec.LevelID,
		Status:         string(rec.Status),
		StripeCount:    rec.StripeCount,
		CoachNotes:     null.NewString(rec.CoachNotes, rec.CoachNotes != ""),
		AssessmentDate: null.TimeFromPtr(rec.AssessmentDate),
		Active:         rec.Active,
		CreatedAt:      rec.CreatedAt.UTC(),
		UpdatedAt:      rec.UpdatedAt.UTC(),
	}
}

func (r progressRow) record() progression.Record {
	rec := progression.Record{
		ID:          r.ID,
		StudentID:   r.StudentID,
		LevelID:     r.LevelID,
		Status:      progression.Status(r.Status),
		StripeCount: r.StripeCount,
		CoachNotes:  r.CoachNotes.String,
		Active:      r.Active,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}
	if r.AssessmentDate.Valid {
		d := r.AssessmentDate.Time.UTC()
		rec.AssessmentDate = &d
	}
	return rec
}

const (
	levelColumns    = `id, discipline, rank, label, next_level_id, requirements`
	progressColumns = `id, student_id, belt_level_id, status, stripe_count, coach_notes, assessment_date, active, created_at, updated_at`
)

type progressionRepository struct {
	db *sqlx.DB
}

var _ progression.Repository = (*progressionRepository)(nil) // interface compliance check

func NewProgressionRepository(db *sqlx.DB) *progressionRepository {
	return &progressionRepository{db: db}
}

func (repo progressionRepository) QueryLevels(ctx context.Context) ([]progression.Level, error) {
	var rows []levelRow
	q := `SELECT ` + levelColumns + ` FROM belt_levels ORDER BY rank, id`
	if err := repo.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying levels")
	}
	levels := make([]progression.Level, 0, len(rows))
	for _, row := range rows {
		levels = append(levels, row.level())
	}
	return levels, nil
}

func (repo progressionRepository) GetLevel(ctx context.Context, id string) (progression.Level, error) {
	if _, err := uuid.Parse(id); err != nil {
		return progression.Level{}, progression.ErrLevelNotFound
	}
	var row levelRow
	q := `SELECT ` + levelColumns + ` FROM belt_levels WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return progression.Level{}, trapNoRowsErr(err, progression.ErrLevelNotFound, "finding level")
	}
	return row.level(), nil
}

// SaveLevels upserts the levels in two passes so next-level references may point to levels of the same batch.
func (repo progressionRepository) SaveLevels(ctx context.Context, levels []progression.Level) (err error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "starting transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	upsert := `INSERT INTO belt_levels (id, discipline, rank, label, requirements)
		VALUES (:id, :discipline, :rank, :label, :requirements)
		ON CONFLICT (id) DO UPDATE SET
			discipline = EXCLUDED.discipline, rank = EXCLUDED.rank, label = EXCLUDED.label, requirements = EXCLUDED.requirements`
	for _, lvl := range levels {
		if _, err = tx.NamedExecContext(ctx, upsert, toLevelRow(lvl)); err != nil {
			return errors.Wrapf(err, "saving level %s", lvl.ID)
		}
	}
	link := `UPDATE belt_levels SET next_level_id = :next_level_id WHERE id = :id`
	for _, lvl := range levels {
		if _, err = tx.NamedExecContext(ctx, link, toLevelRow(lvl)); err != nil {
			return errors.Wrapf(err, "linking level %s", lvl.ID)
		}
	}
	return errors.Wrap(tx.Commit(), "committing levels")
}

func (repo progressionRepository) QueryProgress(ctx context.Context, filter *progression.QueryFilter) ([]progression.Record, error) {
	var w where
	if filter != nil {
		if filter.StudentID != "" {
			if _, err := uuid.Parse(filter.StudentID); err != nil {
				return []progression.Record{}, nil
			}
			w.add("student_id = ?", filter.StudentID)
		}
		if filter.LevelID != "" {
			if _, err := uuid.Parse(filter.LevelID); err != nil {
				return []progression.Record{}, nil
			}
			w.add("belt_level_id = ?", filter.LevelID)
		}
		if len(filter.Statuses) > 0 {
			w.add("status = ANY(?)", pq.Array(filter.Statuses))
		}
		if filter.Active != nil {
			w.add("active = ?", *filter.Active)
		}
	}

	var rows []progressRow
	q := `SELECT ` + progressColumns + ` FROM student_progress` + w.String() + ` ORDER BY created_at, id`
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying progress")
	}
	records := make([]progression.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

func (repo progressionRepository) GetProgress(ctx context.Context, id string) (progression.Record, error) {
	if _, err := uuid.Parse(id); err != nil {
		return progression.Record{}, progression.ErrNotFound
	}
	var row progressRow
	q := `SELECT ` + progressColumns + ` FROM student_progress WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return progression.Record{}, trapNoRowsErr(err, progression.ErrNotFound, "finding progress")
	}
	return row.record(), nil
}

const (
	insertProgress = `INSERT INTO student_progress (` + progressColumns + `)
		VALUES (:id, :student_id, :belt_level_id, :status, :stripe_count, :coach_notes, :assessment_date, :active, :created_at, :updated_at)`
	updateProgress = `UPDATE student_progress SET belt_level_id = :belt_level_id, status = :status, stripe_count = :stripe_count,
		coach_notes = :coach_notes, assessment_date = :assessment_date, active = :active, updated_at = :updated_at
		WHERE id = :id`
	archiveProgress = updateProgress + ` AND active`
)

func (repo progressionRepository) CreateProgress(ctx context.Context, rec progression.Record) (progression.Record, error) {
	rec.ID = uuid.New().String()
	if _, err := repo.db.NamedExecContext(ctx, insertProgress, toProgressRow(rec)); err != nil {
		return progression.Record{}, progressIntegrityError(err, "inserting progress")
	}
	return rec, nil
}

func (repo progressionRepository) UpdateProgress(ctx context.Context, rec progression.Record) (progression.Record, error) {
	res, err := repo.db.NamedExecContext(ctx, updateProgress, toProgressRow(rec))
	if err != nil {
		return progression.Record{}, progressIntegrityError(err, "updating progress")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return progression.Record{}, progression.ErrNotFound
	}
	return repo.GetProgress(ctx, rec.ID)
}

func (repo progressionRepository) PromoteProgress(ctx context.Context, prev, next progression.Record) (promo progression.Promotion, err error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return promo, errors.Wrap(err, "starting transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.NamedExecContext(ctx, archiveProgress, toProgressRow(prev))
	if err != nil {
		return promo, progressIntegrityError(err, "archiving progress")
	}
	if n, e := res.RowsAffected(); e == nil && n == 0 {
		// already archived by a concurrent promotion, or gone
		err = progression.ErrInactiveRecord
		return promo, err
	}
	next.ID = uuid.New().String()
	if _, err = tx.NamedExecContext(ctx, insertProgress, toProgressRow(next)); err != nil {
		return promo, progressIntegrityError(err, "inserting progress")
	}
	if err = tx.Commit(); err != nil {
		return promo, errors.Wrap(err, "committing promotion")
	}
	return progression.Promotion{Previous: prev, Current: next}, nil
}

func progressIntegrityError(err error, msg string) error {
	if pqErr, ok := pqError(err); ok && pqErr.Code == pqForeignKeyViolation {
		if strings.Contains(pqErr.Constraint, "student_id") {
			return progression.ErrUnknownStudent
		}
		return progression.ErrUnknownLevel
	}
	return errors.Wrap(err, msg)
}
