package progression

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/EllowDigital/GSAI-IN-sub000/core"
	"github.com/EllowDigital/GSAI-IN-sub000/core/student"
)

var (
	ErrNotFound             = errors.New("progress record not found")
	ErrLevelNotFound        = errors.New("level not found")
	ErrUnknownStudent       = errors.New("student does not exist")
	ErrUnknownLevel         = errors.New("level does not exist")
	ErrTransitionNotAllowed = errors.New("status transition not allowed")
	ErrNoNextLevel          = errors.New("level has no next level")
	ErrInactiveRecord       = errors.New("progress record is no longer active")
)

// Repository is the persistence collaborator for levels and progress records.
type Repository interface {
	// QueryLevels returns every level, ordered by rank.
	QueryLevels(ctx context.Context) ([]Level, error)
	GetLevel(ctx context.Context, id string) (Level, error)
	// SaveLevels upserts levels by ID.
	SaveLevels(ctx context.Context, levels []Level) error

	QueryProgress(ctx context.Context, filter *QueryFilter) ([]Record, error)
	GetProgress(ctx context.Context, id string) (Record, error)
	// CreateProgress returns ErrUnknownStudent or ErrUnknownLevel on integrity failures.
	CreateProgress(ctx context.Context, rec Record) (Record, error)
	UpdateProgress(ctx context.Context, rec Record) (Record, error)
	// PromoteProgress archives prev and creates next atomically.
	// It returns ErrInactiveRecord when prev is no longer active in storage.
	PromoteProgress(ctx context.Context, prev, next Record) (Promotion, error)
}

type Service struct {
	repo        Repository
	students    student.Repository
	catalog     *Catalog
	transitions Transitions
	validate    *validator.Validate
}

func NewService(
	repo Repository,
	students student.Repository,
	catalog *Catalog,
	transitions Transitions,
	validate *validator.Validate,
) *Service {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if transitions == nil {
		transitions = DefaultTransitions()
	}
	return &Service{
		repo:        repo,
		students:    students,
		catalog:     catalog,
		transitions: transitions,
		validate:    validate,
	}
}

var nowFunc = time.Now // mockable

func (svc *Service) Catalog() *Catalog { return svc.catalog }

func (svc *Service) Classify(program string) Classification {
	return svc.catalog.Classify(program)
}

// Levels returns the levels offered for program.
func (svc *Service) Levels(ctx context.Context, program string) (Filtered, error) {
	levels, err := svc.repo.QueryLevels(ctx)
	if err != nil {
		return Filtered{}, errors.Wrap(err, "querying levels")
	}
	return svc.catalog.FilterApplicableLevels(levels, program), nil
}

// AllLevels returns every configured level, ordered by rank.
func (svc *Service) AllLevels(ctx context.Context) ([]Level, error) {
	levels, err := svc.repo.QueryLevels(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying levels")
	}
	sortLevels(levels)
	return levels, nil
}

// ImportLevels validates the resulting ladder (existing levels overlaid by levels) and saves levels.
func (svc *Service) ImportLevels(ctx context.Context, levels []Level) error {
	existing, err := svc.repo.QueryLevels(ctx)
	if err != nil {
		return errors.Wrap(err, "querying levels")
	}
	merged := make([]Level, 0, len(existing)+len(levels))
	incoming := make(map[string]bool, len(levels))
	for i := range levels {
		levels[i].ID = core.CleanString(levels[i].ID)
		levels[i].Discipline = core.CleanString(levels[i].Discipline)
		levels[i].Label = core.CleanString(levels[i].Label)
		if err := svc.validate.Struct(levels[i]); err != nil {
			return err
		}
		levels[i].Discipline = core.NormalizeKey(levels[i].Discipline)
		if levels[i].Discipline == GeneralKey {
			levels[i].Discipline = ""
		}
		incoming[levels[i].ID] = true
	}
	for _, lvl := range existing {
		if !incoming[lvl.ID] {
			merged = append(merged, lvl)
		}
	}
	merged = append(merged, levels...)
	if err := CheckLadder(merged); err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "levels", Error: err.Error()})
	}
	return errors.Wrap(svc.repo.SaveLevels(ctx, levels), "saving levels")
}

// Assign creates an active progress record. A level outside the student's discipline is
// allowed, with a Notice.
func (svc *Service) Assign(ctx context.Context, na NewAssignment) (Assignment, error) {
	if err := na.Validate(svc.validate); err != nil {
		return Assignment{}, err
	}

	stud, err := svc.students.GetStudent(ctx, na.StudentID)
	if err != nil {
		if errors.Cause(err) == student.ErrNotFound {
			return Assignment{}, core.NewValidationError(ErrUnknownStudent,
				core.FieldError{Field: "student_id", Error: ErrUnknownStudent.Error()})
		}
		return Assignment{}, errors.Wrap(err, "finding student")
	}
	lvl, err := svc.repo.GetLevel(ctx, na.LevelID)
	if err != nil {
		if errors.Cause(err) == ErrLevelNotFound {
			return Assignment{}, core.NewValidationError(ErrUnknownLevel,
				core.FieldError{Field: "belt_level_id", Error: ErrUnknownLevel.Error()})
		}
		return Assignment{}, errors.Wrap(err, "finding level")
	}

	var res Assignment
	class := svc.catalog.Classify(stud.Program)
	if !svc.catalog.applies(lvl, class) {
		res.Notice = fmt.Sprintf("%s is outside the %s progression", lvl.Label, class.Discipline.Label)
	}

	now := nowFunc().UTC()
	rec := Record{
		StudentID:   stud.ID,
		LevelID:     lvl.ID,
		Status:      na.Status,
		StripeCount: na.StripeCount,
		CoachNotes:  na.CoachNotes,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if na.AssessmentDate != nil {
		d := na.AssessmentDate.UTC()
		rec.AssessmentDate = &d
	}

	res.Record, err = svc.repo.CreateProgress(ctx, rec)
	if err != nil {
		return Assignment{}, svc.integrityError(err, "creating progress record")
	}
	return res, nil
}

func (svc *Service) integrityError(err error, msg string) error {
	switch errors.Cause(err) {
	case ErrUnknownStudent:
		return core.NewValidationError(err, core.FieldError{Field: "student_id", Error: ErrUnknownStudent.Error()})
	case ErrUnknownLevel:
		return core.NewValidationError(err, core.FieldError{Field: "belt_level_id", Error: ErrUnknownLevel.Error()})
	case ErrInactiveRecord:
		return core.NewValidationError(err, core.FieldError{Field: "id", Error: ErrInactiveRecord.Error()})
	case ErrNotFound:
		return ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Record, error) {
	return svc.repo.GetProgress(ctx, core.CleanString(id))
}

// Update applies a partial update. Only the provided fields change.
func (svc *Service) Update(ctx context.Context, id string, up UpdateProgress) (Record, error) {
	if err := up.Validate(svc.validate); err != nil {
		return Record{}, err
	}
	rec, err := svc.GetByID(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if up.IsEmpty() {
		return rec, nil
	}
	if up.Status != nil && !svc.transitions.Allows(rec.Status, *up.Status) {
		return Record{}, core.NewValidationError(ErrTransitionNotAllowed, core.FieldError{
			Field: "status",
			Error: fmt.Sprintf("cannot move from %s to %s", rec.Status, *up.Status),
		})
	}

	up.apply(&rec)
	rec.UpdatedAt = nowFunc().UTC()
	rec, err = svc.repo.UpdateProgress(ctx, rec)
	if err != nil {
		return Record{}, svc.integrityError(err, "updating progress record")
	}
	return rec, nil
}

// Promote marks the record passed and archives it, then assigns the student to the next level.
func (svc *Service) Promote(ctx context.Context, id string) (Promotion, error) {
	prev, err := svc.GetByID(ctx, id)
	if err != nil {
		return Promotion{}, err
	}
	if !prev.Active {
		return Promotion{}, core.NewValidationError(ErrInactiveRecord,
			core.FieldError{Field: "id", Error: ErrInactiveRecord.Error()})
	}
	if !svc.transitions.Allows(prev.Status, StatusPassed) {
		return Promotion{}, core.NewValidationError(ErrTransitionNotAllowed, core.FieldError{
			Field: "status",
			Error: fmt.Sprintf("cannot move from %s to %s", prev.Status, StatusPassed),
		})
	}

	lvl, err := svc.repo.GetLevel(ctx, prev.LevelID)
	if err != nil {
		return Promotion{}, errors.Wrap(err, "finding current level")
	}
	if lvl.NextLevelID == "" {
		return Promotion{}, core.NewValidationError(ErrNoNextLevel,
			core.FieldError{Field: "belt_level_id", Error: fmt.Sprintf("%s is the last level", lvl.Label)})
	}

	now := nowFunc().UTC()
	prev.Status = StatusPassed
	prev.Active = false
	if prev.AssessmentDate == nil {
		today := now.Truncate(24 * time.Hour)
		prev.AssessmentDate = &today
	}
	prev.UpdatedAt = now

	next := Record{
		StudentID: prev.StudentID,
		LevelID:   lvl.NextLevelID,
		Status:    StatusNeedsWork,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	promo, err := svc.repo.PromoteProgress(ctx, prev, next)
	if err != nil {
		return Promotion{}, svc.integrityError(err, "promoting student")
	}
	return promo, nil
}

// Query lists progress records. filter.ReadyOnly narrows the result to students ready for testing.
func (svc *Service) Query(ctx context.Context, filter *QueryFilter) ([]Record, error) {
	if filter != nil {
		filter.Clean()
	}
	records, err := svc.repo.QueryProgress(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "querying progress")
	}
	if filter != nil && filter.ReadyOnly {
		records = FilterReadyForTesting(records)
	}
	return records, nil
}
