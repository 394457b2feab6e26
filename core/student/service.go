package student

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/EllowDigital/GSAI-IN-sub000/core"
)

var ErrNotFound = errors.New("student not found")

// Repository is the persistence collaborator for students.
type Repository interface {
	CreateStudent(ctx context.Context, stud Student) (Student, error)
	GetStudent(ctx context.Context, id string) (Student, error)
	// QueryStudents applies AND operation on available QueryFilter fields.
	// QueryFilter.Search does a case-insensitive match on one of Student.Name or Student.Email.
	QueryStudents(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error)
	UpdateStudent(ctx context.Context, stud Student) (Student, error)
}

type Service struct {
	repo     Repository
	validate *validator.Validate
}

func NewService(repo Repository, validate *validator.Validate) *Service {
	return &Service{repo: repo, validate: validate}
}

var nowFunc = time.Now // mockable

func (svc *Service) Create(ctx context.Context, ns NewStudent) (Student, error) {
	if err := ns.Validate(svc.validate); err != nil {
		return Student{}, err
	}
	now := nowFunc().UTC()
	joined := ns.JoinedAt
	if joined.IsZero() {
		joined = now
	}
	stud, err := svc.repo.CreateStudent(ctx, Student{
		Name:       ns.Name,
		Email:      ns.Email,
		Program:    ns.Program,
		MonthlyFee: ns.MonthlyFee,
		IsActive:   true,
		JoinedAt:   joined.UTC().Truncate(24 * time.Hour),
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	return stud, errors.Wrap(err, "creating student")
}

func (svc *Service) GetByID(ctx context.Context, id string) (Student, error) {
	return svc.repo.GetStudent(ctx, core.CleanString(id))
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Student, error) {
	if err := core.CheckOrderings(ordering, Orderings...); err != nil {
		return nil, err
	}
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryStudents(ctx, filter, ordering)
}

func (svc *Service) Update(ctx context.Context, id string, us UpdateStudent) (Student, error) {
	if err := us.Validate(svc.validate); err != nil {
		return Student{}, err
	}
	stud, err := svc.GetByID(ctx, id)
	if err != nil {
		return Student{}, err
	}
	us.apply(&stud)
	stud.UpdatedAt = nowFunc().UTC()
	stud, err = svc.repo.UpdateStudent(ctx, stud)
	return stud, errors.Wrap(err, "updating student")
}
