package student

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/EllowDigital/GSAI-IN-sub000/core"
)

type Student struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	Program    string          `json:"program"`     // e.g. "Karate", "BJJ", "MMA"
	MonthlyFee decimal.Decimal `json:"monthly_fee"` // default fee billed each period
	IsActive   bool            `json:"is_active"`
	JoinedAt   time.Time       `json:"joined_at"`
	CreatedAt  time.Time       `json:"created_at"` // UTC
	UpdatedAt  time.Time       `json:"updated_at"` // UTC
}

// NewStudent contains information needed to create a new Student.
type NewStudent struct {
	Name       string          `json:"name" validate:"required,max=120"`
	Email      string          `json:"email" validate:"omitempty,email"`
	Program    string          `json:"program" validate:"required,max=60"`
	MonthlyFee decimal.Decimal `json:"monthly_fee" validate:"gte=0"`
	JoinedAt   time.Time       `json:"joined_at"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Program = core.CleanString(ns.Program)
	return validate.Struct(ns)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
// Omitted fields keep their current values.
type UpdateStudent struct {
	Name       *string          `json:"name" validate:"omitempty,min=1,max=120"`
	Email      *string          `json:"email" validate:"omitempty,email"`
	Program    *string          `json:"program" validate:"omitempty,min=1,max=60"`
	MonthlyFee *decimal.Decimal `json:"monthly_fee" validate:"omitempty,gte=0"`
	IsActive   *bool            `json:"is_active"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	clean := func(s *string, lower bool) {
		if s != nil {
			*s = core.CleanString(*s, lower)
		}
	}
	clean(us.Name, false)
	clean(us.Email, true)
	clean(us.Program, false)
	return validate.Struct(us)
}

// apply copies the set fields onto stud.
func (us UpdateStudent) apply(stud *Student) {
	if us.Name != nil {
		stud.Name = *us.Name
	}
	if us.Email != nil {
		stud.Email = *us.Email
	}
	if us.Program != nil {
		stud.Program = *us.Program
	}
	if us.MonthlyFee != nil {
		stud.MonthlyFee = *us.MonthlyFee
	}
	if us.IsActive != nil {
		stud.IsActive = *us.IsActive
	}
}

type QueryFilter struct {
	Search   string `query:"search"`
	Program  string `query:"program"`
	IsActive *bool  `query:"is_active"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Program == "" && qf.IsActive == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Program = core.CleanString(qf.Program)
}

var Orderings = []string{"name", "program", "joined_at", "created_at"}
