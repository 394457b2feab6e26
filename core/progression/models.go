package progression

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/EllowDigital/GSAI-IN-sub000/core"
)

// DisciplineType tells whether a discipline progresses through colored belts or named levels.
type DisciplineType string

const (
	TypeBelt  DisciplineType = "belt"
	TypeLevel DisciplineType = "level"
)

// GeneralKey tags the fallback discipline and the levels shared by every discipline.
const GeneralKey = "general"

// ReadyStripeThreshold is the stripe count from which a student shows up as ready for testing.
const ReadyStripeThreshold = 4

type Discipline struct {
	Key        string         `json:"key"`
	Label      string         `json:"label"`
	Type       DisciplineType `json:"type"`
	HasStripes bool           `json:"has_stripes"`
	MaxStripes int            `json:"max_stripes"`
	Synonyms   []string       `json:"synonyms,omitempty"`
}

type Classification struct {
	Program    string     `json:"program"`
	Discipline Discipline `json:"discipline"`
	Fallback   bool       `json:"fallback"` // true when the program is not in the catalog
}

func (c Classification) Type() DisciplineType { return c.Discipline.Type }

// Level is one rank within a discipline's progression ladder (a belt or a named level).
type Level struct {
	ID           string          `json:"id" validate:"required"`
	Discipline   string          `json:"discipline" validate:"omitempty,max=50,alphanum_"` // a discipline key; "" means general
	Rank         int             `json:"rank"`
	Label        string          `json:"label" validate:"required,max=100"` // belt color or level name
	NextLevelID  string          `json:"next_level_id"`
	Requirements json.RawMessage `json:"requirements,omitempty"`
}

func (l Level) IsGeneral() bool {
	k := core.NormalizeKey(l.Discipline)
	return k == "" || k == GeneralKey
}

type Status string

const (
	StatusNeedsWork Status = "needs_work"
	StatusReady     Status = "ready"
	StatusPassed    Status = "passed"
	StatusDeferred  Status = "deferred"
)

var Statuses = []Status{StatusNeedsWork, StatusReady, StatusPassed, StatusDeferred}

// ParseStatus parses a string into a Status, case-insensitive.
func ParseStatus(s string) (Status, error) {
	switch st := Status(core.CleanString(s, true /* lower */)); st {
	case StatusNeedsWork, StatusReady, StatusPassed, StatusDeferred:
		return st, nil
	default:
		return "", fmt.Errorf("invalid progress status: %q", s)
	}
}

func (s Status) String() string { return string(s) }

// Record assigns one student to one level.
// Inactive records are history (e.g. levels the student was promoted from).
type Record struct {
	ID             string     `json:"id"`
	StudentID      string     `json:"student_id"`
	LevelID        string     `json:"belt_level_id"`
	Status         Status     `json:"status"`
	StripeCount    int        `json:"stripe_count"`
	CoachNotes     string     `json:"coach_notes"`
	AssessmentDate *time.Time `json:"assessment_date"`
	Active         bool       `json:"active"`
	CreatedAt      time.Time  `json:"created_at"` // UTC
	UpdatedAt      time.Time  `json:"updated_at"` // UTC
}

// NewAssignment contains information needed to assign a student to a level.
type NewAssignment struct {
	StudentID      string     `json:"student_id" validate:"required"`
	LevelID        string     `json:"belt_level_id" validate:"required"`
	Status         Status     `json:"status" validate:"omitempty,oneof=needs_work ready passed deferred"`
	StripeCount    int        `json:"stripe_count" validate:"min=0"`
	CoachNotes     string     `json:"coach_notes" validate:"max=2000"`
	AssessmentDate *time.Time `json:"assessment_date"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.StudentID = core.CleanString(na.StudentID)
	na.LevelID = core.CleanString(na.LevelID)
	na.Status = Status(core.CleanString(string(na.Status), true /* lower */))
	if na.Status == "" {
		na.Status = StatusNeedsWork
	}
	na.CoachNotes = core.CleanString(na.CoachNotes)
	return validate.Struct(na)
}

// UpdateProgress defines what may change on a progress record. Omitted fields keep their values.
type UpdateProgress struct {
	Status         *Status    `json:"status" validate:"omitempty,oneof=needs_work ready passed deferred"`
	CoachNotes     *string    `json:"coach_notes" validate:"omitempty,max=2000"`
	AssessmentDate *time.Time `json:"assessment_date"`
	StripeCount    *int       `json:"stripe_count" validate:"omitempty,min=0"`
}

func (up *UpdateProgress) Validate(validate *validator.Validate) error {
	if up.Status != nil {
		st := Status(core.CleanString(string(*up.Status), true /* lower */))
		up.Status = &st
	}
	if up.CoachNotes != nil {
		notes := core.CleanString(*up.CoachNotes)
		up.CoachNotes = &notes
	}
	return validate.Struct(up)
}

func (up UpdateProgress) IsEmpty() bool {
	return up.Status == nil && up.CoachNotes == nil && up.AssessmentDate == nil && up.StripeCount == nil
}

// apply copies the set fields onto rec.
func (up UpdateProgress) apply(rec *Record) {
	if up.Status != nil {
		rec.Status = *up.Status
	}
	if up.CoachNotes != nil {
		rec.CoachNotes = *up.CoachNotes
	}
	if up.AssessmentDate != nil {
		d := up.AssessmentDate.UTC()
		rec.AssessmentDate = &d
	}
	if up.StripeCount != nil {
		rec.StripeCount = *up.StripeCount
	}
}

type QueryFilter struct {
	StudentID string   `query:"student_id"`
	LevelID   string   `query:"belt_level_id"`
	Statuses  []string `query:"status"`
	Active    *bool    `query:"active"`
	ReadyOnly bool     `query:"ready"` // "ready for testing" view
}

func (qf *QueryFilter) Clean() {
	qf.StudentID = core.CleanString(qf.StudentID)
	qf.LevelID = core.CleanString(qf.LevelID)
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

// Match reports whether rec satisfies the stored-field criteria of the filter (ReadyOnly excluded).
func (qf *QueryFilter) Match(rec Record) bool {
	if qf == nil {
		return true
	}
	if qf.StudentID != "" && rec.StudentID != qf.StudentID {
		return false
	}
	if qf.LevelID != "" && rec.LevelID != qf.LevelID {
		return false
	}
	if qf.Active != nil && rec.Active != *qf.Active {
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

// Filtered is the ordered set of levels offered for a program.
type Filtered struct {
	Classification Classification `json:"classification"`
	Levels         []Level        `json:"levels"`
	UsedFallback   bool           `json:"used_fallback"`
	Notice         string         `json:"notice,omitempty"` // non-fatal, for display
}

// Assignment is the result of assigning a student to a level.
type Assignment struct {
	Record Record `json:"record"`
	Notice string `json:"notice,omitempty"` // set when the level is outside the student's discipline
}

// Promotion is the result of promoting a student to the next level.
type Promotion struct {
	Previous Record `json:"previous"`
	Current  Record `json:"current"`
}
