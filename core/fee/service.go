package fee

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/EllowDigital/GSAI-IN-sub000/core"
	"github.com/EllowDigital/GSAI-IN-sub000/core/student"
)

var (
	ErrNotFound       = errors.New("fee record not found")
	ErrPeriodTaken    = errors.New("a fee record already exists for this period")
	ErrUnknownStudent = errors.New("student does not exist")
)

const reminderTemplate = "fee_reminder"

// Repository is the persistence collaborator for fee records.
// At most one record exists per (student_id, year, month).
type Repository interface {
	QueryFees(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Record, error)
	GetFee(ctx context.Context, id string) (Record, error)
	// UpsertFee inserts rec when rec.ID is empty (updating the period's record if it already exists),
	// otherwise it updates the record in place.
	// It returns ErrUnknownStudent, ErrPeriodTaken or ErrNotFound on integrity failures.
	UpsertFee(ctx context.Context, rec Record) (Record, error)
}

type Service struct {
	repo     Repository
	students student.Repository
	mailSvc  core.EmailService
	validate *validator.Validate
	logger   core.Logger
}

func NewService(
	repo Repository,
	students student.Repository,
	mailSvc core.EmailService,
	validate *validator.Validate,
	logger core.Logger,
) *Service {
	return &Service{
		repo:     repo,
		students: students,
		mailSvc:  mailSvc,
		validate: validate,
		logger:   logger,
	}
}

var nowFunc = time.Now // mockable

// RecordPayment validates the payment, recomputes the derived fields and persists the record.
func (svc *Service) RecordPayment(ctx context.Context, np NewPayment) (Record, error) {
	if err := np.Validate(svc.validate); err != nil {
		return Record{}, err
	}

	now := nowFunc().UTC()
	rec := Record{
		ID:         np.ID,
		StudentID:  np.StudentID,
		Year:       np.Year,
		Month:      np.Month,
		MonthlyFee: np.MonthlyFee,
		PaidAmount: np.PaidAmount,
		Notes:      np.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	rec.recompute()

	saved, err := svc.repo.UpsertFee(ctx, rec)
	if err != nil {
		switch errors.Cause(err) {
		case ErrUnknownStudent:
			return Record{}, core.NewValidationError(err, core.FieldError{Field: "student_id", Error: err.Error()})
		case ErrPeriodTaken:
			return Record{}, core.NewValidationError(err, core.FieldError{Field: "month", Error: err.Error()})
		case ErrNotFound:
			return Record{}, ErrNotFound
		}
		return Record{}, errors.Wrap(err, "upserting fee record")
	}
	return saved, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Record, error) {
	return svc.repo.GetFee(ctx, core.CleanString(id, true /* lower */))
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Record, error) {
	if err := core.CheckOrderings(ordering, Orderings...); err != nil {
		return nil, err
	}
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryFees(ctx, filter, ordering)
}

// Summary rolls up the records matching filter.
func (svc *Service) Summary(ctx context.Context, filter *QueryFilter) (Summary, error) {
	records, err := svc.Query(ctx, filter, nil)
	if err != nil {
		return Summary{}, errors.Wrap(err, "querying fees")
	}
	return Summarize(records), nil
}

// Ledger returns the effective row of the student for (year, month), including carried-forward debt.
func (svc *Service) Ledger(ctx context.Context, studentID string, year, month int) (LedgerEntry, error) {
	period := Period{Year: year, Month: month}
	if err := period.validate(); err != nil {
		return LedgerEntry{}, err
	}

	stud, err := svc.students.GetStudent(ctx, core.CleanString(studentID))
	if err != nil {
		return LedgerEntry{}, errors.Wrap(err, "finding student")
	}
	records, err := svc.repo.QueryFees(ctx, &QueryFilter{StudentID: stud.ID}, nil)
	if err != nil {
		return LedgerEntry{}, errors.Wrap(err, "querying student fees")
	}
	return BuildLedgerEntry(records, stud.ID, period, stud.MonthlyFee), nil
}

// Export writes the records matching filter as CSV.
func (svc *Service) Export(ctx context.Context, w io.Writer, filter *QueryFilter) error {
	_, err := svc.export(ctx, w, filter)
	return err
}

func (svc *Service) export(ctx context.Context, w io.Writer, filter *QueryFilter) (int, error) {
	records, err := svc.Query(ctx, filter, []core.DBOrdering{{Field: "year", Ascending: true}, {Field: "month", Ascending: true}})
	if err != nil {
		return 0, errors.Wrap(err, "querying fees")
	}
	students, err := svc.students.QueryStudents(ctx, nil, nil)
	if err != nil {
		return 0, errors.Wrap(err, "querying students")
	}
	names := make(map[string]string, len(students))
	for _, s := range students {
		names[s.ID] = s.Name
	}
	return len(records), WriteCSV(w, records, names)
}

// EmailExport sends the records matching filter to `to` as a CSV attachment and returns the number of records sent.
func (svc *Service) EmailExport(ctx context.Context, to string, filter *QueryFilter) (int, error) {
	addr, err := mail.ParseAddress(core.CleanString(to))
	if err != nil {
		return 0, core.NewValidationError(err, core.FieldError{Field: "email", Error: "invalid email address"})
	}

	var buf bytes.Buffer
	n, err := svc.export(ctx, &buf, filter)
	if err != nil {
		return 0, err
	}

	day := nowFunc().UTC().Format("2006-01-02")
	msg := &core.EmailMessage{
		To:      []mail.Address{*addr},
		Subject: "Fee export of " + day,
		BodyStr: fmt.Sprintf("%d fee records are attached.", n),
	}
	if err := msg.Attach(&buf, "fees-"+day+".csv", "text/csv"); err != nil {
		return 0, errors.Wrap(err, "attaching export")
	}
	svc.mailSvc.SendMessages(msg)
	return n, nil
}

type reminderData struct {
	StudentName  string
	Period       string
	BalanceDue   string
	CarryForward string
	TotalDue     string
}

// SendReminders e-mails every active student owing money for (year, month) and returns the number of reminders sent.
func (svc *Service) SendReminders(ctx context.Context, year, month int) (int, error) {
	period := Period{Year: year, Month: month}
	if err := period.validate(); err != nil {
		return 0, err
	}

	active := true
	students, err := svc.students.QueryStudents(ctx, &student.QueryFilter{IsActive: &active}, nil)
	if err != nil {
		return 0, errors.Wrap(err, "querying active students")
	}
	records, err := svc.repo.QueryFees(ctx, nil, nil)
	if err != nil {
		return 0, errors.Wrap(err, "querying fees")
	}

	var messages []*core.EmailMessage
	for _, stud := range students {
		if stud.Email == "" {
			continue
		}
		entry := BuildLedgerEntry(records, stud.ID, period, stud.MonthlyFee)
		if !entry.TotalDue.IsPositive() {
			continue
		}
		messages = append(messages, &core.EmailMessage{
			To:           []mail.Address{{Name: stud.Name, Address: stud.Email}},
			Subject:      fmt.Sprintf("Fee reminder for %s", period),
			TemplateName: reminderTemplate,
			TemplateData: reminderData{
				StudentName:  stud.Name,
				Period:       period.String(),
				BalanceDue:   formatAmount(entry.Record.BalanceDue),
				CarryForward: formatAmount(entry.CarryForward),
				TotalDue:     formatAmount(entry.TotalDue),
			},
		})
	}

	if len(messages) > 0 {
		svc.mailSvc.SendMessages(messages...)
	}
	svc.logger.Info(fmt.Sprintf("fee reminders for %s: %d sent", period, len(messages)))
	return len(messages), nil
}

func formatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
