package fee_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EllowDigital/GSAI-IN-sub000/core"
	"github.com/EllowDigital/GSAI-IN-sub000/core/fee"
	"github.com/EllowDigital/GSAI-IN-sub000/core/student"
	"github.com/EllowDigital/GSAI-IN-sub000/services/email"
	"github.com/EllowDigital/GSAI-IN-sub000/storage/database/inmem"
	"github.com/EllowDigital/GSAI-IN-sub000/tests"
)

type fixture struct {
	svc      *fee.Service
	repo     fee.Repository
	students student.Repository
	mailSvc  *emailsvc.ConsoleServiceMock
}

func setup(t *testing.T) fixture {
	db := inmemdb.Open()
	f := fixture{
		repo:     inmemdb.NewFeeRepository(db),
		students: inmemdb.NewStudentRepository(db),
		mailSvc:  emailsvc.NewConsoleServiceMock(testutil.Config()),
	}
	f.svc = fee.NewService(f.repo, f.students, f.mailSvc, testutil.Validator(), testutil.Logger())
	return f
}

func TestService_RecordPayment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	stud := testutil.CreateStudent(t, f.students, "Arjun Nair", "Karate", "2000", true)

	tests := []struct {
		name       string
		payment    fee.NewPayment
		wantErr    error
		wantField  string
		wantStatus fee.Status
		wantDue    string
	}{
		{
			name:      "paid above monthly fee",
			payment:   fee.NewPayment{StudentID: stud.ID, Year: 2025, Month: 6, MonthlyFee: testutil.Amount("2000"), PaidAmount: testutil.Amount("2500")},
			wantErr:   fee.ErrExceedsMonthlyFee,
			wantField: "paid_amount",
		},
		{
			name:      "unknown student",
			payment:   fee.NewPayment{StudentID: "nobody", Year: 2025, Month: 6, MonthlyFee: testutil.Amount("2000")},
			wantErr:   fee.ErrUnknownStudent,
			wantField: "student_id",
		},
		{
			name:       "negative amounts are clamped",
			payment:    fee.NewPayment{StudentID: stud.ID, Year: 2025, Month: 4, MonthlyFee: testutil.Amount("2000"), PaidAmount: testutil.Amount("-5")},
			wantStatus: fee.StatusUnpaid,
			wantDue:    "2000",
		},
		{
			name:       "partial payment",
			payment:    fee.NewPayment{StudentID: stud.ID, Year: 2025, Month: 5, MonthlyFee: testutil.Amount("2000"), PaidAmount: testutil.Amount("800")},
			wantStatus: fee.StatusPartial,
			wantDue:    "1200",
		},
		{
			name:       "sub-cent payment rounds to cents",
			payment:    fee.NewPayment{StudentID: stud.ID, Year: 2025, Month: 3, MonthlyFee: testutil.Amount("2000"), PaidAmount: testutil.Amount("1999.999")},
			wantStatus: fee.StatusPaid,
			wantDue:    "0",
		},
		{
			name:       "sub-cent balance stays partial",
			payment:    fee.NewPayment{StudentID: stud.ID, Year: 2025, Month: 2, MonthlyFee: testutil.Amount("2000.004"), PaidAmount: testutil.Amount("1999.994")},
			wantStatus: fee.StatusPartial,
			wantDue:    "0.01",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before, err := f.repo.QueryFees(ctx, nil, nil)
			require.NoError(t, err)

			got, err := f.svc.RecordPayment(ctx, tt.payment)
			if tt.wantErr != nil {
				require.Error(t, err)
				verr, ok := errors.Cause(err).(*core.ValidationError)
				require.True(t, ok, "error %v is not a validation error", err)
				assert.Equal(t, tt.wantErr, errors.Cause(verr.Err))
				require.Len(t, verr.Fields, 1)
				assert.Equal(t, tt.wantField, verr.Fields[0].Field)

				after, err := f.repo.QueryFees(ctx, nil, nil)
				require.NoError(t, err)
				assert.Len(t, after, len(before), "nothing must be written")
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, got.ID)
			assert.Equal(t, tt.wantStatus, got.Status)
			assert.True(t, got.BalanceDue.Equal(testutil.Amount(tt.wantDue)), "BalanceDue = %v", got.BalanceDue)
		})
	}
}

func TestService_RecordPayment_samePeriodUpdates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	stud := testutil.CreateStudent(t, f.students, "Meera Pillai", "BJJ", "2000", true)

	first, err := f.svc.RecordPayment(ctx, fee.NewPayment{
		StudentID: stud.ID, Year: 2025, Month: 6, MonthlyFee: testutil.Amount("2000"), PaidAmount: testutil.Amount("500"),
	})
	require.NoError(t, err)

	second, err := f.svc.RecordPayment(ctx, fee.NewPayment{
		StudentID: stud.ID, Year: 2025, Month: 6, MonthlyFee: testutil.Amount("2000"), PaidAmount: testutil.Amount("2000"),
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, fee.StatusPaid, second.Status)

	records, err := f.svc.Query(ctx, &fee.QueryFilter{StudentID: stud.ID}, nil)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	t.Run("update by id", func(t *testing.T) {
		upd, err := f.svc.RecordPayment(ctx, fee.NewPayment{
			ID: second.ID, StudentID: stud.ID, Year: 2025, Month: 6, MonthlyFee: testutil.Amount("2000"), PaidAmount: testutil.Amount("1000"), Notes: "refund",
		})
		require.NoError(t, err)
		assert.Equal(t, fee.StatusPartial, upd.Status)
		assert.Equal(t, "refund", upd.Notes)
	})

	t.Run("moving onto a taken period", func(t *testing.T) {
		may, err := f.svc.RecordPayment(ctx, fee.NewPayment{
			StudentID: stud.ID, Year: 2025, Month: 5, MonthlyFee: testutil.Amount("2000"),
		})
		require.NoError(t, err)
		_, err = f.svc.RecordPayment(ctx, fee.NewPayment{
			ID: may.ID, StudentID: stud.ID, Year: 2025, Month: 6, MonthlyFee: testutil.Amount("2000"),
		})
		assert.True(t, core.IsValidationError(err), "error = %v", err)
	})
}

func TestService_Query(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	s1 := testutil.CreateStudent(t, f.students, "A", "Karate", "2000", true)
	s2 := testutil.CreateStudent(t, f.students, "B", "Boxing", "1500", true)
	testutil.CreateFee(t, f.repo, s1.ID, 2025, 5, "2000", "2000")
	testutil.CreateFee(t, f.repo, s1.ID, 2025, 6, "2000", "0")
	testutil.CreateFee(t, f.repo, s2.ID, 2025, 6, "1500", "700")

	tests := []struct {
		name     string
		filter   *fee.QueryFilter
		ordering []core.DBOrdering
		wantLen  int
		wantErr  bool
	}{
		{name: "all", wantLen: 3},
		{name: "by student", filter: &fee.QueryFilter{StudentID: s1.ID}, wantLen: 2},
		{name: "by period", filter: &fee.QueryFilter{Year: 2025, Month: 6}, wantLen: 2},
		{name: "by statuses", filter: &fee.QueryFilter{Statuses: []string{"partial,UNPAID"}}, wantLen: 2},
		{name: "invalid status ignored", filter: &fee.QueryFilter{Statuses: []string{"lol"}}, wantLen: 3},
		{name: "ordering", ordering: []core.DBOrdering{{Field: "paid_amount", Ascending: true}}, wantLen: 3},
		{name: "invalid ordering", ordering: []core.DBOrdering{{Field: "password"}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.Query(ctx, tt.filter, tt.ordering)
			if tt.wantErr {
				assert.True(t, core.IsValidationError(err), "error = %v", err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.wantLen)
		})
	}

	sum, err := f.svc.Summary(ctx, &fee.QueryFilter{Year: 2025, Month: 6})
	require.NoError(t, err)
	assert.True(t, sum.Collected.IsZero())
	assert.True(t, sum.Pending.Equal(testutil.Amount("800")))
	assert.True(t, sum.Overdue.Equal(testutil.Amount("2000")))
}

func TestService_Ledger(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	stud := testutil.CreateStudent(t, f.students, "Kavya", "Taekwondo", "1800", true)
	testutil.CreateFee(t, f.repo, stud.ID, 2025, 5, "2000", "800")

	entry, err := f.svc.Ledger(ctx, stud.ID, 2025, 6)
	require.NoError(t, err)
	assert.False(t, entry.Exists)
	assert.True(t, entry.Record.MonthlyFee.Equal(testutil.Amount("1800")))
	assert.True(t, entry.CarryForward.Equal(testutil.Amount("1200")))
	assert.True(t, entry.TotalDue.Equal(testutil.Amount("3000")))

	_, err = f.svc.Ledger(ctx, stud.ID, 2025, 13)
	assert.True(t, core.IsValidationError(err))

	_, err = f.svc.Ledger(ctx, "nobody", 2025, 6)
	assert.Equal(t, student.ErrNotFound, errors.Cause(err))
}

func TestService_SendReminders(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	owing := testutil.CreateStudent(t, f.students, "Owing Student", "Karate", "2000", true)
	settled := testutil.CreateStudent(t, f.students, "Settled Student", "Karate", "2000", true)
	inactive := testutil.CreateStudent(t, f.students, "Inactive Student", "Karate", "2000", false)
	testutil.CreateFee(t, f.repo, owing.ID, 2025, 5, "2000", "800")
	testutil.CreateFee(t, f.repo, settled.ID, 2025, 6, "2000", "2000")
	testutil.CreateFee(t, f.repo, inactive.ID, 2025, 6, "2000", "0")

	n, err := f.svc.SendReminders(ctx, 2025, 6)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	sent := f.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	msg := sent[0]
	assert.Equal(t, owing.Email, msg.To[0].Address)
	assert.Equal(t, "Fee reminder for June 2025", msg.Subject)
	assert.Contains(t, msg.TextContent, "Total due: 3200.00")
	assert.Contains(t, msg.TextContent, "Carried forward from previous months: 1200.00")
	assert.Contains(t, msg.HTMLContent, "Owing Student")

	for _, month := range []int{0, 13} {
		_, err := f.svc.SendReminders(ctx, 2025, month)
		assert.True(t, core.IsValidationError(err), "month %d: error = %v", month, err)
	}
	assert.Len(t, f.mailSvc.SentMessages(), 1, "invalid periods send nothing")
}

func TestService_Export(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	defer fee.SetNowFunc(func() time.Time { return time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC) })()

	stud := testutil.CreateStudent(t, f.students, "Rohan", "Boxing", "1500", true)
	_, err := f.svc.RecordPayment(ctx, fee.NewPayment{StudentID: stud.ID, Year: 2025, Month: 5, MonthlyFee: testutil.Amount("1500"), PaidAmount: testutil.Amount("1500")})
	require.NoError(t, err)
	_, err = f.svc.RecordPayment(ctx, fee.NewPayment{StudentID: stud.ID, Year: 2025, Month: 6, MonthlyFee: testutil.Amount("1500"), PaidAmount: testutil.Amount("500"), Notes: "cash, partial"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.svc.Export(ctx, &buf, &fee.QueryFilter{StudentID: stud.ID}))

	want := strings.Join([]string{
		"student_id,student_name,year,month,monthly_fee,paid_amount,balance_due,status,notes",
		stud.ID + ",Rohan,2025,5,1500.00,1500.00,0.00,paid,",
		stud.ID + ",Rohan,2025,6,1500.00,500.00,1000.00,partial,\"cash, partial\"",
		"",
	}, "\n")
	if got := buf.String(); got != want {
		diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(want),
			B:        difflib.SplitLines(got),
			FromFile: "want",
			ToFile:   "got",
			Context:  1,
		})
		t.Errorf("Export() mismatch:\n%s", diff)
	}
}

func TestService_EmailExport(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	defer fee.SetNowFunc(func() time.Time { return time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC) })()

	stud := testutil.CreateStudent(t, f.students, "Rohan", "Boxing", "1500", true)
	testutil.CreateFee(t, f.repo, stud.ID, 2025, 6, "1500", "500")

	_, err := f.svc.EmailExport(ctx, "not an address", nil)
	assert.True(t, core.IsValidationError(err), "error = %v", err)
	assert.Empty(t, f.mailSvc.SentMessages())

	n, err := f.svc.EmailExport(ctx, " Treasurer <treasurer@test.local> ", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	sent := f.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	msg := sent[0]
	assert.Equal(t, "treasurer@test.local", msg.To[0].Address)
	assert.Equal(t, "Fee export of 2025-06-10", msg.Subject)
	assert.Equal(t, "1 fee records are attached.", msg.TextContent)
	require.Len(t, msg.Attachments, 1)
	at := msg.Attachments[0]
	assert.Equal(t, "fees-2025-06-10.csv", at.Filename)
	assert.Equal(t, "text/csv", at.ContentType)

	csv, err := base64.StdEncoding.DecodeString(at.Content.String())
	require.NoError(t, err)
	assert.Contains(t, string(csv), stud.ID+",Rohan,2025,6,1500.00,500.00,1000.00,partial,")
}
