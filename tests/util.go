// Package testutil holds helpers shared by the test suites.
package testutil

import (
	"context"
	"io/ioutil"
	"log"
	"net/mail"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/EllowDigital/GSAI-IN-sub000/core"
	"github.com/EllowDigital/GSAI-IN-sub000/core/fee"
	"github.com/EllowDigital/GSAI-IN-sub000/core/progression"
	"github.com/EllowDigital/GSAI-IN-sub000/core/student"
	"github.com/EllowDigital/GSAI-IN-sub000/services/logger"
)

// Level IDs of the ladder returned by Ladder.
const (
	WhiteBeltID  = "9f0a3f4e-0000-4000-8000-000000000001"
	YellowBeltID = "9f0a3f4e-0000-4000-8000-000000000002"
	GreenBeltID  = "9f0a3f4e-0000-4000-8000-000000000003"
	BJJWhiteID   = "9f0a3f4e-0000-4000-8000-000000000011"
	BJJBlueID    = "9f0a3f4e-0000-4000-8000-000000000012"
	FoundationID = "9f0a3f4e-0000-4000-8000-000000000021"
	AdvancedID   = "9f0a3f4e-0000-4000-8000-000000000022"
)

// Config returns a TEST configuration that does not read the environment.
func Config() *core.Config {
	return &core.Config{
		Env:              "TEST",
		Build:            "test",
		Debug:            true,
		TestMode:         true,
		AppName:          "Test Academy",
		SecretKey:        "test-secret-key-with-at-least-32-characters",
		JWTAudience:      "authenticated",
		FrontendBaseURL:  "http://localhost:5173",
		DefaultFromEmail: mail.Address{Name: "Test Academy", Address: "noreply@test.local"},
		Reminders:        core.RemindersConfig{Schedule: "0 9 5 * *"},
	}
}

// Validator returns a validator wired like the API's.
func Validator() *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())
	return validate
}

func Amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func CreateStudent(t *testing.T, repo student.Repository, name, program, monthlyFee string, isActive bool) student.Student {
	t.Helper()
	now := time.Now().UTC()
	stud, err := repo.CreateStudent(context.Background(), student.Student{
		Name:       name,
		Email:      core.NormalizeKey(name) + "@test.local",
		Program:    program,
		MonthlyFee: Amount(monthlyFee),
		IsActive:   isActive,
		JoinedAt:   now.Truncate(24 * time.Hour),
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return stud
}

// CreateFee stores a fee record with derived fields computed from fee and paid.
func CreateFee(t *testing.T, repo fee.Repository, studentID string, year, month int, monthlyFee, paid string) fee.Record {
	t.Helper()
	now := time.Now().UTC()
	rec := fee.Record{
		StudentID:  studentID,
		Year:       year,
		Month:      month,
		MonthlyFee: Amount(monthlyFee),
		PaidAmount: Amount(paid),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	rec.BalanceDue = fee.ComputeBalance(rec.MonthlyFee, rec.PaidAmount)
	rec.Status = fee.ComputeStatus(rec.MonthlyFee, rec.PaidAmount)
	rec, err := repo.UpsertFee(context.Background(), rec)
	if err != nil {
		t.Fatalf("CreateFee() failed: %v", err)
	}
	return rec
}

// Ladder returns a small ladder: a general belt chain, a BJJ chain and two general levels without next.
func Ladder() []progression.Level {
	return []progression.Level{
		{ID: WhiteBeltID, Rank: 1, Label: "White", NextLevelID: YellowBeltID},
		{ID: YellowBeltID, Rank: 2, Label: "Yellow", NextLevelID: GreenBeltID},
		{ID: GreenBeltID, Rank: 3, Label: "Green"},
		{ID: BJJWhiteID, Discipline: "bjj", Rank: 1, Label: "BJJ White", NextLevelID: BJJBlueID},
		{ID: BJJBlueID, Discipline: "bjj", Rank: 2, Label: "BJJ Blue"},
		{ID: FoundationID, Discipline: "mma", Rank: 1, Label: "Foundation", NextLevelID: AdvancedID},
		{ID: AdvancedID, Discipline: "mma", Rank: 2, Label: "Advanced"},
	}
}

func SeedLevels(t *testing.T, repo progression.Repository, levels ...progression.Level) {
	t.Helper()
	if len(levels) == 0 {
		levels = Ladder()
	}
	if err := repo.SaveLevels(context.Background(), levels); err != nil {
		t.Fatalf("SeedLevels() failed: %v", err)
	}
}

// Logger returns a logger reporting nowhere.
func Logger() core.Logger {
	return logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), Config())
}
