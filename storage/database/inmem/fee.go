package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/EllowDigital/GSAI-IN-sub000/core"
	"github.com/EllowDigital/GSAI-IN-sub000/core/fee"
)

type feeRepository struct {
	db    *DB
	table *feeTable
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(db *DB) *feeRepository {
	return &feeRepository{db: db, table: db.fee}
}

func (repo *feeRepository) QueryFees(_ context.Context, filter *fee.QueryFilter, ordering []core.DBOrdering) ([]fee.Record, error) {
	repo.table.RLock()
	defer repo.table.RUnlock()

	records := make([]fee.Record, 0, len(repo.table.table))
	for _, rec := range repo.table.table {
		if filter.Match(*rec) {
			records = append(records, *rec)
		}
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "year"}, {Field: "month"}}
	}
	sort.SliceStable(records, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareFees(records[i], records[j], ord.Field)
			if c != 0 {
				return (c < 0) == ord.Ascending
			}
		}
		return records[i].StudentID < records[j].StudentID
	})
	return records, nil
}

func (repo *feeRepository) GetFee(_ context.Context, id string) (fee.Record, error) {
	repo.table.RLock()
	defer repo.table.RUnlock()

	if rec, ok := repo.table.table[id]; ok {
		return *rec, nil
	}
	return fee.Record{}, fee.ErrNotFound
}

func (repo *feeRepository) UpsertFee(_ context.Context, rec fee.Record) (fee.Record, error) {
	if !repo.db.studentExists(rec.StudentID) {
		return fee.Record{}, fee.ErrUnknownStudent
	}

	repo.table.Lock()
	defer repo.table.Unlock()

	var existing *fee.Record
	for _, r := range repo.table.table {
		if r.StudentID == rec.StudentID && r.Year == rec.Year && r.Month == rec.Month {
			existing = r
			break
		}
	}

	if rec.ID == "" {
		if existing == nil {
			rec.ID = uuid.New().String()
			repo.table.table[rec.ID] = &rec
			return rec, nil
		}
		rec.ID = existing.ID
	} else {
		orig, ok := repo.table.table[rec.ID]
		if !ok {
			return fee.Record{}, fee.ErrNotFound
		}
		if existing != nil && existing.ID != rec.ID {
			return fee.Record{}, fee.ErrPeriodTaken
		}
		existing = orig
	}

	rec.CreatedAt = existing.CreatedAt
	repo.table.table[rec.ID] = &rec
	return rec, nil
}

func compareFees(a, b fee.Record, field string) int {
	switch field {
	case "year":
		return a.Year - b.Year
	case "month":
		return a.Month - b.Month
	case "monthly_fee":
		return a.MonthlyFee.Cmp(b.MonthlyFee)
	case "paid_amount":
		return a.PaidAmount.Cmp(b.PaidAmount)
	case "balance_due":
		return a.BalanceDue.Cmp(b.BalanceDue)
	case "status":
		return strings.Compare(string(a.Status), string(b.Status))
	case "created_at":
		return compareTimes(a.CreatedAt, b.CreatedAt)
	case "updated_at":
		return compareTimes(a.UpdatedAt, b.UpdatedAt)
	}
	return 0
}

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}
