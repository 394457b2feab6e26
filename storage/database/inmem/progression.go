package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/EllowDigital/GSAI-IN-sub000/core/progression"
)

type progressionRepository struct {
	db *DB
}

var _ progression.Repository = (*progressionRepository)(nil) // interface compliance check

func NewProgressionRepository(db *DB) *progressionRepository {
	return &progressionRepository{db: db}
}

func (repo *progressionRepository) QueryLevels(_ context.Context) ([]progression.Level, error) {
	repo.db.level.RLock()
	defer repo.db.level.RUnlock()

	levels := make([]progression.Level, 0, len(repo.db.level.table))
	for _, lvl := range repo.db.level.table {
		levels = append(levels, *lvl)
	}
	sort.SliceStable(levels, func(i, j int) bool {
		if levels[i].Rank != levels[j].Rank {
			return levels[i].Rank < levels[j].Rank
		}
		return levels[i].ID < levels[j].ID
	})
	return levels, nil
}

func (repo *progressionRepository) GetLevel(_ context.Context, id string) (progression.Level, error) {
	repo.db.level.RLock()
	defer repo.db.level.RUnlock()

	if lvl, ok := repo.db.level.table[id]; ok {
		return *lvl, nil
	}
	return progression.Level{}, progression.ErrLevelNotFound
}

func (repo *progressionRepository) SaveLevels(_ context.Context, levels []progression.Level) error {
	repo.db.level.Lock()
	defer repo.db.level.Unlock()

	for i := range levels {
		lvl := levels[i]
		repo.db.level.table[lvl.ID] = &lvl
	}
	return nil
}

func (repo *progressionRepository) QueryProgress(_ context.Context, filter *progression.QueryFilter) ([]progression.Record, error) {
	repo.db.progress.RLock()
	defer repo.db.progress.RUnlock()

	records := make([]progression.Record, 0, len(repo.db.progress.table))
	for _, rec := range repo.db.progress.table {
		if filter.Match(*rec) {
			records = append(records, *rec)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.Before(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

func (repo *progressionRepository) GetProgress(_ context.Context, id string) (progression.Record, error) {
	repo.db.progress.RLock()
	defer repo.db.progress.RUnlock()

	if rec, ok := repo.db.progress.table[id]; ok {
		return *rec, nil
	}
	return progression.Record{}, progression.ErrNotFound
}

func (repo *progressionRepository) checkRefs(rec progression.Record) error {
	if !repo.db.studentExists(rec.StudentID) {
		return progression.ErrUnknownStudent
	}
	if !repo.db.levelExists(rec.LevelID) {
		return progression.ErrUnknownLevel
	}
	return nil
}

func (repo *progressionRepository) CreateProgress(_ context.Context, rec progression.Record) (progression.Record, error) {
	if err := repo.checkRefs(rec); err != nil {
		return progression.Record{}, err
	}

	repo.db.progress.Lock()
	defer repo.db.progress.Unlock()

	rec.ID = uuid.New().String()
	repo.db.progress.table[rec.ID] = &rec
	return rec, nil
}

func (repo *progressionRepository) UpdateProgress(_ context.Context, rec progression.Record) (progression.Record, error) {
	if err := repo.checkRefs(rec); err != nil {
		return progression.Record{}, err
	}

	repo.db.progress.Lock()
	defer repo.db.progress.Unlock()

	orig, ok := repo.db.progress.table[rec.ID]
	if !ok {
		return progression.Record{}, progression.ErrNotFound
	}
	rec.CreatedAt = orig.CreatedAt
	repo.db.progress.table[rec.ID] = &rec
	return rec, nil
}

func (repo *progressionRepository) PromoteProgress(_ context.Context, prev, next progression.Record) (progression.Promotion, error) {
	if err := repo.checkRefs(next); err != nil {
		return progression.Promotion{}, err
	}

	repo.db.progress.Lock()
	defer repo.db.progress.Unlock()

	orig, ok := repo.db.progress.table[prev.ID]
	if !ok {
		return progression.Promotion{}, progression.ErrNotFound
	}
	if !orig.Active {
		return progression.Promotion{}, progression.ErrInactiveRecord
	}
	prev.CreatedAt = orig.CreatedAt
	next.ID = uuid.New().String()
	repo.db.progress.table[prev.ID] = &prev
	repo.db.progress.table[next.ID] = &next
	return progression.Promotion{Previous: prev, Current: next}, nil
}
