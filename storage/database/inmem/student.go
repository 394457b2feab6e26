package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/EllowDigital/GSAI-IN-sub000/core"
	"github.com/EllowDigital/GSAI-IN-sub000/core/student"
)

type studentRepository struct {
	db *studentTable
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) *studentRepository {
	return &studentRepository{db: db.student}
}

func (repo *studentRepository) CreateStudent(_ context.Context, stud student.Student) (student.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stud.ID = uuid.New().String()
	repo.db.table[stud.ID] = &stud
	return stud, nil
}

func (repo *studentRepository) GetStudent(_ context.Context, id string) (student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if stud, ok := repo.db.table[id]; ok {
		return *stud, nil
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) QueryStudents(_ context.Context, filter *student.QueryFilter, ordering []core.DBOrdering) ([]student.Student, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	students := make([]student.Student, 0, len(repo.db.table))
	for _, stud := range repo.db.table {
		if matchStudent(filter, *stud) {
			students = append(students, *stud)
		}
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "name", Ascending: true}}
	}
	sort.SliceStable(students, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareStudents(students[i], students[j], ord.Field)
			if c != 0 {
				return (c < 0) == ord.Ascending
			}
		}
		return students[i].ID < students[j].ID
	})
	return students, nil
}

func (repo *studentRepository) UpdateStudent(_ context.Context, stud student.Student) (student.Student, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.table[stud.ID]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	stud.CreatedAt = orig.CreatedAt
	repo.db.table[stud.ID] = &stud
	return stud, nil
}

func matchStudent(filter *student.QueryFilter, stud student.Student) bool {
	if filter == nil {
		return true
	}
	if filter.Search != "" {
		kw := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(stud.Name), kw) && !strings.Contains(strings.ToLower(stud.Email), kw) {
			return false
		}
	}
	if filter.Program != "" && !strings.EqualFold(filter.Program, stud.Program) {
		return false
	}
	if filter.IsActive != nil && stud.IsActive != *filter.IsActive {
		return false
	}
	return true
}

func compareStudents(a, b student.Student, field string) int {
	switch field {
	case "name":
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	case "program":
		return strings.Compare(a.Program, b.Program)
	case "joined_at":
		return compareTimes(a.JoinedAt, b.JoinedAt)
	case "created_at":
		return compareTimes(a.CreatedAt, b.CreatedAt)
	}
	return 0
}
