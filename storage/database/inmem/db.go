package inmemdb

import (
	"sync"

	"github.com/EllowDigital/GSAI-IN-sub000/core/fee"
	"github.com/EllowDigital/GSAI-IN-sub000/core/progression"
	"github.com/EllowDigital/GSAI-IN-sub000/core/student"
)

type (
	// DB keeps every table in memory. It is used by tests and when `database.inMemory` is set.
	DB struct {
		student  *studentTable
		fee      *feeTable
		level    *levelTable
		progress *progressTable
	}

	studentTable struct {
		sync.RWMutex
		table map[string]*student.Student
	}

	feeTable struct {
		sync.RWMutex
		table map[string]*fee.Record
	}

	levelTable struct {
		sync.RWMutex
		table map[string]*progression.Level
	}

	progressTable struct {
		sync.RWMutex
		table map[string]*progression.Record
	}
)

func Open() *DB {
	return &DB{
		student:  &studentTable{table: make(map[string]*student.Student)},
		fee:      &feeTable{table: make(map[string]*fee.Record)},
		level:    &levelTable{table: make(map[string]*progression.Level)},
		progress: &progressTable{table: make(map[string]*progression.Record)},
	}
}

// studentExists must be called without holding the student table lock.
func (db *DB) studentExists(id string) bool {
	db.student.RLock()
	defer db.student.RUnlock()
	_, ok := db.student.table[id]
	return ok
}

func (db *DB) levelExists(id string) bool {
	db.level.RLock()
	defer db.level.RUnlock()
	_, ok := db.level.table[id]
	return ok
}
