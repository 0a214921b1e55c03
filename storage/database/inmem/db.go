package inmemdb

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/department"
	"github.com/trezcool/shule/core/fee"
	"github.com/trezcool/shule/core/registration"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/student"
	"github.com/trezcool/shule/core/support"
	"github.com/trezcool/shule/core/teacher"
	"github.com/trezcool/shule/core/user"
)

type table[T any] struct {
	mutex sync.RWMutex
	rows  map[string]T
}

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[string]T)}
}

func (t *table[T]) all() []T {
	rows := make([]T, 0, len(t.rows))
	for _, r := range t.rows {
		rows = append(rows, r)
	}
	return rows
}

func (t *table[T]) snapshot() map[string]T {
	t.mutex.RLock()
	defer t.mutex.RUnlock()
	snap := make(map[string]T, len(t.rows))
	for k, v := range t.rows {
		snap[k] = v
	}
	return snap
}

func (t *table[T]) restore(snap map[string]T) {
	t.mutex.Lock()
	t.rows = snap
	t.mutex.Unlock()
}

// DB holds every table in memory. It is safe for concurrent use.
type DB struct {
	txMutex sync.Mutex

	user          *table[user.User]
	school        *table[school.School]
	department    *table[department.Department]
	teacher       *table[teacher.Teacher]
	student       *table[student.Student]
	feeStructure  *table[fee.Structure]
	registration  *table[registration.Registration]
	supportTicket *table[support.Ticket]
}

var _ core.Transactor = (*DB)(nil)

func NewDB() *DB {
	return &DB{
		user:          newTable[user.User](),
		school:        newTable[school.School](),
		department:    newTable[department.Department](),
		teacher:       newTable[teacher.Teacher](),
		student:       newTable[student.Student](),
		feeStructure:  newTable[fee.Structure](),
		registration:  newTable[registration.Registration](),
		supportTicket: newTable[support.Ticket](),
	}
}

// WithinTx runs fn with a nil executor. Transactions are serialized and the tables fn touched are
// restored when it fails. Writes made by concurrent non-transactional calls are lost on rollback.
func (db *DB) WithinTx(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	db.txMutex.Lock()
	defer db.txMutex.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	students := db.student.snapshot()
	registrations := db.registration.snapshot()
	users := db.user.snapshot()

	if err := fn(nil); err != nil {
		db.student.restore(students)
		db.registration.restore(registrations)
		db.user.restore(users)
		return err
	}
	return nil
}

// Reset empties every table. Used by tests.
func (db *DB) Reset() {
	fresh := NewDB()
	db.user.restore(fresh.user.rows)
	db.school.restore(fresh.school.rows)
	db.department.restore(fresh.department.rows)
	db.teacher.restore(fresh.teacher.rows)
	db.student.restore(fresh.student.rows)
	db.feeStructure.restore(fresh.feeStructure.rows)
	db.registration.restore(fresh.registration.rows)
	db.supportTicket.restore(fresh.supportTicket.rows)
}

// Helpers

// comparators return <0, 0 or >0, like strings.Compare.
type comparators[T any] map[string]func(a, b T) int

// sortRows sorts by orderings, then by fallback.
func sortRows[T any](rows []T, ordering []core.DBOrdering, cmps comparators[T], fallback func(a, b T) int) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, ord := range ordering {
			cmp, ok := cmps[ord.Field]
			if !ok {
				continue
			}
			c := cmp(rows[i], rows[j])
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return fallback(rows[i], rows[j]) < 0
	})
}

func paginate[T any](rows []T, page *core.Pagination) []T {
	if page == nil {
		return rows
	}
	start, end := page.Bounds(len(rows))
	return rows[start:end]
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

func compareBools(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func anyContainsFold(substr string, ss ...string) bool {
	for _, s := range ss {
		if containsFold(s, substr) {
			return true
		}
	}
	return false
}
