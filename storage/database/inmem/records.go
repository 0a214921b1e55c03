package inmemdb

import (
	"context"
	"strings"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/fee"
	"github.com/trezcool/shule/core/registration"
	"github.com/trezcool/shule/core/support"
)

type feeRepository struct {
	db *table[fee.Structure]
}

var _ fee.Repository = (*feeRepository)(nil)

func NewFeeRepository(db *DB) fee.Repository {
	return &feeRepository{db: db.feeStructure}
}

var feeComparators = comparators[fee.Structure]{
	"class_name":    func(a, b fee.Structure) int { return strings.Compare(a.ClassName, b.ClassName) },
	"academic_year": func(a, b fee.Structure) int { return strings.Compare(a.AcademicYear, b.AcademicYear) },
	"created_at":    func(a, b fee.Structure) int { return compareTimes(a.CreatedAt, b.CreatedAt) },
}

func copyStructure(s fee.Structure) fee.Structure {
	s.Items = append(fee.Items{}, s.Items...)
	return s
}

func (repo *feeRepository) CheckUniqueness(ctx context.Context, schoolID, className, academicYear string, exec ...core.DBExecutor) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, s := range repo.db.rows {
		if s.SchoolID == schoolID && strings.EqualFold(s.ClassName, className) && s.AcademicYear == academicYear {
			return fee.ErrStructureExists
		}
	}
	return nil
}

func (repo *feeRepository) CreateStructure(ctx context.Context, s fee.Structure, exec ...core.DBExecutor) (fee.Structure, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.rows[s.ID] = copyStructure(s)
	return s, nil
}

func (repo *feeRepository) QueryStructures(ctx context.Context, filter *fee.QueryFilter, ordering []core.DBOrdering, page *core.Pagination, exec ...core.DBExecutor) ([]fee.Structure, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	structures := make([]fee.Structure, 0, len(repo.db.rows))
	for _, s := range repo.db.all() {
		if filter != nil {
			if filter.SchoolID != "" && s.SchoolID != filter.SchoolID {
				continue
			}
			if filter.ClassName != "" && !strings.EqualFold(s.ClassName, filter.ClassName) {
				continue
			}
			if filter.AcademicYear != "" && s.AcademicYear != filter.AcademicYear {
				continue
			}
		}
		structures = append(structures, copyStructure(s))
	}
	sortRows(structures, ordering, feeComparators, func(a, b fee.Structure) int {
		if c := strings.Compare(b.AcademicYear, a.AcademicYear); c != 0 {
			return c
		}
		return strings.Compare(a.ClassName, b.ClassName)
	})
	return paginate(structures, page), len(structures), nil
}

func (repo *feeRepository) GetStructure(ctx context.Context, id string, exec ...core.DBExecutor) (fee.Structure, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if s, ok := repo.db.rows[id]; ok {
		return copyStructure(s), nil
	}
	return fee.Structure{}, fee.ErrNotFound
}

func (repo *feeRepository) UpdateStructure(ctx context.Context, s fee.Structure, exec ...core.DBExecutor) (fee.Structure, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.rows[s.ID]; !ok {
		return fee.Structure{}, fee.ErrNotFound
	}
	repo.db.rows[s.ID] = copyStructure(s)
	return s, nil
}

func (repo *feeRepository) DeleteStructure(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.rows[id]; !ok {
		return fee.ErrNotFound
	}
	delete(repo.db.rows, id)
	return nil
}

type registrationRepository struct {
	db *table[registration.Registration]
}

var _ registration.Repository = (*registrationRepository)(nil)

func NewRegistrationRepository(db *DB) registration.Repository {
	return &registrationRepository{db: db.registration}
}

var registrationComparators = comparators[registration.Registration]{
	"created_at": func(a, b registration.Registration) int { return compareTimes(a.CreatedAt, b.CreatedAt) },
	"updated_at": func(a, b registration.Registration) int { return compareTimes(a.UpdatedAt, b.UpdatedAt) },
	"status":     func(a, b registration.Registration) int { return strings.Compare(a.Status, b.Status) },
	"last_name": func(a, b registration.Registration) int {
		return strings.Compare(a.Application.LastName, b.Application.LastName)
	},
	"class_name": func(a, b registration.Registration) int {
		return strings.Compare(a.Application.ClassName, b.Application.ClassName)
	},
	"reviewed_at": func(a, b registration.Registration) int {
		switch {
		case a.ReviewedAt == nil && b.ReviewedAt == nil:
			return 0
		case a.ReviewedAt == nil:
			return -1
		case b.ReviewedAt == nil:
			return 1
		}
		return compareTimes(*a.ReviewedAt, *b.ReviewedAt)
	},
}

func copyRegistration(reg registration.Registration) registration.Registration {
	reg.Documents = append(registration.Documents{}, reg.Documents...)
	return reg
}

func (repo *registrationRepository) CreateRegistration(ctx context.Context, reg registration.Registration, exec ...core.DBExecutor) (registration.Registration, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.rows[reg.ID] = copyRegistration(reg)
	return reg, nil
}

func (repo *registrationRepository) QueryRegistrations(ctx context.Context, filter *registration.QueryFilter, ordering []core.DBOrdering, page *core.Pagination, exec ...core.DBExecutor) ([]registration.Registration, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	regs := make([]registration.Registration, 0, len(repo.db.rows))
	for _, reg := range repo.db.all() {
		if filter != nil {
			app := reg.Application
			if filter.Status != "" && reg.Status != filter.Status {
				continue
			}
			if filter.SchoolID != "" && app.SchoolID != filter.SchoolID {
				continue
			}
			if filter.Search != "" && !anyContainsFold(filter.Search, app.FirstName, app.LastName, app.GuardianName, app.GuardianEmail) {
				continue
			}
		}
		regs = append(regs, copyRegistration(reg))
	}
	sortRows(regs, ordering, registrationComparators, func(a, b registration.Registration) int {
		return -compareTimes(a.CreatedAt, b.CreatedAt)
	})
	return paginate(regs, page), len(regs), nil
}

func (repo *registrationRepository) GetRegistration(ctx context.Context, id string, exec ...core.DBExecutor) (registration.Registration, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if reg, ok := repo.db.rows[id]; ok {
		return copyRegistration(reg), nil
	}
	return registration.Registration{}, registration.ErrNotFound
}

func (repo *registrationRepository) ReviewRegistration(ctx context.Context, reg registration.Registration, exec ...core.DBExecutor) (registration.Registration, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	stored, ok := repo.db.rows[reg.ID]
	if !ok {
		return registration.Registration{}, registration.ErrNotFound
	}
	if stored.Status != registration.StatusPending {
		return registration.Registration{}, registration.ErrNotPending
	}
	repo.db.rows[reg.ID] = copyRegistration(reg)
	return reg, nil
}

func (repo *registrationRepository) DeleteRegistration(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.rows[id]; !ok {
		return registration.ErrNotFound
	}
	delete(repo.db.rows, id)
	return nil
}

func (repo *registrationRepository) HasPending(ctx context.Context, filter registration.DuplicateFilter, exec ...core.DBExecutor) (bool, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, reg := range repo.db.rows {
		app := reg.Application
		if reg.Status == registration.StatusPending &&
			strings.EqualFold(app.GuardianEmail, filter.GuardianEmail) &&
			strings.EqualFold(app.FirstName, filter.FirstName) &&
			strings.EqualFold(app.LastName, filter.LastName) &&
			app.DateOfBirth == filter.DateOfBirth {
			return true, nil
		}
	}
	return false, nil
}

type supportRepository struct {
	db *table[support.Ticket]
}

var _ support.Repository = (*supportRepository)(nil)

func NewSupportRepository(db *DB) support.Repository {
	return &supportRepository{db: db.supportTicket}
}

var ticketComparators = comparators[support.Ticket]{
	"created_at": func(a, b support.Ticket) int { return compareTimes(a.CreatedAt, b.CreatedAt) },
	"updated_at": func(a, b support.Ticket) int { return compareTimes(a.UpdatedAt, b.UpdatedAt) },
	"status":     func(a, b support.Ticket) int { return strings.Compare(a.Status, b.Status) },
	"subject":    func(a, b support.Ticket) int { return strings.Compare(a.Subject, b.Subject) },
}

func (repo *supportRepository) CreateTicket(ctx context.Context, t support.Ticket, exec ...core.DBExecutor) (support.Ticket, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.rows[t.ID] = t
	return t, nil
}

func (repo *supportRepository) QueryTickets(ctx context.Context, filter *support.QueryFilter, ordering []core.DBOrdering, page *core.Pagination, exec ...core.DBExecutor) ([]support.Ticket, int, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	tickets := make([]support.Ticket, 0, len(repo.db.rows))
	for _, t := range repo.db.all() {
		if filter != nil {
			if filter.Status != "" && t.Status != filter.Status {
				continue
			}
			if filter.Search != "" && !anyContainsFold(filter.Search, t.Name, t.Email, t.Subject) {
				continue
			}
		}
		tickets = append(tickets, t)
	}
	sortRows(tickets, ordering, ticketComparators, func(a, b support.Ticket) int {
		return -compareTimes(a.CreatedAt, b.CreatedAt)
	})
	return paginate(tickets, page), len(tickets), nil
}

func (repo *supportRepository) GetTicket(ctx context.Context, id string, exec ...core.DBExecutor) (support.Ticket, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if t, ok := repo.db.rows[id]; ok {
		return t, nil
	}
	return support.Ticket{}, support.ErrNotFound
}

func (repo *supportRepository) UpdateTicket(ctx context.Context, t support.Ticket, exec ...core.DBExecutor) (support.Ticket, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.rows[t.ID]; !ok {
		return support.Ticket{}, support.ErrNotFound
	}
	repo.db.rows[t.ID] = t
	return t, nil
}

func (repo *supportRepository) DeleteTicket(ctx context.Context, id string, exec ...core.DBExecutor) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.rows[id]; !ok {
		return support.ErrNotFound
	}
	delete(repo.db.rows, id)
	return nil
}
