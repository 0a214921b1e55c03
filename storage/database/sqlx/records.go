package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/fee"
	"github.com/trezcool/shule/core/registration"
	"github.com/trezcool/shule/core/support"
)

const (
	feeStructureTable  = "fee_structure"
	registrationTable  = "registration"
	supportTicketTable = "support_ticket"
)

type feeStructureRow struct {
	ID           string    `db:"id"`
	SchoolID     string    `db:"school_id"`
	ClassName    string    `db:"class_name"`
	AcademicYear string    `db:"academic_year"`
	Currency     string    `db:"currency"`
	Items        fee.Items `db:"items"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r feeStructureRow) structure() fee.Structure {
	return fee.Structure{
		ID:           r.ID,
		SchoolID:     r.SchoolID,
		ClassName:    r.ClassName,
		AcademicYear: r.AcademicYear,
		Currency:     r.Currency,
		Items:        r.Items,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

func structureValues(s fee.Structure) map[string]interface{} {
	return map[string]interface{}{
		"id":            s.ID,
		"school_id":     s.SchoolID,
		"class_name":    s.ClassName,
		"academic_year": s.AcademicYear,
		"currency":      s.Currency,
		"items":         s.Items,
		"created_at":    s.CreatedAt.UTC(),
		"updated_at":    s.UpdatedAt.UTC(),
	}
}

type feeRepository struct {
	baseRepository
}

var _ fee.Repository = (*feeRepository)(nil)

func NewFeeRepository(exec core.DBExecutor) fee.Repository {
	return &feeRepository{baseRepository{exec: exec}}
}

func (repo feeRepository) CheckUniqueness(ctx context.Context, schoolID, className, academicYear string, exec ...core.DBExecutor) error {
	where := sq.And{
		sq.Eq{"school_id": schoolID, "academic_year": academicYear},
		sq.Expr("LOWER(class_name) = LOWER(?)", className),
	}
	found, err := exists(ctx, repo.getExec(exec), feeStructureTable, where)
	if err != nil {
		return errors.Wrap(err, "checking fee structure uniqueness")
	}
	if found {
		return fee.ErrStructureExists
	}
	return nil
}

func (repo feeRepository) CreateStructure(ctx context.Context, s fee.Structure, exec ...core.DBExecutor) (fee.Structure, error) {
	if err := insert(ctx, repo.getExec(exec), feeStructureTable, structureValues(s)); err != nil {
		return fee.Structure{}, errors.Wrap(err, "inserting fee structure")
	}
	return s, nil
}

func (repo feeRepository) QueryStructures(ctx context.Context, filter *fee.QueryFilter, ordering []core.DBOrdering, page *core.Pagination, exec ...core.DBExecutor) ([]fee.Structure, int, error) {
	var where sq.And
	if filter != nil {
		if filter.SchoolID != "" {
			if !validID(filter.SchoolID) {
				return []fee.Structure{}, 0, nil
			}
			where = append(where, sq.Eq{"school_id": filter.SchoolID})
		}
		if filter.ClassName != "" {
			where = append(where, sq.ILike{"class_name": filter.ClassName})
		}
		if filter.AcademicYear != "" {
			where = append(where, sq.Eq{"academic_year": filter.AcademicYear})
		}
	}

	var rows []feeStructureRow
	total, err := queryPage(ctx, repo.getExec(exec), &rows, feeStructureTable, where, orderBy(ordering, "academic_year DESC", "class_name ASC"), page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying fee structures")
	}
	structures := make([]fee.Structure, 0, len(rows))
	for _, r := range rows {
		structures = append(structures, r.structure())
	}
	return structures, total, nil
}

func (repo feeRepository) GetStructure(ctx context.Context, id string, exec ...core.DBExecutor) (fee.Structure, error) {
	if !validID(id) {
		return fee.Structure{}, fee.ErrNotFound
	}
	var row feeStructureRow
	if err := getOne(ctx, repo.getExec(exec), &row, feeStructureTable, sq.Eq{"id": id}); err != nil {
		return fee.Structure{}, trapNoRowsErr(err, fee.ErrNotFound, "finding fee structure")
	}
	return row.structure(), nil
}

func (repo feeRepository) UpdateStructure(ctx context.Context, s fee.Structure, exec ...core.DBExecutor) (fee.Structure, error) {
	values := structureValues(s)
	delete(values, "id")
	delete(values, "created_at")
	if err := update(ctx, repo.getExec(exec), feeStructureTable, s.ID, values, fee.ErrNotFound); err != nil {
		return fee.Structure{}, trapNoRowsErr(err, fee.ErrNotFound, "updating fee structure")
	}
	return s, nil
}

func (repo feeRepository) DeleteStructure(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if err := deleteByID(ctx, repo.getExec(exec), feeStructureTable, id, fee.ErrNotFound); err != nil {
		return trapNoRowsErr(err, fee.ErrNotFound, "deleting fee structure")
	}
	return nil
}

// registrationRow flattens the application into its own columns.
type registrationRow struct {
	ID             string                 `db:"id"`
	SchoolID       string                 `db:"school_id"`
	Status         string                 `db:"status"`
	FirstName      string                 `db:"first_name"`
	LastName       string                 `db:"last_name"`
	Gender         string                 `db:"gender"`
	DateOfBirth    core.Date              `db:"date_of_birth"`
	GuardianName   string                 `db:"guardian_name"`
	GuardianPhone  string                 `db:"guardian_phone"`
	GuardianEmail  string                 `db:"guardian_email"`
	Address        string                 `db:"address"`
	ClassName      string                 `db:"class_name"`
	PreviousSchool string                 `db:"previous_school"`
	Documents      registration.Documents `db:"documents"`
	StudentID      null.String            `db:"student_id"`
	ReviewNote     string                 `db:"review_note"`
	ReviewedBy     null.String            `db:"reviewed_by"`
	CreatedAt      time.Time              `db:"created_at"`
	UpdatedAt      time.Time              `db:"updated_at"`
	ReviewedAt     null.Time              `db:"reviewed_at"`
}

func (r registrationRow) registration() registration.Registration {
	reg := registration.Registration{
		ID: r.ID,
		Application: registration.Application{
			FirstName:      r.FirstName,
			LastName:       r.LastName,
			Gender:         r.Gender,
			DateOfBirth:    r.DateOfBirth.String(),
			GuardianName:   r.GuardianName,
			GuardianPhone:  r.GuardianPhone,
			GuardianEmail:  r.GuardianEmail,
			Address:        r.Address,
			SchoolID:       r.SchoolID,
			ClassName:      r.ClassName,
			PreviousSchool: r.PreviousSchool,
		},
		Status:     r.Status,
		Documents:  r.Documents,
		StudentID:  r.StudentID.String,
		ReviewNote: r.ReviewNote,
		ReviewedBy: r.ReviewedBy.String,
		CreatedAt:  r.CreatedAt.UTC(),
		UpdatedAt:  r.UpdatedAt.UTC(),
	}
	if r.ReviewedAt.Valid {
		t := r.ReviewedAt.Time.UTC()
		reg.ReviewedAt = &t
	}
	return reg
}

func registrationValues(reg registration.Registration) map[string]interface{} {
	app := reg.Application
	docs := reg.Documents
	if docs == nil {
		docs = registration.Documents{}
	}
	return map[string]interface{}{
		"id":              reg.ID,
		"school_id":       app.SchoolID,
		"status":          reg.Status,
		"first_name":      app.FirstName,
		"last_name":       app.LastName,
		"gender":          app.Gender,
		"date_of_birth":   app.DateOfBirth,
		"guardian_name":   app.GuardianName,
		"guardian_phone":  app.GuardianPhone,
		"guardian_email":  app.GuardianEmail,
		"address":         app.Address,
		"class_name":      app.ClassName,
		"previous_school": app.PreviousSchool,
		"documents":       docs,
		"student_id":      nullID(reg.StudentID),
		"review_note":     reg.ReviewNote,
		"reviewed_by":     nullID(reg.ReviewedBy),
		"created_at":      reg.CreatedAt.UTC(),
		"updated_at":      reg.UpdatedAt.UTC(),
		"reviewed_at":     null.TimeFromPtr(reg.ReviewedAt),
	}
}

type registrationRepository struct {
	baseRepository
}

var _ registration.Repository = (*registrationRepository)(nil)

func NewRegistrationRepository(exec core.DBExecutor) registration.Repository {
	return &registrationRepository{baseRepository{exec: exec}}
}

func (repo registrationRepository) CreateRegistration(ctx context.Context, reg registration.Registration, exec ...core.DBExecutor) (registration.Registration, error) {
	if err := insert(ctx, repo.getExec(exec), registrationTable, registrationValues(reg)); err != nil {
		return registration.Registration{}, errors.Wrap(err, "inserting registration")
	}
	return reg, nil
}

func (repo registrationRepository) QueryRegistrations(ctx context.Context, filter *registration.QueryFilter, ordering []core.DBOrdering, page *core.Pagination, exec ...core.DBExecutor) ([]registration.Registration, int, error) {
	var where sq.And
	if filter != nil {
		if filter.Status != "" {
			where = append(where, sq.Eq{"status": filter.Status})
		}
		if filter.SchoolID != "" {
			if !validID(filter.SchoolID) {
				return []registration.Registration{}, 0, nil
			}
			where = append(where, sq.Eq{"school_id": filter.SchoolID})
		}
		if filter.Search != "" {
			where = append(where, ilike(filter.Search, "first_name", "last_name", "guardian_name", "guardian_email"))
		}
	}

	var rows []registrationRow
	total, err := queryPage(ctx, repo.getExec(exec), &rows, registrationTable, where, orderBy(ordering, "created_at DESC"), page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying registrations")
	}
	regs := make([]registration.Registration, 0, len(rows))
	for _, r := range rows {
		regs = append(regs, r.registration())
	}
	return regs, total, nil
}

func (repo registrationRepository) GetRegistration(ctx context.Context, id string, exec ...core.DBExecutor) (registration.Registration, error) {
	if !validID(id) {
		return registration.Registration{}, registration.ErrNotFound
	}
	var row registrationRow
	if err := getOne(ctx, repo.getExec(exec), &row, registrationTable, sq.Eq{"id": id}); err != nil {
		return registration.Registration{}, trapNoRowsErr(err, registration.ErrNotFound, "finding registration")
	}
	return row.registration(), nil
}

func (repo registrationRepository) ReviewRegistration(ctx context.Context, reg registration.Registration, exec ...core.DBExecutor) (registration.Registration, error) {
	if !validID(reg.ID) {
		return registration.Registration{}, registration.ErrNotFound
	}
	values := registrationValues(reg)
	delete(values, "id")
	delete(values, "created_at")

	// concurrent reviews wait on the row lock, then match no row once the first one commits
	ex := repo.getExec(exec)
	where := sq.Eq{"id": reg.ID, "status": registration.StatusPending}
	if err := updateWhere(ctx, ex, registrationTable, where, values, registration.ErrNotPending); err != nil {
		if err != registration.ErrNotPending {
			return registration.Registration{}, errors.Wrap(err, "reviewing registration")
		}
		found, err := exists(ctx, ex, registrationTable, sq.Eq{"id": reg.ID})
		if err != nil {
			return registration.Registration{}, errors.Wrap(err, "finding registration")
		}
		if !found {
			return registration.Registration{}, registration.ErrNotFound
		}
		return registration.Registration{}, registration.ErrNotPending
	}
	return reg, nil
}

func (repo registrationRepository) DeleteRegistration(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if err := deleteByID(ctx, repo.getExec(exec), registrationTable, id, registration.ErrNotFound); err != nil {
		return trapNoRowsErr(err, registration.ErrNotFound, "deleting registration")
	}
	return nil
}

func (repo registrationRepository) HasPending(ctx context.Context, filter registration.DuplicateFilter, exec ...core.DBExecutor) (bool, error) {
	where := sq.And{
		sq.Eq{"status": registration.StatusPending, "date_of_birth": filter.DateOfBirth},
		sq.Expr("LOWER(guardian_email) = LOWER(?)", filter.GuardianEmail),
		sq.Expr("LOWER(first_name) = LOWER(?)", filter.FirstName),
		sq.Expr("LOWER(last_name) = LOWER(?)", filter.LastName),
	}
	found, err := exists(ctx, repo.getExec(exec), registrationTable, where)
	if err != nil {
		return false, errors.Wrap(err, "checking pending registrations")
	}
	return found, nil
}

type ticketRow struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	Subject   string    `db:"subject"`
	Message   string    `db:"message"`
	Status    string    `db:"status"`
	Response  string    `db:"response"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
	ClosedAt  null.Time `db:"closed_at"`
}

func (r ticketRow) ticket() support.Ticket {
	t := support.Ticket{
		ID:        r.ID,
		Name:      r.Name,
		Email:     r.Email,
		Subject:   r.Subject,
		Message:   r.Message,
		Status:    r.Status,
		Response:  r.Response,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	if r.ClosedAt.Valid {
		closed := r.ClosedAt.Time.UTC()
		t.ClosedAt = &closed
	}
	return t
}

func ticketValues(t support.Ticket) map[string]interface{} {
	return map[string]interface{}{
		"id":         t.ID,
		"name":       t.Name,
		"email":      t.Email,
		"subject":    t.Subject,
		"message":    t.Message,
		"status":     t.Status,
		"response":   t.Response,
		"created_at": t.CreatedAt.UTC(),
		"updated_at": t.UpdatedAt.UTC(),
		"closed_at":  null.TimeFromPtr(t.ClosedAt),
	}
}

type supportRepository struct {
	baseRepository
}

var _ support.Repository = (*supportRepository)(nil)

func NewSupportRepository(exec core.DBExecutor) support.Repository {
	return &supportRepository{baseRepository{exec: exec}}
}

func (repo supportRepository) CreateTicket(ctx context.Context, t support.Ticket, exec ...core.DBExecutor) (support.Ticket, error) {
	if err := insert(ctx, repo.getExec(exec), supportTicketTable, ticketValues(t)); err != nil {
		return support.Ticket{}, errors.Wrap(err, "inserting support ticket")
	}
	return t, nil
}

func (repo supportRepository) QueryTickets(ctx context.Context, filter *support.QueryFilter, ordering []core.DBOrdering, page *core.Pagination, exec ...core.DBExecutor) ([]support.Ticket, int, error) {
	var where sq.And
	if filter != nil {
		if filter.Status != "" {
			where = append(where, sq.Eq{"status": filter.Status})
		}
		if filter.Search != "" {
			where = append(where, ilike(filter.Search, "name", "email", "subject"))
		}
	}

	var rows []ticketRow
	total, err := queryPage(ctx, repo.getExec(exec), &rows, supportTicketTable, where, orderBy(ordering, "created_at DESC"), page)
	if err != nil {
		return nil, 0, errors.Wrap(err, "querying support tickets")
	}
	tickets := make([]support.Ticket, 0, len(rows))
	for _, r := range rows {
		tickets = append(tickets, r.ticket())
	}
	return tickets, total, nil
}

func (repo supportRepository) GetTicket(ctx context.Context, id string, exec ...core.DBExecutor) (support.Ticket, error) {
	if !validID(id) {
		return support.Ticket{}, support.ErrNotFound
	}
	var row ticketRow
	if err := getOne(ctx, repo.getExec(exec), &row, supportTicketTable, sq.Eq{"id": id}); err != nil {
		return support.Ticket{}, trapNoRowsErr(err, support.ErrNotFound, "finding support ticket")
	}
	return row.ticket(), nil
}

func (repo supportRepository) UpdateTicket(ctx context.Context, t support.Ticket, exec ...core.DBExecutor) (support.Ticket, error) {
	values := ticketValues(t)
	delete(values, "id")
	delete(values, "created_at")
	if err := update(ctx, repo.getExec(exec), supportTicketTable, t.ID, values, support.ErrNotFound); err != nil {
		return support.Ticket{}, trapNoRowsErr(err, support.ErrNotFound, "updating support ticket")
	}
	return t, nil
}

func (repo supportRepository) DeleteTicket(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if err := deleteByID(ctx, repo.getExec(exec), supportTicketTable, id, support.ErrNotFound); err != nil {
		return trapNoRowsErr(err, support.ErrNotFound, "deleting support ticket")
	}
	return nil
}
