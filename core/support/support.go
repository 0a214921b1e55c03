package support

import (
	"context"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

const (
	StatusOpen       = "open"
	StatusInProgress = "in_progress"
	StatusClosed     = "closed"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("support ticket")
)

type Ticket struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Subject   string     `json:"subject"`
	Message   string     `json:"message"`
	Status    string     `json:"status"`
	Response  string     `json:"response"`
	CreatedAt time.Time  `json:"created_at"`          // UTC
	UpdatedAt time.Time  `json:"updated_at"`          // UTC
	ClosedAt  *time.Time `json:"closed_at,omitempty"` // UTC
}

type NewTicket struct {
	Name    string `json:"name" validate:"required,personname"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"required,notblank,max=200"`
	Message string `json:"message" validate:"required,notblank,max=5000"`
}

func (nt *NewTicket) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	nt.Email = core.CleanString(nt.Email, true /* lower */)
	nt.Subject = core.CleanString(nt.Subject)
	nt.Message = core.CleanString(nt.Message)
	return validate.Struct(nt)
}

// Response answers a ticket and moves it to Status.
type Response struct {
	Response string `json:"response" validate:"required,notblank,max=5000"`
	Status   string `json:"status" validate:"required,oneof=open in_progress closed"`
}

func (r *Response) Validate(validate *validator.Validate) error {
	r.Response = core.CleanString(r.Response)
	r.Status = core.CleanString(r.Status, true /* lower */)
	return validate.Struct(r)
}

type QueryFilter struct {
	Status string `query:"status"`
	Search string `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	qf.Search = core.CleanString(qf.Search)
}

var OrderingFields = map[string]string{
	"created_at": "created_at",
	"updated_at": "updated_at",
	"status":     "status",
	"subject":    "subject",
}

type (
	Repository interface {
		CreateTicket(ctx context.Context, t Ticket, exec ...core.DBExecutor) (Ticket, error)
		// QueryTickets searches Name, Email and Subject, case-insensitively.
		QueryTickets(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page *core.Pagination, exec ...core.DBExecutor) ([]Ticket, int, error)
		GetTicket(ctx context.Context, id string, exec ...core.DBExecutor) (Ticket, error)
		UpdateTicket(ctx context.Context, t Ticket, exec ...core.DBExecutor) (Ticket, error)
		DeleteTicket(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service interface {
		Create(ctx context.Context, nt NewTicket) (Ticket, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page *core.Pagination) ([]Ticket, int, error)
		GetByID(ctx context.Context, id string) (Ticket, error)
		Respond(ctx context.Context, t Ticket, r Response) (Ticket, error)
		Delete(ctx context.Context, id string) error
	}

	service struct {
		repo    Repository
		mailSvc core.EmailService
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, mailSvc core.EmailService) Service {
	return &service{repo: repo, mailSvc: mailSvc}
}

func (svc *service) Create(ctx context.Context, nt NewTicket) (Ticket, error) {
	now := time.Now().UTC()
	return svc.repo.CreateTicket(ctx, Ticket{
		ID:        uuid.NewString(),
		Name:      nt.Name,
		Email:     nt.Email,
		Subject:   nt.Subject,
		Message:   nt.Message,
		Status:    StatusOpen,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, page *core.Pagination) ([]Ticket, int, error) {
	return svc.repo.QueryTickets(ctx, filter, core.FilterOrderings(ordering, OrderingFields), page)
}

func (svc *service) GetByID(ctx context.Context, id string) (Ticket, error) {
	return svc.repo.GetTicket(ctx, id)
}

func (svc *service) Respond(ctx context.Context, t Ticket, r Response) (Ticket, error) {
	now := time.Now().UTC()
	t.Response = r.Response
	t.Status = r.Status
	t.UpdatedAt = now
	if r.Status == StatusClosed {
		t.ClosedAt = &now
	} else {
		t.ClosedAt = nil
	}

	t, err := svc.repo.UpdateTicket(ctx, t)
	if err != nil {
		return Ticket{}, errors.Wrap(err, "updating ticket")
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: t.Name, Address: t.Email}},
		Subject:      "Re: " + t.Subject,
		TemplateName: "support_response",
		TemplateData: map[string]interface{}{
			"Name":     t.Name,
			"Subject":  t.Subject,
			"Status":   t.Status,
			"Response": t.Response,
		},
	})
	return t, nil
}

func (svc *service) Delete(ctx context.Context, id string) error {
	return svc.repo.DeleteTicket(ctx, id)
}
