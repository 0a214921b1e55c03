package teacher

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

type Teacher struct {
	ID            string    `json:"id"`
	SchoolID      string    `json:"school_id"`
	DepartmentID  string    `json:"department_id,omitempty"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	Subject       string    `json:"subject"`
	Qualification string    `json:"qualification"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at"` // UTC
}

func (t Teacher) FullName() string {
	return t.FirstName + " " + t.LastName
}

type NewTeacher struct {
	SchoolID      string `json:"school_id" validate:"required,uuid"`
	DepartmentID  string `json:"department_id" validate:"omitempty,uuid"`
	FirstName     string `json:"first_name" validate:"required,personname"`
	LastName      string `json:"last_name" validate:"required,personname"`
	Email         string `json:"email" validate:"required,email"`
	Phone         string `json:"phone" validate:"omitempty,phone"`
	Subject       string `json:"subject" validate:"omitempty,max=120"`
	Qualification string `json:"qualification" validate:"omitempty,max=120"`
}

func (nt *NewTeacher) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	nt.SchoolID = core.CleanString(nt.SchoolID)
	nt.DepartmentID = core.CleanString(nt.DepartmentID)
	nt.FirstName = core.CleanString(nt.FirstName)
	nt.LastName = core.CleanString(nt.LastName)
	nt.Email = core.CleanString(nt.Email, true /* lower */)
	nt.Phone = core.CleanString(nt.Phone)
	nt.Subject = core.CleanString(nt.Subject)
	nt.Qualification = core.CleanString(nt.Qualification)

	if err := validate.Struct(nt); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nt.Email)
}

// UpdateTeacher holds the fields to change. Empty fields keep their current value.
type UpdateTeacher struct {
	DepartmentID  *string `json:"department_id" validate:"omitempty,len=0|uuid"`
	FirstName     string  `json:"first_name" validate:"omitempty,personname"`
	LastName      string  `json:"last_name" validate:"omitempty,personname"`
	Email         string  `json:"email" validate:"omitempty,email"`
	Phone         string  `json:"phone" validate:"omitempty,phone"`
	Subject       string  `json:"subject" validate:"omitempty,max=120"`
	Qualification string  `json:"qualification" validate:"omitempty,max=120"`
	IsActive      *bool   `json:"is_active"`
}

func (ut *UpdateTeacher) Validate(ctx context.Context, orig Teacher, validate *validator.Validate, svc Service) error {
	if ut.DepartmentID != nil {
		id := core.CleanString(*ut.DepartmentID)
		ut.DepartmentID = &id
	}
	ut.FirstName = core.CleanString(ut.FirstName)
	ut.LastName = core.CleanString(ut.LastName)
	ut.Email = core.CleanString(ut.Email, true /* lower */)
	ut.Phone = core.CleanString(ut.Phone)
	ut.Subject = core.CleanString(ut.Subject)
	ut.Qualification = core.CleanString(ut.Qualification)

	if err := validate.Struct(ut); err != nil {
		return err
	}
	if ut.Email == "" {
		return nil
	}
	return svc.CheckUniqueness(ctx, ut.Email, orig.ID)
}

func (ut UpdateTeacher) apply(t Teacher) Teacher {
	if ut.DepartmentID != nil {
		t.DepartmentID = *ut.DepartmentID
	}
	if ut.FirstName != "" {
		t.FirstName = ut.FirstName
	}
	if ut.LastName != "" {
		t.LastName = ut.LastName
	}
	if ut.Email != "" {
		t.Email = ut.Email
	}
	if ut.Phone != "" {
		t.Phone = ut.Phone
	}
	if ut.Subject != "" {
		t.Subject = ut.Subject
	}
	if ut.Qualification != "" {
		t.Qualification = ut.Qualification
	}
	if ut.IsActive != nil {
		t.IsActive = *ut.IsActive
	}
	return t
}

type QueryFilter struct {
	SchoolID     string `query:"school_id"`
	DepartmentID string `query:"department_id"`
	Search       string `query:"search"`
	IsActive     *bool  `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.SchoolID = core.CleanString(qf.SchoolID)
	qf.DepartmentID = core.CleanString(qf.DepartmentID)
	qf.Search = core.CleanString(qf.Search)
}

var OrderingFields = map[string]string{
	"first_name": "first_name",
	"last_name":  "last_name",
	"email":      "email",
	"subject":    "subject",
	"created_at": "created_at",
	"updated_at": "updated_at",
}
