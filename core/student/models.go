package student

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

const (
	GenderMale   = "male"
	GenderFemale = "female"
)

type Student struct {
	ID            string    `json:"id"`
	SchoolID      string    `json:"school_id"`
	DepartmentID  string    `json:"department_id,omitempty"`
	AdmissionNo   string    `json:"admission_no"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	Gender        string    `json:"gender"`
	DateOfBirth   core.Date `json:"date_of_birth"`
	ClassName     string    `json:"class_name"`
	GuardianName  string    `json:"guardian_name"`
	GuardianPhone string    `json:"guardian_phone"`
	GuardianEmail string    `json:"guardian_email"`
	Address       string    `json:"address"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at"` // UTC
}

func (s Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

type NewStudent struct {
	SchoolID      string    `json:"school_id" validate:"required,uuid"`
	DepartmentID  string    `json:"department_id" validate:"omitempty,uuid"`
	AdmissionNo   string    `json:"admission_no" validate:"omitempty,alphanum,max=20"`
	FirstName     string    `json:"first_name" validate:"required,personname"`
	LastName      string    `json:"last_name" validate:"required,personname"`
	Gender        string    `json:"gender" validate:"required,oneof=male female"`
	DateOfBirth   core.Date `json:"date_of_birth"`
	ClassName     string    `json:"class_name" validate:"required,max=40"`
	GuardianName  string    `json:"guardian_name" validate:"omitempty,personname"`
	GuardianPhone string    `json:"guardian_phone" validate:"omitempty,phone"`
	GuardianEmail string    `json:"guardian_email" validate:"omitempty,email"`
	Address       string    `json:"address" validate:"omitempty,max=255"`
}

func (ns *NewStudent) Clean() {
	ns.SchoolID = core.CleanString(ns.SchoolID)
	ns.DepartmentID = core.CleanString(ns.DepartmentID)
	ns.AdmissionNo = core.CleanString(ns.AdmissionNo)
	ns.FirstName = core.CleanString(ns.FirstName)
	ns.LastName = core.CleanString(ns.LastName)
	ns.Gender = core.CleanString(ns.Gender, true /* lower */)
	ns.ClassName = core.CleanString(ns.ClassName)
	ns.GuardianName = core.CleanString(ns.GuardianName)
	ns.GuardianPhone = core.CleanString(ns.GuardianPhone)
	ns.GuardianEmail = core.CleanString(ns.GuardianEmail, true /* lower */)
	ns.Address = core.CleanString(ns.Address)
}

func (ns *NewStudent) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	ns.Clean()
	if err := validate.Struct(ns); err != nil {
		return err
	}
	if ns.DateOfBirth.IsZero() {
		return core.NewValidationError(nil, core.FieldError{Field: "date_of_birth", Error: errDOBRequired})
	}
	if !ns.DateOfBirth.Before(time.Now()) {
		return core.NewValidationError(nil, core.FieldError{Field: "date_of_birth", Error: errDOBInFuture})
	}
	if ns.AdmissionNo == "" {
		return nil
	}
	return svc.CheckUniqueness(ctx, ns.SchoolID, ns.AdmissionNo)
}

// UpdateStudent holds the fields to change. Empty fields keep their current value.
type UpdateStudent struct {
	DepartmentID  *string   `json:"department_id" validate:"omitempty,len=0|uuid"`
	FirstName     string    `json:"first_name" validate:"omitempty,personname"`
	LastName      string    `json:"last_name" validate:"omitempty,personname"`
	Gender        string    `json:"gender" validate:"omitempty,oneof=male female"`
	DateOfBirth   core.Date `json:"date_of_birth"`
	ClassName     string    `json:"class_name" validate:"omitempty,max=40"`
	GuardianName  string    `json:"guardian_name" validate:"omitempty,personname"`
	GuardianPhone string    `json:"guardian_phone" validate:"omitempty,phone"`
	GuardianEmail string    `json:"guardian_email" validate:"omitempty,email"`
	Address       string    `json:"address" validate:"omitempty,max=255"`
	IsActive      *bool     `json:"is_active"`
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	if us.DepartmentID != nil {
		id := core.CleanString(*us.DepartmentID)
		us.DepartmentID = &id
	}
	us.FirstName = core.CleanString(us.FirstName)
	us.LastName = core.CleanString(us.LastName)
	us.Gender = core.CleanString(us.Gender, true /* lower */)
	us.ClassName = core.CleanString(us.ClassName)
	us.GuardianName = core.CleanString(us.GuardianName)
	us.GuardianPhone = core.CleanString(us.GuardianPhone)
	us.GuardianEmail = core.CleanString(us.GuardianEmail, true /* lower */)
	us.Address = core.CleanString(us.Address)

	if err := validate.Struct(us); err != nil {
		return err
	}
	if !us.DateOfBirth.IsZero() && !us.DateOfBirth.Before(time.Now()) {
		return core.NewValidationError(nil, core.FieldError{Field: "date_of_birth", Error: errDOBInFuture})
	}
	return nil
}

func (us UpdateStudent) apply(s Student) Student {
	if us.DepartmentID != nil {
		s.DepartmentID = *us.DepartmentID
	}
	if us.FirstName != "" {
		s.FirstName = us.FirstName
	}
	if us.LastName != "" {
		s.LastName = us.LastName
	}
	if us.Gender != "" {
		s.Gender = us.Gender
	}
	if !us.DateOfBirth.IsZero() {
		s.DateOfBirth = us.DateOfBirth
	}
	if us.ClassName != "" {
		s.ClassName = us.ClassName
	}
	if us.GuardianName != "" {
		s.GuardianName = us.GuardianName
	}
	if us.GuardianPhone != "" {
		s.GuardianPhone = us.GuardianPhone
	}
	if us.GuardianEmail != "" {
		s.GuardianEmail = us.GuardianEmail
	}
	if us.Address != "" {
		s.Address = us.Address
	}
	if us.IsActive != nil {
		s.IsActive = *us.IsActive
	}
	return s
}

type QueryFilter struct {
	SchoolID     string `query:"school_id"`
	DepartmentID string `query:"department_id"`
	ClassName    string `query:"class_name"`
	Gender       string `query:"gender"`
	Search       string `query:"search"`
	IsActive     *bool  `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.SchoolID = core.CleanString(qf.SchoolID)
	qf.DepartmentID = core.CleanString(qf.DepartmentID)
	qf.ClassName = core.CleanString(qf.ClassName)
	qf.Gender = core.CleanString(qf.Gender, true /* lower */)
	qf.Search = core.CleanString(qf.Search)
}

var OrderingFields = map[string]string{
	"admission_no":  "admission_no",
	"first_name":    "first_name",
	"last_name":     "last_name",
	"class_name":    "class_name",
	"date_of_birth": "date_of_birth",
	"created_at":    "created_at",
	"updated_at":    "updated_at",
}
