package school

import (
	"context"
	"regexp"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

var (
	codeTag   = "schoolcode"
	codeText  = "code must be 2 to 10 uppercase letters or digits"
	codeRegex = regexp.MustCompile(`^[A-Z0-9]{2,10}$`)
)

// InitValidators registers the school validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(codeTag, func(fl validator.FieldLevel) bool {
		return codeRegex.MatchString(fl.Field().String())
	})
	core.RegisterCustomTranslation(validate, translator, codeTag, codeText)
}

type School struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Address   string    `json:"address"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type NewSchool struct {
	Name    string `json:"name" validate:"required,max=120"`
	Code    string `json:"code" validate:"required,schoolcode"`
	Email   string `json:"email" validate:"omitempty,email"`
	Phone   string `json:"phone" validate:"omitempty,phone"`
	Address string `json:"address" validate:"omitempty,max=255"`
}

func (ns *NewSchool) clean() {
	ns.Name = core.CleanString(ns.Name)
	ns.Code = strings.ToUpper(core.CleanString(ns.Code))
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Phone = core.CleanString(ns.Phone)
	ns.Address = core.CleanString(ns.Address)
}

func (ns *NewSchool) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	ns.clean()
	if err := validate.Struct(ns); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, ns.Name, ns.Code)
}

// UpdateSchool holds the fields to change. Empty fields keep their current value.
type UpdateSchool struct {
	Name     string `json:"name" validate:"omitempty,max=120"`
	Code     string `json:"code" validate:"omitempty,schoolcode"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone" validate:"omitempty,phone"`
	Address  string `json:"address" validate:"omitempty,max=255"`
	IsActive *bool  `json:"is_active"`
}

func (us *UpdateSchool) Validate(ctx context.Context, orig School, validate *validator.Validate, svc Service) error {
	us.Name = core.CleanString(us.Name)
	us.Code = strings.ToUpper(core.CleanString(us.Code))
	us.Email = core.CleanString(us.Email, true /* lower */)
	us.Phone = core.CleanString(us.Phone)
	us.Address = core.CleanString(us.Address)

	if err := validate.Struct(us); err != nil {
		return err
	}

	name, code := us.Name, us.Code
	if name == "" {
		name = orig.Name
	}
	if code == "" {
		code = orig.Code
	}
	return svc.CheckUniqueness(ctx, name, code, orig.ID)
}

func (us UpdateSchool) apply(s School) School {
	if us.Name != "" {
		s.Name = us.Name
	}
	if us.Code != "" {
		s.Code = us.Code
	}
	if us.Email != "" {
		s.Email = us.Email
	}
	if us.Phone != "" {
		s.Phone = us.Phone
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
	Search   string `query:"search"`
	IsActive *bool  `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

var OrderingFields = map[string]string{
	"name":       "name",
	"code":       "code",
	"created_at": "created_at",
	"updated_at": "updated_at",
}
