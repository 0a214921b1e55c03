package fee

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

var (
	academicYearTag   = "academicyear"
	academicYearText  = "academic year must look like 2024/2025"
	academicYearRegex = regexp.MustCompile(`^(\d{4})/(\d{4})$`)

	currencyTag   = "currency"
	currencyText  = "currency must be a 3 letter ISO-4217 code"
	currencyRegex = regexp.MustCompile(`^[A-Z]{3}$`)

	uniqueCategoriesTag  = "uniquecategories"
	uniqueCategoriesText = "fee categories must be unique"
)

// InitValidators registers the fee validators & their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(academicYearTag, academicYearValidation)
	core.RegisterCustomTranslation(validate, translator, academicYearTag, academicYearText)

	_ = validate.RegisterValidation(currencyTag, func(fl validator.FieldLevel) bool {
		return currencyRegex.MatchString(fl.Field().String())
	})
	core.RegisterCustomTranslation(validate, translator, currencyTag, currencyText)

	_ = validate.RegisterValidation(uniqueCategoriesTag, uniqueCategoriesValidation)
	core.RegisterCustomTranslation(validate, translator, uniqueCategoriesTag, uniqueCategoriesText)
}

// academicYearValidation accepts "YYYY/YYYY" where the second year follows the first.
func academicYearValidation(fl validator.FieldLevel) bool {
	m := academicYearRegex.FindStringSubmatch(fl.Field().String())
	if m == nil {
		return false
	}
	from, _ := strconv.Atoi(m[1])
	to, _ := strconv.Atoi(m[2])
	return to == from+1
}

func uniqueCategoriesValidation(fl validator.FieldLevel) bool {
	items, ok := fl.Field().Interface().([]Item)
	if !ok {
		return false
	}
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		key := strings.ToLower(it.Category)
		if _, dup := seen[key]; dup {
			return false
		}
		seen[key] = struct{}{}
	}
	return true
}

// Item is one line of a fee structure. Amount is in minor currency units (eg. cents).
// Amounts and item counts are capped so that totals cannot overflow.
type Item struct {
	Category string `json:"category" validate:"required,max=80"`
	Amount   int64  `json:"amount" validate:"gt=0,max=1000000000000"`
	Optional bool   `json:"optional"`
}

// Items is stored as a JSON document.
type Items []Item

func (it Items) Value() (driver.Value, error) {
	if it == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(it)
}

func (it *Items) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*it = Items{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.Errorf("cannot scan %T into fee.Items", src)
	}
	return json.Unmarshal(data, it)
}

type Structure struct {
	ID           string    `json:"id"`
	SchoolID     string    `json:"school_id"`
	ClassName    string    `json:"class_name"`
	AcademicYear string    `json:"academic_year"`
	Currency     string    `json:"currency"`
	Items        Items     `json:"items"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
}

// Total sums the mandatory items.
func (s Structure) Total() int64 {
	var total int64
	for _, it := range s.Items {
		if !it.Optional {
			total += it.Amount
		}
	}
	return total
}

// GrandTotal sums every item, optional ones included.
func (s Structure) GrandTotal() int64 {
	var total int64
	for _, it := range s.Items {
		total += it.Amount
	}
	return total
}

// MarshalJSON reports the totals along with the structure.
func (s Structure) MarshalJSON() ([]byte, error) {
	type structure Structure
	return json.Marshal(struct {
		structure
		Total      int64 `json:"total"`
		GrandTotal int64 `json:"grand_total"`
	}{structure(s), s.Total(), s.GrandTotal()})
}

type NewStructure struct {
	SchoolID     string `json:"school_id" validate:"required,uuid"`
	ClassName    string `json:"class_name" validate:"required,max=40"`
	AcademicYear string `json:"academic_year" validate:"required,academicyear"`
	Currency     string `json:"currency" validate:"required,currency"`
	Items        []Item `json:"items" validate:"required,min=1,max=50,uniquecategories,dive"`
}

func cleanItems(items []Item) {
	for i := range items {
		items[i].Category = core.CleanString(items[i].Category)
	}
}

func (ns *NewStructure) Validate(ctx context.Context, validate *validator.Validate, svc Service) error {
	ns.SchoolID = core.CleanString(ns.SchoolID)
	ns.ClassName = core.CleanString(ns.ClassName)
	ns.AcademicYear = core.CleanString(ns.AcademicYear)
	ns.Currency = strings.ToUpper(core.CleanString(ns.Currency))
	cleanItems(ns.Items)

	if err := validate.Struct(ns); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, ns.SchoolID, ns.ClassName, ns.AcademicYear)
}

// UpdateStructure replaces the currency and/or the items of a structure.
type UpdateStructure struct {
	Currency string `json:"currency" validate:"omitempty,currency"`
	Items    []Item `json:"items" validate:"omitempty,min=1,max=50,uniquecategories,dive"`
}

func (us *UpdateStructure) Validate(validate *validator.Validate) error {
	us.Currency = strings.ToUpper(core.CleanString(us.Currency))
	cleanItems(us.Items)
	return validate.Struct(us)
}

type QueryFilter struct {
	SchoolID     string `query:"school_id"`
	ClassName    string `query:"class_name"`
	AcademicYear string `query:"academic_year"`
}

func (qf *QueryFilter) Clean() {
	qf.SchoolID = core.CleanString(qf.SchoolID)
	qf.ClassName = core.CleanString(qf.ClassName)
	qf.AcademicYear = core.CleanString(qf.AcademicYear)
}

var OrderingFields = map[string]string{
	"class_name":    "class_name",
	"academic_year": "academic_year",
	"created_at":    "created_at",
}
