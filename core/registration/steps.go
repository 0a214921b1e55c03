package registration

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/trezcool/shule/core"
)

// Steps of the registration form. A step can only be reached when every previous step is valid.
const (
	StepStudent = iota + 1
	StepGuardian
	StepAcademic
	StepDocuments

	NumSteps = StepDocuments
)

var stepNames = map[int]string{
	StepStudent:   "student",
	StepGuardian:  "guardian",
	StepAcademic:  "academic",
	StepDocuments: "documents",
}

// stepFields lists the application fields checked by each step, in display order.
var stepFields = map[int][]string{
	StepStudent:   {"first_name", "last_name", "gender", "date_of_birth"},
	StepGuardian:  {"guardian_name", "guardian_phone", "guardian_email", "address"},
	StepAcademic:  {"school_id", "class_name", "previous_school"},
	StepDocuments: {},
}

type fieldRule struct {
	pattern  *regexp.Regexp
	message  string
	optional bool
	check    func(string) string // extra check run once the pattern matched
}

// fieldRules is the validation table, looked up by field name.
var fieldRules = map[string]fieldRule{
	"first_name": {pattern: core.PersonNameRegex, message: "first name may only contain letters, spaces, apostrophes, dots and hyphens"},
	"last_name":  {pattern: core.PersonNameRegex, message: "last name may only contain letters, spaces, apostrophes, dots and hyphens"},
	"gender":     {pattern: regexp.MustCompile(`^(male|female)$`), message: "gender must be male or female"},
	"date_of_birth": {
		pattern: regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),
		message: "date of birth must be a date formatted as YYYY-MM-DD",
		check:   checkDateOfBirth,
	},
	"guardian_name":  {pattern: core.PersonNameRegex, message: "guardian name may only contain letters, spaces, apostrophes, dots and hyphens"},
	"guardian_phone": {pattern: core.PhoneRegex, message: "guardian phone must be a valid phone number"},
	"guardian_email": {pattern: regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]{2,}$`), message: "guardian email must be a valid email address"},
	"address":        {pattern: regexp.MustCompile(`^[\p{L}\p{N}\s,.'#/-]{5,255}$`), message: "address must be 5 to 255 characters long"},
	"school_id": {
		pattern: regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`),
		message: "a school must be selected",
	},
	"class_name": {pattern: regexp.MustCompile(`^[\p{L}\p{N} -]{1,40}$`), message: "class may only contain letters, digits, spaces and hyphens"},
	"previous_school": {
		pattern:  regexp.MustCompile(`^[\p{L}\p{N}\s,.'&()-]{2,120}$`),
		message:  "previous school must be 2 to 120 characters long",
		optional: true,
	},
}

const requiredText = "this field is required"

func checkDateOfBirth(val string) string {
	dob, err := core.ParseDate(val)
	if err != nil {
		return "date of birth is not a valid date"
	}
	if !dob.Before(time.Now()) {
		return "date of birth must be in the past"
	}
	return ""
}

// ValidateField checks a single field against its rule. It returns an empty string when the value is valid.
func ValidateField(name, value string) string {
	rule, ok := fieldRules[name]
	if !ok {
		return ""
	}
	if value == "" {
		if rule.optional {
			return ""
		}
		return requiredText
	}
	if !rule.pattern.MatchString(value) {
		return rule.message
	}
	if rule.check != nil {
		return rule.check(value)
	}
	return ""
}

// StepName returns the name of a step, or an empty string for an unknown step.
func StepName(step int) string {
	return stepNames[step]
}

// StepError reports the first invalid step of an application.
type StepError struct {
	Step   int
	Name   string
	Fields []core.FieldError
}

func (err *StepError) Error() string {
	msg := fmt.Sprintf("step %d (%s) is invalid", err.Step, err.Name)
	if len(err.Fields) > 0 {
		msg += ": " + err.Fields[0].Field + ": " + err.Fields[0].Error
	}
	return msg
}

// Application is the data filled through the registration form.
type Application struct {
	FirstName      string `json:"first_name"`
	LastName       string `json:"last_name"`
	Gender         string `json:"gender"`
	DateOfBirth    string `json:"date_of_birth"`
	GuardianName   string `json:"guardian_name"`
	GuardianPhone  string `json:"guardian_phone"`
	GuardianEmail  string `json:"guardian_email"`
	Address        string `json:"address"`
	SchoolID       string `json:"school_id"`
	ClassName      string `json:"class_name"`
	PreviousSchool string `json:"previous_school"`
}

func (app *Application) Clean() {
	app.FirstName = core.CleanString(app.FirstName)
	app.LastName = core.CleanString(app.LastName)
	app.Gender = core.CleanString(app.Gender, true /* lower */)
	app.DateOfBirth = core.CleanString(app.DateOfBirth)
	app.GuardianName = core.CleanString(app.GuardianName)
	app.GuardianPhone = core.CleanString(app.GuardianPhone)
	app.GuardianEmail = core.CleanString(app.GuardianEmail, true /* lower */)
	app.Address = core.CleanString(app.Address)
	app.SchoolID = core.CleanString(app.SchoolID, true /* lower */)
	app.ClassName = core.CleanString(app.ClassName)
	app.PreviousSchool = core.CleanString(app.PreviousSchool)
}

func (app Application) fieldValue(name string) string {
	switch name {
	case "first_name":
		return app.FirstName
	case "last_name":
		return app.LastName
	case "gender":
		return app.Gender
	case "date_of_birth":
		return app.DateOfBirth
	case "guardian_name":
		return app.GuardianName
	case "guardian_phone":
		return app.GuardianPhone
	case "guardian_email":
		return app.GuardianEmail
	case "address":
		return app.Address
	case "school_id":
		return app.SchoolID
	case "class_name":
		return app.ClassName
	case "previous_school":
		return app.PreviousSchool
	}
	return ""
}

// StudentName is used to detect duplicate applications.
func (app Application) StudentName() string {
	return strings.ToLower(app.FirstName + " " + app.LastName)
}

// DocumentInput describes an uploaded attachment before it is stored.
type DocumentInput struct {
	Filename    string
	ContentType string
	Size        int64
}

// DocumentRules bounds the attachments of the documents step.
type DocumentRules struct {
	MaxSize      int64
	MaxDocuments int
	AllowedTypes []string
}

func (dr DocumentRules) allowed(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(strings.SplitN(ct, ";", 2)[0]))
	for _, t := range dr.AllowedTypes {
		if t == ct {
			return true
		}
	}
	return false
}

func (dr DocumentRules) check(docs []DocumentInput) []core.FieldError {
	if len(docs) == 0 {
		return []core.FieldError{{Field: "documents", Error: "at least one document is required"}}
	}
	if dr.MaxDocuments > 0 && len(docs) > dr.MaxDocuments {
		return []core.FieldError{{Field: "documents", Error: fmt.Sprintf("at most %d documents are allowed", dr.MaxDocuments)}}
	}
	var errs []core.FieldError
	for i, doc := range docs {
		field := fmt.Sprintf("documents[%d]", i)
		switch {
		case !dr.allowed(doc.ContentType):
			errs = append(errs, core.FieldError{Field: field, Error: fmt.Sprintf("%s: file type is not allowed", doc.Filename)})
		case doc.Size <= 0:
			errs = append(errs, core.FieldError{Field: field, Error: fmt.Sprintf("%s: file is empty", doc.Filename)})
		case dr.MaxSize > 0 && doc.Size > dr.MaxSize:
			errs = append(errs, core.FieldError{Field: field, Error: fmt.Sprintf("%s: file exceeds %d bytes", doc.Filename, dr.MaxSize)})
		}
	}
	return errs
}

// ValidateStep checks the fields of a single step. docs is only used by StepDocuments.
func (app Application) ValidateStep(step int, docs []DocumentInput, rules DocumentRules) []core.FieldError {
	if step == StepDocuments {
		return rules.check(docs)
	}
	var errs []core.FieldError
	for _, name := range stepFields[step] {
		if msg := ValidateField(name, app.fieldValue(name)); msg != "" {
			errs = append(errs, core.FieldError{Field: name, Error: msg})
		}
	}
	return errs
}

// ValidateUpTo checks steps 1 to upTo in order and stops at the first invalid one.
func (app Application) ValidateUpTo(upTo int, docs []DocumentInput, rules DocumentRules) error {
	if upTo < StepStudent || upTo > NumSteps {
		return core.NewValidationError(nil, core.FieldError{
			Field: "step",
			Error: fmt.Sprintf("step must be between %d and %d", StepStudent, NumSteps),
		})
	}
	for step := StepStudent; step <= upTo; step++ {
		if errs := app.ValidateStep(step, docs, rules); len(errs) > 0 {
			return &StepError{Step: step, Name: stepNames[step], Fields: errs}
		}
	}
	return nil
}
