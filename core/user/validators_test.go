package user

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
)

func TestCheckPassword(t *testing.T) {
	tests := []struct {
		name    string
		pwd     string
		wantTag string
	}{
		{name: "too short", pwd: "Ab1@", wantTag: pwdMinLenTag},
		{name: "whitespace", pwd: "Abcd 1234@", wantTag: pwdNoSpaceTag},
		{name: "all numeric", pwd: "1234567890", wantTag: pwdNotAllNumTag},
		{name: "no special", pwd: "Abcd12345", wantTag: pwdComplexityTag},
		{name: "no upper", pwd: "abcd1234@", wantTag: pwdComplexityTag},
		{name: "similar to username", pwd: "Jdoe1234@", wantTag: pwdAttrSimTag},
		{name: "common", pwd: "P@$$w0rd", wantTag: pwdNoCommonTag},
		{name: "valid", pwd: "Sup3r-Secr3t!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantTag, checkPassword(tt.pwd, "John Doe", "jdoe1234", "john@test.com"))
		})
	}
}

func TestValidatePassword(t *testing.T) {
	err := ValidatePassword("short", "", "", "")
	require.Error(t, err)
	verr, ok := err.(*core.ValidationError)
	require.True(t, ok)
	assert.Equal(t, []core.FieldError{{Field: "password", Error: pwdMinLenText}}, verr.Fields)

	assert.NoError(t, ValidatePassword("Sup3r-Secr3t!", "John Doe", "jdoe", "john@test.com"))
}

func TestNewUserStructValidation(t *testing.T) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)

	tests := []struct {
		name       string
		nu         NewUser
		wantFields []string
	}{
		{
			name:       "no username nor email",
			nu:         NewUser{Name: "John", Password: "Sup3r-Secr3t!", PasswordConfirm: "Sup3r-Secr3t!"},
			wantFields: []string{"username", "email"},
		},
		{
			name:       "invalid roles",
			nu:         NewUser{Name: "John", Username: "john", Password: "Sup3r-Secr3t!", PasswordConfirm: "Sup3r-Secr3t!", Roles: []string{"root"}},
			wantFields: []string{"roles"},
		},
		{
			name:       "password mismatch",
			nu:         NewUser{Name: "John", Username: "john", Password: "Sup3r-Secr3t!", PasswordConfirm: "Sup3r-Secr3t"},
			wantFields: []string{"password_confirm"},
		},
		{
			name: "valid",
			nu:   NewUser{Name: "John", Username: "john", Password: "Sup3r-Secr3t!", PasswordConfirm: "Sup3r-Secr3t!", Roles: []string{RoleTeacher}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validate.Struct(tt.nu)
			if tt.wantFields == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var fields []string
			for _, fe := range err.(validator.ValidationErrors) {
				fields = append(fields, fe.Field())
			}
			assert.ElementsMatch(t, tt.wantFields, fields)
		})
	}
}
