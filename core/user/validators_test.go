package user

import (
	"log"
	"os"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/admitflow/core"
)

type stdLogger struct{ *log.Logger }

func (l stdLogger) Debug(msg string, _ ...interface{}) { l.Println(msg) }
func (l stdLogger) Info(msg string, _ ...interface{})  { l.Println(msg) }
func (l stdLogger) Warn(msg string, _ ...interface{})  { l.Println(msg) }
func (l stdLogger) Error(msg string, _ ...interface{}) { l.Println(msg) }
func (l stdLogger) Fatal(msg string, _ ...interface{}) { l.Fatalln(msg) }

func newValidate(t *testing.T) *validator.Validate {
	t.Helper()
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	LoadCommonPasswords(stdLogger{log.New(os.Stdout, "TEST : ", 0)})
	require.NotEmpty(t, commonPasswords)
	return validate
}

func failedTags(err error) []string {
	var tags []string
	if vErrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range vErrs {
			tags = append(tags, fe.Tag())
		}
	}
	return tags
}

func Test_validatePassword(t *testing.T) {
	validate := newValidate(t)

	tests := []struct {
		name    string
		pwd     string
		wantTag string
	}{
		{name: "too short", pwd: "Ab1@", wantTag: pwdMinLenTag},
		{name: "whitespace", pwd: "Abcd 1234@", wantTag: pwdNoSpaceTag},
		{name: "all numeric", pwd: "12345678901", wantTag: pwdNotAllNumTag},
		{name: "no special", pwd: "Abcdefgh123", wantTag: pwdComplexityTag},
		{name: "no upper", pwd: "abcdefgh1@3", wantTag: pwdComplexityTag},
		{name: "similar to username", pwd: "Ravikumar@1", wantTag: pwdAttrSimTag},
		{name: "common", pwd: "P@ssw0rd", wantTag: pwdNoCommonTag},
		{name: "valid", pwd: "Tr0ub4dor&3x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nu := NewUser{
				Name:            "Ravi",
				Username:        "ravikumar",
				Role:            RoleUser,
				Password:        tt.pwd,
				PasswordConfirm: tt.pwd,
			}
			err := validate.Struct(nu)
			if tt.wantTag == "" {
				assert.NoError(t, err)
				return
			}
			assert.Contains(t, failedTags(err), tt.wantTag)
		})
	}
}

func Test_userStructValidation(t *testing.T) {
	validate := newValidate(t)

	t.Run("username or email required", func(t *testing.T) {
		err := validate.Struct(NewUser{Name: "X", Role: RoleUser, Password: "Tr0ub4dor&3x", PasswordConfirm: "Tr0ub4dor&3x"})
		assert.Contains(t, failedTags(err), usernameOrEmailTag)
	})

	t.Run("invalid role", func(t *testing.T) {
		err := validate.Struct(NewUser{Name: "X", Email: "x@test.in", Role: "principal", Password: "Tr0ub4dor&3x", PasswordConfirm: "Tr0ub4dor&3x"})
		assert.Contains(t, failedTags(err), roleTag)
	})

	t.Run("update without password", func(t *testing.T) {
		assert.NoError(t, validate.Struct(UpdateUser{Name: "X"}))
	})

	t.Run("update password mismatch", func(t *testing.T) {
		err := validate.Struct(UpdateUser{Password: "Tr0ub4dor&3x", PasswordConfirm: "nope"})
		assert.Contains(t, failedTags(err), "eqfield")
	})
}
