package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateRegister_OK(t *testing.T) {
	errs := ValidateRegister("alice_01", "password123")
	assert.False(t, errs.HasErrors())
}

func TestValidateRegister_Username(t *testing.T) {
	cases := []struct {
		name     string
		username string
	}{
		{"empty", ""},
		{"whitespace only", "   "},
		{"too short", "ab"},
		{"too long", strings.Repeat("a", 17)},
		{"invalid characters", "al ice!"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			errs := ValidateRegister(tc.username, "password123")
			assert.True(t, errs.HasErrors())
			assert.Contains(t, errs, "username")
		})
	}
}

func TestValidateRegister_Password(t *testing.T) {
	errs := ValidateRegister("alice", "short")
	assert.Contains(t, errs, "password")

	errs = ValidateRegister("alice", strings.Repeat("p", 33))
	assert.Contains(t, errs, "password")
}

func TestValidateLogin(t *testing.T) {
	assert.False(t, ValidateLogin("alice", "whatever").HasErrors())

	errs := ValidateLogin("", "")
	assert.Contains(t, errs, "username")
	assert.Contains(t, errs, "password")
}

func TestValidatePasswordChange(t *testing.T) {
	assert.False(t, ValidatePasswordChange("oldpassword", "newpassword1").HasErrors())

	errs := ValidatePasswordChange("", "newpassword1")
	assert.Contains(t, errs, "old_password")

	errs = ValidatePasswordChange("oldpassword", "short")
	assert.Contains(t, errs, "password")

	errs = ValidatePasswordChange("samepassword", "samepassword")
	assert.Contains(t, errs, "password")
}
