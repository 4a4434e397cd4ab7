package validator

import (
	"regexp"
	"strings"
)

type ValidationErrors map[string]string

func (v ValidationErrors) HasErrors() bool {
	return len(v) > 0
}

func (v ValidationErrors) Add(field, message string) {
	v[field] = message
}

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func ValidateRegister(username, password string) ValidationErrors {
	errs := make(ValidationErrors)

	validateUsername(username, errs)
	validatePassword(password, errs)

	return errs
}

func ValidateLogin(username, password string) ValidationErrors {
	errs := make(ValidationErrors)

	if strings.TrimSpace(username) == "" {
		errs.Add("username", "Username is required")
	}
	if password == "" {
		errs.Add("password", "Password is required")
	}

	return errs
}

func ValidatePasswordChange(oldPassword, newPassword string) ValidationErrors {
	errs := make(ValidationErrors)

	if oldPassword == "" {
		errs.Add("old_password", "Old password is required")
	}
	validatePassword(newPassword, errs)
	if _, ok := errs["password"]; !ok && newPassword == oldPassword {
		errs.Add("password", "New password must differ from the old password")
	}

	return errs
}

func validateUsername(username string, errs ValidationErrors) {
	username = strings.TrimSpace(username)
	if username == "" {
		errs.Add("username", "Username is required")
	} else if len(username) < 3 {
		errs.Add("username", "Username must be at least 3 characters")
	} else if len(username) > 16 {
		errs.Add("username", "Username can be at most 16 characters")
	} else if !usernameRegex.MatchString(username) {
		errs.Add("username", "Username can only contain letters, numbers, _ and -")
	}
}

func validatePassword(password string, errs ValidationErrors) {
	if len(password) < 8 {
		errs.Add("password", "Password must be at least 8 characters")
	} else if len(password) > 32 {
		errs.Add("password", "Password can be at most 32 characters")
	}
}
