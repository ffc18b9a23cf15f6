// Package validate performs field-level checks on untrusted form input.
package validate

import (
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"
)

const (
	minNameLen = 4
	maxNameLen = 25
)

// Fields maps a field name to a human-readable validation message.
type Fields map[string]string

// Registration checks a registration submission and returns per-field
// errors. An empty map means the input is acceptable.
func Registration(username, firstName, lastName, email, password, confirm string) Fields {
	fields := make(Fields)
	checkLength(fields, "username", username)
	checkLength(fields, "first_name", firstName)
	checkLength(fields, "last_name", lastName)
	if strings.TrimSpace(email) == "" {
		fields["email"] = "required"
	} else if _, err := mail.ParseAddress(email); err != nil {
		fields["email"] = "must be a valid email address"
	}
	if password == "" {
		fields["password"] = "required"
	} else if password != confirm {
		fields["password_confirmation"] = "passwords must match"
	}
	return fields
}

// Login checks a login submission for the required fields.
func Login(username, password string) Fields {
	fields := make(Fields)
	if strings.TrimSpace(username) == "" {
		fields["username"] = "required"
	}
	if password == "" {
		fields["password"] = "required"
	}
	return fields
}

func checkLength(fields Fields, name, value string) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		fields[name] = "required"
		return
	}
	if n := utf8.RuneCountInString(trimmed); n < minNameLen || n > maxNameLen {
		fields[name] = fmt.Sprintf("must be between %d and %d characters", minNameLen, maxNameLen)
	}
}
