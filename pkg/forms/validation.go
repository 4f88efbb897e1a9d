// Package forms provides step validation, list-valued fields and the text
// normalization helpers used by the console's forms.
package forms

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Validator validates a field value.
type Validator interface {
	// Validate checks if the value is valid.
	Validate(value any) error

	// Message returns the user-facing error message.
	Message() string
}

var errInvalid = errors.New("invalid")

// RequiredValidator rejects nil, blank strings and empty lists.
type RequiredValidator struct{}

func (RequiredValidator) Validate(value any) error {
	if IsBlank(value) {
		return errInvalid
	}
	return nil
}

func (RequiredValidator) Message() string { return "is required" }

// EmailValidator validates email format. Empty values pass; combine with Required.
type EmailValidator struct{}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

func (EmailValidator) Validate(value any) error {
	str, _ := value.(string)
	if str == "" {
		return nil
	}
	if !emailRegex.MatchString(strings.TrimSpace(str)) {
		return errInvalid
	}
	return nil
}

func (EmailValidator) Message() string { return "must be a valid email address" }

// URLValidator accepts absolute http(s) URLs. Empty values pass.
type URLValidator struct{}

func (URLValidator) Validate(value any) error {
	str, _ := value.(string)
	if str == "" {
		return nil
	}
	u, err := url.Parse(strings.TrimSpace(str))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errInvalid
	}
	return nil
}

func (URLValidator) Message() string { return "must be a valid URL" }

// MaxLengthValidator limits string length in runes.
type MaxLengthValidator struct {
	Max int
}

func (v MaxLengthValidator) Validate(value any) error {
	str, _ := value.(string)
	if utf8.RuneCountInString(str) > v.Max {
		return errInvalid
	}
	return nil
}

func (v MaxLengthValidator) Message() string {
	return fmt.Sprintf("must be at most %d characters", v.Max)
}

// RangeValidator validates an integer range, inclusive.
type RangeValidator struct {
	Min, Max int
}

func (v RangeValidator) Validate(value any) error {
	n, ok := value.(int)
	if !ok || n < v.Min || n > v.Max {
		return errInvalid
	}
	return nil
}

func (v RangeValidator) Message() string {
	return fmt.Sprintf("must be between %d and %d", v.Min, v.Max)
}

// OneOfValidator validates that a string is one of the allowed values.
// An empty allow-list accepts anything.
type OneOfValidator struct {
	Values []string
}

func (v OneOfValidator) Validate(value any) error {
	if len(v.Values) == 0 {
		return nil
	}
	str, _ := value.(string)
	for _, allowed := range v.Values {
		if str == allowed {
			return nil
		}
	}
	return errInvalid
}

func (v OneOfValidator) Message() string { return "is not an allowed option" }

// CustomValidator wraps a function.
type CustomValidator struct {
	Fn  func(value any) error
	Msg string
}

func (v CustomValidator) Validate(value any) error { return v.Fn(value) }
func (v CustomValidator) Message() string          { return v.Msg }

// IsBlank reports whether value carries no user input.
func IsBlank(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []string:
		return len(v) == 0
	case *List:
		return v == nil || v.Len() == 0
	case bool:
		return !v
	default:
		return false
	}
}

// Required returns a required validator.
func Required() Validator { return RequiredValidator{} }

// Email returns an email validator.
func Email() Validator { return EmailValidator{} }

// URL returns a URL validator.
func URL() Validator { return URLValidator{} }

// MaxLength returns a maximum length validator.
func MaxLength(n int) Validator { return MaxLengthValidator{Max: n} }

// Range returns an inclusive integer range validator.
func Range(min, max int) Validator { return RangeValidator{Min: min, Max: max} }

// OneOf returns a one-of validator.
func OneOf(values ...string) Validator { return OneOfValidator{Values: values} }

// Custom returns a custom validator.
func Custom(fn func(value any) error, msg string) Validator {
	return CustomValidator{Fn: fn, Msg: msg}
}
