// Package validation checks occupant labels before they are written to the
// schedule.  Rules depend on the kind of spot: blocking-vehicle spots need a
// name and a phone number, ordinary spots accept a name, a phone number or
// nothing at all.
package validation

import (
	"strings"
	"unicode/utf8"

	"github.com/iliyamo/parking-schedule/internal/model"
)

const (
	// MinPhoneDigits is the shortest digit run accepted as a phone number.
	MinPhoneDigits = 6
	// MinNameChars is the shortest accepted name.
	MinNameChars = 2
)

// Code identifies which rule rejected an input.
type Code string

const (
	CodePhoneRequired Code = "PHONE_REQUIRED"
	CodeNameRequired  Code = "NAME_REQUIRED"
	CodePhoneTooShort Code = "PHONE_TOO_SHORT"
	CodeNameTooShort  Code = "NAME_TOO_SHORT"
)

// Error is a rejected occupant label.  Message is meant to be shown next to
// the input field as is.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return e.Message }

// Occupant validates input for a spot of the given kind.  It returns nil
// when the input may be written, otherwise an *Error.
func Occupant(kind model.SpotKind, input string) error {
	if kind == model.SpotBlocking {
		return blocking(input)
	}
	return ordinary(input)
}

// blocking requires a phone number and a name.  The phone check runs first.
func blocking(input string) error {
	if longestDigitRun(input) < MinPhoneDigits {
		return &Error{Code: CodePhoneRequired, Message: "a phone number with at least 6 digits is required"}
	}
	name := strings.TrimSpace(stripDigits(input))
	if utf8.RuneCountInString(name) < MinNameChars {
		return &Error{Code: CodeNameRequired, Message: "a name with at least 2 characters is required"}
	}
	return nil
}

// ordinary accepts an empty string (the slot becomes free), an all-digit
// phone number of at least six digits or any other text of at least two
// characters.
func ordinary(input string) error {
	if input == "" {
		return nil
	}
	if allDigits(input) {
		if len(input) < MinPhoneDigits {
			return &Error{Code: CodePhoneTooShort, Message: "a phone number must have at least 6 digits"}
		}
		return nil
	}
	if utf8.RuneCountInString(input) < MinNameChars {
		return &Error{Code: CodeNameTooShort, Message: "at least 2 characters are required"}
	}
	return nil
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func longestDigitRun(s string) int {
	best, run := 0, 0
	for _, r := range s {
		if isDigit(r) {
			run++
			if run > best {
				best = run
			}
			continue
		}
		run = 0
	}
	return best
}

func stripDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if isDigit(r) {
			return -1
		}
		return r
	}, s)
}

func allDigits(s string) bool {
	for _, r := range s {
		if !isDigit(r) {
			return false
		}
	}
	return s != ""
}
