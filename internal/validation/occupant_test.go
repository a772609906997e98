package validation

import (
	"errors"
	"testing"

	"github.com/iliyamo/parking-schedule/internal/model"
)

func TestOccupant(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		kind  model.SpotKind
		input string
		code  Code
	}{
		{name: "blocking_digits_only", kind: model.SpotBlocking, input: "0501234", code: CodeNameRequired},
		{name: "blocking_name_and_phone", kind: model.SpotBlocking, input: "Yossi 050-1234567"},
		{name: "blocking_phone_first", kind: model.SpotBlocking, input: "Yossi 050-12", code: CodePhoneRequired},
		{name: "blocking_empty", kind: model.SpotBlocking, input: "", code: CodePhoneRequired},
		{name: "blocking_name_too_short", kind: model.SpotBlocking, input: " Y 0501234567 ", code: CodeNameRequired},
		{name: "blocking_hebrew_name", kind: model.SpotBlocking, input: "יוסי 0501234567"},
		{name: "ordinary_five_digits", kind: model.SpotOrdinary, input: "12345", code: CodePhoneTooShort},
		{name: "ordinary_six_digits", kind: model.SpotOrdinary, input: "123456"},
		{name: "ordinary_empty", kind: model.SpotOrdinary, input: ""},
		{name: "ordinary_single_char", kind: model.SpotOrdinary, input: "A", code: CodeNameTooShort},
		{name: "ordinary_name", kind: model.SpotOrdinary, input: "Dorit"},
		{name: "ordinary_two_runes", kind: model.SpotOrdinary, input: "דב"},
		{name: "ordinary_mixed_short_digits", kind: model.SpotOrdinary, input: "a1"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := Occupant(tc.kind, tc.input)
			if tc.code == "" {
				if err != nil {
					t.Fatalf("Occupant(%q) = %v, want nil", tc.input, err)
				}
				return
			}
			var verr *Error
			if !errors.As(err, &verr) {
				t.Fatalf("Occupant(%q) = %v, want *Error", tc.input, err)
			}
			if verr.Code != tc.code {
				t.Fatalf("Occupant(%q) code = %s, want %s", tc.input, verr.Code, tc.code)
			}
			if verr.Message == "" {
				t.Fatalf("expected a message")
			}
		})
	}
}
