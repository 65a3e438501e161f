package validators

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

type passwordProbe struct {
	Value string `validate:"hasupper,haslower,hasdigit,hasspecial,nospaces"`
}

type dateProbe struct {
	Date string `validate:"dateonly"`
	Time string `validate:"clocktime"`
}

func newValidate(t *testing.T) *validator.Validate {
	t.Helper()
	validate := validator.New()
	_ = validate.RegisterValidation("hasupper", HasUpper)
	_ = validate.RegisterValidation("haslower", HasLower)
	_ = validate.RegisterValidation("hasdigit", HasDigit)
	_ = validate.RegisterValidation("hasspecial", HasSpecial)
	_ = validate.RegisterValidation("nospaces", NoWhiteSpaces)
	_ = validate.RegisterValidation("dateonly", IsDateOnly)
	_ = validate.RegisterValidation("clocktime", IsClockTime)
	return validate
}

func TestPasswordRules(t *testing.T) {
	validate := newValidate(t)

	cases := []struct {
		value string
		ok    bool
	}{
		{"Abcdef1$", true},
		{"abcdef1$", false}, // no upper
		{"ABCDEF1$", false}, // no lower
		{"Abcdefg$", false}, // no digit
		{"Abcdefg1", false}, // no special
		{"Abcde f1$", false}, // whitespace
	}

	for _, tc := range cases {
		err := validate.Struct(&passwordProbe{Value: tc.value})
		if tc.ok && err != nil {
			t.Errorf("%q should pass, got %v", tc.value, err)
		}
		if !tc.ok && err == nil {
			t.Errorf("%q should fail", tc.value)
		}
	}
}

func TestDateAndClockRules(t *testing.T) {
	validate := newValidate(t)

	if err := validate.Struct(&dateProbe{Date: "2024-06-01", Time: "10:00"}); err != nil {
		t.Fatalf("valid date/time rejected: %v", err)
	}

	bad := []dateProbe{
		{Date: "01-06-2024", Time: "10:00"},
		{Date: "2024-13-01", Time: "10:00"},
		{Date: "2024-06-01", Time: "25:00"},
		{Date: "2024-06-01", Time: "10:00:00"},
	}
	for _, probe := range bad {
		if err := validate.Struct(&probe); err == nil {
			t.Errorf("%+v should fail", probe)
		}
	}
}
