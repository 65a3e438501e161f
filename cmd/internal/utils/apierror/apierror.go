package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrorResponse is what every service returns to the route layer.
// Implementations must be JSON-serializable as the response body.
type ErrorResponse interface {
	error
	Code() int
}

type SimpleError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
}

func (e *SimpleError) Code() int     { return e.StatusCode }
func (e *SimpleError) Error() string { return e.Message }

// FieldsError carries a field -> message mapping for validation failures.
type FieldsError struct {
	StatusCode int               `json:"-"`
	Message    string            `json:"message"`
	Fields     map[string]string `json:"fields"`
}

func (e *FieldsError) Code() int     { return e.StatusCode }
func (e *FieldsError) Error() string { return e.Message }

var (
	InternalServerError = &SimpleError{StatusCode: http.StatusInternalServerError, Message: "Internal server error"}
	NotFoundError       = &SimpleError{StatusCode: http.StatusNotFound, Message: "Not found"}
	MalformedBodyError  = &SimpleError{StatusCode: http.StatusBadRequest, Message: "Malformed request body"}

	// Deliberately generic: does not reveal whether the username exists.
	InvalidCredentialsError = &SimpleError{StatusCode: http.StatusUnauthorized, Message: "Invalid credentials"}
	InvalidAuthTokenError   = &SimpleError{StatusCode: http.StatusUnauthorized, Message: "Invalid or missing auth token"}
	ForbiddenError          = &SimpleError{StatusCode: http.StatusForbidden, Message: "Not allowed"}

	SlotTakenError = NewFieldError("time", "the doctor already has an appointment at this time")
)

func NewSimple(code int, message string) *SimpleError {
	return &SimpleError{StatusCode: code, Message: message}
}

func NewMissingParamError(name string) *SimpleError {
	return NewSimple(http.StatusBadRequest, fmt.Sprintf("Missing required parameter: %s", name))
}

func NewInvalidParamTypeError(name, kind string) *SimpleError {
	return NewSimple(http.StatusBadRequest, fmt.Sprintf("Parameter %s must be of type %s", name, kind))
}

// NewFieldError builds a single-field validation failure.
func NewFieldError(field, message string) *FieldsError {
	return &FieldsError{
		StatusCode: http.StatusBadRequest,
		Message:    "Validation failed",
		Fields:     map[string]string{field: message},
	}
}

// FromValidationError maps a validator.ValidationErrors into a
// field -> message response. Any other error becomes a generic 400.
func FromValidationError(err error) ErrorResponse {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return MalformedBodyError
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldName(fe)] = tagMessage(fe)
	}

	return &FieldsError{
		StatusCode: http.StatusBadRequest,
		Message:    "Validation failed",
		Fields:     fields,
	}
}

// fieldName prefers the json tag name registered on the validator; it
// falls back to lowercasing the struct field name.
func fieldName(fe validator.FieldError) string {
	name := fe.Field()
	if name == "" {
		return name
	}
	if name != fe.StructField() {
		return name
	}
	return strings.ToLower(name[:1]) + name[1:]
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters long", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters long", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "hasupper":
		return "must contain an uppercase letter"
	case "haslower":
		return "must contain a lowercase letter"
	case "hasdigit":
		return "must contain a digit"
	case "hasspecial":
		return "must contain a special character"
	case "nospaces":
		return "must not contain whitespace"
	case "dateonly":
		return "must be a date in YYYY-MM-DD format"
	case "clocktime":
		return "must be a time in HH:MM format"
	default:
		return fmt.Sprintf("failed on the %s rule", fe.Tag())
	}
}
