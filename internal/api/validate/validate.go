package validate

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ErrField struct {
	Field string `json:"field"`
	Msg   string `json:"msg"`
}

type Errs []ErrField

func (e Errs) Error() string {
	var b strings.Builder
	for i, ef := range e {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(ef.Field + ": " + ef.Msg)
	}
	return b.String()
}

// Has reports whether field failed validation.
func (e Errs) Has(field string) bool {
	for _, ef := range e {
		if ef.Field == field {
			return true
		}
	}
	return false
}

var v = validator.New(validator.WithRequiredStructEnabled())

// Struct checks the `validate` tags on s and returns Errs, or nil.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	out := make(Errs, 0, len(ve))
	for _, fe := range ve {
		out = append(out, ErrField{Field: fieldName(fe), Msg: message(fe)})
	}
	return out
}

func fieldName(fe validator.FieldError) string {
	return strings.ToLower(fe.Field())
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "gt":
		return "must be > " + fe.Param()
	case "gte", "min":
		return "must be >= " + fe.Param()
	case "lte", "max":
		return "must be <= " + fe.Param()
	default:
		return "is invalid"
	}
}
