package model

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/m-mizutani/goerr/v2"
)

var validate = newValidator()

// newValidator reports fields by their JSON names
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct checks the validate tags of v. The first failing field is
// reported as an INVALID_INPUT validation error.
func validateStruct(v any, msg string) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	opts := []goerr.Option{goerr.T(TagValidation), WithCode(CodeInvalidInput)}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return goerr.Wrap(err, msg, opts...)
	}

	fe := fieldErrs[0]
	opts = append(opts,
		goerr.V("name", fe.Field()),
		goerr.V("value", fe.Value()),
		goerr.V("rule", fe.Tag()),
		goerr.V("param", fe.Param()),
	)
	return goerr.New(msg, opts...)
}
