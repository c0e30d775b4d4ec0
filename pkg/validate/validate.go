// Package validate runs struct-tag validation on decoded request bodies.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/fkhayef/kasmoni/pkg/apperror"
	"github.com/fkhayef/kasmoni/pkg/period"
)

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New()

	_ = val.RegisterValidation("period", func(fl validator.FieldLevel) bool {
		return period.Valid(fl.Field().String())
	})

	// Report JSON field names instead of Go field names
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	return val
}

// Struct validates s and returns an apperror.Validation on failure
func Struct(s any) error {
	if err := v.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return apperror.New(apperror.KindValidation, describe(verrs[0]))
		}
		return apperror.Wrap(apperror.KindValidation, "invalid request", err)
	}
	return nil
}

// Var validates a single value against a tag, e.g. Var(p, "period")
func Var(field string, value any, tag string) error {
	if err := v.Var(value, tag); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return apperror.New(apperror.KindValidation, describeTag(field, fe.Tag(), fe.Param()))
		}
		return apperror.Wrap(apperror.KindValidation, "invalid "+field, err)
	}
	return nil
}

// Decode reads a JSON body into dst and validates it
func Decode(body io.Reader, dst any) error {
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return apperror.Wrap(apperror.KindValidation, "Invalid request body", err)
	}
	return Struct(dst)
}

func describe(fe validator.FieldError) string {
	return describeTag(fe.Field(), fe.Tag(), fe.Param())
}

func describeTag(field, tag, param string) string {
	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "period":
		return fmt.Sprintf("%s must be in YYYY-MM format", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, param)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, param)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, param)
	case "datetime":
		return fmt.Sprintf("%s must be a date in %s format", field, param)
	case "dive":
		return fmt.Sprintf("%s contains an invalid item", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}
