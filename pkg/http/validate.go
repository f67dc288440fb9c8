package http

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report json/query names instead of Go field names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{"json", "query"} {
			name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
			if name != "" && name != "-" {
				return name
			}
		}
		return f.Name
	})
	// Query binding parses "NaN" and "Inf" as valid floats.
	_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		switch fl.Field().Kind() {
		case reflect.Float32, reflect.Float64:
			f := fl.Field().Float()
			return !math.IsNaN(f) && !math.IsInf(f, 0)
		}
		return true
	})
	return v
}

// Validate runs struct validation outside of a request bind.
func Validate(req interface{}) interface{} {
	if err := validate.Struct(req); err != nil {
		return toValidationErrors(err)
	}
	return nil
}

// ReadAndValidateRequest binds the body, path and query into req, fills
// `default` tags and validates the result.
func ReadAndValidateRequest(c echo.Context, req interface{}) interface{} {
	if err := c.Bind(req); err != nil {
		return toValidationErrors(err)
	}
	if err := defaults.Set(req); err != nil {
		return toValidationErrors(err)
	}
	if err := validate.StructCtx(c.Request().Context(), req); err != nil {
		return toValidationErrors(err)
	}
	return nil
}

func toValidationErrors(err error) []ValidationError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make([]ValidationError, 0, len(verrs))
		for _, fe := range verrs {
			out = append(out, ValidationError{
				Code:    "ERR_" + strings.ToUpper(fe.Tag()),
				Field:   fe.Field(),
				Message: fieldMessage(fe),
				Params:  fieldParams(fe),
			})
		}
		return out
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		// Bind failures carry the decoder message, e.g. a string in a number field.
		return []ValidationError{{Code: "ERR_BIND", Message: fmt.Sprintf("%v", he.Message)}}
	}
	return []ValidationError{{Code: "ERR_UNKNOWN", Message: err.Error()}}
}

type messageFunc func(field, param string, kind reflect.Kind) string

func fixed(format string) messageFunc {
	return func(field, param string, _ reflect.Kind) string {
		if strings.Count(format, "%s") == 2 {
			return fmt.Sprintf(format, field, param)
		}
		return fmt.Sprintf(format, field)
	}
}

func bound(word string) messageFunc {
	return func(field, param string, kind reflect.Kind) string {
		switch kind {
		case reflect.String:
			return fmt.Sprintf("%s must be %s %s characters", field, word, param)
		case reflect.Slice, reflect.Array, reflect.Map:
			return fmt.Sprintf("%s must hold %s %s entries", field, word, param)
		}
		return fmt.Sprintf("%s must be %s %s", field, word, param)
	}
}

var messages = map[string]messageFunc{
	"required": fixed("%s is required"),
	"min":      bound("at least"),
	"max":      bound("at most"),
	"gt":       fixed("%s must be greater than %s"),
	"gte":      fixed("%s must be greater than or equal to %s"),
	"lt":       fixed("%s must be less than %s"),
	"lte":      fixed("%s must be less than or equal to %s"),
	"finite":   fixed("%s must be a finite number"),
	"datetime": fixed("%s must be a date formatted as %s"),
	"dive":     fixed("%s contains an invalid element"),
	"oneof": func(field, param string, _ reflect.Kind) string {
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(param, " ", ", "))
	},
}

func fieldMessage(fe validator.FieldError) string {
	if m, ok := messages[fe.Tag()]; ok {
		return m(fe.Field(), fe.Param(), fe.Kind())
	}
	return fmt.Sprintf("%s failed validation: %s", fe.Field(), fe.Tag())
}

func fieldParams(fe validator.FieldError) map[string]interface{} {
	params := make(map[string]interface{})
	switch fe.Tag() {
	case "min", "gte":
		params["min"] = fe.Param()
	case "max", "lte":
		params["max"] = fe.Param()
	case "gt", "lt":
		params["value"] = fe.Param()
	case "oneof":
		params["options"] = strings.Split(fe.Param(), " ")
	case "datetime":
		params["layout"] = fe.Param()
	}
	return params
}
