// Package validate checks input structs against their `validate` tags and
// reports failures as field-level apperr validation errors.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/smarthostel/smarthostel/internal/apperr"
	"github.com/smarthostel/smarthostel/internal/model"
)

var (
	once     sync.Once
	instance *validator.Validate
)

// enum is implemented by the closed string types in model.
type enum interface {
	Valid() bool
}

func get() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())

		// Report fields by their JSON names.
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})

		must(v.RegisterValidation("room", func(fl validator.FieldLevel) bool {
			return model.ValidRoom(fl.Field().String())
		}))
		must(v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			return model.ValidPhone(fl.Field().String())
		}))
		must(v.RegisterValidation("imageurl", func(fl validator.FieldLevel) bool {
			return model.ValidImageURL(fl.Field().String())
		}))
		must(v.RegisterValidation("loandays", func(fl validator.FieldLevel) bool {
			d := fl.Field().Int()
			return d >= 1 && d <= model.MaxBorrowDays
		}))
		must(v.RegisterValidation("enum", func(fl validator.FieldLevel) bool {
			e, ok := fl.Field().Interface().(enum)
			return ok && e.Valid()
		}))

		instance = v
	})
	return instance
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}

// Struct validates s. It returns nil or an *apperr.Error of kind validation.
func Struct(s any) error {
	err := get().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating input: %w", err)
	}

	fields := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperr.FieldError{
			Field:   fieldPath(fe),
			Message: message(fe),
		})
	}
	return apperr.Validation(fields...)
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		if fe.Kind() == reflect.String {
			return "must be at least " + fe.Param() + " characters"
		}
		return "must be at least " + fe.Param()
	case "max":
		if fe.Kind() == reflect.String {
			return "must be at most " + fe.Param() + " characters"
		}
		return "must be at most " + fe.Param()
	case "email":
		return "must be a valid email address"
	case "room":
		return "must be an uppercase letter followed by three digits"
	case "phone":
		return "must be a 10-digit number starting with 6-9"
	case "imageurl":
		return "must be an image URL (jpg, jpeg, png, gif, webp)"
	case "loandays":
		return fmt.Sprintf("must be between 1 and %d days", model.MaxBorrowDays)
	case "enum", "oneof":
		return "is not an allowed value"
	case "dive":
		return "has an invalid element"
	}
	return "failed " + fe.Tag() + " check"
}
