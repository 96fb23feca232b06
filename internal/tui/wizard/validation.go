package wizard

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("label"); name != "" {
			return name
		}
		return f.Name
	})
	_ = v.RegisterValidation("positive_decimal", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(strings.TrimSpace(fl.Field().String()))
		return err == nil && d.IsPositive()
	})
	return v
}

type sellerCheck struct {
	Name   string `label:"Seller name" validate:"required"`
	Mobile string `label:"Mobile number" validate:"required,len=10"`
	Email  string `label:"Email" validate:"omitempty,email"`
}

type slotCheck struct {
	Amount string `label:"Amount" validate:"required,positive_decimal"`
	Date   string `label:"Payment date" validate:"required"`
}

type conditionCheck struct {
	InspectionDate string `label:"Inspection date" validate:"required"`
	Grade          string `label:"Condition grade" validate:"required"`
	Images         int    `label:"Vehicle images" validate:"min=1"`
}

// check validates s and returns the first failure as a readable message,
// or "" when s is valid.
func check(s any) string {
	err := validate.Struct(s)
	if err == nil {
		return ""
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err.Error()
	}
	return describe(fieldErrs[0])
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", fe.Field(), fe.Param())
	case "email":
		return fe.Field() + " must be a valid email address"
	case "positive_decimal":
		return fe.Field() + " must be greater than 0"
	case "min":
		return fmt.Sprintf("%s: at least %s required", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
}
