package paymentrequest

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"billpay-be/internal/payment"

	"github.com/go-playground/validator/v10"
)

var phonePattern = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)

type inputValidator struct {
	validate *validator.Validate
}

func newInputValidator() *inputValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails on an empty tag or nil func.
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return &inputValidator{validate: v}
}

// check normalizes in and reports the first rule it breaks as an
// ErrInvalidRequest.
func (iv *inputValidator) check(in *CreateInput) error {
	if err := payment.ValidateAmount(in.Amount); err != nil {
		return err
	}

	in.Description = strings.TrimSpace(in.Description)
	in.RequesterEmail = strings.TrimSpace(in.RequesterEmail)
	in.RequesterPhone = strings.TrimSpace(in.RequesterPhone)

	err := iv.validate.Struct(in)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%w: %v", payment.ErrInvalidRequest, err)
	}
	return fmt.Errorf("%w: %s", payment.ErrInvalidRequest, describe(verrs[0]))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "phone":
		return fmt.Sprintf("%s must be a valid phone number", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
