package validator

import (
	"github.com/go-playground/validator/v10"
)

// PasswordTag is the struct tag validating a field against DefaultPolicy.
const PasswordTag = "password"

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	if err := validate.RegisterValidation(PasswordTag, func(fl validator.FieldLevel) bool {
		return DefaultPolicy{}.Check(fl.Field().String()) == nil
	}); err != nil {
		panic(err)
	}
}

func GetValidator() *validator.Validate {
	return validate
}
