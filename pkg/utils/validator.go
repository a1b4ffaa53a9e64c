package utils

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateStruct runs the `validate` struct tags of s.
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}
