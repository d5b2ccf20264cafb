package auth

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"

	"sealmax-messenger/errors"
)

var validate = newValidator()

var customIDPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9]*$`)

type RegisterRequest struct {
	Username string `validate:"required,min=1,max=64"`
	CustomID string `validate:"omitempty,customid"`
	Password string `validate:"required,min=8,max=72"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	// The rule mirrors the storage-level constraint so a bad handle is
	// rejected before any hashing happens.
	_ = v.RegisterValidation("customid", func(fl validator.FieldLevel) bool {
		return customIDPattern.MatchString(fl.Field().String())
	})
	return v
}

func ValidateRegister(req RegisterRequest) error {
	if err := validate.Struct(req); err != nil {
		if req.CustomID != "" && !customIDPattern.MatchString(req.CustomID) {
			return errors.ErrInvalidCustomID
		}
		return fmt.Errorf("%w: %v", errors.ErrInvalidRegistration, err)
	}
	return nil
}
