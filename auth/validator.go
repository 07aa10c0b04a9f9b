package auth

import (
	"chat-client/errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Username    string `json:"username" validate:"required,min=3,max=32"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6,max=72"`
	AcceptTerms bool   `json:"-" validate:"required"`
}

func ValidateLogin(req LoginRequest) error {
	return check(req)
}

func ValidateRegister(req RegisterRequest) error {
	return check(req)
}

// check turns validator failures into a single inline message,
// one "field: rule" pair per failing field.
func check(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	fieldErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("%w: %v", errors.ErrInvalidCredentials, err)
	}
	reasons := make([]string, 0, len(fieldErrors))
	for _, fe := range fieldErrors {
		reasons = append(reasons, fmt.Sprintf("%s: %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", errors.ErrInvalidCredentials, strings.Join(reasons, ", "))
}
