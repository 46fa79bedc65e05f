package handlers

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// registerRequest mirrors the registration form fields
type registerRequest struct {
	Name      string   `validate:"required,max=200"`
	Age       *int     `validate:"omitempty,min=0,max=150"`
	Gender    string   `validate:"max=50"`
	Height    *float64 `validate:"omitempty,gt=0,lt=300"`
	Weight    *float64 `validate:"omitempty,gt=0,lt=700"`
	Phone     string   `validate:"omitempty,max=32"`
	Latitude  *float64 `validate:"omitempty,min=-90,max=90"`
	Longitude *float64 `validate:"omitempty,min=-180,max=180"`
}

// validationMessage flattens validator errors into one readable sentence
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", field))
		default:
			parts = append(parts, fmt.Sprintf("%s failed '%s=%s'", field, fe.Tag(), fe.Param()))
		}
	}
	return strings.Join(parts, "; ")
}
