package web

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// reservedNames are first path segments owned by fixed routes. A bin with one
// of these names could never capture on its own URL.
var reservedNames = map[string]bool{
	"api":     true,
	"healthz": true,
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("binname", func(fl validator.FieldLevel) bool {
		return !reservedNames[strings.ToLower(fl.Field().String())]
	})
	return v
}

type CreateBinRequest struct {
	Private bool   `json:"private"`
	Name    string `json:"name" validate:"omitempty,alphanum,max=64,binname"`
}

// ValidateCreateBin checks a bin creation request, returning an error with a
// readable message.
func ValidateCreateBin(req CreateBinRequest) error {
	if err := validate.Struct(req); err != nil {
		return errors.New(validationMessage(err))
	}
	return nil
}

type ReplayRequest struct {
	Target string `validate:"required,url"`
}

// validationMessage turns validator errors into a single readable line.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		switch e.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("Field '%s' is required", e.Field()))
		case "url":
			msgs = append(msgs, fmt.Sprintf("Field '%s' must be a valid URL", e.Field()))
		case "alphanum":
			msgs = append(msgs, fmt.Sprintf("Field '%s' must be alphanumeric", e.Field()))
		case "binname":
			msgs = append(msgs, fmt.Sprintf("Field '%s' is a reserved name", e.Field()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("Field '%s' must be at most %s characters", e.Field(), e.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag()))
		}
	}
	return strings.Join(msgs, ", ")
}
