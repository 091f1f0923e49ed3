package chat

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// NUL cannot be stored in a Postgres text column
	_ = v.RegisterValidation("nonul", func(fl validator.FieldLevel) bool {
		return !strings.ContainsRune(fl.Field().String(), 0)
	})
	return v
}

type sendRequest struct {
	Author string `validate:"required,max=50,nonul"`
	Body   string `validate:"max=1000,nonul"`
}

type joinRequest struct {
	Username string `validate:"required,max=50,nonul"`
}

// ValidateSend checks a send event and returns the author with surrounding
// whitespace removed. An empty body is accepted and relayed as a blank line.
func ValidateSend(author, body string) (string, error) {
	req := sendRequest{Author: strings.TrimSpace(author), Body: body}
	if err := validate.Struct(req); err != nil {
		return "", invalid(err)
	}
	return req.Author, nil
}

// ValidateJoin checks a join event and returns the trimmed username.
func ValidateJoin(username string) (string, error) {
	req := joinRequest{Username: strings.TrimSpace(username)}
	if err := validate.Struct(req); err != nil {
		return "", invalid(err)
	}
	return req.Username, nil
}

func invalid(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	fe := fieldErrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%w: %s must not be blank", ErrInvalidMessage, field)
	case "max":
		return fmt.Errorf("%w: %s exceeds %s characters", ErrInvalidMessage, field, fe.Param())
	case "nonul":
		return fmt.Errorf("%w: %s must not contain NUL characters", ErrInvalidMessage, field)
	default:
		return fmt.Errorf("%w: %s failed %s", ErrInvalidMessage, field, fe.Tag())
	}
}
