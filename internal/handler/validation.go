package handler

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

func oneOf(fl validator.FieldLevel) bool {
	matches := strings.Split(fl.Param(), " ")
	value := fl.Field().String()
	for _, match := range matches {
		if match == value {
			return true
		}
	}
	return false
}

func noWhitespace(fl validator.FieldLevel) bool {
	return !strings.ContainsFunc(fl.Field().String(), unicode.IsSpace)
}

var validations = map[string]validator.Func{
	"oneOf":        oneOf,
	"noWhitespace": noWhitespace,
}

func register(v *validator.Validate) error {
	for tag, fn := range validations {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("error registering validation %q: %v", tag, err)
		}
	}
	return nil
}

// RegisterValidation Inspiration: https://blog.logrocket.com/gin-binding-in-go-a-tutorial-with-examples/
func RegisterValidation() error {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		return register(v)
	}
	return fmt.Errorf("error getting validation engine")
}

// matches returns a validation accepting values in which expression finds a match. An empty
// expression accepts every value.
func matches(expression string) (validator.Func, error) {
	if expression == "" {
		return func(validator.FieldLevel) bool { return true }, nil
	}

	re, err := regexp.Compile(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %v", expression, err)
	}

	return func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	}, nil
}

// NewValidator returns a validator using the "validate" struct tag with the custom validations
// registered. Fields tagged "password" must match passwordPattern.
func NewValidator(passwordPattern string) (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := register(v); err != nil {
		return nil, err
	}

	password, err := matches(passwordPattern)
	if err != nil {
		return nil, err
	}
	if err := v.RegisterValidation("password", password); err != nil {
		return nil, fmt.Errorf("error registering validation %q: %v", "password", err)
	}

	return v, nil
}
