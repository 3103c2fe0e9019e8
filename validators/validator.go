package validators

import (
	"net/http"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// BadWords is the default list rejected by the `clean` tag.
var BadWords = []string{
	"ass", "bitch", "bastard", "crap", "damn", "dick", "fuck",
	"idiot", "jerk", "piss", "shit", "slut", "whore",
}

// CustomValidator adapts go-playground/validator to echo's Validator interface.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator returns the validator registered on the echo instance.
func NewValidator() *CustomValidator {
	v := validator.New()
	_ = v.RegisterValidation("clean", validateClean)
	return &CustomValidator{validator: v}
}

// Validate runs struct validation and turns failures into 400 responses.
func (cv *CustomValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func validateClean(fl validator.FieldLevel) bool {
	return IsTextClean(fl.Field().String())
}

// IsTextClean reports whether text contains none of the BadWords as a whole
// word, ignoring case. "password" or "class" are fine, "Ass!" is not.
func IsTextClean(text string) bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	for _, w := range words {
		for _, bad := range BadWords {
			if w == bad {
				return false
			}
		}
	}
	return true
}
