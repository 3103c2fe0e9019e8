package validators

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

type sample struct {
	Content string `validate:"required,clean"`
}

func TestIsTextClean(t *testing.T) {
	assert.True(t, IsTextClean("hello world"))
	assert.True(t, IsTextClean("I forgot my password in class"))
	assert.False(t, IsTextClean("what a JERK"))
	assert.False(t, IsTextClean("damn!"))
}

func TestValidateReturnsBadRequest(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.Validate(sample{Content: "nice post"}))

	err := v.Validate(sample{Content: "you idiot"})
	if assert.Error(t, err) {
		httpErr, ok := err.(*echo.HTTPError)
		assert.True(t, ok)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code)
	}

	assert.Error(t, v.Validate(sample{}))
}
