package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name     string  `json:"name" validate:"required,min=5"`
	Email    string  `json:"email" validate:"required,email"`
	Priority *string `json:"priority" validate:"omitempty,oneof=low medium high"`
	Limit    int     `query:"limit" validate:"omitempty,min=1,max=100"`
}

func TestValidate(t *testing.T) {
	v := New()
	assert.NoError(t, v.Validate(&sample{Name: "hello", Email: "a@example.com"}))

	bad := "urgent"
	err := v.Validate(&sample{Name: "hi", Email: "nope", Priority: &bad, Limit: 500})
	require.Error(t, err)
	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "name must be at least 5 characters")
	assert.Contains(t, verr.Message, "email must be a valid email")
	assert.Contains(t, verr.Message, "priority must be one of [low medium high]")
	assert.Contains(t, verr.Message, "limit must be at most 100")
}
