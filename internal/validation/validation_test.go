package validation

import (
	"testing"

	"murmur/internal/models"

	"github.com/stretchr/testify/assert"
)

type signupPayload struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type postPayload struct {
	Content string `json:"content" validate:"content"`
}

type profilePayload struct {
	Name *string `json:"name" validate:"omitempty,notblank"`
}

type bioPayload struct {
	Bio string `json:"bio" validate:"max=5"`
}

func TestStruct(t *testing.T) {
	blank := " "
	tests := []struct {
		name    string
		input   any
		reason  string
		message string
	}{
		{"valid", signupPayload{Username: "ann", Password: "pw"}, "", ""},
		{"missing field", signupPayload{Username: "ann"}, models.ReasonMissingField, "password is required"},
		{"blank content", postPayload{Content: "  \n\t"}, models.ReasonMissingContent, "content is required"},
		{"content ok", postPayload{Content: " hi "}, "", ""},
		{"blank name", profilePayload{Name: &blank}, models.ReasonMissingField, "name is required"},
		{"absent name", profilePayload{}, "", ""},
		{"too long", bioPayload{Bio: "toolong"}, models.ReasonInvalidField, "bio must be at most 5 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.input)
			if tt.reason == "" {
				assert.NoError(t, err)
				return
			}
			appErr := models.AsAppError(err)
			assert.Equal(t, models.CodeValidation, appErr.Code)
			assert.Equal(t, tt.reason, appErr.Reason)
			assert.Equal(t, tt.message, appErr.Message)
		})
	}
}
