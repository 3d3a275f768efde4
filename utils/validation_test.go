package utils

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type loginPayload struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type uploadPayload struct {
	Folder string `validate:"required,storagefolder"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid struct", func(t *testing.T) {
		assert.NoError(t, ValidateStruct(loginPayload{Email: "a@b.com", Password: "short"}))
	})

	t.Run("missing fields are reported per field", func(t *testing.T) {
		err := ValidateStruct(loginPayload{Email: "a@b.com"})
		require.Error(t, err)
		assert.True(t, IsValidationError(err))

		fields := GetValidationFields(err)
		assert.Equal(t, "Password is required", fields["Password"])
		assert.NotContains(t, fields, "Email")

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.True(t, vErr.HasTag("required"))
		assert.False(t, vErr.HasTag("email"))
	})

	t.Run("custom folder tag", func(t *testing.T) {
		err := ValidateStruct(uploadPayload{Folder: "../etc"})
		require.Error(t, err)
		assert.Contains(t, GetValidationFields(err)["Folder"], "relative path")

		assert.NoError(t, ValidateStruct(uploadPayload{Folder: "courses/2024_spring"}))
	})
}

func TestIsValidationError(t *testing.T) {
	assert.False(t, IsValidationError(assert.AnError))
	assert.Nil(t, GetValidationFields(assert.AnError))
}

func TestIsValidFolder(t *testing.T) {
	tests := []struct {
		folder string
		want   bool
	}{
		{"uploads", true},
		{"articles/covers", true},
		{"mentor-avatars_2025", true},
		{"", false},
		{"/uploads", false},
		{"uploads/", false},
		{"../secret", false},
		{"a/../b", false},
		{"a//b", false},
		{"with space", false},
	}

	for _, tt := range tests {
		t.Run(tt.folder, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValidFolder(tt.folder))
		})
	}
}

func TestQueryInt(t *testing.T) {
	values := url.Values{"limit": {"20"}, "offset": {"abc"}, "blank": {" "}}

	assert.Equal(t, 20, QueryInt(values, "limit", 50))
	assert.Equal(t, 0, QueryInt(values, "offset", 0))
	assert.Equal(t, 7, QueryInt(values, "blank", 7))
	assert.Equal(t, 9, QueryInt(values, "missing", 9))
}

func TestClampLimitOffset(t *testing.T) {
	tests := []struct {
		name                 string
		limit, offset        int
		wantLimit, wantOffst int
	}{
		{"within bounds", 20, 40, 20, 40},
		{"zero limit uses default", 0, 0, 50, 0},
		{"negative limit uses default", -5, 0, 50, 0},
		{"limit capped", 1000, 0, 100, 0},
		{"negative offset", 10, -3, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, o := ClampLimitOffset(tt.limit, tt.offset, 50, 100)
			assert.Equal(t, tt.wantLimit, l)
			assert.Equal(t, tt.wantOffst, o)
		})
	}
}
