package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "thoughtweb/pkg/errors"
)

type sample struct {
	Content string  `validate:"required,max=10"`
	Score   float64 `validate:"gte=0,lte=1"`
	Kind    string  `validate:"omitempty,oneof=thought memory"`
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name    string
		in      sample
		wantErr string
	}{
		{"valid", sample{Content: "hello", Score: 0.5}, ""},
		{"missing content", sample{Score: 0.5}, "content is required"},
		{"too long", sample{Content: "hello world!"}, "content must be at most 10"},
		{"score range", sample{Content: "x", Score: 1.5}, "score must be less than or equal to 1"},
		{"bad kind", sample{Content: "x", Kind: "other"}, "kind must be one of: thought memory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStruct(tt.in)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
