package id

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixed = uuid.MustParse("3f9c2a1b-0d4e-4f00-8a11-22b3c4d5e6f7")

func TestShort(t *testing.T) {
	assert.Equal(t, "3f9c2a1b", Short(fixed))
	assert.Len(t, Short(New()), ShortLen)
}

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"3f9c2a1b-0d4e-4f00-8a11-22b3c4d5e6f7", false},
		{" 3F9C2A1B-0D4E-4F00-8A11-22B3C4D5E6F7 ", false},
		{"3f9c2a1b", true},
		{"", true},
	}
	for _, tt := range tests {
		got, err := Parse(tt.input)
		if tt.wantErr {
			assert.Error(t, err, "input: %q", tt.input)
			continue
		}
		require.NoError(t, err, "input: %q", tt.input)
		assert.Equal(t, fixed, got)
	}
}

func TestPrefix(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"3f9c", true},
		{"3F9C2A1B", true},
		{"3f9c2a1b-0d4e", true},
		{"3f9", false},
		{"3f9c2a1b0", true},
		{"3f9c-2a1b", false},
		{"checking", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsPrefix(tt.input), "input: %q", tt.input)
	}

	assert.True(t, MatchPrefix(fixed, "3F9C2A"))
	assert.False(t, MatchPrefix(fixed, "3f9d"))
}
