package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizePayload_SizeLimit(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		wantErr bool
	}{
		{"Under Limit", DefaultMaxPayloadSize - 1, false},
		{"Exact Limit", DefaultMaxPayloadSize, false},
		{"Over Limit", DefaultMaxPayloadSize + 1, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SanitizePayload(strings.Repeat("a", tt.size))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrPayloadTooLarge)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizePayload_ControlChars(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Normal Text", "Hello World", "Hello World"},
		{"Safe Controls", "Line1\nLine2\tTabbed", "Line1\nLine2\tTabbed"},
		{"ANSI Code", "\x1b[31mRed\x1b[0m", "[31mRed[0m"},
		{"Null Byte", "SET+\x00lang", "SET+lang"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SanitizePayload(tt.input)
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSanitizePayload_InvalidUTF8(t *testing.T) {
	_, err := SanitizePayload("bad\xff")
	assert.ErrorIs(t, err, ErrInvalidUTF8)
}

func TestSanitizePayload_EnvOverride(t *testing.T) {
	t.Setenv(EnvMaxPayloadSize, "10")
	_, err := SanitizePayload("12345678901")
	assert.Error(t, err)
	_, err = SanitizePayload("12345")
	assert.NoError(t, err)
}
