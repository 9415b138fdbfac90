package errors

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForCLI(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains []string
	}{
		{
			name:     "nil",
			err:      nil,
			contains: nil,
		},
		{
			name: "edm error with path and hint",
			err: New(ErrCodeFileTooLarge, "file exceeds size ceiling", nil).
				WithDetail("path", "/data/big.bin").
				WithSuggestion("exclude it"),
			contains: []string{
				"Error: file exceeds size ceiling",
				"Path: /data/big.bin",
				"Hint: exclude it",
				"Code: ERR_204_FILE_TOO_LARGE",
			},
		},
		{
			name:     "plain error becomes internal",
			err:      errors.New("boom"),
			contains: []string{"Error: boom", "Code: ERR_501_INTERNAL"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := FormatForCLI(tt.err)
			if tt.contains == nil {
				assert.Empty(t, out)
				return
			}
			for _, want := range tt.contains {
				assert.Contains(t, out, want)
			}
		})
	}
}

func TestFormatJSON_EdmError(t *testing.T) {
	// Given: an error with a cause
	err := New(ErrCodeInvalidQuery, "unbalanced quote", errors.New("at offset 3")).
		WithDetail("pattern", `"abc`)

	// When: encoding
	data, jerr := FormatJSON(err)
	require.NoError(t, jerr)

	// Then: the fields are present
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "ERR_403_INVALID_QUERY", decoded["code"])
	assert.Equal(t, "VALIDATION", decoded["category"])
	assert.Equal(t, "at offset 3", decoded["cause"])
	assert.Equal(t, false, decoded["retryable"])
}

func TestFormatJSON_Nil(t *testing.T) {
	data, err := FormatJSON(nil)
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}

func TestLogAttrs(t *testing.T) {
	assert.Nil(t, LogAttrs(nil))
	assert.Equal(t, []any{"error", "plain"}, LogAttrs(errors.New("plain")))

	attrs := LogAttrs(IndexError("busy", nil).WithDetail("id", "abc"))
	assert.Contains(t, attrs, "ERR_301_INDEX_UNAVAILABLE")
	assert.Contains(t, attrs, "detail_id")
	assert.Contains(t, attrs, "abc")
}
