package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	edmerrors "github.com/Aman-CERP/edm/internal/errors"
)

func TestMapError_NilError(t *testing.T) {
	assert.Nil(t, MapError(nil))
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{
			name:     "deadline exceeded",
			err:      context.DeadlineExceeded,
			wantCode: ErrCodeTimeout,
			wantMsg:  "timed out",
		},
		{
			name:     "canceled",
			err:      fmt.Errorf("search failed: %w", context.Canceled),
			wantCode: ErrCodeTimeout,
			wantMsg:  "canceled",
		},
		{
			name:     "invalid query",
			err:      edmerrors.QueryError("unbalanced quote in pattern", nil),
			wantCode: ErrCodeInvalidParams,
			wantMsg:  "unbalanced quote",
		},
		{
			name:     "unknown source",
			err:      edmerrors.New(edmerrors.ErrCodeSourceNotFound, "source docs not found", nil),
			wantCode: ErrCodeSourceNotFound,
			wantMsg:  "docs",
		},
		{
			name:     "index unavailable wrapped",
			err:      fmt.Errorf("search for %q failed: %w", "x", edmerrors.IndexError("index closed", nil)),
			wantCode: ErrCodeIndexUnavailable,
			wantMsg:  "index closed",
		},
		{
			name:     "index timeout",
			err:      edmerrors.New(edmerrors.ErrCodeIndexTimeout, "query took too long", nil),
			wantCode: ErrCodeTimeout,
			wantMsg:  "too long",
		},
		{
			name:     "catalog unavailable",
			err:      edmerrors.New(edmerrors.ErrCodeCatalogUnavailable, "catalog locked", nil),
			wantCode: ErrCodeCatalogUnavailable,
			wantMsg:  "catalog locked",
		},
		{
			name:     "corrupt index",
			err:      edmerrors.New(edmerrors.ErrCodeCorruptIndex, "segment unreadable", nil),
			wantCode: ErrCodeIndexUnavailable,
			wantMsg:  "segment unreadable",
		},
		{
			name:     "config error",
			err:      edmerrors.ConfigError("bad regex", nil),
			wantCode: ErrCodeInternalError,
			wantMsg:  "bad regex",
		},
		{
			name:     "tool not found sentinel",
			err:      ErrToolNotFound,
			wantCode: ErrCodeMethodNotFound,
		},
		{
			name:     "resource not found sentinel",
			err:      ErrResourceNotFound,
			wantCode: ErrCodeMethodNotFound,
		},
		{
			name:     "unknown error",
			err:      errors.New("boom"),
			wantCode: ErrCodeInternalError,
			wantMsg:  "Internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// When: mapping the error
			got := MapError(tt.err)

			// Then: the code and message follow the error kind
			require.NotNil(t, got)
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Contains(t, got.Message, tt.wantMsg)
		})
	}
}

func TestMapError_IncludesSuggestion(t *testing.T) {
	// Given: an error with a suggestion
	err := edmerrors.IndexError("index unavailable", nil).WithSuggestion("run edm crawl first")

	// When: mapping the error
	got := MapError(err)

	// Then: the suggestion is appended to the message
	require.NotNil(t, got)
	assert.Equal(t, "index unavailable run edm crawl first", got.Message)
}

func TestMapError_PassesMCPErrorThrough(t *testing.T) {
	// Given: an already mapped error
	orig := NewInvalidParamsError("offset must not be negative")

	// When: mapping it again
	got := MapError(fmt.Errorf("wrapped: %w", orig))

	// Then: it is returned unchanged
	assert.Same(t, orig, got)
}

func TestMCPError_Error(t *testing.T) {
	err := NewMethodNotFoundError("grep")
	assert.Equal(t, "MCP error -32601: Tool 'grep' not found.", err.Error())

	err = NewResourceNotFoundError("edm://x")
	assert.Equal(t, ErrCodeMethodNotFound, err.Code)
	assert.Contains(t, err.Message, "edm://x")
}
