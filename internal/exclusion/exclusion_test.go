package exclusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	edmerrors "github.com/Aman-CERP/edm/internal/errors"
)

func TestIsExcluded(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		pattern string
		want    bool
	}{
		{"empty pattern excludes nothing", "/data/a.txt", "", false},
		{"partial match", "/data/.git/config", `\.git`, true},
		{"no match", "/data/a.txt", `\.git`, false},
		{"anchored pattern", "/data/tmp/x", "^/data/tmp", true},
		{"anchored pattern misses", "/other/data/tmp/x", "^/data/tmp", false},
		{"alternation", "/data/x.bak", `\.(bak|tmp)$`, true},
		{"case sensitive", "/data/README", "readme", false},
		{"case insensitive flag", "/data/README", "(?i)readme", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := IsExcluded(tt.path, tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			included, err := IsIncluded(tt.path, tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, !tt.want, included)
		})
	}
}

func TestCompile_InvalidPattern(t *testing.T) {
	// When: compiling a broken regex
	m, err := Compile("(unclosed")

	// Then: a fatal configuration error is returned
	require.Error(t, err)
	assert.Nil(t, m)
	assert.Equal(t, edmerrors.ErrCodeConfigInvalid, edmerrors.GetCode(err))
	assert.True(t, edmerrors.IsFatal(err))

	_, err = IsExcluded("/x", "(unclosed")
	assert.Error(t, err)
	_, err = IsIncluded("/x", "(unclosed")
	assert.Error(t, err)
}

func TestMatcher_NilAndEmpty(t *testing.T) {
	var nilMatcher *Matcher
	empty := MustCompile("")

	assert.False(t, nilMatcher.Excludes("/anything"))
	assert.True(t, nilMatcher.Includes("/anything"))
	assert.False(t, empty.Excludes("/anything"))
	assert.Equal(t, "", nilMatcher.String())
}

func TestMustCompile_Panics(t *testing.T) {
	assert.Panics(t, func() { MustCompile("[") })
	assert.Equal(t, `\.git`, MustCompile(`\.git`).String())
}
