package workspace

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

// fakeValues is an in-memory ValueReader for resolver tests.
type fakeValues map[string]string

func (f fakeValues) Value(key string) (string, bool, error) {
	v, ok := f[key]
	return v, ok, nil
}

// failingValues simulates a store whose reads all error.
type failingValues struct{}

func (failingValues) Value(string) (string, bool, error) {
	return "", false, errors.New("database is locked")
}

func TestResolveProjectName_TableDriven(t *testing.T) {
	tests := []struct {
		name     string
		dir      string
		values   fakeValues
		expected string
	}{
		{
			name:     "plain selected root",
			dir:      "/storage/abc123",
			values:   fakeValues{"debug.selectedroot": "file:///Users/dev/my-project"},
			expected: "my-project",
		},
		{
			name:     "url encoded selected root",
			dir:      "/storage/abc123",
			values:   fakeValues{"debug.selectedroot": "file:///Users/dev/my%20project"},
			expected: "my project",
		},
		{
			name:     "launch json suffix trimmed",
			dir:      "/storage/abc123",
			values:   fakeValues{"debug.selectedroot": "file:///Users/dev/backend/.vscode/launch.json"},
			expected: "backend",
		},
		{
			name: "config filename rejected, layout fallback",
			dir:  "/storage/abc123",
			values: fakeValues{
				"debug.selectedroot": "file:///settings.json",
				"memento/editorpart": `{"serializedGrid":{},"editors":[{"resource":{"path":"/frontend/src/app.ts"}}]}`,
			},
			expected: "frontend",
		},
		{
			name:     "layout only",
			dir:      "/storage/abc123",
			values:   fakeValues{"memento/editorpart": `"resource":{"path":"/svc-api/main.go"}`},
			expected: "svc-api",
		},
		{
			name:     "special characters sanitized",
			dir:      "/storage/abc123",
			values:   fakeValues{"debug.selectedroot": "file:///Users/dev/my@proj!v2"},
			expected: "my_proj_v2",
		},
		{
			name:     "hangul preserved",
			dir:      "/storage/abc123",
			values:   fakeValues{"debug.selectedroot": "file:///Users/dev/프로젝트-1"},
			expected: "프로젝트-1",
		},
		{
			name:     "no stored state falls back to directory name",
			dir:      "/storage/abc123",
			values:   fakeValues{},
			expected: "abc123",
		},
		{
			name:     "empty selected root falls through",
			dir:      "/storage/abc123",
			values:   fakeValues{"debug.selectedroot": ""},
			expected: "abc123",
		},
		{
			name:     "layout without resource paths falls through",
			dir:      "/storage/xyz789",
			values:   fakeValues{"memento/editorpart": `{"editors":[]}`},
			expected: "xyz789",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name := ResolveProjectName(tt.dir, tt.values, zerolog.Nop())
			assert.Equal(t, tt.expected, name)
		})
	}
}

func TestResolveProjectName_StoreErrors(t *testing.T) {
	// Every read failing must still yield the directory-name fallback.
	name := ResolveProjectName("/storage/deadbeef", failingValues{}, zerolog.Nop())
	assert.Equal(t, "deadbeef", name)
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"plain", "plain"},
		{"with space", "with space"},
		{"dots.and/slashes", "dots_and_slashes"},
		{"under_score-dash", "under_score-dash"},
		{"한글이름", "한글이름"},
		{"  padded  ", "padded"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, sanitizeName(tt.input), "input %q", tt.input)
	}
}
