package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createStore writes a workspace state database with the given ItemTable
// contents and returns its path.
func createStore(t *testing.T, dir string, items map[string]string) string {
	t.Helper()

	path := filepath.Join(dir, "state.vscdb")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE ItemTable (key TEXT UNIQUE ON CONFLICT REPLACE, value BLOB)`)
	require.NoError(t, err)
	for k, v := range items {
		_, err = db.Exec(`INSERT INTO ItemTable (key, value) VALUES (?, ?)`, k, v)
		require.NoError(t, err)
	}
	return path
}

func TestOpen_CapturesModTime(t *testing.T) {
	path := createStore(t, t.TempDir(), nil)

	stamp := time.Date(2024, 3, 15, 9, 30, 0, 0, time.Local)
	require.NoError(t, os.Chtimes(path, stamp, stamp))

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	assert.True(t, stamp.Equal(s.ModTime()))
}

func TestOpen_MissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.vscdb"))
	assert.Error(t, err)
}

func TestValue(t *testing.T) {
	path := createStore(t, t.TempDir(), map[string]string{
		"debug.selectedroot": "file:///Users/dev/proj",
	})

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	v, ok, err := s.Value("debug.selectedroot")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "file:///Users/dev/proj", v)

	_, ok, err = s.Value("no.such.key")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPrompts_TableDriven(t *testing.T) {
	tests := []struct {
		name     string
		items    map[string]string
		expected []string
		wantErr  bool
	}{
		{
			name: "well formed prompts",
			items: map[string]string{
				"aiService.prompts": `[{"text":"fix the bug","commandType":4},{"text":"add tests"}]`,
			},
			expected: []string{"fix the bug", "add tests"},
		},
		{
			name: "records without text discarded",
			items: map[string]string{
				"aiService.prompts": `[{"text":"keep"},{"commandType":4},"not an object",42,{"text":"also keep"}]`,
			},
			expected: []string{"keep", "also keep"},
		},
		{
			name:     "key absent",
			items:    map[string]string{},
			expected: nil,
		},
		{
			name: "key empty",
			items: map[string]string{
				"aiService.prompts": "",
			},
			expected: nil,
		},
		{
			name: "empty list",
			items: map[string]string{
				"aiService.prompts": "[]",
			},
			expected: []string{},
		},
		{
			name: "unparsable blob",
			items: map[string]string{
				"aiService.prompts": "{corrupt",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := createStore(t, t.TempDir(), tt.items)
			s, err := Open(path)
			require.NoError(t, err)
			defer s.Close()

			texts, err := s.Prompts()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Empty(t, texts)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, texts)
		})
	}
}

func TestTables(t *testing.T) {
	path := createStore(t, t.TempDir(), nil)
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	tables, err := s.Tables()
	require.NoError(t, err)
	assert.Contains(t, tables, "ItemTable")
}
