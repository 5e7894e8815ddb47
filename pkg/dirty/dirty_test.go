package dirty

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestTracker_New(t *testing.T) {
	tracker := New()
	assert.NotNil(t, tracker)
	assert.Equal(t, 0, tracker.Count())
	assert.True(t, tracker.Changed(), "empty tracker always reports a change")
}

func TestTracker_Track(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.ts", "export const a = 1;")
	b := writeFile(t, dir, "b.ts", "export const b = 2;")

	tracker := New()
	require.NoError(t, tracker.Track([]string{a, b}))

	assert.Equal(t, 2, tracker.Count())
	assert.Equal(t, []string{a, b}, tracker.Files())
	assert.False(t, tracker.Changed())
	assert.Empty(t, tracker.ChangedFiles())
}

func TestTracker_Track_NonExistent(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.ts", "const a = 1;")

	tracker := New()
	require.NoError(t, tracker.Track([]string{a}))

	err := tracker.Track([]string{a, filepath.Join(dir, "missing.ts")})
	assert.Error(t, err)
	assert.Equal(t, 0, tracker.Count())
	assert.True(t, tracker.Changed())
}

func TestTracker_Changed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T, path string)
		want   bool
	}{
		{
			name:   "untouched",
			mutate: func(t *testing.T, path string) {},
			want:   false,
		},
		{
			name: "rewritten with same content",
			mutate: func(t *testing.T, path string) {
				require.NoError(t, os.WriteFile(path, []byte("const a = 1;"), 0644))
			},
			want: false,
		},
		{
			name: "modified",
			mutate: func(t *testing.T, path string) {
				require.NoError(t, os.WriteFile(path, []byte("const a = 2;"), 0644))
			},
			want: true,
		},
		{
			name: "removed",
			mutate: func(t *testing.T, path string) {
				require.NoError(t, os.Remove(path))
			},
			want: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "a.ts", "const a = 1;")
			tracker := New()
			require.NoError(t, tracker.Track([]string{path}))

			tc.mutate(t, path)
			assert.Equal(t, tc.want, tracker.Changed())
			if tc.want {
				assert.Equal(t, []string{path}, tracker.ChangedFiles())
			}
		})
	}
}
