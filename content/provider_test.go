package content

import (
	"errors"
	gferrors "getfile-lab/errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadIndex_LookupResolvesRelativePaths(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	writeFile(t, dir, "data/a.txt", "hello")
	abs := writeFile(t, t.TempDir(), "b.json", `{"k":1}`)
	index := writeFile(t, dir, "content.txt", strings.Join([]string{
		"# served files",
		"",
		"/a.txt data/a.txt",
		"/b.json " + abs,
	}, "\n"))

	idx, err := LoadIndex(slog.Default(), index)
	req.NoError(err)
	req.Equal(2, idx.Len())

	c, err := idx.Lookup("/a.txt")
	req.NoError(err)
	defer c.Body.Close()
	req.Equal(int64(5), c.Size)
	req.Equal("/a.txt", c.Key)
	req.True(strings.HasPrefix(c.MimeType, "text/plain"), c.MimeType)
	body, err := io.ReadAll(c.Body)
	req.NoError(err)
	req.Equal("hello", string(body))

	j, err := idx.Lookup("/b.json")
	req.NoError(err)
	defer j.Body.Close()
	req.Equal("application/json", j.MimeType)
}

func TestLookup_NotFound(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	writeFile(t, dir, "sub/file.txt", "x")
	idx, err := ParseIndex(slog.Default(), strings.NewReader(
		"/gone gone.txt\n/dir sub\n/ok sub/file.txt\n"), dir)
	req.NoError(err)

	for _, key := range []string{"/missing", "/gone", "/dir"} {
		_, err := idx.Lookup(key)
		req.ErrorIs(err, ErrNotFound, key)
		req.True(errors.Is(err, gferrors.ErrNotFound))
	}
}

func TestParseIndex_Rejects(t *testing.T) {
	cases := map[string]string{
		"key without slash": "a.txt a.txt\n",
		"missing file":      "/a.txt\n",
		"extra field":       "/a.txt a.txt b.txt\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseIndex(slog.Default(), strings.NewReader(raw), t.TempDir())
			require.Error(t, err)
		})
	}
}

func TestParseIndex_EmptyIsAnError(t *testing.T) {
	_, err := ParseIndex(slog.Default(), strings.NewReader("# nothing\n\n"), ".")
	require.ErrorIs(t, err, gferrors.ErrEmptyIndex)
}
