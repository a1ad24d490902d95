package workload

import (
	gferrors "getfile-lab/errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse_SkipsBlanksAndComments(t *testing.T) {
	req := require.New(t)
	w, err := Parse(strings.NewReader("# warm-up\n/a.txt\n\n  /b.txt  \n/a.txt\n"))
	req.NoError(err)
	req.Equal(3, w.Len())
	req.Equal([]string{"/a.txt", "/b.txt"}, w.Unique())
}

func TestNext_RoundRobin(t *testing.T) {
	req := require.New(t)
	w, err := New("/a", "/b", "/c")
	req.NoError(err)

	var got []string
	for i := 0; i < 7; i++ {
		got = append(got, w.Next())
	}
	req.Equal([]string{"/a", "/b", "/c", "/a", "/b", "/c", "/a"}, got)

	w.Reset()
	req.Equal("/a", w.Next())
}

func TestNew_Rejects(t *testing.T) {
	req := require.New(t)
	_, err := New()
	req.ErrorIs(err, gferrors.ErrEmptyWorkload)

	_, err = Parse(strings.NewReader("# only comments\n\n"))
	req.ErrorIs(err, gferrors.ErrEmptyWorkload)

	_, err = New("/ok", "relative.txt")
	req.Error(err)

	_, err = New("/ok", "/../../etc/passwd")
	req.ErrorIs(err, ErrParentSegment)

	_, err = New("/a/../b")
	req.ErrorIs(err, ErrParentSegment)

	w, err := New("/a..b", "/..hidden")
	req.NoError(err)
	req.Equal(2, w.Len())
}

func TestLoad_FromFile(t *testing.T) {
	req := require.New(t)
	path := filepath.Join(t.TempDir(), "workload.txt")
	req.NoError(os.WriteFile(path, []byte("/x\n/y\n"), 0o644))

	w, err := Load(path)
	req.NoError(err)
	req.Equal("/x", w.Next())
	req.Equal("/y", w.Next())

	_, err = Load(filepath.Join(t.TempDir(), "nope.txt"))
	req.Error(err)
}
