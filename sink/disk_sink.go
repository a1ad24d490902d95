// Package sink writes downloaded bodies to local files.
package sink

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
)

// Namer builds unique local paths for downloads. One Namer is owned by the
// download boss; the counter is shared by every request of a run.
type Namer struct {
	mu  sync.Mutex
	dir string
	seq int
}

func NewNamer(dir string) *Namer {
	return &Namer{dir: dir}
}

// Name returns <dir>/<path without its leading slash>-NNNNNN, numbering from
// zero. ".." segments are resolved against the root so the result always
// stays under dir.
func (n *Namer) Name(remotePath string) string {
	n.mu.Lock()
	seq := n.seq
	n.seq++
	n.mu.Unlock()

	rel := strings.TrimPrefix(path.Clean("/"+remotePath), "/")
	return filepath.Join(n.dir, fmt.Sprintf("%s-%06d", filepath.FromSlash(rel), seq))
}

// LocalFile is the body sink of one download. It records how many bytes went
// through and their SHA-256.
type LocalFile struct {
	path    string
	file    *os.File
	hash    hash.Hash
	written int64
	closed  bool
}

// Open creates path and its missing parent directories. An existing file is
// truncated.
func Open(path string) (*LocalFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return &LocalFile{path: path, file: f, hash: sha256.New()}, nil
}

func (l *LocalFile) Write(p []byte) (int, error) {
	n, err := l.file.Write(p)
	l.hash.Write(p[:n])
	l.written += int64(n)
	return n, err
}

func (l *LocalFile) Path() string { return l.path }

func (l *LocalFile) Written() int64 { return l.written }

// Sha256 is the hex digest of everything written so far.
func (l *LocalFile) Sha256() string {
	return hex.EncodeToString(l.hash.Sum(nil))
}

func (l *LocalFile) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}

// Discard closes and removes the file. Used for failed or rejected downloads.
func (l *LocalFile) Discard() error {
	if err := l.Close(); err != nil {
		_ = os.Remove(l.path)
		return err
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", l.path, err)
	}
	return nil
}
