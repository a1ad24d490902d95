// Package content maps GETFILE request paths to files on local disk.
package content

import (
	"bufio"
	"fmt"
	"getfile-lab/domain"
	gferrors "getfile-lab/errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
)

// ErrNotFound is returned by Lookup for unknown keys and for keys whose file
// is gone or is not a regular file.
var ErrNotFound = fmt.Errorf("content %w", gferrors.ErrNotFound)

type entry struct {
	Key  string `validate:"required,startswith=/,max=1024"`
	File string `validate:"required"`
}

// Index is read-only after LoadIndex and safe for concurrent lookups.
type Index struct {
	log     *slog.Logger
	entries map[string]string
}

// LoadIndex reads a content file made of "<key> <file path>" lines. Blank
// lines and lines starting with # are skipped. Relative file paths are
// resolved against the directory holding the index.
func LoadIndex(log *slog.Logger, path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open content index: %w", err)
	}
	defer f.Close()
	return ParseIndex(log, f, filepath.Dir(path))
}

func ParseIndex(log *slog.Logger, r io.Reader, baseDir string) (*Index, error) {
	v := validator.New()
	idx := &Index{log: log, entries: make(map[string]string)}

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("content index line %d: expected \"<key> <file>\", got %q", lineNo, line)
		}
		e := entry{Key: fields[0], File: fields[1]}
		if err := v.Struct(e); err != nil {
			return nil, fmt.Errorf("content index line %d: %w", lineNo, err)
		}
		if !filepath.IsAbs(e.File) {
			e.File = filepath.Join(baseDir, e.File)
		}
		if _, dup := idx.entries[e.Key]; dup {
			log.Warn("Duplicate content key, keeping the last one", "key", e.Key, "line", lineNo)
		}
		idx.entries[e.Key] = e.File
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read content index: %w", err)
	}
	if len(idx.entries) == 0 {
		return nil, gferrors.ErrEmptyIndex
	}
	return idx, nil
}

func (i *Index) Len() int { return len(i.entries) }

// Lookup opens the file behind path. The caller closes Content.Body.
func (i *Index) Lookup(path string) (domain.Content, error) {
	file, ok := i.entries[path]
	if !ok {
		return domain.Content{}, ErrNotFound
	}
	info, err := os.Stat(file)
	if err != nil {
		if os.IsNotExist(err) {
			i.log.Warn("Indexed file is missing", "key", path, "file", file)
			return domain.Content{}, ErrNotFound
		}
		return domain.Content{}, fmt.Errorf("stat %s: %w", file, err)
	}
	if !info.Mode().IsRegular() {
		return domain.Content{}, ErrNotFound
	}

	f, err := os.Open(file)
	if err != nil {
		return domain.Content{}, fmt.Errorf("open %s: %w", file, err)
	}
	mtype, err := mimetype.DetectReader(f)
	if err != nil {
		f.Close()
		return domain.Content{}, fmt.Errorf("sniff %s: %w", file, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return domain.Content{}, fmt.Errorf("rewind %s: %w", file, err)
	}

	return domain.Content{
		Key:      path,
		Size:     info.Size(),
		MimeType: mtype.String(),
		Body:     f,
	}, nil
}
