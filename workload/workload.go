// Package workload supplies the request paths a download run cycles through.
package workload

import (
	"bufio"
	"errors"
	"fmt"
	gferrors "getfile-lab/errors"
	"io"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var ErrParentSegment = errors.New("path must not contain .. segments")

type item struct {
	Path string `validate:"required,startswith=/,max=1024"`
}

// Workload hands out paths round-robin. Safe for concurrent use.
type Workload struct {
	mu    sync.Mutex
	paths []string
	next  int
}

// Load reads one request path per line. Blank lines and # comments are
// ignored.
func Load(path string) (*Workload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open workload: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

func Parse(r io.Reader) (*Workload, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read workload: %w", err)
	}

	paths := lo.FilterMap(lines, func(line string, _ int) (string, bool) {
		line = strings.TrimSpace(line)
		return line, line != "" && !strings.HasPrefix(line, "#")
	})
	return New(paths...)
}

func New(paths ...string) (*Workload, error) {
	if len(paths) == 0 {
		return nil, gferrors.ErrEmptyWorkload
	}
	v := validator.New()
	for _, p := range paths {
		if err := v.Struct(item{Path: p}); err != nil {
			return nil, fmt.Errorf("invalid workload path %q: %w", p, err)
		}
		if slices.Contains(strings.Split(p, "/"), "..") {
			return nil, fmt.Errorf("invalid workload path %q: %w", p, ErrParentSegment)
		}
	}
	return &Workload{paths: paths}, nil
}

// Next returns the next path, wrapping around after the last one.
func (w *Workload) Next() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	p := w.paths[w.next]
	w.next = (w.next + 1) % len(w.paths)
	return p
}

func (w *Workload) Reset() {
	w.mu.Lock()
	w.next = 0
	w.mu.Unlock()
}

func (w *Workload) Len() int { return len(w.paths) }

// Unique lists the distinct paths in first-seen order.
func (w *Workload) Unique() []string {
	return lo.Uniq(w.paths)
}
