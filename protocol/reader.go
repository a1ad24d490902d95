package protocol

import (
	"bytes"
	"errors"
	"io"
)

// DefaultMaxHeaderBytes bounds how much is buffered while looking for the
// terminator.
const DefaultMaxHeaderBytes = 4 << 10

// ReadHeader reads from r in chunks of len(chunk) until the terminator is
// seen. It returns the header including the terminator and whatever was
// read past it. The terminator may arrive split across several reads.
func ReadHeader(r io.Reader, chunk []byte, max int) (header, rest []byte, err error) {
	if max <= 0 {
		max = DefaultMaxHeaderBytes
	}
	var acc []byte
	term := []byte(Terminator)
	for {
		n, rerr := r.Read(chunk)
		if n > 0 {
			// Only the tail can complete a terminator started in a previous chunk.
			from := len(acc) - len(term) + 1
			if from < 0 {
				from = 0
			}
			acc = append(acc, chunk[:n]...)
			if i := bytes.Index(acc[from:], term); i >= 0 {
				end := from + i + len(term)
				if end > max {
					return nil, nil, ErrHeaderTooLarge
				}
				return acc[:end], acc[end:], nil
			}
			if len(acc) >= max {
				return nil, nil, ErrHeaderTooLarge
			}
		}
		if rerr != nil {
			if errors.Is(rerr, io.EOF) {
				return nil, nil, ErrIncompleteHeader
			}
			return nil, nil, rerr
		}
	}
}
