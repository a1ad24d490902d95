// Package protocol encodes and decodes GETFILE headers.
//
// A request is "GETFILE GET <path>\r\n\r\n" and a response is
// "GETFILE <status> [<length>]\r\n\r\n", the length being present only
// for OK. Nothing in this package performs I/O except ReadHeader, which
// accumulates bytes until the terminator has been observed.
package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	Scheme     = "GETFILE"
	Method     = "GET"
	Terminator = "\r\n\r\n"
)

var (
	ErrMalformedRequest = errors.New("protocol: malformed request")
	ErrUnencodable      = errors.New("protocol: status cannot be encoded")
	ErrHeaderTooLarge   = errors.New("protocol: header too large")
	ErrIncompleteHeader = errors.New("protocol: connection closed before end of header")
)

type Status int

const (
	StatusInvalid Status = iota
	StatusOK
	StatusFileNotFound
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusFileNotFound:
		return "FILE_NOT_FOUND"
	case StatusError:
		return "ERROR"
	default:
		return "INVALID"
	}
}

// ParseStatus maps a wire token to its Status. INVALID is client-local and
// is never accepted from the wire.
func ParseStatus(token string) (Status, bool) {
	switch token {
	case "OK":
		return StatusOK, true
	case "FILE_NOT_FOUND":
		return StatusFileNotFound, true
	case "ERROR":
		return StatusError, true
	default:
		return StatusInvalid, false
	}
}

type RequestHeader struct {
	Path string
}

type ResponseHeader struct {
	Status Status
	Length int64
}

// EncodeRequest returns the full request header for path.
func EncodeRequest(path string) []byte {
	b := make([]byte, 0, len(Scheme)+len(Method)+len(path)+len(Terminator)+2)
	b = append(b, Scheme...)
	b = append(b, ' ')
	b = append(b, Method...)
	b = append(b, ' ')
	b = append(b, path...)
	return append(b, Terminator...)
}

// DecodeRequest parses a request header. The terminator is optional in raw.
func DecodeRequest(raw []byte) (RequestHeader, error) {
	tokens := tokenize(raw)
	if len(tokens) < 3 {
		return RequestHeader{}, fmt.Errorf("%w: expected 3 tokens, got %d", ErrMalformedRequest, len(tokens))
	}
	if tokens[0] != Scheme {
		return RequestHeader{}, fmt.Errorf("%w: unexpected scheme %q", ErrMalformedRequest, tokens[0])
	}
	if tokens[1] != Method {
		return RequestHeader{}, fmt.Errorf("%w: unexpected method %q", ErrMalformedRequest, tokens[1])
	}
	if !strings.HasPrefix(tokens[2], "/") {
		return RequestHeader{}, fmt.Errorf("%w: path %q must start with /", ErrMalformedRequest, tokens[2])
	}
	if len(tokens) > 3 {
		return RequestHeader{}, fmt.Errorf("%w: trailing token %q", ErrMalformedRequest, tokens[3])
	}
	return RequestHeader{Path: tokens[2]}, nil
}

// EncodeResponse returns the full response header. The length is written
// only for StatusOK.
func EncodeResponse(status Status, length int64) ([]byte, error) {
	b := make([]byte, 0, 48)
	b = append(b, Scheme...)
	b = append(b, ' ')
	switch status {
	case StatusOK:
		if length < 0 {
			return nil, fmt.Errorf("%w: negative length %d", ErrUnencodable, length)
		}
		b = append(b, status.String()...)
		b = append(b, ' ')
		b = strconv.AppendInt(b, length, 10)
	case StatusFileNotFound, StatusError:
		b = append(b, status.String()...)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnencodable, status)
	}
	return append(b, Terminator...), nil
}

// DecodeResponse never fails: anything it does not understand yields
// StatusInvalid with a zero length.
func DecodeResponse(raw []byte) ResponseHeader {
	invalid := ResponseHeader{Status: StatusInvalid}
	tokens := tokenize(raw)
	if len(tokens) < 2 || tokens[0] != Scheme {
		return invalid
	}
	status, ok := ParseStatus(tokens[1])
	if !ok {
		return invalid
	}
	if status != StatusOK {
		return ResponseHeader{Status: status}
	}
	if len(tokens) < 3 {
		return invalid
	}
	length, err := strconv.ParseInt(tokens[2], 10, 64)
	if err != nil || length < 0 {
		return invalid
	}
	return ResponseHeader{Status: StatusOK, Length: length}
}

// tokenize splits on spaces and CR/LF, stopping at the terminator.
func tokenize(raw []byte) []string {
	if i := bytes.Index(raw, []byte(Terminator)); i >= 0 {
		raw = raw[:i]
	}
	return strings.FieldsFunc(string(raw), func(r rune) bool {
		return r == ' ' || r == '\r' || r == '\n'
	})
}
