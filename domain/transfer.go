package domain

import (
	"io"
	"time"
)

type TransferID string

// Transfer tracks one download in the ledger.
type Transfer struct {
	ID         TransferID
	RemotePath string
	LocalPath  string
	Status     TransferStatus
	WireStatus string
	Advertised int64
	Received   int64
	Sha256     string
	Error      string
	StartedAt  time.Time
	EndedAt    time.Time
}

type TransferStatus int

const (
	StatusPending TransferStatus = iota
	StatusInProgress
	StatusCompleted
	StatusFailed
)

func (s TransferStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Content is what the content provider hands to the server handler. The
// handler owns Body and must close it.
type Content struct {
	Key      string
	Size     int64
	MimeType string
	Body     io.ReadCloser
}

type EventKind string

const (
	EventDownloaded EventKind = "downloaded"
	EventServed     EventKind = "served"
)

// TransferEvent is published once a transfer has ended, successfully or not.
type TransferEvent struct {
	Kind       EventKind `json:"kind"`
	ID         string    `json:"id,omitempty"`
	Path       string    `json:"path"`
	WireStatus string    `json:"wire_status"`
	Bytes      int64     `json:"bytes"`
	Failed     bool      `json:"failed"`
	At         time.Time `json:"at"`
}

const KB = 1024
const MB = KB * KB
