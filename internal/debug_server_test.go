package internal

import (
	"errors"
	"getfile-lab/domain"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDebugHandler_RendersTransfersAndStats(t *testing.T) {
	req := require.New(t)
	var gotLimit int
	lister := func(limit int) ([]domain.Transfer, error) {
		gotLimit = limit
		return []domain.Transfer{{
			ID:         "0192f1c4-0000-7000-8000-00000000abcd",
			RemotePath: "/a.txt",
			Status:     domain.StatusCompleted,
			WireStatus: "OK",
			Advertised: 12,
			Received:   12,
			StartedAt:  time.Now(),
		}}, nil
	}
	stats := func() map[string]any { return map[string]any{"bytes_received": 12} }

	rec := httptest.NewRecorder()
	DebugHandler(lister, stats).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inspect?limit=5", nil))

	req.Equal(http.StatusOK, rec.Code)
	req.Equal(5, gotLimit)
	body := rec.Body.String()
	req.Contains(body, "/a.txt")
	req.Contains(body, "0000abcd")
	req.Contains(body, "12/12")
	req.Contains(body, "bytes_received")
}

func TestDebugHandler_NilSources(t *testing.T) {
	req := require.New(t)
	rec := httptest.NewRecorder()
	DebugHandler(nil, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inspect", nil))
	req.Equal(http.StatusOK, rec.Code)
	req.Contains(rec.Body.String(), "limit 100")
}

func TestDebugHandler_ListerError(t *testing.T) {
	req := require.New(t)
	lister := func(int) ([]domain.Transfer, error) { return nil, errors.New("closed") }
	rec := httptest.NewRecorder()
	DebugHandler(lister, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inspect", nil))
	req.Equal(http.StatusInternalServerError, rec.Code)
}

func TestTransferRow_ShortensID(t *testing.T) {
	row := TransferRow(domain.Transfer{ID: "abc", Status: domain.StatusFailed, Received: 0, Advertised: 3})
	require.Equal(t, InspectRow{ID: "abc", Status: "failed", Bytes: "0/3", Started: row.Started}, row)
}
