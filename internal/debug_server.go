package internal

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"getfile-lab/domain"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

//go:embed inspect.html
var templatesFS embed.FS

var inspectTemplate = template.Must(template.ParseFS(templatesFS, "inspect.html"))

type InspectRow struct {
	ID      string
	Path    string
	Status  string
	Wire    string
	Bytes   string
	Started string
	Error   string
}

type TransferLister func(limit int) ([]domain.Transfer, error)
type StatsProvider func() map[string]any

type PageData struct {
	Limit int
	Items []InspectRow
	Stats map[string]any
}

// DebugHandler renders the ledger and the live counters on /inspect.
// Either source may be nil.
func DebugHandler(transfers TransferLister, stats StatsProvider) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /inspect", func(w http.ResponseWriter, r *http.Request) {
		limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
		if err != nil || limit < 0 {
			limit = 100
		}
		data := PageData{Limit: limit, Stats: map[string]any{}}
		if stats != nil {
			data.Stats = stats()
		}
		if transfers != nil {
			items, err := transfers(limit)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			for _, t := range items {
				data.Items = append(data.Items, TransferRow(t))
			}
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = inspectTemplate.Execute(w, data)
	})
	return mux
}

func TransferRow(t domain.Transfer) InspectRow {
	id := string(t.ID)
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	return InspectRow{
		ID:      id,
		Path:    t.RemotePath,
		Status:  t.Status.String(),
		Wire:    t.WireStatus,
		Bytes:   strconv.FormatInt(t.Received, 10) + "/" + strconv.FormatInt(t.Advertised, 10),
		Started: t.StartedAt.Local().Format("15:04:05.000"),
		Error:   t.Error,
	}
}

// StartDebugServer listens on port until ctx is done. A zero port disables it.
func StartDebugServer(ctx context.Context, log *slog.Logger, port int, transfers TransferLister, stats StatsProvider) {
	if port == 0 {
		return
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf("0.0.0.0:%d", port),
		Handler:           DebugHandler(transfers, stats),
		ReadHeaderTimeout: 5 * time.Second,
	}
	context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	})
	go func() {
		log.Info("Debug server listening", "url", fmt.Sprintf("http://localhost:%d/inspect", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("Debug server stopped", "error", err)
		}
	}()
}
