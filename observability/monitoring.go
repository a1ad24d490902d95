package observability

import (
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// MonitoringStats is a point-in-time copy of the counters.
type MonitoringStats struct {
	RequestsServed     uint64  `json:"requests_served"`
	RequestsRejected   uint64  `json:"requests_rejected"`
	RequestsFailed     uint64  `json:"requests_failed"`
	DownloadsCompleted uint64  `json:"downloads_completed"`
	DownloadsFailed    uint64  `json:"downloads_failed"`
	BytesSent          uint64  `json:"bytes_sent"`
	BytesReceived      uint64  `json:"bytes_received"`
	SendSpeedMb        float64 `json:"send_speed_mb"`
	ReceiveSpeedMb     float64 `json:"receive_speed_mb"`
	QueueSize          int     `json:"queue_size"`
	QueueCapacity      int     `json:"queue_capacity"`
	AllocMemMb         uint64  `json:"alloc_mem_mb"`
	NumGC              uint32  `json:"num_gc"`
}

// MonitoringManager collects process-wide counters. Incr* methods are
// lock-free; Snapshot computes throughput since the previous snapshot.
type MonitoringManager struct {
	log *slog.Logger

	requestsServed     atomic.Uint64
	requestsRejected   atomic.Uint64
	requestsFailed     atomic.Uint64
	downloadsCompleted atomic.Uint64
	downloadsFailed    atomic.Uint64
	bytesSent          atomic.Uint64
	bytesReceived      atomic.Uint64
	queueSize          atomic.Int64
	queueCapacity      atomic.Int64

	mu           sync.Mutex
	lastCheck    time.Time
	lastSent     uint64
	lastReceived uint64
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	return &MonitoringManager{log: log, lastCheck: time.Now()}
}

func (mm *MonitoringManager) IncrRequestsServed()   { mm.requestsServed.Add(1) }
func (mm *MonitoringManager) IncrRequestsRejected() { mm.requestsRejected.Add(1) }
func (mm *MonitoringManager) IncrRequestsFailed()   { mm.requestsFailed.Add(1) }

func (mm *MonitoringManager) IncrDownloadsCompleted() { mm.downloadsCompleted.Add(1) }
func (mm *MonitoringManager) IncrDownloadsFailed()    { mm.downloadsFailed.Add(1) }

func (mm *MonitoringManager) AddBytesSent(n int64) {
	if n > 0 {
		mm.bytesSent.Add(uint64(n))
	}
}

func (mm *MonitoringManager) AddBytesReceived(n int64) {
	if n > 0 {
		mm.bytesReceived.Add(uint64(n))
	}
}

func (mm *MonitoringManager) UpdateQueue(size, capacity int) {
	mm.queueSize.Store(int64(size))
	mm.queueCapacity.Store(int64(capacity))
}

// Snapshot may be called from several goroutines; speeds are computed under
// the lock so overlapping calls never see the byte counters go backwards.
func (mm *MonitoringManager) Snapshot() MonitoringStats {
	mm.mu.Lock()
	stats := MonitoringStats{
		RequestsServed:     mm.requestsServed.Load(),
		RequestsRejected:   mm.requestsRejected.Load(),
		RequestsFailed:     mm.requestsFailed.Load(),
		DownloadsCompleted: mm.downloadsCompleted.Load(),
		DownloadsFailed:    mm.downloadsFailed.Load(),
		BytesSent:          mm.bytesSent.Load(),
		BytesReceived:      mm.bytesReceived.Load(),
		QueueSize:          int(mm.queueSize.Load()),
		QueueCapacity:      int(mm.queueCapacity.Load()),
	}

	now := time.Now()
	if elapsed := now.Sub(mm.lastCheck).Seconds(); elapsed > 0 {
		stats.SendSpeedMb = speedMb(stats.BytesSent, mm.lastSent, elapsed)
		stats.ReceiveSpeedMb = speedMb(stats.BytesReceived, mm.lastReceived, elapsed)
	}
	mm.lastCheck = now
	mm.lastSent = stats.BytesSent
	mm.lastReceived = stats.BytesReceived
	mm.mu.Unlock()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	stats.AllocMemMb = m.Alloc / 1024 / 1024
	stats.NumGC = m.NumGC
	return stats
}

// Log writes the current snapshot at info level.
func (mm *MonitoringManager) Log() MonitoringStats {
	s := mm.Snapshot()
	mm.log.Info("Monitoring snapshot",
		"served", s.RequestsServed,
		"rejected", s.RequestsRejected,
		"failed", s.RequestsFailed,
		"downloads_completed", s.DownloadsCompleted,
		"downloads_failed", s.DownloadsFailed,
		"bytes_sent", s.BytesSent,
		"bytes_received", s.BytesReceived,
		"queue", s.QueueSize,
		"queue_capacity", s.QueueCapacity,
		"mem_mb", s.AllocMemMb,
	)
	return s
}

func speedMb(current, last uint64, elapsed float64) float64 {
	if current < last {
		return 0
	}
	return float64(current-last) / 1024 / 1024 / elapsed
}
