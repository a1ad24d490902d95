package workers

import (
	"context"
	"fmt"
	"getfile-lab/observability"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Gauge exposes a queue's depth.
type Gauge interface {
	Len() int
	Cap() int
}

// HeartbeatWorker logs process health with the monitoring counters.
type HeartbeatWorker struct {
	log        *slog.Logger
	monitoring *observability.MonitoringManager
	queue      Gauge
	interval   time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, monitoring *observability.MonitoringManager, queue Gauge, interval time.Duration) *HeartbeatWorker {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &HeartbeatWorker{log: log, monitoring: monitoring, queue: queue, interval: interval}
}

func (w *HeartbeatWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Beat(p)
		}
	}
}

// Beat records the queue gauge and logs one health line.
func (w *HeartbeatWorker) Beat(p *process.Process) {
	if w.queue != nil {
		w.monitoring.UpdateQueue(w.queue.Len(), w.queue.Cap())
	}
	stats := w.monitoring.Snapshot()

	rss, cpu, status, err := selfStats(p)
	if err != nil {
		w.log.Warn("Failed to collect self stats", "error", err)
	}
	w.log.Info("Heartbeat",
		"pid", p.Pid,
		"status", status,
		"cpu_percent", cpu,
		"rss_bytes", rss,
		"queue", stats.QueueSize,
		"queue_capacity", stats.QueueCapacity,
		"served", stats.RequestsServed,
		"downloads_completed", stats.DownloadsCompleted,
		"downloads_failed", stats.DownloadsFailed,
		"send_mb_s", stats.SendSpeedMb,
		"receive_mb_s", stats.ReceiveSpeedMb,
	)
}

func selfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}
	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, fmt.Sprint(status), nil
}
