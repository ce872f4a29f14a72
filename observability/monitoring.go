// Package observability aggregates runtime telemetry for the debug
// endpoint: message throughput, skipped-record counts, and process stats.
package observability

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"sync/atomic"

	"dispatch-chat/domain/event"

	"github.com/shirou/gopsutil/process"
)

// Stats is the JSON document served at /debug/stats.
type Stats struct {
	MessagesAppended      uint64  `json:"messages_appended"`
	SkippedMessageRecords uint64  `json:"skipped_message_records"`
	SkippedRoomRecords    uint64  `json:"skipped_room_records"`
	AllocMemMb            uint64  `json:"alloc_mem_mb"`
	NumGC                 uint32  `json:"num_gc"`
	NumGoroutine          int     `json:"num_goroutine"`
	ProcessCPUPercent     float64 `json:"process_cpu_percent"`
	ProcessRSSMb          uint64  `json:"process_rss_mb"`
}

// Monitor counts appended messages as a permanent fanout sink and samples
// process metrics on demand.
type Monitor struct {
	log             *slog.Logger
	appended        atomic.Uint64
	skippedMessages func() uint64
	skippedRooms    func() uint64
	proc            *process.Process
}

func NewMonitor(log *slog.Logger, skippedMessages, skippedRooms func() uint64) *Monitor {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Warn("Process telemetry unavailable", "error", err)
	}
	return &Monitor{
		log:             log,
		skippedMessages: skippedMessages,
		skippedRooms:    skippedRooms,
		proc:            proc,
	}
}

// Consume implements the fanout sink contract: every appended message
// bumps the throughput counter.
func (m *Monitor) Consume(_ context.Context, e event.DomainEvent) error {
	if _, ok := e.(event.MessageAppended); ok {
		m.appended.Add(1)
	}
	return nil
}

func (m *Monitor) Appended() uint64 {
	return m.appended.Load()
}

func (m *Monitor) Snapshot() Stats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := Stats{
		MessagesAppended:      m.appended.Load(),
		SkippedMessageRecords: m.skippedMessages(),
		SkippedRoomRecords:    m.skippedRooms(),
		AllocMemMb:            memStats.Alloc / 1024 / 1024,
		NumGC:                 memStats.NumGC,
		NumGoroutine:          runtime.NumGoroutine(),
	}

	if m.proc != nil {
		if cpu, err := m.proc.CPUPercent(); err == nil {
			stats.ProcessCPUPercent = cpu
		}
		if mem, err := m.proc.MemoryInfo(); err == nil {
			stats.ProcessRSSMb = mem.RSS / 1024 / 1024
		}
	}
	return stats
}

// Handler serves the current snapshot as JSON.
func (m *Monitor) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(m.Snapshot()); err != nil {
			m.log.Error("Failed to encode stats", "error", err)
		}
	}
}
