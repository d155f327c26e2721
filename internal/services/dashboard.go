package services

import (
	"context"
	"os"
	"sync"
	"time"

	"civilsite-backend-go/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

const (
	EventSystem = "system"
	EventVisits = "visits"

	writeWait = 5 * time.Second
)

type SystemSnapshot struct {
	CapturedAt        time.Time `json:"capturedAt"`
	ProcessRSSBytes   int64     `json:"processRssBytes"`
	SystemMemoryTotal int64     `json:"systemMemoryTotalBytes"`
	SystemMemoryUsed  int64     `json:"systemMemoryUsedBytes"`
	DiskTotalBytes    int64     `json:"diskTotalBytes"`
	DiskUsedBytes     int64     `json:"diskUsedBytes"`
	ProcessCPULoad    float64   `json:"processCpuLoad"`
	SystemCPULoad     float64   `json:"systemCpuLoad"`
}

// DashboardEvent is one message on the admin dashboard stream.
type DashboardEvent struct {
	Type   string             `json:"type"`
	System *SystemSnapshot    `json:"system,omitempty"`
	Visits *models.VisitStats `json:"visits,omitempty"`
}

// CaptureSystem samples host and process resource usage. Missing readings are left at zero.
func CaptureSystem(diskPath string) SystemSnapshot {
	snap := SystemSnapshot{CapturedAt: time.Now().UTC()}
	if memStat, err := mem.VirtualMemory(); err == nil {
		snap.SystemMemoryTotal = int64(memStat.Total)
		snap.SystemMemoryUsed = int64(memStat.Total - memStat.Available)
	}
	diskStat, err := disk.Usage(diskPath)
	if err != nil {
		diskStat, err = disk.Usage("/")
	}
	if err == nil {
		snap.DiskTotalBytes = int64(diskStat.Total)
		snap.DiskUsedBytes = int64(diskStat.Used)
	}
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if rss, err := proc.MemoryInfo(); err == nil && rss != nil {
			snap.ProcessRSSBytes = int64(rss.RSS)
		}
		if pct, err := proc.CPUPercent(); err == nil {
			snap.ProcessCPULoad = pct / 100.0
		}
	}
	if sysCPU, err := cpu.Percent(0, false); err == nil && len(sysCPU) > 0 {
		snap.SystemCPULoad = sysCPU[0] / 100.0
	}
	return snap
}

// DashboardHub fans events out to connected admin websockets.
type DashboardHub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	ch      chan DashboardEvent
}

func NewDashboardHub() *DashboardHub {
	return &DashboardHub{
		clients: map[*websocket.Conn]struct{}{},
		ch:      make(chan DashboardEvent, 16),
	}
}

func (h *DashboardHub) Run(ctx context.Context) {
	for {
		select {
		case event := <-h.ch:
			h.send(event)
		case <-ctx.Done():
			h.closeAll()
			return
		}
	}
}

func (h *DashboardHub) send(event DashboardEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(event); err != nil {
			log.Debug().Err(err).Msg("dashboard client dropped")
			delete(h.clients, conn)
			_ = conn.Close()
		}
	}
}

// Broadcast queues an event without blocking; events are dropped when the queue is full.
func (h *DashboardHub) Broadcast(event DashboardEvent) {
	select {
	case h.ch <- event:
	default:
	}
}

func (h *DashboardHub) BroadcastVisits(stats models.VisitStats) {
	h.Broadcast(DashboardEvent{Type: EventVisits, Visits: &stats})
}

func (h *DashboardHub) Add(conn *websocket.Conn) {
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *DashboardHub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
}

func (h *DashboardHub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *DashboardHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.Close()
		delete(h.clients, conn)
	}
}

// SampleSystem broadcasts a system snapshot every interval until ctx is done.
func (h *DashboardHub) SampleSystem(ctx context.Context, interval time.Duration, diskPath string) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if h.Len() == 0 {
				continue
			}
			snap := CaptureSystem(diskPath)
			h.Broadcast(DashboardEvent{Type: EventSystem, System: &snap})
		case <-ctx.Done():
			return
		}
	}
}
