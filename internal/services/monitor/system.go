package monitor

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"content-panel/internal/store"
)

// Snapshot is what the dashboard and the websocket stream show: the state
// of the background engine plus the health of the host it runs on.
type Snapshot struct {
	Engine EngineStats `json:"engine"`
	System SystemStats `json:"system"`
}

type EngineStats struct {
	store.EngineCounts
	LiveTimers int `json:"live_timers"`
}

type SystemStats struct {
	CPU        CPUStats    `json:"cpu"`
	Memory     MemoryStats `json:"memory"`
	Host       HostInfo    `json:"host"`
	Goroutines int         `json:"goroutines"`
}

type CPUStats struct {
	UsagePercent float64 `json:"usage_percent"`
	Cores        int     `json:"cores"`
}

type MemoryStats struct {
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	UsedPercent float64 `json:"used_percent"`
}

type HostInfo struct {
	Hostname string `json:"hostname"`
	OS       string `json:"os"`
	Platform string `json:"platform"`
	Uptime   uint64 `json:"uptime"`
}

// TimerCounter reports how many live timers the schedule registry holds.
type TimerCounter interface {
	LiveCount() int
}

type Service struct {
	store  *store.Store
	timers TimerCounter
}

func NewService(st *store.Store, timers TimerCounter) *Service {
	return &Service{store: st, timers: timers}
}

func (s *Service) Snapshot() (*Snapshot, error) {
	counts, err := s.store.CountEngine()
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Engine: EngineStats{
			EngineCounts: *counts,
			LiveTimers:   s.timers.LiveCount(),
		},
	}

	// Host stats are best-effort; a probe failure never fails the snapshot.
	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		snap.System.CPU.UsagePercent = cpuPercent[0]
	}
	snap.System.CPU.Cores = runtime.NumCPU()

	if memInfo, err := mem.VirtualMemory(); err == nil {
		snap.System.Memory = MemoryStats{
			Total:       memInfo.Total,
			Used:        memInfo.Used,
			UsedPercent: memInfo.UsedPercent,
		}
	}

	if hostInfo, err := host.Info(); err == nil {
		snap.System.Host = HostInfo{
			Hostname: hostInfo.Hostname,
			OS:       hostInfo.OS,
			Platform: hostInfo.Platform,
			Uptime:   hostInfo.Uptime,
		}
	}
	snap.System.Goroutines = runtime.NumGoroutine()

	return snap, nil
}
