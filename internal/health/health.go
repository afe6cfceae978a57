// Package health builds the process snapshot served on the status endpoint.
package health

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

type Status struct {
	Status     string  `json:"status"`
	UptimeSecs int64   `json:"uptimeSecs"`
	Sessions   int     `json:"sessions"`
	Clients    int     `json:"clients"`
	Events     int     `json:"events"`
	Goroutines int     `json:"goroutines"`
	RSSBytes   uint64  `json:"rssBytes,omitempty"`
	CPUPercent float64 `json:"cpuPercent,omitempty"`
}

// Snapshot gathers current process stats. Process metrics are best-effort:
// a platform that cannot report them still gets a valid status payload.
func Snapshot(startedAt time.Time, sessions, clients, events int) Status {
	st := Status{
		Status:     "ok",
		UptimeSecs: int64(time.Since(startedAt).Seconds()),
		Sessions:   sessions,
		Clients:    clients,
		Events:     events,
		Goroutines: runtime.NumGoroutine(),
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return st
	}
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		st.RSSBytes = mem.RSS
	}
	if cpu, err := proc.CPUPercent(); err == nil {
		st.CPUPercent = cpu
	}
	return st
}
