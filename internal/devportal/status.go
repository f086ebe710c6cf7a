package devportal

import (
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// hostStatus is the /-/status payload: a coarse picture of the machine the
// lobby and its game servers run on.
type hostStatus struct {
	Time          time.Time `json:"time"`
	UptimeSeconds uint64    `json:"uptime_seconds"`
	CPUPercent    float64   `json:"cpu_percent"`
	Load1         float64   `json:"load_1"`
	MemoryTotal   uint64    `json:"memory_total"`
	MemoryUsed    uint64    `json:"memory_used"`
	MemoryPercent float64   `json:"memory_percent"`
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := hostStatus{Time: time.Now().UTC()}

	// Each probe is best effort; a gauge that cannot be read stays zero
	// rather than failing the whole status page.
	if uptime, err := host.UptimeWithContext(r.Context()); err == nil {
		status.UptimeSeconds = uptime
	}
	if percents, err := cpu.PercentWithContext(r.Context(), 0, false); err == nil && len(percents) > 0 {
		status.CPUPercent = percents[0]
	}
	if avg, err := load.AvgWithContext(r.Context()); err == nil {
		status.Load1 = avg.Load1
	}
	if vm, err := mem.VirtualMemoryWithContext(r.Context()); err == nil {
		status.MemoryTotal = vm.Total
		status.MemoryUsed = vm.Used
		status.MemoryPercent = vm.UsedPercent
	}

	a.writeJSON(w, r, status)
}
