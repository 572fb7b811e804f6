package metrics

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/arl/statsviz"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"tonkserver/common/log"
)

// Serve mounts the statsviz runtime dashboard plus a /debug/vitals
// endpoint reporting host CPU/memory, and blocks until the listener
// errors or is closed.
func Serve(addr string) error {
	mux := http.NewServeMux()

	srv, err := statsviz.NewServer()
	if err != nil {
		return err
	}
	mux.Handle("/debug/statsviz/", srv.Index())
	mux.HandleFunc("/debug/statsviz/ws", srv.Ws())
	mux.HandleFunc("/debug/vitals", vitalsHandler)

	log.Info("metrics: serving statsviz and vitals on %s", addr)
	return http.ListenAndServe(addr, mux)
}

type vitals struct {
	CpuPercent    float64 `json:"cpuPercent"`
	MemUsedBytes  uint64  `json:"memUsedBytes"`
	MemTotalBytes uint64  `json:"memTotalBytes"`
	MemPercent    float64 `json:"memPercent"`
}

// vitalsHandler samples one second of CPU usage, so it's intentionally
// not suited for high-frequency polling.
func vitalsHandler(w http.ResponseWriter, r *http.Request) {
	percents, err := cpu.PercentWithContext(r.Context(), time.Second, false)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	vm, err := mem.VirtualMemoryWithContext(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	v := vitals{MemUsedBytes: vm.Used, MemTotalBytes: vm.Total, MemPercent: vm.UsedPercent}
	if len(percents) > 0 {
		v.CpuPercent = percents[0]
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
