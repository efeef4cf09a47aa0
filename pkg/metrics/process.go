package metrics

import (
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shirou/gopsutil/v3/process"
)

var (
	// ProcessResidentBytes is the resident set size of the poller
	ProcessResidentBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "process_resident_bytes",
		Help:      "Resident memory of the poller process",
	})

	// ProcessCPUPercent is the CPU usage of the poller since the previous sample
	ProcessCPUPercent = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "process_cpu_percent",
		Help:      "CPU usage of the poller process in percent",
	})
)

// ProcessUsage is one resource sample of the running process
type ProcessUsage struct {
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
	Threads    int32   `json:"threads"`
}

// ProcessSampler reads resource usage of the current process.
type ProcessSampler struct {
	proc *process.Process
}

// NewProcessSampler creates a sampler for the current process
func NewProcessSampler() (*ProcessSampler, error) {
	proc, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // pid fits in int32
	if err != nil {
		return nil, err
	}
	return &ProcessSampler{proc: proc}, nil
}

// Sample reads the current usage and publishes the process gauges.
func (s *ProcessSampler) Sample() (ProcessUsage, error) {
	var usage ProcessUsage

	memInfo, err := s.proc.MemoryInfo()
	if err != nil {
		return usage, err
	}
	usage.RSSBytes = memInfo.RSS

	// the first call measures since process start
	usage.CPUPercent, _ = s.proc.Percent(0)
	usage.Threads, _ = s.proc.NumThreads()

	ProcessResidentBytes.Set(float64(usage.RSSBytes))
	ProcessCPUPercent.Set(usage.CPUPercent)
	return usage, nil
}
