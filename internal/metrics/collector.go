package metrics

import (
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemStats holds point-in-time system metrics surfaced on the status
// endpoint.
type SystemStats struct {
	CPUUsagePercent    float64 `json:"cpu_usage_percent"`
	MemoryUsagePercent float64 `json:"memory_usage_percent"`
	MemoryUsedBytes    uint64  `json:"memory_used_bytes"`
	MemoryTotalBytes   uint64  `json:"memory_total_bytes"`
	DiskUsagePercent   float64 `json:"disk_usage_percent"`
	DiskUsedBytes      uint64  `json:"disk_used_bytes"`
	DiskTotalBytes     uint64  `json:"disk_total_bytes"`
	Timestamp          int64   `json:"timestamp"`
}

// CollectSystemStats samples CPU, memory and disk usage for the data
// directory's filesystem. Failures of individual probes leave zeroes rather
// than failing the whole health response.
func CollectSystemStats(dataDir string) *SystemStats {
	stats := &SystemStats{Timestamp: time.Now().Unix()}

	if percents, err := cpu.Percent(0, false); err == nil && len(percents) > 0 {
		stats.CPUUsagePercent = percents[0]
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		stats.MemoryUsagePercent = vm.UsedPercent
		stats.MemoryUsedBytes = vm.Used
		stats.MemoryTotalBytes = vm.Total
	}

	if du, err := disk.Usage(dataDir); err == nil {
		stats.DiskUsagePercent = du.UsedPercent
		stats.DiskUsedBytes = du.Used
		stats.DiskTotalBytes = du.Total
	}

	return stats
}
