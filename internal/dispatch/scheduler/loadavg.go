package scheduler

import (
	"os"
	"runtime"
	"strconv"
	"strings"
)

// SystemLoad samples the one-minute load average normalized by CPU
// count, clamped to [0, 1]. Hosts without /proc/loadavg report 0.
func SystemLoad() float64 {
	data, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return 0
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0
	}
	load, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	norm := load / float64(runtime.NumCPU())
	if norm > 1 {
		return 1
	}
	return norm
}
