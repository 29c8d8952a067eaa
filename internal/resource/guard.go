// Package resource performs pre-flight checks of disk space and memory
// pressure. Checks are advisory: a failed or unsupported check produces a
// warning, never an error, so batch runs are not halted by false positives.
package resource

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

const bytesPerGB = 1024 * 1024 * 1024

// memWarnThresholdGB is the available-memory floor below which a warning
// is raised. Encoding long tracks with ffmpeg is memory hungry.
const memWarnThresholdGB = 0.5

// Report is the outcome of a pre-flight resource check.
type Report struct {
	// OK is false when at least one warning was raised.
	OK bool
	// Warnings describes each resource concern in operator-readable form.
	Warnings []string
	// FreeDiskGB is the measured free space on the checked volume, when
	// the measurement succeeded.
	FreeDiskGB float64
}

// Guard checks free disk space on the output volume and, best effort,
// system memory pressure.
type Guard struct {
	// dir is the directory whose volume is checked.
	dir string
}

// NewGuard creates a Guard for the volume containing dir.
func NewGuard(dir string) *Guard {
	if dir == "" {
		dir = "."
	}
	return &Guard{dir: dir}
}

// Check measures free disk space against minFreeGB and reads available
// memory from /proc/meminfo when present. It never returns an error.
func (g *Guard) Check(minFreeGB float64) Report {
	report := Report{OK: true}

	freeGB, err := g.freeDiskGB()
	switch {
	case err != nil:
		report.OK = false
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("unable to check free disk space on %s: %v", g.dir, err))
	case freeGB < minFreeGB:
		report.OK = false
		report.FreeDiskGB = freeGB
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("low disk space on %s: %.2f GB free, %.2f GB recommended", g.dir, freeGB, minFreeGB))
	default:
		report.FreeDiskGB = freeGB
	}

	// Memory check is best effort; /proc/meminfo only exists on Linux.
	if availGB, ok := availableMemoryGB(); ok && availGB < memWarnThresholdGB {
		report.OK = false
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("low available memory: %.2f GB", availGB))
	}

	return report
}

// freeDiskGB returns the free space in gigabytes on the guarded volume.
func (g *Guard) freeDiskGB() (float64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(g.dir, &stat); err != nil {
		return 0, fmt.Errorf("statfs %s: %w", g.dir, err)
	}

	available := stat.Bavail * uint64(stat.Bsize) // #nosec G115 - Bsize is positive
	return float64(available) / bytesPerGB, nil
}

// availableMemoryGB reads MemAvailable from /proc/meminfo. The second
// return value is false when the value cannot be determined.
func availableMemoryGB() (float64, bool) {
	f, err := os.Open("/proc/meminfo")
	if err != nil {
		return 0, false
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "MemAvailable:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return 0, false
		}
		kb, err := strconv.ParseUint(fields[1], 10, 64)
		if err != nil {
			return 0, false
		}
		return float64(kb) * 1024 / bytesPerGB, true
	}

	return 0, false
}
