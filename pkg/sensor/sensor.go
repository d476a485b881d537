// Package sensor samples host resources on demand. The inspect CLI uses it
// to show whether the database volume is running out of room.
package sensor

import (
	"runtime"
	"time"
)

// Snapshot is a best-effort view of the resources the process runs on.
// Disk fields are zero on platforms without statfs support.
type Snapshot struct {
	Timestamp time.Time
	NumCPU    int

	// MemTotal is what the runtime obtained from the OS; MemUsed is live
	// heap bytes.
	MemTotal uint64
	MemUsed  uint64

	// Disk usage of the filesystem holding the sampled path.
	DiskTotal uint64
	DiskFree  uint64
}

// Read samples the runtime and the filesystem that holds path.
func Read(path string) Snapshot {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	snap := Snapshot{
		Timestamp: time.Now(),
		NumCPU:    runtime.NumCPU(),
		MemTotal:  ms.Sys,
		MemUsed:   ms.Alloc,
	}
	snap.DiskTotal, snap.DiskFree = diskUsage(path)
	return snap
}
