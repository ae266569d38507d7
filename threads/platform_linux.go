//go:build linux

package threads

import (
	"golang.org/x/sys/unix"
)

func currentThreadID() int { return unix.Gettid() }

func setNice(tid, nice int) error {
	return unix.Setpriority(unix.PRIO_PROCESS, tid, nice)
}

func setAffinity(tid int, cpus CPUSet) error {
	if len(cpus) == 0 {
		cpus = processCPUs
	}
	var set unix.CPUSet
	set.Zero()
	for _, c := range cpus {
		set.Set(c)
	}
	return unix.SchedSetaffinity(tid, &set)
}

// processCPUs is the affinity the process started with; an empty CPUSet
// restores it.
var processCPUs = availableCPUs()

func availableCPUs() CPUSet {
	var set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &set); err != nil {
		return nil
	}
	out := make(CPUSet, 0, set.Count())
	for c := 0; len(out) < set.Count(); c++ {
		if set.IsSet(c) {
			out = append(out, c)
		}
	}
	return out
}
