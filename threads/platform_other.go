//go:build !linux

package threads

import "runtime"

// Thread ids are not tracked outside Linux; 0 disables self-join detection.
func currentThreadID() int { return 0 }

func setNice(_, _ int) error { return nil }

func setAffinity(_ int, _ CPUSet) error { return nil }

func availableCPUs() CPUSet {
	out := make(CPUSet, runtime.NumCPU())
	for i := range out {
		out[i] = i
	}
	return out
}
