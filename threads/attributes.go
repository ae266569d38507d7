package threads

import (
	"slices"
	"strconv"
	"strings"
)

// Priority is a portable scheduling priority level. The zero value is
// PriorityNormal.
type Priority int

const (
	PriorityLowest      Priority = -2
	PriorityBelowNormal Priority = -1
	PriorityNormal      Priority = 0
	PriorityAboveNormal Priority = 1
	PriorityHighest     Priority = 2
)

// Nice values bound the native priority range.
const (
	MinNativePriority = -20
	MaxNativePriority = 19
)

func (p Priority) valid() bool { return p >= PriorityLowest && p <= PriorityHighest }

// Native returns the nice value p maps to.
func (p Priority) Native() int {
	switch p {
	case PriorityLowest:
		return 19
	case PriorityBelowNormal:
		return 10
	case PriorityAboveNormal:
		return -10
	case PriorityHighest:
		return -20
	default:
		return 0
	}
}

func (p Priority) String() string {
	switch p {
	case PriorityLowest:
		return "lowest"
	case PriorityBelowNormal:
		return "below-normal"
	case PriorityNormal:
		return "normal"
	case PriorityAboveNormal:
		return "above-normal"
	case PriorityHighest:
		return "highest"
	default:
		return "priority(" + strconv.Itoa(int(p)) + ")"
	}
}

// priorityOf returns the level whose band contains the nice value n.
func priorityOf(n int) Priority {
	switch {
	case n >= 15:
		return PriorityLowest
	case n >= 5:
		return PriorityBelowNormal
	case n > -5:
		return PriorityNormal
	case n > -15:
		return PriorityAboveNormal
	default:
		return PriorityHighest
	}
}

func validNative(n int) bool { return n >= MinNativePriority && n <= MaxNativePriority }

// CPUSet lists logical CPU indexes a thread may run on. An empty set means no
// constraint beyond the process's own affinity.
type CPUSet []int

// Normalize returns a sorted copy of s without duplicates.
func (s CPUSet) Normalize() CPUSet {
	if len(s) == 0 {
		return nil
	}
	out := slices.Clone(s)
	slices.Sort(out)
	return slices.Compact(out)
}

// Equal reports whether s and o contain the same CPUs.
func (s CPUSet) Equal(o CPUSet) bool {
	return slices.Equal(s.Normalize(), o.Normalize())
}

func (s CPUSet) valid() bool {
	for _, c := range s {
		if c < 0 {
			return false
		}
	}
	return true
}

func (s CPUSet) String() string {
	n := s.Normalize()
	if len(n) == 0 {
		return "any"
	}
	parts := make([]string, len(n))
	for i, c := range n {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, ",")
}

// AvailableCPUs returns the CPUs the process may run on.
func AvailableCPUs() CPUSet { return availableCPUs() }

// DtorAction decides what Group.Close does with a member.
type DtorAction int

const (
	// DtorJoin makes Close wait for the member to finish.
	DtorJoin DtorAction = iota
	// DtorDetach makes Close release the member without waiting.
	DtorDetach
)

func (a DtorAction) valid() bool { return a == DtorJoin || a == DtorDetach }

func (a DtorAction) String() string {
	switch a {
	case DtorJoin:
		return "join"
	case DtorDetach:
		return "detach"
	default:
		return "dtor(" + strconv.Itoa(int(a)) + ")"
	}
}

// Attributes configure a thread at creation.
type Attributes struct {
	// Name overrides the generated "<prefix>-<n>" thread name.
	Name string
	// Priority is the initial priority level.
	Priority Priority
	// NativePriority, when set, overrides Priority with a raw nice value.
	NativePriority *int
	// Affinity restricts the thread to these CPUs.
	Affinity CPUSet
	// DtorAction is the destruction action; DtorJoin by default.
	DtorAction DtorAction
}

func (a Attributes) validate() error {
	switch {
	case !a.Priority.valid():
		return ErrInvalidAttribute
	case a.NativePriority != nil && !validNative(*a.NativePriority):
		return ErrInvalidAttribute
	case !a.Affinity.valid():
		return ErrInvalidAttribute
	case !a.DtorAction.valid():
		return ErrInvalidAttribute
	}
	return nil
}

func (a Attributes) native() int {
	if a.NativePriority != nil {
		return *a.NativePriority
	}
	return a.Priority.Native()
}
