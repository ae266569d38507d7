// Package threads manages a group of worker threads, typically the goroutines
// that drive an executor.Loop.
//
// Every member of a Group is a goroutine locked to its own OS thread for its
// whole life, so per-thread scheduling attributes (priority, CPU affinity)
// apply to the code it runs. The OS thread exits together with the member.
//
// Attributes
//
// Bulk setters on a Group apply a value to every current member. Members
// created later start from the attributes they were created with and are not
// affected by earlier bulk calls. Bulk getters return the value shared by all
// members; they fail with ErrEmptyGroup on an empty group and with
// ErrAttributeMismatch when members disagree.
//
// On Linux, priority and affinity are applied with setpriority(2) and
// sched_setaffinity(2). Elsewhere they are only recorded.
//
// Joining
//
// Join waits for every member, removing each record once joined. Close is the
// destructor: it joins members whose destruction action is DtorJoin and
// abandons members whose action is DtorDetach.
package threads
