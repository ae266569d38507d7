// Package executor provides the work-queue collaborators that drive coroutine
// resumption: the Executor contract, a run-until-idle Loop that any number of
// worker threads may drive concurrently, and a Strand that serializes the
// handlers posted through it.
//
// Loop
//
// A Loop is an execution context in the classic reactor sense, minus the
// reactor: handlers are posted with Post and executed by goroutines calling
// Run, RunOne or Poll. Run returns once the Loop is stopped or runs out of
// work, i.e. no handler is queued, none is executing and no outstanding work
// was registered with OnWorkStarted. A Loop that ran out of work stays stopped
// until Restart is called.
//
// Shutdown
//
// Shutdown stops the Loop, waits for Run callers to leave, closes the channel
// returned by Done, drops queued handlers and waits for outstanding work to be
// released. Owners of outstanding work (suspended coroutines) watch Done and
// release their work when it closes.
//
// Strand
//
// A Strand wraps another Executor and guarantees that handlers posted through
// it run one at a time, in FIFO order, regardless of how many goroutines drive
// the underlying Executor.
package executor
