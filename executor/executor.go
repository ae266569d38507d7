package executor

// Executor accepts handlers and decides when and where they run.
// Implementations must be safe for concurrent use.
type Executor interface {
	// Post queues fn for execution and returns without running it.
	Post(fn func()) error

	// OnWorkStarted registers outstanding work that keeps the executor alive
	// while no handler is queued (e.g. a suspended coroutine).
	OnWorkStarted()

	// OnWorkFinished releases work registered with OnWorkStarted.
	OnWorkFinished()

	// Done is closed once the executor is shut down. Queued handlers that
	// were not run by then never will be.
	Done() <-chan struct{}
}

// Context is an execution context owning an Executor.
type Context interface {
	Executor() Executor
}
