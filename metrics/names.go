package metrics

// Coroutine instruments (package spawn).
const (
	CoroutinesSpawned     = "coroutines_spawned_total"
	CoroutinesCompleted   = "coroutines_completed_total"
	CoroutinesFailed      = "coroutines_failed_total"
	CoroutinesAbandoned   = "coroutines_abandoned_total"
	CoroutinesLive        = "coroutines_live"
	CoroutineSuspensions  = "coroutine_suspensions_total"
	CoroutineResumptions  = "coroutine_resumptions_total"
	CoroutineLifetimeSecs = "coroutine_lifetime_seconds"
)

// Executor instruments (package executor).
const (
	HandlersPosted    = "executor_handlers_posted_total"
	HandlersExecuted  = "executor_handlers_executed_total"
	HandlersPanicked  = "executor_handlers_panicked_total"
	HandlersAbandoned = "executor_handlers_abandoned_total"
)

// Thread group instruments (package threads).
const (
	ThreadsStarted  = "threads_started_total"
	ThreadsJoined   = "threads_joined_total"
	ThreadsDetached = "threads_detached_total"
	ThreadsFailed   = "threads_failed_total"
	ThreadsLive     = "threads_live"
)
