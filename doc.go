// Package spawn runs sequential-style code over callback-based asynchronous
// operations using stackful coroutines.
//
// A coroutine is launched with Spawn on an executor.Executor. Its body
// receives a Yield handle; calling Call, Wait or Reschedule with that handle
// starts an operation, suspends the coroutine and hands the executor thread
// back to the executor. When the operation completes (on any goroutine) the
// outcome is stored in the coroutine's mailbox and its resumption is posted
// to the executor, which continues the body right after the suspension point.
//
// Execution model
//   - Each coroutine runs on its own goroutine, but only while an executor
//     handler is parked waiting for it. Body code is therefore always
//     attributed to exactly one executor thread, and coroutines bound to the
//     same executor.Strand never run concurrently.
//   - Every suspension is matched by exactly one resumption. Completing an
//     operation twice, or using a handle of a completed or suspended
//     coroutine, panics with *ProtocolViolationError. Violations are fatal:
//     neither the coroutine nor executor.Loop / executor.Strand contain them.
//   - A body leaving through runtime.Goexit completes with ErrCoroutineExited.
//   - A running or suspended coroutine counts as outstanding work on its
//     executor, so executor.Loop.Run keeps running until it completes.
//
// Errors
// A failed operation is delivered according to the handle's error policy:
//   - PolicyRaise (default): Call panics with *OperationError at the
//     suspension point. Unrecovered, it becomes the coroutine's error.
//   - PolicyReport (Yield.WithErrorSlot): the error is stored in the slot and
//     Call returns normally.
//
// Completion
// The coroutine's result or error is handed to its Token: Detached,
// Callback or a Future. A detached coroutine that fails is reported to the
// WithUnhandledHandler handler or, without one, logged at Fatal level.
//
// Shutdown
// When the executor shuts down (its Done channel closes) while a coroutine is
// waiting to start or resume, the coroutine is abandoned: its body unwinds,
// running deferred calls, and its token receives ErrAbandoned.
package spawn
