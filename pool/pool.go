// Package pool recycles short-lived objects such as coroutine execution units.
package pool

// Pool holds reusable values of type T.
type Pool[T any] interface {
	// Get returns a value from the pool, creating one when the pool is empty.
	Get() T

	// Put returns a value to the pool. The caller must not use it afterwards.
	Put(T)
}
