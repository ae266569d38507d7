package spawn

// Body is the canonical coroutine body shape. It receives the coroutine's
// Yield handle and returns a result of type R and an error.
// Use BodyFunc / BodyValue / BodyError / BodyVoid to adapt common signatures.
//
// Example:
//
//	b := BodyValue(func(y Yield) int {
//		return Call(y, readAsync)
//	})
type Body[R any] func(Yield) (R, error)

// Void is the result type of bodies that produce no value.
type Void = struct{}

// BodyFunc adapts func(Yield) (R, error) to Body[R].
func BodyFunc[R any](fn func(Yield) (R, error)) Body[R] { return Body[R](fn) }

// BodyValue adapts func(Yield) R to Body[R].
func BodyValue[R any](fn func(Yield) R) Body[R] {
	return func(y Yield) (R, error) { return fn(y), nil }
}

// BodyError adapts func(Yield) error to Body[R].
// The returned Body yields the zero value of R alongside the error.
func BodyError[R any](fn func(Yield) error) Body[R] {
	return func(y Yield) (R, error) { var zero R; return zero, fn(y) }
}

// BodyVoid adapts func(Yield) to Body[Void].
func BodyVoid(fn func(Yield)) Body[Void] {
	return func(y Yield) (Void, error) { fn(y); return Void{}, nil }
}
