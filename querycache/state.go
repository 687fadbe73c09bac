package querycache

import "context"

// State is the status of a query as shown to the user.
type State int

const (
	StateLoading State = iota
	StateError
	StateSuccess
)

func (s State) String() string {
	switch s {
	case StateError:
		return "error"
	case StateSuccess:
		return "success"
	default:
		return "loading"
	}
}

// Result is a query outcome. Read failures are reported here rather than returned as errors.
type Result[T any] struct {
	State State
	Value T
	Err   error
}

// Load fetches key and wraps the outcome in a Result.
func Load[T any](ctx context.Context, c *Cache, key string, fn func(context.Context) (T, error)) Result[T] {
	v, err := Fetch(ctx, c, key, fn)
	if err != nil {
		return Result[T]{State: StateError, Err: err}
	}

	return Result[T]{State: StateSuccess, Value: v}
}

// Pending returns the cached value of key as a Result, StateLoading when nothing is cached.
func Pending[T any](c *Cache, key string) Result[T] {
	if v, ok := Peek[T](c, key); ok {
		return Result[T]{State: StateSuccess, Value: v}
	}

	return Result[T]{State: StateLoading}
}
