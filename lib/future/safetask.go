package future

import "fmt"

// TaskResult is the structured outcome of a guarded task invocation.
type TaskResult[T any] struct {
	OK    bool
	Value T
	Err   error
}

// RunSafely invokes task and converts any failure - an error return or a
// panic - into a TaskResult. The panic is wrapped in ErrTaskPanic so callers
// can distinguish it from an ordinary error with errors.Is.
func RunSafely[T any](task func() (T, error)) (result TaskResult[T]) {
	defer func() {
		if r := recover(); r != nil {
			result = TaskResult[T]{Err: fmt.Errorf("%w: %v", ErrTaskPanic, r)}
		}
	}()

	value, err := task()
	if err != nil {
		return TaskResult[T]{Err: err}
	}
	return TaskResult[T]{OK: true, Value: value}
}
