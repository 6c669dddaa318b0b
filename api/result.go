package api

// RunResult is the terminal outcome of an agent run. Exactly one of
// Success or Err is meaningful.
type RunResult[T any] struct {
	Success T
	Err     error
}

func (r RunResult[T]) IsSuccess() bool {
	return r.Err == nil
}

func (r RunResult[T]) IsError() bool {
	return r.Err != nil
}
