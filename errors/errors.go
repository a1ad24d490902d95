package errors

import "fmt"

var (
	ErrWorkerPanic   = fmt.Errorf("worker panic")
	ErrEmptyWorkload = fmt.Errorf("workload contains no request path")
	ErrEmptyIndex    = fmt.Errorf("content index contains no entry")
	ErrNotFound      = fmt.Errorf("not found")
)
