//
// Copyright (C) 2025 OpenRedTeam.  All rights reserved.
//
// vlmprobe is licensed under the Apache License Version 2.0.
//
//

package model

import (
	"context"
	"fmt"
	"time"
)

// DefaultRetryWait is the fixed backoff before the single retry of a
// failed backend call.
const DefaultRetryWait = 10 * time.Second

// InvocationError reports a backend call that still failed after its retry.
// It is fatal for the item being processed.
type InvocationError struct {
	// Backend is the backend model name.
	Backend string
	// Err is the final call error.
	Err error
}

// Error implements the error interface.
func (e *InvocationError) Error() string {
	return fmt.Sprintf("backend %s invocation failed: %v", e.Backend, e.Err)
}

// Unwrap returns the underlying call error.
func (e *InvocationError) Unwrap() error {
	return e.Err
}

// InvokeWithRetry runs call, retrying exactly once after wait on failure.
// The wait respects context cancellation. The final failure is wrapped in
// an InvocationError carrying the backend name.
func InvokeWithRetry(
	ctx context.Context,
	backend string,
	wait time.Duration,
	call func(ctx context.Context) (*Response, error),
) (*Response, error) {
	rsp, err := call(ctx)
	if err == nil {
		return rsp, nil
	}
	select {
	case <-time.After(wait):
	case <-ctx.Done():
		return nil, &InvocationError{Backend: backend, Err: ctx.Err()}
	}
	rsp, err = call(ctx)
	if err != nil {
		return nil, &InvocationError{Backend: backend, Err: err}
	}
	return rsp, nil
}
