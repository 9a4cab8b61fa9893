package main

import "fmt"

// WrapOperationError annotates a startup failure with the operation that
// produced it, in a uniform "failed to <operation>" shape so log lines from
// run() read consistently. Returns nil when err is nil, so call sites can
// wrap unconditionally.
func WrapOperationError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to %s: %w", operation, err)
}
