// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains the retry/fallback control flow shared
// by ledger operations: a small, explicit state machine
//
//	Attempting -> Success
//	           -> TransientError -> Attempting (while budget remains)
//	           -> TransientError -> Fallback -> (Success | Fatal)
//	           -> NonTransientError -> Fatal
//
// plus the classifier that decides which errors count as transient
// connectivity failures.
package repo

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"
)

const (
	// maxAttempts is the fixed retry budget for ledger operations.
	maxAttempts = 3
	// retryBackoff is the fixed pause between attempts.
	retryBackoff = time.Second
)

// sleepFn is a seam so tests can skip real backoff pauses.
var sleepFn = time.Sleep

// IsTransient reports whether err looks like a recoverable connectivity
// failure worth retrying. Anything else (constraint violations, SQL errors,
// programming mistakes) is treated as non-transient and surfaces immediately.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, mysqldrv.ErrInvalidConn) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var myErr *mysqldrv.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1040, // too many connections
			1053, // server shutdown in progress
			1205, // lock wait timeout
			1213: // deadlock, safe to retry a single-statement write
			return true
		}
	}
	return false
}

// withRetry runs op up to attempts times, sleeping backoff between tries.
// Only transient errors consume the budget; a non-transient error aborts
// immediately. The last transient error is returned when the budget is
// exhausted.
func withRetry(attempts int, backoff time.Duration, op func() error) error {
	var last error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			sleepFn(backoff)
		}
		err := op()
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return err
		}
		last = err
	}
	return last
}

// execWithFallback drives a write through the full state machine: the
// primary write is retried on transient errors; once the budget is spent the
// fallback write runs exactly once. A non-transient primary error skips the
// fallback, and a fallback failure is fatal for the operation.
func execWithFallback(attempts int, backoff time.Duration, primary, fallback func() error) error {
	err := withRetry(attempts, backoff, primary)
	if err == nil {
		return nil
	}
	if !IsTransient(err) {
		return err
	}
	return fallback()
}
