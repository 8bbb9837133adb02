// Package syncerror defines the error taxonomy of a sync run.
// Fetch errors abort a run; processing and insertion errors are isolated per item or batch.
package syncerror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrSyncInProgress is returned when a run is requested while another one is active.
	ErrSyncInProgress = errors.New("a sync run is already in progress")

	// ErrInvalidConfig marks configuration validation failures.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// FetchError reports a remote source or target that is unreachable or answered non-2xx.
// StatusCode is 0 for transport level failures.
type FetchError struct {
	Source     string
	Op         string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s failed with status %d: %v", e.Source, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Source, e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable is true for network failures, 429 and 5xx answers.
func (e *FetchError) Retryable() bool {
	if errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded) {
		return false
	}
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// CategoryFetchError reports a failure to download the category list of the target system.
type CategoryFetchError struct {
	Err error
}

func (e *CategoryFetchError) Error() string {
	return fmt.Sprintf("failed to fetch categories: %v", e.Err)
}

func (e *CategoryFetchError) Unwrap() error {
	return e.Err
}

// PersistenceError reports a failed read or write of the payee memory.
type PersistenceError struct {
	Op      string // "load", "save", "clear", "stats"
	Backend string
	Err     error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("memory %s on %s backend failed: %v", e.Op, e.Backend, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// CategorizationError reports a categorization that could not complete.
type CategorizationError struct {
	Payee    string
	Strategy string
	Err      error
}

func (e *CategorizationError) Error() string {
	return fmt.Sprintf("categorization failed for %q using %s: %v", e.Payee, e.Strategy, e.Err)
}

func (e *CategorizationError) Unwrap() error {
	return e.Err
}

// ProcessingError records a single transaction excluded from insertion.
type ProcessingError struct {
	Transaction string `json:"transaction"`
	Stage       string `json:"stage"`
	Err         error  `json:"-"`
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("processing %s failed at %s: %v", e.Transaction, e.Stage, e.Err)
}

func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// MarshalJSON includes the cause as a string.
func (e *ProcessingError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Transaction string `json:"transaction"`
		Stage       string `json:"stage"`
		Error       string `json:"error"`
	}{e.Transaction, e.Stage, errString(e.Err)})
}

// InsertionError records a batch that could not be inserted after all retries.
type InsertionError struct {
	Batch int   `json:"batch"`
	Size  int   `json:"size"`
	Err   error `json:"-"`
}

func (e *InsertionError) Error() string {
	return fmt.Sprintf("batch %d (%d transactions) failed: %v", e.Batch, e.Size, e.Err)
}

func (e *InsertionError) Unwrap() error {
	return e.Err
}

// MarshalJSON includes the cause as a string.
func (e *InsertionError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Batch int    `json:"batch"`
		Size  int    `json:"size"`
		Error string `json:"error"`
	}{e.Batch, e.Size, errString(e.Err)})
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// IsRetryable reports whether err, or an error it wraps, is worth another attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var r interface{ Retryable() bool }
	if errors.As(err, &r) {
		return r.Retryable()
	}
	return false
}
