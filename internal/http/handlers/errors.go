// Package handlers defines HTTP-layer error codes used across the ops API.
//
// Codes are lowercase snake_case and give clients a stable, machine-readable
// taxonomy alongside the HTTP status. Handlers pass the most specific
// matching code to fail().
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeInternal         = "internal_error"
	ErrCodeListFailed       = "list_failed"
	ErrCodeHistoryFailed    = "history_failed"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
