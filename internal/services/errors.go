// Package services defines the business logic for topics, relayed exchanges,
// and history analysis. This file centralizes common service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// These errors are intended for internal use by the service layer and
// translation into user-facing messages should be performed at the bot or
// HTTP handler layer.
package services

import "errors"

var (
	// ErrTopicNotFound indicates that the requested topic does not exist or
	// is not accessible to the current user.
	ErrTopicNotFound = errors.New("topic not found")

	// ErrEmptyPrompt is returned when a relay request contains an empty
	// message.
	ErrEmptyPrompt = errors.New("prompt is empty")

	// ErrEmptyTitle is returned when an explicit topic creation request
	// contains no title text.
	ErrEmptyTitle = errors.New("topic title is empty")

	// ErrNoHistory is returned when a history analysis finds no recorded
	// exchanges in the requested window.
	ErrNoHistory = errors.New("no history in the requested period")
)
