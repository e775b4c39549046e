// Package lro drives vendor long-running operations to a terminal state.
package lro

import (
	"time"
)

// State is the lifecycle state of a long-running operation.
type State string

const (
	// StateSubmitted means the vendor accepted the job and returned a handle.
	StateSubmitted State = "submitted"
	// StatePolling means status queries are being issued.
	StatePolling State = "polling"
	// StateSucceeded means the vendor reported done with a success payload.
	StateSucceeded State = "succeeded"
	// StateFailed means the vendor reported done with an error payload.
	StateFailed State = "failed"
	// StateTimedOut means the attempt budget ran out before a terminal report.
	StateTimedOut State = "timed_out"
)

// IsTerminal checks if the state is terminal.
func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed || s == StateTimedOut
}

// Operation tracks one vendor job from submission to a terminal state. It is
// owned and driven by exactly one task; it is never polled concurrently.
type Operation struct {
	// Name is the vendor-assigned operation handle.
	Name string
	// Model is the model the job was submitted against. Vendors with
	// model-scoped status endpoints need it on every poll; keeping it on
	// the handle means nothing outlives the operation.
	Model string

	state      State
	createdAt  time.Time
	lastPollAt time.Time
	attempts   int
	totalDelay time.Duration
}

// NewOperation creates an operation in the Submitted state.
func NewOperation(name string) *Operation {
	return &Operation{
		Name:      name,
		state:     StateSubmitted,
		createdAt: time.Now(),
	}
}

// State returns the current state.
func (o *Operation) State() State { return o.state }

// Attempts returns the number of status queries issued so far.
func (o *Operation) Attempts() int { return o.attempts }

// TotalDelay returns the accumulated scheduled delay across all polls.
func (o *Operation) TotalDelay() time.Duration { return o.totalDelay }

// CreatedAt returns the submission time.
func (o *Operation) CreatedAt() time.Time { return o.createdAt }
