/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package checks

import "context"

// Publisher sends check updates to a backend.
type Publisher interface {
	// Publish creates or updates the check described by details.
	Publish(ctx context.Context, details *Details) error
}

// Context is the addressing information a Publisher needs for one build.
//
// Constructing a Context must be cheap and free of side effects; all fallible
// work happens in IsValid.
type Context interface {
	// IsValid reports whether the context can be used to publish checks.
	// When it returns false it writes at least one line to logger saying why.
	// It writes nothing when it returns true. A non-nil error means a
	// collaborator failed, not that the context is invalid.
	IsValid(ctx context.Context, logger *Logger) (bool, error)

	// URL is the report URL of the build the context was created for.
	URL() string
}

// URLProvider computes the report URLs of builds.
type URLProvider interface {
	RunURL(r Run) string
	JobURL(j Job) string
}

type nullPublisher struct{}

// Publish does nothing.
func (nullPublisher) Publish(context.Context, *Details) error { return nil }

// NullPublisher accepts every update and does nothing with it.
var NullPublisher Publisher = nullPublisher{}

// IsNull reports whether p is the NullPublisher.
func IsNull(p Publisher) bool {
	_, ok := p.(nullPublisher)
	return ok
}
