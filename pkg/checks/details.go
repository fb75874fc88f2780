/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package checks

import (
	"errors"
	"strings"
	"time"
)

// Status is the lifecycle state of a check.
type Status string

const (
	StatusNone       Status = "none"
	StatusQueued     Status = "queued"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Conclusion is the outcome of a completed check.
type Conclusion string

const (
	ConclusionNone           Conclusion = "none"
	ConclusionActionRequired Conclusion = "action_required"
	ConclusionSkipped        Conclusion = "skipped"
	ConclusionCancelled      Conclusion = "cancelled"
	ConclusionTimedOut       Conclusion = "timed_out"
	ConclusionFailure        Conclusion = "failure"
	ConclusionNeutral        Conclusion = "neutral"
	ConclusionSuccess        Conclusion = "success"
)

var (
	// ErrNilDetails is returned when there are no details to publish.
	ErrNilDetails = errors.New("check details are required")

	// ErrBlankName is returned when a check has no name.
	ErrBlankName = errors.New("check name should not be blank")

	// ErrMissingConclusion is returned when a completed check has no conclusion.
	ErrMissingConclusion = errors.New("conclusion is required when status is completed")
)

// Details describes a check to publish.
type Details struct {
	Name       string
	Status     Status
	Conclusion Conclusion

	// DetailsURL links to the full details of the check. When empty the
	// publisher uses the report URL of its context.
	DetailsURL string

	StartedAt   time.Time
	CompletedAt time.Time

	Output  *Output
	Actions []Action
}

// Output is the visible result of a check.
type Output struct {
	Title       string
	Summary     string
	Text        string
	Annotations []Annotation
}

// AnnotationLevel is the severity of an Annotation.
type AnnotationLevel string

const (
	AnnotationLevelNotice  AnnotationLevel = "notice"
	AnnotationLevelWarning AnnotationLevel = "warning"
	AnnotationLevelFailure AnnotationLevel = "failure"
)

// Annotation attaches a message to a range of lines in a file.
type Annotation struct {
	Path      string
	StartLine int
	EndLine   int
	Level     AnnotationLevel
	Title     string
	Message   string
	RawDetail string
}

// Action is a button offered to users next to the check.
type Action struct {
	Label       string
	Description string
	Identifier  string
}

// Validate reports whether the details can be published.
func (d *Details) Validate() error {
	if d == nil {
		return ErrNilDetails
	}
	if strings.TrimSpace(d.Name) == "" {
		return ErrBlankName
	}
	if d.Status == StatusCompleted && (d.Conclusion == "" || d.Conclusion == ConclusionNone) {
		return ErrMissingConclusion
	}
	return nil
}
