/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package github

import (
	"time"
	"unicode/utf8"

	"github.com/google/go-github/v75/github"

	"github.com/chainguard-dev/checks-publisher/pkg/checks"
)

// Docs for Check Run API: https://docs.github.com/en/rest/checks/runs?apiVersion=2022-11-28

const (
	maxCheckOutputLength = 65535
	truncationMessage    = "\n\n⚠️ _Output has been truncated_"

	// maxAnnotationsPerRequest is the number of annotations GitHub accepts
	// in a single create or update request.
	maxAnnotationsPerRequest = 50
)

// checkRun is a check run ready to send: the options of the first request
// and the annotations that have to follow in further updates.
type checkRun struct {
	name       string
	headSHA    string
	status     *string
	conclusion *string
	detailsURL *string
	startedAt  *github.Timestamp
	finishedAt *github.Timestamp
	output     *github.CheckRunOutput
	actions    []*github.CheckRunAction

	// batches holds annotations beyond the first request, in request sized chunks.
	batches [][]*github.CheckRunAnnotation
}

// newCheckRun converts details to a check run on headSHA. detailsURL is used
// when details carry none, and now completes checks without a completion time.
func newCheckRun(details *checks.Details, headSHA, detailsURL string, now time.Time) *checkRun {
	cr := &checkRun{
		name:    details.Name,
		headSHA: headSHA,
	}

	if details.Status != "" && details.Status != checks.StatusNone {
		cr.status = github.Ptr(string(details.Status))
	}
	if details.Conclusion != "" && details.Conclusion != checks.ConclusionNone {
		cr.conclusion = github.Ptr(string(details.Conclusion))
		// Providing a conclusion completes the check run.
		cr.status = github.Ptr(string(checks.StatusCompleted))
	}

	if details.DetailsURL != "" {
		detailsURL = details.DetailsURL
	}
	if detailsURL != "" {
		cr.detailsURL = github.Ptr(detailsURL)
	}

	if !details.StartedAt.IsZero() {
		cr.startedAt = &github.Timestamp{Time: details.StartedAt}
	}
	switch {
	case !details.CompletedAt.IsZero():
		cr.finishedAt = &github.Timestamp{Time: details.CompletedAt}
	case cr.conclusion != nil:
		cr.finishedAt = &github.Timestamp{Time: now}
	}

	if out := details.Output; out != nil {
		title := out.Title
		if title == "" {
			title = details.Name
		}
		summary := out.Summary
		if summary == "" {
			summary = title
		}
		cr.output = &github.CheckRunOutput{
			Title:   github.Ptr(title),
			Summary: github.Ptr(truncate(summary)),
		}
		if out.Text != "" {
			cr.output.Text = github.Ptr(truncate(out.Text))
		}

		annotations := make([]*github.CheckRunAnnotation, 0, len(out.Annotations))
		for _, a := range out.Annotations {
			annotations = append(annotations, convertAnnotation(a))
		}
		for len(annotations) > maxAnnotationsPerRequest {
			cr.batches = append(cr.batches, annotations[:maxAnnotationsPerRequest])
			annotations = annotations[maxAnnotationsPerRequest:]
		}
		if len(cr.batches) > 0 {
			// The first chunk goes with the initial request.
			cr.batches = append(cr.batches, annotations)
			cr.output.Annotations = cr.batches[0]
			cr.batches = cr.batches[1:]
		} else if len(annotations) > 0 {
			cr.output.Annotations = annotations
		}
	}

	for _, a := range details.Actions {
		cr.actions = append(cr.actions, &github.CheckRunAction{
			Label:       a.Label,
			Description: a.Description,
			Identifier:  a.Identifier,
		})
	}
	return cr
}

func convertAnnotation(a checks.Annotation) *github.CheckRunAnnotation {
	level := a.Level
	if level == "" {
		level = checks.AnnotationLevelWarning
	}
	end := a.EndLine
	if end < a.StartLine {
		end = a.StartLine
	}
	ann := &github.CheckRunAnnotation{
		Path:            github.Ptr(a.Path),
		StartLine:       github.Ptr(a.StartLine),
		EndLine:         github.Ptr(end),
		AnnotationLevel: github.Ptr(string(level)),
		Message:         github.Ptr(a.Message),
	}
	if a.Title != "" {
		ann.Title = github.Ptr(a.Title)
	}
	if a.RawDetail != "" {
		ann.RawDetails = github.Ptr(a.RawDetail)
	}
	return ann
}

// truncate shortens s to the output limit of GitHub, appending a notice.
func truncate(s string) string {
	if len(s) <= maxCheckOutputLength {
		return s
	}
	n := maxCheckOutputLength - len(truncationMessage)
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + truncationMessage
}

// statusName is the status the check run ends up in.
func (cr *checkRun) statusName() string {
	if cr.status == nil {
		return string(checks.StatusNone)
	}
	return *cr.status
}

// create returns the options creating the check run.
func (cr *checkRun) create() github.CreateCheckRunOptions {
	return github.CreateCheckRunOptions{
		Name:        cr.name,
		HeadSHA:     cr.headSHA,
		Status:      cr.status,
		Conclusion:  cr.conclusion,
		DetailsURL:  cr.detailsURL,
		StartedAt:   cr.startedAt,
		CompletedAt: cr.finishedAt,
		Output:      cr.output,
		Actions:     cr.actions,
	}
}

// update returns the options updating an existing check run.
func (cr *checkRun) update() github.UpdateCheckRunOptions {
	return github.UpdateCheckRunOptions{
		Name:        cr.name,
		Status:      cr.status,
		Conclusion:  cr.conclusion,
		DetailsURL:  cr.detailsURL,
		CompletedAt: cr.finishedAt,
		Output:      cr.output,
		Actions:     cr.actions,
	}
}

// annotationUpdates returns the updates adding the remaining annotations.
func (cr *checkRun) annotationUpdates() []github.UpdateCheckRunOptions {
	out := make([]github.UpdateCheckRunOptions, 0, len(cr.batches))
	for _, batch := range cr.batches {
		out = append(out, github.UpdateCheckRunOptions{
			Name: cr.name,
			Output: &github.CheckRunOutput{
				Title:       cr.output.Title,
				Summary:     cr.output.Summary,
				Annotations: batch,
			},
		})
	}
	return out
}
