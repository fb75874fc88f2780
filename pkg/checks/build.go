/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package checks

import "fmt"

// Job is a build definition owned by the host.
type Job interface {
	// FullName is the slash separated name of the job, e.g. "org/repo/main".
	FullName() string

	// Source returns the source-control source backing the job, or nil.
	Source() *Source
}

// Run is a single execution of a Job.
type Run interface {
	// Parent returns the job this run belongs to.
	Parent() Job

	// Number is the build number of the run within its job.
	Number() int

	// Checkouts returns the source-control checkouts performed by the run.
	Checkouts() []Checkout

	// SourceRevision returns the revision of the job's Source that the run
	// built, if the host recorded one.
	SourceRevision() string
}

// Checkout describes a source-control checkout performed by a run.
type Checkout struct {
	// Workspace is the local directory of the checkout, if any.
	Workspace string

	// RemoteURL is the URL the checkout was cloned from. When empty it is
	// read from the repository in Workspace.
	RemoteURL string

	// CredentialsID identifies the credentials configured for the checkout.
	CredentialsID string

	// Revision is the commit that was built. When empty it is read from
	// the HEAD of the repository in Workspace.
	Revision string
}

// Source describes a source-control source: an integration that knows its
// repository and credentials without a live checkout.
type Source struct {
	// Kind names the source implementation, e.g. SourceKindGitHub.
	Kind string

	// APIURL is the API endpoint of the source. Empty means the public service.
	APIURL string

	Owner      string
	Repository string

	// CredentialsID identifies the credentials configured for the source.
	CredentialsID string

	// Revision is the last known head revision of the source.
	Revision string
}

// SourceKindGitHub is the Source kind of GitHub backed sources.
const SourceKindGitHub = "github"

// Build is the target of a resolution: either a Run or a Job.
type Build struct {
	run Run
	job Job
}

// RunBuild returns the Build for a single execution.
func RunBuild(r Run) Build {
	return Build{run: r}
}

// JobBuild returns the Build for a job definition.
func JobBuild(j Job) Build {
	return Build{job: j}
}

// Run returns the run of the build, if the build is a run.
func (b Build) Run() (Run, bool) {
	return b.run, b.run != nil
}

// Job returns the job of the build. For a run this is its parent.
func (b Build) Job() Job {
	if b.run != nil {
		return b.run.Parent()
	}
	return b.job
}

// IsZero reports whether the build references neither a run nor a job.
func (b Build) IsZero() bool {
	return b.run == nil && b.job == nil
}

// String returns a human readable name of the build.
func (b Build) String() string {
	switch {
	case b.run != nil:
		return RunName(b.run)
	case b.job != nil:
		return b.job.FullName()
	default:
		return "<none>"
	}
}

// RunName returns the display name of a run, e.g. "org/repo #12".
func RunName(r Run) string {
	name := "<unknown>"
	if p := r.Parent(); p != nil {
		name = p.FullName()
	}
	return fmt.Sprintf("%s #%d", name, r.Number())
}
