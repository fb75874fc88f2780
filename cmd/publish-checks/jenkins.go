/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"strings"

	"github.com/chainguard-dev/checks-publisher/pkg/checks"
)

// jenkinsJob is the job described by the Jenkins build environment.
type jenkinsJob struct {
	name   string
	source *checks.Source
}

func (j *jenkinsJob) FullName() string       { return j.name }
func (j *jenkinsJob) Source() *checks.Source { return j.source }

// jenkinsRun is the run described by the Jenkins build environment.
type jenkinsRun struct {
	job       *jenkinsJob
	number    int
	checkouts []checks.Checkout
	revision  string
}

func (r *jenkinsRun) Parent() checks.Job           { return r.job }
func (r *jenkinsRun) Number() int                  { return r.number }
func (r *jenkinsRun) Checkouts() []checks.Checkout { return r.checkouts }
func (r *jenkinsRun) SourceRevision() string       { return r.revision }

// newRun describes the current build from its environment. The checkout is
// the workspace, and a GitHub source is configured when the repository is
// named explicitly.
func newRun(cfg config) *jenkinsRun {
	job := &jenkinsJob{name: cfg.JobName}
	if owner, repo, ok := strings.Cut(cfg.SourceRepository, "/"); ok && owner != "" && repo != "" {
		job.source = &checks.Source{
			Kind:          checks.SourceKindGitHub,
			APIURL:        cfg.GitHubAPIURL,
			Owner:         owner,
			Repository:    repo,
			CredentialsID: cfg.CredentialsID,
			Revision:      cfg.GitCommit,
		}
	}

	run := &jenkinsRun{
		job:      job,
		number:   cfg.BuildNumber,
		revision: cfg.GitCommit,
	}
	if cfg.Workspace != "" || cfg.GitURL != "" {
		run.checkouts = append(run.checkouts, checks.Checkout{
			Workspace:     cfg.Workspace,
			RemoteURL:     cfg.GitURL,
			CredentialsID: cfg.CredentialsID,
			Revision:      cfg.GitCommit,
		})
	}
	return run
}
