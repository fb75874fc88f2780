/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package github

import (
	"context"
	"fmt"

	"github.com/chainguard-dev/checks-publisher/pkg/checks"
	"github.com/chainguard-dev/checks-publisher/pkg/credentials"
)

// Context addresses check runs of one build in a GitHub repository.
type Context interface {
	checks.Context

	// Repository returns the owner and name of the repository.
	Repository() (owner, repo string)

	// HeadSHA is the commit check runs are attached to.
	HeadSHA() string

	// APIURL is the API endpoint of the repository's GitHub instance.
	// Empty means api.github.com.
	APIURL() string

	// CredentialsID identifies the credentials used to publish.
	CredentialsID() string
}

// validateCredentials resolves id and logs why the credentials cannot be
// used to publish checks.
func validateCredentials(ctx context.Context, logger *checks.Logger, lookup credentials.Lookup, id string) (bool, error) {
	creds, ok, err := lookup.Lookup(ctx, id)
	if err != nil {
		return false, fmt.Errorf("looking up credentials %q: %w", id, err)
	}
	if !ok || creds == nil {
		logger.Log("No credentials found for id '%s'", id)
		return false, nil
	}
	if !creds.IsApp() {
		logger.Log("No GitHub app credentials found: '%s'", id)
		logger.Log("See: https://docs.github.com/en/apps/creating-github-apps")
		return false, nil
	}
	return true, nil
}

// gitSCMContext is backed by a checkout of the run.
type gitSCMContext struct {
	run    checks.Run
	url    string
	facade SCMFacade
	lookup credentials.Lookup
}

var _ Context = (*gitSCMContext)(nil)

func newGitSCMContext(run checks.Run, url string, facade SCMFacade, lookup credentials.Lookup) *gitSCMContext {
	return &gitSCMContext{
		run:    run,
		url:    url,
		facade: facade,
		lookup: lookup,
	}
}

func (c *gitSCMContext) repository() *GitRepository {
	if repo, ok := c.facade.GitRepository(c.run); ok {
		return repo
	}
	return &GitRepository{}
}

// IsValid implements checks.Context.
func (c *gitSCMContext) IsValid(ctx context.Context, logger *checks.Logger) (bool, error) {
	repo, ok := c.facade.GitRepository(c.run)
	if !ok {
		logger.Log("No GitHub repository found for run '%s'", checks.RunName(c.run))
		return false, nil
	}
	if repo.CredentialsID == "" {
		logger.Log("No credentials found for repository '%s'", repo.URL)
		return false, nil
	}
	if ok, err := validateCredentials(ctx, logger, c.lookup, repo.CredentialsID); !ok || err != nil {
		return false, err
	}
	if repo.Revision == "" {
		logger.Log("No SHA found for run '%s'", checks.RunName(c.run))
		return false, nil
	}
	return true, nil
}

// URL implements checks.Context.
func (c *gitSCMContext) URL() string { return c.url }

// Repository implements Context.
func (c *gitSCMContext) Repository() (string, string) {
	repo := c.repository()
	return repo.Owner, repo.Repo
}

// HeadSHA implements Context.
func (c *gitSCMContext) HeadSHA() string { return c.repository().Revision }

// APIURL implements Context.
func (c *gitSCMContext) APIURL() string {
	host := c.repository().Host
	if host == "" || host == "github.com" {
		return ""
	}
	return "https://" + host + "/api/v3/"
}

// CredentialsID implements Context.
func (c *gitSCMContext) CredentialsID() string { return c.repository().CredentialsID }

// scmSourceContext is backed by the GitHub source of a job. The run is nil
// when publishing against the job itself.
type scmSourceContext struct {
	job    checks.Job
	run    checks.Run
	url    string
	facade SCMFacade
	lookup credentials.Lookup
}

var _ Context = (*scmSourceContext)(nil)

func newSCMSourceContext(job checks.Job, run checks.Run, url string, facade SCMFacade, lookup credentials.Lookup) *scmSourceContext {
	return &scmSourceContext{
		job:    job,
		run:    run,
		url:    url,
		facade: facade,
		lookup: lookup,
	}
}

func (c *scmSourceContext) source() *checks.Source {
	if src, ok := c.facade.GitHubSource(c.job); ok {
		return src
	}
	return &checks.Source{}
}

// IsValid implements checks.Context.
func (c *scmSourceContext) IsValid(ctx context.Context, logger *checks.Logger) (bool, error) {
	src, ok := c.facade.GitHubSource(c.job)
	if !ok {
		logger.Log("No GitHub SCM source found")
		return false, nil
	}
	if src.Owner == "" || src.Repository == "" {
		logger.Log("No GitHub repository configured for source")
		return false, nil
	}
	if src.CredentialsID == "" {
		logger.Log("No credentials found")
		return false, nil
	}
	if ok, err := validateCredentials(ctx, logger, c.lookup, src.CredentialsID); !ok || err != nil {
		return false, err
	}
	if c.HeadSHA() == "" {
		if c.run != nil {
			logger.Log("No SHA found for run '%s'", checks.RunName(c.run))
		} else {
			logger.Log("No SHA found for job '%s'", c.job.FullName())
		}
		return false, nil
	}
	return true, nil
}

// URL implements checks.Context.
func (c *scmSourceContext) URL() string { return c.url }

// Repository implements Context.
func (c *scmSourceContext) Repository() (string, string) {
	src := c.source()
	return src.Owner, src.Repository
}

// HeadSHA implements Context. A run's recorded revision wins over the
// source's last known revision.
func (c *scmSourceContext) HeadSHA() string {
	if c.run != nil {
		if rev := c.run.SourceRevision(); rev != "" {
			return rev
		}
	}
	return c.source().Revision
}

// APIURL implements Context.
func (c *scmSourceContext) APIURL() string { return c.source().APIURL }

// CredentialsID implements Context.
func (c *scmSourceContext) CredentialsID() string { return c.source().CredentialsID }
