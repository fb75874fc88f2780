/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package github

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/go-git/go-git/v5"
	giturl "github.com/kubescape/go-git-url"

	"github.com/chainguard-dev/checks-publisher/pkg/checks"
)

// GitRepository is a GitHub repository checked out by a run.
type GitRepository struct {
	// URL is the remote URL of the checkout.
	URL string

	Host  string
	Owner string
	Repo  string

	CredentialsID string

	// Revision is the commit the run built.
	Revision string
}

// SCMFacade answers source-control questions about builds.
type SCMFacade interface {
	// GitRepository returns the first checkout of the run backed by a GitHub
	// repository.
	GitRepository(run checks.Run) (*GitRepository, bool)

	// GitHubSource returns the source of the job when it is a GitHub source.
	GitHubSource(job checks.Job) (*checks.Source, bool)
}

// FacadeOption configures the default SCMFacade.
type FacadeOption func(*scmFacade)

// WithEnterpriseHosts adds GitHub Enterprise hosts whose remotes are
// recognized as GitHub repositories.
func WithEnterpriseHosts(hosts ...string) FacadeOption {
	return func(f *scmFacade) {
		for _, h := range hosts {
			f.hosts = append(f.hosts, strings.ToLower(h))
		}
	}
}

// NewSCMFacade returns the SCMFacade that inspects checkouts with go-git.
func NewSCMFacade(opts ...FacadeOption) SCMFacade {
	f := &scmFacade{hosts: []string{"github.com"}}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

type scmFacade struct {
	hosts []string
}

// GitRepository implements SCMFacade.
func (f *scmFacade) GitRepository(run checks.Run) (*GitRepository, bool) {
	for _, co := range run.Checkouts() {
		remote, revision := co.RemoteURL, co.Revision
		if co.Workspace != "" && (remote == "" || revision == "") {
			// An unreadable workspace still leaves an explicit remote.
			if wsRemote, wsRevision, err := inspectWorkspace(co.Workspace); err == nil {
				if remote == "" {
					remote = wsRemote
				}
				if revision == "" {
					revision = wsRevision
				}
			}
		}

		host, owner, repo, err := f.parseRemote(remote)
		if err != nil {
			continue
		}
		return &GitRepository{
			URL:           remote,
			Host:          host,
			Owner:         owner,
			Repo:          repo,
			CredentialsID: co.CredentialsID,
			Revision:      revision,
		}, true
	}
	return nil, false
}

// GitHubSource implements SCMFacade.
func (f *scmFacade) GitHubSource(job checks.Job) (*checks.Source, bool) {
	if job == nil {
		return nil, false
	}
	src := job.Source()
	if src == nil || src.Kind != checks.SourceKindGitHub {
		return nil, false
	}
	return src, true
}

// remotePattern matches https, ssh and scp-like remotes.
var remotePattern = regexp.MustCompile(`^(?:[a-z+]+://)?(?:[^@/]+@)?([^/:]+)(?::\d+)?[/:]([^/]+)/([^/]+?)(?:\.git)?/?$`)

func (f *scmFacade) parseRemote(remote string) (host, owner, repo string, err error) {
	if remote == "" {
		return "", "", "", errors.New("empty remote URL")
	}

	if u, err := giturl.NewGitURL(remote); err == nil {
		host = strings.ToLower(u.GetHostName())
		if slices.Contains(f.hosts, host) && u.GetOwnerName() != "" && u.GetRepoName() != "" {
			return host, u.GetOwnerName(), u.GetRepoName(), nil
		}
	}

	// go-git-url only knows the public hosting services.
	m := remotePattern.FindStringSubmatch(remote)
	if m == nil {
		return "", "", "", fmt.Errorf("unrecognized remote URL: %s", remote)
	}
	host = strings.ToLower(m[1])
	if !slices.Contains(f.hosts, host) {
		return "", "", "", fmt.Errorf("not a GitHub remote: %s", remote)
	}
	return host, m[2], m[3], nil
}

// inspectWorkspace reads the remote URL and HEAD commit of the repository
// checked out in dir, preferring the "origin" remote.
func inspectWorkspace(dir string) (remote, revision string, err error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{
		DetectDotGit: true,
	})
	if err != nil {
		return "", "", fmt.Errorf("opening repository: %w", err)
	}

	remotes, err := repo.Remotes()
	if err != nil {
		return "", "", fmt.Errorf("listing remotes: %w", err)
	}
	for _, r := range remotes {
		cfg := r.Config()
		if len(cfg.URLs) == 0 {
			continue
		}
		if remote == "" || cfg.Name == git.DefaultRemoteName {
			remote = cfg.URLs[0]
		}
	}

	if head, err := repo.Head(); err == nil {
		revision = head.Hash().String()
	}
	return remote, revision, nil
}
