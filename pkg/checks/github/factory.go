/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package github

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/chainguard-dev/clog"
	"github.com/jonboulle/clockwork"

	"github.com/chainguard-dev/checks-publisher/pkg/checks"
	"github.com/chainguard-dev/checks-publisher/pkg/credentials"
)

const (
	// FactoryName is the name of the GitHub factory in a checks.Registry.
	FactoryName = "github-checks"

	loggerLabel = "GitHub Checks"
)

// Factory creates publishers for builds of GitHub repositories.
type Factory struct {
	lookup  credentials.Lookup
	urls    checks.URLProvider
	facade  SCMFacade
	clients *ClientCache
	clock   clockwork.Clock
}

var _ checks.Factory = (*Factory)(nil)

// Option configures a Factory.
type Option func(*Factory)

// WithSCMFacade sets the facade used to inspect builds.
func WithSCMFacade(f SCMFacade) Option {
	return func(fac *Factory) {
		fac.facade = f
	}
}

// WithTransport sets the base transport of GitHub API clients.
func WithTransport(rt http.RoundTripper) Option {
	return func(fac *Factory) {
		fac.clients = NewClientCache(rt)
	}
}

// WithClientCache shares a client cache between factories.
func WithClientCache(cc *ClientCache) Option {
	return func(fac *Factory) {
		fac.clients = cc
	}
}

// WithClock sets the clock used to timestamp check runs.
func WithClock(c clockwork.Clock) Option {
	return func(fac *Factory) {
		fac.clock = c
	}
}

// NewFactory returns a Factory resolving credentials with lookup and report
// URLs with urls.
func NewFactory(lookup credentials.Lookup, urls checks.URLProvider, opts ...Option) *Factory {
	f := &Factory{
		lookup: lookup,
		urls:   urls,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.facade == nil {
		f.facade = NewSCMFacade()
	}
	if f.clients == nil {
		f.clients = NewClientCache(nil)
	}
	if f.clock == nil {
		f.clock = clockwork.NewRealClock()
	}
	return f
}

// Name implements checks.Factory.
func (f *Factory) Name() string { return FactoryName }

// candidate constructs one kind of context; constructing is cheap and the
// context is validated by the caller.
type candidate struct {
	kind string
	new  func() Context
}

// PublisherForRun implements checks.Factory. The checkout of the run is
// tried first, then the GitHub source of its job.
func (f *Factory) PublisherForRun(ctx context.Context, run checks.Run, listener checks.Listener) (checks.Publisher, bool, error) {
	if run == nil {
		return nil, false, nil
	}
	url := f.urls.RunURL(run)
	return f.firstValid(ctx, listener, []candidate{{
		kind: "git_scm",
		new:  func() Context { return newGitSCMContext(run, url, f.facade, f.lookup) },
	}, {
		kind: "scm_source",
		new:  func() Context { return newSCMSourceContext(run.Parent(), run, url, f.facade, f.lookup) },
	}})
}

// PublisherForJob implements checks.Factory. Jobs have no checkout, so only
// the GitHub source of the job is tried.
func (f *Factory) PublisherForJob(ctx context.Context, job checks.Job, listener checks.Listener) (checks.Publisher, bool, error) {
	if job == nil {
		return nil, false, nil
	}
	url := f.urls.JobURL(job)
	return f.firstValid(ctx, listener, []candidate{{
		kind: "scm_source",
		new:  func() Context { return newSCMSourceContext(job, nil, url, f.facade, f.lookup) },
	}})
}

// firstValid returns a publisher for the first candidate whose context is valid.
func (f *Factory) firstValid(ctx context.Context, listener checks.Listener, candidates []candidate) (checks.Publisher, bool, error) {
	listener = checks.ListenerOrNull(listener)
	logger := checks.NewLogger(listener.Writer(), loggerLabel)

	for _, c := range candidates {
		ghc := c.new()
		valid, err := ghc.IsValid(ctx, logger)
		if err != nil {
			return nil, false, fmt.Errorf("validating %s context: %w", c.kind, err)
		}
		mContextValidations.WithLabelValues(c.kind, strconv.FormatBool(valid)).Inc()
		if !valid {
			continue
		}

		pub, err := f.newPublisher(ctx, ghc, listener)
		if err != nil {
			return nil, false, err
		}
		clog.FromContext(ctx).With("context", c.kind, "url", ghc.URL()).Debug("Using GitHub checks context")
		return pub, true, nil
	}
	return nil, false, nil
}

func (f *Factory) newPublisher(ctx context.Context, ghc Context, listener checks.Listener) (*Publisher, error) {
	id := ghc.CredentialsID()
	creds, ok, err := f.lookup.Lookup(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("looking up credentials %q: %w", id, err)
	}
	if !ok {
		// The context validated these credentials a moment ago.
		return nil, fmt.Errorf("credentials %q disappeared", id)
	}

	client, err := f.clients.Get(ctx, creds, ghc.APIURL())
	if err != nil {
		return nil, fmt.Errorf("creating GitHub client: %w", err)
	}
	return NewPublisher(ghc, client, listener, f.clock), nil
}
