/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package github

import (
	"context"
	"fmt"
	"sync"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v75/github"
	"github.com/jonboulle/clockwork"

	"github.com/chainguard-dev/checks-publisher/pkg/checks"
)

// Publisher publishes checks as GitHub check runs.
type Publisher struct {
	context  Context
	owner    string
	repo     string
	headSHA  string
	client   *github.Client
	listener checks.Listener
	logger   *checks.Logger
	clock    clockwork.Clock

	mu          sync.Mutex
	checkRunIDs map[string]int64 // by check name
}

var _ checks.Publisher = (*Publisher)(nil)

// NewPublisher returns a Publisher for a validated context.
func NewPublisher(ghc Context, client *github.Client, listener checks.Listener, clock clockwork.Clock) *Publisher {
	listener = checks.ListenerOrNull(listener)
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	owner, repo := ghc.Repository()
	return &Publisher{
		context:     ghc,
		owner:       owner,
		repo:        repo,
		headSHA:     ghc.HeadSHA(),
		client:      client,
		listener:    listener,
		logger:      checks.NewLogger(listener.Writer(), loggerLabel),
		clock:       clock,
		checkRunIDs: make(map[string]int64),
	}
}

// Context returns the context the publisher was created for.
func (p *Publisher) Context() Context { return p.context }

// Publish implements checks.Publisher. A check run with the same name on
// the head commit is updated, otherwise a new one is created.
func (p *Publisher) Publish(ctx context.Context, details *checks.Details) error {
	if err := details.Validate(); err != nil {
		p.logger.Log("Failed Publishing GitHub checks: %v", err)
		return err
	}

	log := clog.FromContext(ctx).With(
		"owner", p.owner,
		"repo", p.repo,
		"sha", p.headSHA,
		"check", details.Name,
	)

	cr := newCheckRun(details, p.headSHA, p.context.URL(), p.clock.Now())
	status := cr.statusName()

	id, err := p.publish(ctx, cr)
	if err != nil {
		mPublished.WithLabelValues(status, "error").Inc()
		log.Warnf("Failed publishing check: %v", err)
		p.logger.Log("Failed Publishing GitHub checks: %v", err)
		return fmt.Errorf("publishing check %q: %w", details.Name, err)
	}

	mPublished.WithLabelValues(status, "success").Inc()
	log.With("check_run", id, "status", status).Info("Published check")
	p.logger.Log("GitHub check (name: %s, status: %s) has been published.", details.Name, status)
	return nil
}

func (p *Publisher) publish(ctx context.Context, cr *checkRun) (int64, error) {
	owner, repo := p.owner, p.repo

	id, found, err := p.checkRunID(ctx, cr.name)
	if err != nil {
		return 0, err
	}

	if found {
		if _, _, err := p.client.Checks.UpdateCheckRun(ctx, owner, repo, id, cr.update()); err != nil {
			return 0, fmt.Errorf("updating check run: %w", err)
		}
	} else {
		run, _, err := p.client.Checks.CreateCheckRun(ctx, owner, repo, cr.create())
		if err != nil {
			return 0, fmt.Errorf("creating check run: %w", err)
		}
		id = run.GetID()
		p.setCheckRunID(cr.name, id)
	}

	for _, opts := range cr.annotationUpdates() {
		if _, _, err := p.client.Checks.UpdateCheckRun(ctx, owner, repo, id, opts); err != nil {
			return 0, fmt.Errorf("adding annotations to check run: %w", err)
		}
	}
	return id, nil
}

// checkRunID returns the id of the check run named name on the head commit,
// from earlier publishes or by listing the commit's check runs.
func (p *Publisher) checkRunID(ctx context.Context, name string) (int64, bool, error) {
	p.mu.Lock()
	id, ok := p.checkRunIDs[name]
	p.mu.Unlock()
	if ok {
		return id, true, nil
	}

	runs, _, err := p.client.Checks.ListCheckRunsForRef(ctx, p.owner, p.repo, p.headSHA, &github.ListCheckRunsOptions{
		CheckName: github.Ptr(name),
	})
	if err != nil {
		return 0, false, fmt.Errorf("listing check runs: %w", err)
	}
	for _, run := range runs.CheckRuns {
		if run.GetName() == name {
			p.setCheckRunID(name, run.GetID())
			return run.GetID(), true, nil
		}
	}
	return 0, false, nil
}

func (p *Publisher) setCheckRunID(name string, id int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkRunIDs[name] = id
}
