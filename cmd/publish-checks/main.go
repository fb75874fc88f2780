/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/chainguard-dev/clog"
	_ "github.com/chainguard-dev/clog/gcp/init"
	"github.com/sethvargo/go-envconfig"

	"github.com/chainguard-dev/checks-publisher/pkg/checks"
	"github.com/chainguard-dev/checks-publisher/pkg/checks/github"
	"github.com/chainguard-dev/checks-publisher/pkg/credentials"
	"github.com/chainguard-dev/checks-publisher/pkg/displayurl"
	"github.com/chainguard-dev/checks-publisher/pkg/telemetry"
)

type config struct {
	// Jenkins build environment
	JenkinsURL  string `env:"JENKINS_URL,required"`
	JobName     string `env:"JOB_NAME,required"`
	BuildNumber int    `env:"BUILD_NUMBER,required"`
	Workspace   string `env:"WORKSPACE"`
	GitURL      string `env:"GIT_URL"`
	GitCommit   string `env:"GIT_COMMIT"`

	// GitHub source of the job, as "owner/repo"
	SourceRepository string   `env:"CHECKS_SOURCE_REPOSITORY"`
	GitHubAPIURL     string   `env:"GITHUB_API_URL"`
	EnterpriseHosts  []string `env:"GITHUB_ENTERPRISE_HOSTS"`

	// Credentials used by the checkout and the source
	CredentialsID string `env:"CHECKS_CREDENTIALS_ID,default=github-checks"`

	// GitHub App configuration; the key is a file:// or gcpkms:// reference
	GitHubAppID          int64  `env:"GITHUB_APP_ID"`
	GitHubInstallationID int64  `env:"GITHUB_INSTALLATION_ID"`
	GitHubAppKey         string `env:"GITHUB_APP_KEY"`

	// Octo STS configuration; the scope is "org" or "org/repo"
	OctoSTSIdentity string `env:"OCTO_STS_IDENTITY"`
	OctoSTSScope    string `env:"OCTO_STS_SCOPE"`

	// Personal access token, which cannot publish checks
	GitHubToken string `env:"CHECKS_GITHUB_TOKEN"`

	// Telemetry
	Tracing        bool   `env:"CHECKS_TRACING,default=false"`
	PushgatewayURL string `env:"PUSHGATEWAY_URL"`
}

var (
	name       = flag.String("name", "", "Name of the check")
	status     = flag.String("status", string(checks.StatusInProgress), "Status of the check: queued, in_progress or completed")
	conclusion = flag.String("conclusion", "", "Conclusion of the check, e.g. success or failure")
	title      = flag.String("title", "", "Title of the check output")
	summary    = flag.String("summary", "", "Summary of the check output")
	text       = flag.String("text", "", "Details of the check output")
	forJob     = flag.Bool("job", false, "Publish against the job's source instead of the run")
)

func main() {
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		clog.FatalContextf(ctx, "Failed to process environment: %v", err)
	}

	if cfg.Tracing {
		shutdown, err := telemetry.SetupTracer(ctx)
		if err != nil {
			clog.FatalContextf(ctx, "Failed to set up tracing: %v", err)
		}
		defer shutdown()
	}

	details := &checks.Details{
		Name:       *name,
		Status:     checks.Status(*status),
		Conclusion: checks.Conclusion(*conclusion),
	}
	if *title != "" || *summary != "" || *text != "" {
		details.Output = &checks.Output{
			Title:   *title,
			Summary: *summary,
			Text:    *text,
		}
	}

	if err := publish(ctx, cfg, details, *forJob, os.Stdout); err != nil {
		clog.FatalContextf(ctx, "Failed to publish checks: %v", err)
	}
}

// publish resolves a publisher for the build and publishes details. Builds
// no backend applies to are skipped.
func publish(ctx context.Context, cfg config, details *checks.Details, job bool, out io.Writer) error {
	pub, build, err := resolve(ctx, cfg, job, out)
	if err != nil {
		return err
	}
	if checks.IsNull(pub) {
		clog.InfoContextf(ctx, "No checks publisher applies to %s", build)
		return nil
	}

	perr := pub.Publish(ctx, details)

	if cfg.PushgatewayURL != "" {
		if err := telemetry.PushMetrics(ctx, cfg.PushgatewayURL, "publish-checks", nil, map[string]string{
			"build": strconv.Itoa(cfg.BuildNumber),
		}); err != nil {
			clog.WarnContextf(ctx, "Failed to push metrics: %v", err)
		}
	}
	return perr
}

// resolve registers the GitHub backend on a registry of its own and resolves
// the publisher for the run, or for its job.
func resolve(ctx context.Context, cfg config, job bool, out io.Writer) (checks.Publisher, checks.Build, error) {
	run := newRun(cfg)
	build := checks.RunBuild(run)
	if job {
		build = checks.JobBuild(run.Parent())
	}

	store, err := loadCredentials(ctx, cfg)
	if err != nil {
		return nil, build, err
	}

	reg := checks.NewRegistry()
	reg.Register(github.NewFactory(store, displayurl.New(cfg.JenkinsURL),
		github.WithSCMFacade(github.NewSCMFacade(github.WithEnterpriseHosts(cfg.EnterpriseHosts...))),
	))

	pub, err := reg.Resolve(ctx, build, checks.WriterListener(out))
	return pub, build, err
}

// loadCredentials builds the credentials configured in the environment.
func loadCredentials(ctx context.Context, cfg config) (*credentials.Store, error) {
	store := credentials.NewStore()
	switch {
	case cfg.GitHubAppID != 0:
		if cfg.GitHubAppKey == "" {
			return nil, errors.New("GITHUB_APP_KEY is required with GITHUB_APP_ID")
		}
		signer, err := credentials.NewSigner(ctx, cfg.GitHubAppKey)
		if err != nil {
			return nil, fmt.Errorf("loading GitHub App key: %w", err)
		}
		app, err := credentials.NewApp(cfg.CredentialsID, cfg.GitHubAppID, cfg.GitHubInstallationID, signer)
		if err != nil {
			return nil, err
		}
		store.Add(app)

	case cfg.OctoSTSIdentity != "":
		org, repo, _ := strings.Cut(cfg.OctoSTSScope, "/")
		if org == "" {
			return nil, errors.New("OCTO_STS_SCOPE is required with OCTO_STS_IDENTITY")
		}
		store.Add(credentials.NewOctoSTS(cfg.CredentialsID, cfg.OctoSTSIdentity, org, repo))

	case cfg.GitHubToken != "":
		store.Add(credentials.NewToken(cfg.CredentialsID, cfg.GitHubToken))
	}
	return store, nil
}
