/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package credentials

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"chainguard.dev/sdk/sts"
	"cloud.google.com/go/compute/metadata"
	"github.com/chainguard-dev/clog"
	"golang.org/x/oauth2"
	"google.golang.org/api/idtoken"
)

// OctoSTSEndpoint is the Octo STS service exchanging identity tokens for
// GitHub App installation tokens.
const OctoSTSEndpoint = "https://octo-sts.dev"

// octoTokenFunc is the function used to get tokens from Octo STS.
// This is a variable so tests can override it with a mock.
var octoTokenFunc = exchangeOctoSTS

// exchangeOctoSTS mints a new Octo STS token for the trust policy identity
// scoped to org, or to org/repo when repo is set.
func exchangeOctoSTS(ctx context.Context, identity, org, repo string) (string, error) {
	// Local development may use a GitHub token, but never when running on GCE.
	for _, env := range []string{"GH_TOKEN", "GITHUB_TOKEN"} {
		if tok := os.Getenv(env); tok != "" && !metadata.OnGCE() {
			clog.WarnContextf(ctx, "using %s for token exchange", env)
			return tok, nil
		}
	}

	scope := org
	if repo != "" {
		scope = org + "/" + repo
	}

	xchg := sts.New(
		OctoSTSEndpoint,
		identity,
		sts.WithScope(scope),
		sts.WithIdentity(identity),
	)

	ts, err := idtoken.NewTokenSource(ctx, "octo-sts.dev" /* aud */)
	if err != nil {
		return "", fmt.Errorf("creating id token source: %w", err)
	}
	token, err := ts.Token()
	if err != nil {
		return "", fmt.Errorf("minting id token: %w", err)
	}
	return exchangeIDToken(ctx, xchg, token.AccessToken)
}

// exchangeIDToken trades an identity token for the installation token of the
// pair Octo STS returns.
func exchangeIDToken(ctx context.Context, xchg sts.Exchanger, idToken string) (string, error) {
	tp, err := xchg.Exchange(ctx, idToken)
	if err != nil {
		return "", fmt.Errorf("exchanging id token: %w", err)
	}
	return tp.AccessToken, nil
}

// OctoSTS authenticates with installation tokens minted by Octo STS.
// Octo STS mints tokens of its GitHub App, so these are app credentials.
type OctoSTS struct {
	id       string
	identity string
	org      string
	repo     string
}

// NewOctoSTS returns credentials exchanging the ambient identity for tokens
// under the trust policy identity, scoped to org or org/repo.
func NewOctoSTS(id, identity, org, repo string) *OctoSTS {
	return &OctoSTS{
		id:       id,
		identity: identity,
		org:      org,
		repo:     repo,
	}
}

// ID implements Credentials.
func (o *OctoSTS) ID() string { return o.id }

// IsApp implements Credentials.
func (o *OctoSTS) IsApp() bool { return true }

// Transport implements Credentials.
func (o *OctoSTS) Transport(base http.RoundTripper, _ string) (http.RoundTripper, error) {
	return &oauth2.Transport{
		// Use context.Background() since the token source outlives any request.
		Source: oauth2.ReuseTokenSource(nil, &octoTokenSource{
			ctx:      context.Background(),
			identity: o.identity,
			org:      o.org,
			repo:     o.repo,
		}),
		Base: base,
	}, nil
}

// octoTokenSource implements oauth2.TokenSource using Octo STS.
type octoTokenSource struct {
	ctx      context.Context
	identity string
	org      string
	repo     string
}

// Token implements oauth2.TokenSource
func (ts *octoTokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(ts.ctx, 1*time.Minute)
	defer cancel()
	tok, err := octoTokenFunc(ctx, ts.identity, ts.org, ts.repo)
	if err != nil {
		return nil, fmt.Errorf("exchanging octo sts token for %s: %w", ts.identity, err)
	}
	return &oauth2.Token{
		AccessToken: tok,
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(55 * time.Minute), // Tokens from Octo STS are valid for 60 minutes
	}, nil
}
