/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package credentials

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/bradleyfalzon/ghinstallation/v2"
)

// App authenticates as an installation of a GitHub App.
type App struct {
	id             string
	appID          int64
	installationID int64
	signer         ghinstallation.Signer
}

// NewApp returns credentials for the installation of a GitHub App whose JWTs
// are signed by signer. See NewSigner.
func NewApp(id string, appID, installationID int64, signer ghinstallation.Signer) (*App, error) {
	if appID == 0 || installationID == 0 {
		return nil, errors.New("github app id and installation id are required")
	}
	if signer == nil {
		return nil, errors.New("github app signer is required")
	}
	return &App{
		id:             id,
		appID:          appID,
		installationID: installationID,
		signer:         signer,
	}, nil
}

// ID implements Credentials.
func (a *App) ID() string { return a.id }

// IsApp implements Credentials.
func (a *App) IsApp() bool { return true }

// AppID returns the id of the GitHub App.
func (a *App) AppID() int64 { return a.appID }

// InstallationID returns the id of the app installation.
func (a *App) InstallationID() int64 { return a.installationID }

// Transport implements Credentials.
func (a *App) Transport(base http.RoundTripper, apiURL string) (http.RoundTripper, error) {
	if base == nil {
		base = http.DefaultTransport
	}
	atr, err := ghinstallation.NewAppsTransportWithOptions(base, a.appID, ghinstallation.WithSigner(a.signer))
	if err != nil {
		return nil, fmt.Errorf("creating apps transport: %w", err)
	}
	tr := ghinstallation.NewFromAppsTransport(atr, a.installationID)
	if apiURL != "" {
		atr.BaseURL = strings.TrimSuffix(apiURL, "/")
		tr.BaseURL = atr.BaseURL
	}
	return tr, nil
}
