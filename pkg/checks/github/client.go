/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v75/github"
	"golang.org/x/sync/singleflight"

	"github.com/chainguard-dev/checks-publisher/pkg/credentials"
)

// ClientCache manages GitHub clients per credentials and API endpoint.
type ClientCache struct {
	base http.RoundTripper

	mu      sync.RWMutex
	clients map[string]*github.Client
	group   singleflight.Group
}

// NewClientCache returns a cache creating clients on top of base.
// A nil base uses http.DefaultTransport.
func NewClientCache(base http.RoundTripper) *ClientCache {
	if base == nil {
		base = http.DefaultTransport
	}
	return &ClientCache{
		base:    base,
		clients: make(map[string]*github.Client),
	}
}

// getKey returns the cache key for credentials on an API endpoint.
func (cc *ClientCache) getKey(creds credentials.Credentials, apiURL string) string {
	return fmt.Sprintf("%s@%s", creds.ID(), apiURL)
}

// Get returns a client authenticated with creds, creating one if needed.
func (cc *ClientCache) Get(ctx context.Context, creds credentials.Credentials, apiURL string) (*github.Client, error) {
	key := cc.getKey(creds, apiURL)

	cc.mu.RLock()
	client, exists := cc.clients[key]
	cc.mu.RUnlock()
	if exists {
		return client, nil
	}

	v, err, _ := cc.group.Do(key, func() (any, error) {
		cc.mu.RLock()
		client, exists := cc.clients[key]
		cc.mu.RUnlock()
		if exists {
			return client, nil
		}

		client, err := newClient(cc.base, creds, apiURL)
		if err != nil {
			return nil, err
		}

		cc.mu.Lock()
		cc.clients[key] = client
		cc.mu.Unlock()

		clog.FromContext(ctx).With(
			"credentials", creds.ID(),
			"api", apiURL,
		).Info("Created new GitHub client for checks")
		return client, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*github.Client), nil
}

// Clear removes all cached clients.
func (cc *ClientCache) Clear() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.clients = make(map[string]*github.Client)
}

func newClient(base http.RoundTripper, creds credentials.Credentials, apiURL string) (*github.Client, error) {
	tr, err := creds.Transport(base, apiURL)
	if err != nil {
		return nil, fmt.Errorf("creating transport for credentials %q: %w", creds.ID(), err)
	}

	client := github.NewClient(&http.Client{Transport: instrumentTransport(tr)})
	if apiURL == "" {
		return client, nil
	}

	if !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}
	client, err = client.WithEnterpriseURLs(apiURL, apiURL)
	if err != nil {
		return nil, fmt.Errorf("configuring enterprise URL %q: %w", apiURL, err)
	}
	return client, nil
}
