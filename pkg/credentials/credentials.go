/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package credentials provides the credentials used to call the GitHub API
// and a store to look them up by id.
package credentials

import (
	"context"
	"net/http"
	"sync"
)

// Credentials authenticate requests to the GitHub API.
type Credentials interface {
	// ID is the identifier builds use to reference the credentials.
	ID() string

	// IsApp reports whether requests are made as a GitHub App installation.
	// The Checks API only accepts app installations.
	IsApp() bool

	// Transport wraps base with authentication. apiURL is the API endpoint
	// of the target service; empty means api.github.com.
	Transport(base http.RoundTripper, apiURL string) (http.RoundTripper, error)
}

// Lookup resolves credentials by id.
//
// An unknown id is not an error: Lookup returns (nil, false, nil).
type Lookup interface {
	Lookup(ctx context.Context, id string) (Credentials, bool, error)
}

// LookupFunc adapts a function to the Lookup interface.
type LookupFunc func(ctx context.Context, id string) (Credentials, bool, error)

// Lookup implements Lookup.
func (f LookupFunc) Lookup(ctx context.Context, id string) (Credentials, bool, error) {
	return f(ctx, id)
}

// Store is an in-memory Lookup, safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	creds map[string]Credentials
}

// NewStore returns a Store holding the given credentials.
func NewStore(creds ...Credentials) *Store {
	s := &Store{creds: make(map[string]Credentials, len(creds))}
	for _, c := range creds {
		s.creds[c.ID()] = c
	}
	return s
}

// Add stores c, replacing any credentials with the same id.
func (s *Store) Add(c Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[c.ID()] = c
}

// Lookup implements Lookup.
func (s *Store) Lookup(_ context.Context, id string) (Credentials, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.creds[id]
	return c, ok, nil
}
