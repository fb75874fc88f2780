/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package credentials

import (
	"net/http"

	"golang.org/x/oauth2"
)

// Token authenticates with a static token, such as a personal access token.
type Token struct {
	id    string
	token string
}

// NewToken returns credentials for a static token.
func NewToken(id, token string) *Token {
	return &Token{id: id, token: token}
}

// ID implements Credentials.
func (t *Token) ID() string { return t.id }

// IsApp implements Credentials. Static tokens are never app installations.
func (t *Token) IsApp() bool { return false }

// Transport implements Credentials.
func (t *Token) Transport(base http.RoundTripper, _ string) (http.RoundTripper, error) {
	return &oauth2.Transport{
		Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: t.token, TokenType: "Bearer"}),
		Base:   base,
	}, nil
}
