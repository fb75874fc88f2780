/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package displayurl computes the report URLs linked from published checks.
package displayurl

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/chainguard-dev/checks-publisher/pkg/checks"
)

// Provider computes classic Jenkins style display URLs below a root URL:
//
//	<root>job/<folder>/job/<name>/<number>/display/redirect
type Provider struct {
	root string
}

var _ checks.URLProvider = (*Provider)(nil)

// New returns a Provider rooted at root, e.g. "https://ci.example.com/".
func New(root string) *Provider {
	if !strings.HasSuffix(root, "/") {
		root += "/"
	}
	return &Provider{root: root}
}

// RunURL implements checks.URLProvider.
func (p *Provider) RunURL(r checks.Run) string {
	return p.jobPath(r.Parent()) + strconv.Itoa(r.Number()) + "/display/redirect"
}

// JobURL implements checks.URLProvider.
func (p *Provider) JobURL(j checks.Job) string {
	return p.jobPath(j) + "display/redirect"
}

func (p *Provider) jobPath(j checks.Job) string {
	var b strings.Builder
	b.WriteString(p.root)
	if j == nil {
		return b.String()
	}
	for _, part := range strings.Split(j.FullName(), "/") {
		if part == "" {
			continue
		}
		b.WriteString("job/")
		b.WriteString(url.PathEscape(part))
		b.WriteByte('/')
	}
	return b.String()
}
