/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package github

import "testing"

func TestBucketizeRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/repos/chainguard-dev/checks-publisher/check-runs", "/repos/{owner}/{repo}/check-runs"},
		{"/api/v3/repos/chainguard-dev/checks-publisher/check-runs/42", "/repos/{owner}/{repo}/check-runs/{id}"},
		{"/repos/chainguard-dev/checks-publisher/commits/abc123/check-runs", "/repos/{owner}/{repo}/commits/{ref}/check-runs"},
		{"/app/installations/1234/access_tokens", "/app/installations/{id}/access_tokens"},
		{"/repos/chainguard-dev/checks-publisher/pulls", "other"},
		{"/user", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := bucketizeRoute(tt.path); got != tt.want {
				t.Errorf("bucketizeRoute(%q) = %q, wanted %q", tt.path, got, tt.want)
			}
		})
	}
}
