/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package checks selects the backend that receives check updates for a build
// and hands back a Publisher for it.
//
// # Architecture
//
// Backends plug in as a Factory. A Registry holds the factories and, for each
// build, asks them in priority order to produce a Publisher:
//
//	reg := checks.NewRegistry()
//	reg.Register(github.NewFactory(lookup, urls))
//
//	pub, err := reg.Resolve(ctx, checks.RunBuild(run), listener)
//	if err != nil {
//	    return err
//	}
//	err = pub.Publish(ctx, &checks.Details{
//	    Name:       "lint",
//	    Status:     checks.StatusCompleted,
//	    Conclusion: checks.ConclusionSuccess,
//	})
//
// When no factory accepts the build the Registry returns NullPublisher, so
// callers never have to check whether any backend is configured.
//
// A factory typically tries several Context implementations in a fixed order
// and keeps the first one whose IsValid reports true. Validation failures are
// written to the build's Listener through a Logger and are not errors.
//
// The package-level Register, Resolve, PublisherForRun and PublisherForJob
// functions operate on a process-wide default Registry.
package checks
