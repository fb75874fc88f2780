/*
Copyright 2025 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package checks

import (
	"context"
	"errors"
	"testing"

	"github.com/chainguard-dev/clog/slogtest"
	"github.com/google/go-cmp/cmp"
)

type fakeJob struct {
	name   string
	source *Source
}

func (j *fakeJob) FullName() string { return j.name }
func (j *fakeJob) Source() *Source  { return j.source }

type fakeRun struct {
	job    *fakeJob
	number int
}

func (r *fakeRun) Parent() Job            { return r.job }
func (r *fakeRun) Number() int            { return r.number }
func (r *fakeRun) Checkouts() []Checkout  { return nil }
func (r *fakeRun) SourceRevision() string { return "" }

type recordingPublisher struct {
	name      string
	published []*Details
}

func (p *recordingPublisher) Publish(_ context.Context, d *Details) error {
	p.published = append(p.published, d)
	return nil
}

// fakeFactory accepts a build when pub is set and records every call.
type fakeFactory struct {
	name  string
	pub   Publisher
	err   error
	calls *[]string
}

func (f *fakeFactory) Name() string { return f.name }

func (f *fakeFactory) PublisherForRun(_ context.Context, _ Run, _ Listener) (Publisher, bool, error) {
	*f.calls = append(*f.calls, f.name+":run")
	return f.result()
}

func (f *fakeFactory) PublisherForJob(_ context.Context, _ Job, _ Listener) (Publisher, bool, error) {
	*f.calls = append(*f.calls, f.name+":job")
	return f.result()
}

func (f *fakeFactory) result() (Publisher, bool, error) {
	if f.err != nil {
		return nil, false, f.err
	}
	return f.pub, f.pub != nil, nil
}

func testRun() *fakeRun {
	return &fakeRun{job: &fakeJob{name: "org/repo/main"}, number: 7}
}

func TestResolve_NoFactories(t *testing.T) {
	ctx := slogtest.Context(t)
	reg := NewRegistry()

	pub, err := reg.Resolve(ctx, RunBuild(testRun()), nil)
	if err != nil {
		t.Fatalf("Resolve() = %v", err)
	}
	if !IsNull(pub) {
		t.Fatalf("Resolve() = %T, wanted the null publisher", pub)
	}
	if err := pub.Publish(ctx, &Details{Name: "build", Status: StatusCompleted, Conclusion: ConclusionSuccess}); err != nil {
		t.Errorf("Publish() = %v", err)
	}
	// The null publisher accepts details a real backend would reject.
	if err := pub.Publish(ctx, &Details{}); err != nil {
		t.Errorf("Publish(empty) = %v", err)
	}
}

func TestResolve_Order(t *testing.T) {
	first := &recordingPublisher{name: "first"}
	second := &recordingPublisher{name: "second"}

	tests := []struct {
		name      string
		factories func(calls *[]string) []*fakeFactory
		priority  map[string]int
		build     func() Build
		want      Publisher
		wantCalls []string
	}{{
		name: "first declines, second accepts",
		factories: func(calls *[]string) []*fakeFactory {
			return []*fakeFactory{
				{name: "a", calls: calls},
				{name: "b", pub: second, calls: calls},
			}
		},
		build:     func() Build { return RunBuild(testRun()) },
		want:      second,
		wantCalls: []string{"a:run", "b:run"},
	}, {
		name: "first accepts, second never asked",
		factories: func(calls *[]string) []*fakeFactory {
			return []*fakeFactory{
				{name: "a", pub: first, calls: calls},
				{name: "b", pub: second, calls: calls},
			}
		},
		build:     func() Build { return RunBuild(testRun()) },
		want:      first,
		wantCalls: []string{"a:run"},
	}, {
		name: "priority wins over registration order",
		factories: func(calls *[]string) []*fakeFactory {
			return []*fakeFactory{
				{name: "a", pub: first, calls: calls},
				{name: "b", pub: second, calls: calls},
			}
		},
		priority:  map[string]int{"b": 10},
		build:     func() Build { return RunBuild(testRun()) },
		want:      second,
		wantCalls: []string{"b:run"},
	}, {
		name: "job builds use the job path",
		factories: func(calls *[]string) []*fakeFactory {
			return []*fakeFactory{
				{name: "a", calls: calls},
				{name: "b", pub: first, calls: calls},
			}
		},
		build:     func() Build { return JobBuild(&fakeJob{name: "org/repo"}) },
		want:      first,
		wantCalls: []string{"a:job", "b:job"},
	}, {
		name: "all decline",
		factories: func(calls *[]string) []*fakeFactory {
			return []*fakeFactory{
				{name: "a", calls: calls},
				{name: "b", calls: calls},
			}
		},
		build:     func() Build { return RunBuild(testRun()) },
		want:      NullPublisher,
		wantCalls: []string{"a:run", "b:run"},
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := slogtest.Context(t)
			var calls []string
			reg := NewRegistry()
			for _, f := range tt.factories(&calls) {
				reg.Register(f, WithPriority(tt.priority[f.name]))
			}

			got, err := reg.Resolve(ctx, tt.build(), NullListener)
			if err != nil {
				t.Fatalf("Resolve() = %v", err)
			}
			if got != tt.want {
				t.Errorf("Resolve() = %v, wanted %v", got, tt.want)
			}
			if diff := cmp.Diff(tt.wantCalls, calls); diff != "" {
				t.Errorf("factory calls mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestResolve_FactoryError(t *testing.T) {
	ctx := slogtest.Context(t)
	var calls []string
	boom := errors.New("credential store unavailable")

	reg := NewRegistry()
	reg.Register(&fakeFactory{name: "broken", err: boom, calls: &calls})
	reg.Register(&fakeFactory{name: "fallback", pub: &recordingPublisher{}, calls: &calls})

	pub, err := reg.Resolve(ctx, RunBuild(testRun()), nil)
	if !errors.Is(err, boom) {
		t.Fatalf("Resolve() = %v, wanted %v", err, boom)
	}
	if !IsNull(pub) {
		t.Errorf("Resolve() = %T, wanted the null publisher alongside the error", pub)
	}
	if diff := cmp.Diff([]string{"broken:run"}, calls); diff != "" {
		t.Errorf("factory calls mismatch (-want +got):\n%s", diff)
	}
}

func TestResolve_InvalidBuild(t *testing.T) {
	ctx := slogtest.Context(t)
	var calls []string
	reg := NewRegistry()
	reg.Register(&fakeFactory{name: "a", pub: &recordingPublisher{}, calls: &calls})

	for name, resolve := range map[string]func() (Publisher, error){
		"zero build": func() (Publisher, error) { return reg.Resolve(ctx, Build{}, nil) },
		"nil run":    func() (Publisher, error) { return reg.ForRun(ctx, nil, nil) },
		"nil job":    func() (Publisher, error) { return reg.ForJob(ctx, nil, nil) },
	} {
		t.Run(name, func(t *testing.T) {
			pub, err := resolve()
			if !errors.Is(err, ErrInvalidBuild) {
				t.Errorf("err = %v, wanted %v", err, ErrInvalidBuild)
			}
			if pub == nil {
				t.Error("publisher is nil")
			}
		})
	}
	if len(calls) != 0 {
		t.Errorf("factories were asked for an invalid build: %v", calls)
	}
}

func TestRegistry_RegisterUnregister(t *testing.T) {
	var calls []string
	reg := NewRegistry()
	reg.Register(&fakeFactory{name: "a", calls: &calls})
	reg.Register(&fakeFactory{name: "b", calls: &calls})
	reg.Register(&fakeFactory{name: "c", calls: &calls}, WithPriority(-1))
	// Registering a name again replaces it.
	reg.Register(&fakeFactory{name: "a", calls: &calls})

	names := func() []string {
		var out []string
		for _, f := range reg.Factories() {
			out = append(out, f.Name())
		}
		return out
	}

	if diff := cmp.Diff([]string{"b", "a", "c"}, names()); diff != "" {
		t.Errorf("Factories() mismatch (-want +got):\n%s", diff)
	}

	if !reg.Unregister("b") {
		t.Error("Unregister(b) = false, wanted true")
	}
	if reg.Unregister("missing") {
		t.Error("Unregister(missing) = true, wanted false")
	}
	if diff := cmp.Diff([]string{"a", "c"}, names()); diff != "" {
		t.Errorf("Factories() after Unregister mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistry_ReadsFreshSnapshot(t *testing.T) {
	ctx := slogtest.Context(t)
	var calls []string
	reg := NewRegistry()

	pub, err := reg.ForRun(ctx, testRun(), nil)
	if err != nil || !IsNull(pub) {
		t.Fatalf("ForRun() = (%v, %v), wanted the null publisher", pub, err)
	}

	want := &recordingPublisher{}
	reg.Register(&fakeFactory{name: "late", pub: want, calls: &calls})
	pub, err = reg.ForRun(ctx, testRun(), nil)
	if err != nil {
		t.Fatalf("ForRun() = %v", err)
	}
	if pub != want {
		t.Errorf("ForRun() = %v, wanted the late registered publisher", pub)
	}

	reg.Unregister("late")
	if pub, _ := reg.ForRun(ctx, testRun(), nil); !IsNull(pub) {
		t.Errorf("ForRun() after Unregister = %v, wanted the null publisher", pub)
	}
}

func TestDefaultRegistry(t *testing.T) {
	ctx := slogtest.Context(t)
	var calls []string
	want := &recordingPublisher{}

	Register(&fakeFactory{name: "default-test", pub: want, calls: &calls})
	t.Cleanup(func() { Unregister("default-test") })

	pub, err := PublisherForRun(ctx, testRun(), nil)
	if err != nil {
		t.Fatalf("PublisherForRun() = %v", err)
	}
	if pub != want {
		t.Errorf("PublisherForRun() = %v, wanted %v", pub, want)
	}

	pub, err = PublisherForJob(ctx, &fakeJob{name: "org/repo"}, nil)
	if err != nil {
		t.Fatalf("PublisherForJob() = %v", err)
	}
	if pub != want {
		t.Errorf("PublisherForJob() = %v, wanted %v", pub, want)
	}

	if diff := cmp.Diff([]string{"default-test:run", "default-test:job"}, calls); diff != "" {
		t.Errorf("factory calls mismatch (-want +got):\n%s", diff)
	}
}
