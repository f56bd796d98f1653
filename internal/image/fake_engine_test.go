// SPDX-License-Identifier: MPL-2.0

package image

import (
	"context"
	"sync"

	"github.com/invowk/imgexport/internal/container"
)

// fakeEngine is an in-process container.Engine that records calls and
// answers from canned values.
type fakeEngine struct {
	mu sync.Mutex

	buildCode container.ExitCode
	buildErr  error
	ids       map[string]string
	pushCodes map[string]container.ExitCode
	rmCodes   map[string]container.ExitCode

	builds  []container.BuildOptions
	idQuery []string
	pushes  []container.PushOptions
	removes []string
}

var _ container.Engine = (*fakeEngine)(nil)

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		ids:       make(map[string]string),
		pushCodes: make(map[string]container.ExitCode),
		rmCodes:   make(map[string]container.ExitCode),
	}
}

func (f *fakeEngine) Name() string                            { return "fake" }
func (f *fakeEngine) Available() bool                         { return true }
func (f *fakeEngine) Version(context.Context) (string, error) { return "0.0.0", nil }

func (f *fakeEngine) Build(_ context.Context, opts container.BuildOptions) (container.ExitCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builds = append(f.builds, opts)
	return f.buildCode, f.buildErr
}

func (f *fakeEngine) ImageID(_ context.Context, ref string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.idQuery = append(f.idQuery, ref)
	return f.ids[ref], nil
}

func (f *fakeEngine) Push(_ context.Context, opts container.PushOptions) (container.ExitCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes = append(f.pushes, opts)
	return f.pushCodes[opts.Reference], nil
}

func (f *fakeEngine) RemoveImage(_ context.Context, ref string) (container.ExitCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removes = append(f.removes, ref)
	return f.rmCodes[ref], nil
}

func (f *fakeEngine) pushedRefs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	refs := make([]string, 0, len(f.pushes))
	for _, p := range f.pushes {
		refs = append(refs, p.Reference)
	}
	return refs
}
