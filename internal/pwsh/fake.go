package pwsh

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// FakeRunner is a scripted Runner for tests. Responses are matched by
// substring against the executed script, first match wins.
type FakeRunner struct {
	mu        sync.Mutex
	responses []fakeResponse
	Scripts   []string
}

type fakeResponse struct {
	contains string
	output   string
	err      error
}

// On registers output for scripts containing fragment.
func (f *FakeRunner) On(fragment, output string) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, fakeResponse{contains: fragment, output: output})
	return f
}

// Fail registers an error for scripts containing fragment.
func (f *FakeRunner) Fail(fragment string, err error) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses = append(f.responses, fakeResponse{contains: fragment, err: err})
	return f
}

// Run implements Runner.
func (f *FakeRunner) Run(_ context.Context, script string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Scripts = append(f.Scripts, script)
	for _, r := range f.responses {
		if strings.Contains(script, r.contains) {
			if r.err != nil {
				return nil, r.err
			}
			return []byte(r.output), nil
		}
	}
	return nil, fmt.Errorf("fake runner: no response for script %q", script)
}

// Ran reports how many executed scripts contained fragment.
func (f *FakeRunner) Ran(fragment string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, s := range f.Scripts {
		if strings.Contains(s, fragment) {
			n++
		}
	}
	return n
}
