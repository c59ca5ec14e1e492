package backend

import (
	"context"
	"os"
	"sync"
)

type runnerCall struct {
	Name string
	Args []string
}

// fakeRunner records invocations. By default it writes a small file at the
// last argument, the way ffmpeg writes its output.
type fakeRunner struct {
	mu     sync.Mutex
	calls  []runnerCall
	stderr string
	err    error
	run    func(name string, args []string) (string, error)
}

func (f *fakeRunner) Run(ctx context.Context, name string, args []string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, runnerCall{Name: name, Args: append([]string(nil), args...)})
	f.mu.Unlock()

	if f.run != nil {
		return f.run(name, args)
	}
	if f.err != nil {
		return f.stderr, f.err
	}
	if len(args) > 0 {
		_ = os.WriteFile(args[len(args)-1], []byte("output"), 0644)
	}
	return "", nil
}

func (f *fakeRunner) Calls() []runnerCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]runnerCall(nil), f.calls...)
}
