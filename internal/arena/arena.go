// Package arena gives a session one place to register per-stage scratch
// state — working attribute arrays, open/complete bit sets, anything a
// stage allocates and no later stage needs — so it can all be released
// together when the session ends, on every exit path including failure
// (spec §5 "resource discipline"). It mirrors the repo's dao Close()
// pattern (e.g. server/dao/sqlite/sessions.go): a resource registers a
// release func at construction time, and one Close call runs every release
// in reverse order regardless of how the caller got there.
package arena

import "sync"

// Arena collects release funcs across a session's stages and runs them
// once, in reverse registration order, on Close. A released Arena is
// inert: further Register calls are no-ops and Close is idempotent.
type Arena struct {
	mu       sync.Mutex
	releases []func()
	closed   bool
}

// New returns an empty Arena.
func New() *Arena {
	return &Arena{}
}

// Register adds release to the set run at Close. release is called at most
// once, even if Register is called after the Arena has already closed (in
// which case it runs immediately, since there will be no later Close to
// catch it).
func (a *Arena) Register(release func()) {
	if release == nil {
		return
	}
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		release()
		return
	}
	a.releases = append(a.releases, release)
	a.mu.Unlock()
}

// Close runs every registered release func, most-recently-registered
// first, and marks the Arena closed. Safe to call more than once; only the
// first call has any effect.
func (a *Arena) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	releases := a.releases
	a.releases = nil
	a.mu.Unlock()

	for i := len(releases) - 1; i >= 0; i-- {
		releases[i]()
	}
	return nil
}

// Reset runs every registered release func without marking the Arena
// closed, so it can be reused for the next input on the same session (spec
// §5 "release ... including ... re-input").
func (a *Arena) Reset() {
	a.mu.Lock()
	releases := a.releases
	a.releases = nil
	a.mu.Unlock()

	for i := len(releases) - 1; i >= 0; i-- {
		releases[i]()
	}
}
