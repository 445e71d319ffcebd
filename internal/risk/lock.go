package risk

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// Profile selects the lock strategy used to serialize a scope's state.
type Profile uint8

const (
	// ProfileRelax uses a regular mutex.
	ProfileRelax Profile = iota
	// ProfileHFT uses a spin lock, trading CPU for latency on short
	// critical sections.
	ProfileHFT
)

// ParseProfile resolves a config string into a profile. Empty means relax.
func ParseProfile(s string) (Profile, error) {
	switch s {
	case "", "relax":
		return ProfileRelax, nil
	case "hft":
		return ProfileHFT, nil
	default:
		return ProfileRelax, fmt.Errorf("unknown concurrency profile: %q", s)
	}
}

func (p Profile) String() string {
	if p == ProfileHFT {
		return "hft"
	}
	return "relax"
}

type locker interface {
	Lock()
	Unlock()
}

func newLocker(p Profile) locker {
	if p == ProfileHFT {
		return &spinLock{}
	}
	return &sync.Mutex{}
}

// spinLock is a test-and-set lock. Scope critical sections are a handful of
// decimal operations, short enough that spinning beats parking.
type spinLock struct {
	state atomic.Int32
}

func (l *spinLock) Lock() {
	for !l.state.CompareAndSwap(0, 1) {
		runtime.Gosched()
	}
}

func (l *spinLock) Unlock() {
	l.state.Store(0)
}
