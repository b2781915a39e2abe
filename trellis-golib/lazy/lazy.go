package lazy

import (
	"sync"
	"sync/atomic"
)

// Loader allows for lazily loading & unloading data
type Loader struct {
	load   func() error
	unload func()

	lock    sync.RWMutex
	once    sync.Once
	loadErr error
	loaded  int32
}

// NewLoader creates a new Loader
func NewLoader(load func() error, unload func()) *Loader {
	return &Loader{
		load:   load,
		unload: unload,
	}
}

// LoadAndLock ensures load has run, and locks against Unload until Unlock is
// called. Callers should defer l.Unlock() immediately after checking the error.
func (l *Loader) LoadAndLock() error {
	deferUnlock := true
	l.lock.RLock()
	defer func() {
		if deferUnlock {
			l.lock.RUnlock()
		}
	}()

	l.once.Do(func() {
		l.loadErr = l.load()
		if l.loadErr == nil {
			atomic.StoreInt32(&l.loaded, 1)
		}
	})
	if l.loadErr == nil {
		deferUnlock = false
	}
	return l.loadErr
}

// Loaded reports whether the data is currently resident.
func (l *Loader) Loaded() bool {
	return atomic.LoadInt32(&l.loaded) == 1
}

// Unlock unlocks the Loader for unloading
func (l *Loader) Unlock() {
	l.lock.RUnlock()
}

// Unload releases the underlying data. The next LoadAndLock reloads it.
func (l *Loader) Unload() {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.once = sync.Once{}
	l.unload()
	l.loadErr = nil
	atomic.StoreInt32(&l.loaded, 0)
}
