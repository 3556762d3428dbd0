package locks

import "sync"

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Keyed hands out one exclusive lock per key. Locks for distinct keys
// are independent; a key's entry is dropped once nobody holds or waits
// for it.
type Keyed struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

func NewKeyed() *Keyed {
	return &Keyed{
		locks: make(map[string]*keyLock),
	}
}

func (k *Keyed) Lock(key string) {
	k.mu.Lock()
	lock, ok := k.locks[key]
	if !ok {
		lock = &keyLock{}
		k.locks[key] = lock
	}
	lock.refs++
	k.mu.Unlock()

	lock.mu.Lock()
}

func (k *Keyed) Unlock(key string) {
	k.mu.Lock()
	lock, ok := k.locks[key]
	if !ok {
		k.mu.Unlock()
		panic("locks: unlock of unheld key " + key)
	}
	lock.refs--
	if lock.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()

	lock.mu.Unlock()
}
