package reservas

import (
	"context"
	"sync"
)

// SlotLocker serializes admission for a single slot across the
// check-then-write sequence.
type SlotLocker interface {
	Lock(ctx context.Context, slot Slot) (unlock func(), err error)
}

// OwnerLocker serializes authenticated bookings of one user so the
// per-user limit is counted and written atomically. It is always taken
// before the slot lock.
type OwnerLocker interface {
	LockOwner(ctx context.Context, owner UserID) (unlock func(), err error)
}

// LocalSlotLocker is a process-local keyed mutex for slots and owners.
type LocalSlotLocker struct {
	mutex sync.Mutex
	keys  map[string]*slotLock
}

type slotLock struct {
	mutex   sync.Mutex
	holders int
}

// NewLocalSlotLocker returns an empty keyed mutex.
func NewLocalSlotLocker() *LocalSlotLocker {
	return &LocalSlotLocker{keys: make(map[string]*slotLock)}
}

// Lock blocks until slot is free or ctx is done.
func (locker *LocalSlotLocker) Lock(ctx context.Context, slot Slot) (func(), error) {
	return locker.lockKey(ctx, "slot:"+slot.String())
}

// LockOwner blocks until no other booking of owner is being admitted.
func (locker *LocalSlotLocker) LockOwner(ctx context.Context, owner UserID) (func(), error) {
	return locker.lockKey(ctx, "user:"+owner.String())
}

func (locker *LocalSlotLocker) lockKey(ctx context.Context, key string) (func(), error) {
	locker.mutex.Lock()
	entry, ok := locker.keys[key]
	if !ok {
		entry = &slotLock{}
		locker.keys[key] = entry
	}
	entry.holders++
	locker.mutex.Unlock()

	acquired := make(chan struct{})
	go func() {
		entry.mutex.Lock()
		close(acquired)
	}()
	select {
	case <-acquired:
		return func() { locker.release(key, entry) }, nil
	case <-ctx.Done():
		// The goroutine still acquires eventually; hand the lock straight back.
		go func() {
			<-acquired
			locker.release(key, entry)
		}()
		return nil, ctx.Err()
	}
}

func (locker *LocalSlotLocker) release(key string, entry *slotLock) {
	entry.mutex.Unlock()
	locker.mutex.Lock()
	entry.holders--
	if entry.holders == 0 {
		delete(locker.keys, key)
	}
	locker.mutex.Unlock()
}
