package syncutil

import (
	"sync"

	"github.com/riddopic/garcun/lib/atomics"
)

// Counter layout (int64):
//
//	bits 0..30   number of running readers
//	bits 31..60  number of waiting writers
//	bit  61      a writer is running
//
// Invariant: if the running-writer bit is set, the reader count is zero.
const (
	// MaxReaders is the largest number of goroutines that may hold the read
	// lock concurrently.
	MaxReaders = (1 << 31) - 1

	// MaxWaitingWriters is the largest number of goroutines that may queue
	// for the write lock concurrently.
	MaxWaitingWriters = (1 << 30) - 1

	readerMask             = int64(MaxReaders)
	waitingWriterIncrement = int64(1) << 31
	waitingWriterMask      = int64(MaxWaitingWriters) << 31
	runningWriterFlag      = int64(1) << 61
)

// ReadWriteLock allows any number of concurrent readers or a single writer.
// Writers are protected from starvation: once a writer is waiting, no newly
// arriving reader may acquire the read lock ahead of it.
//
// The lock is not reentrant and does not track ownership; releasing a lock
// that is not held returns ErrNotLocked.
type ReadWriteLock struct {
	counter atomics.Int64

	readMu   sync.Mutex
	readGate *Condition

	writeMu   sync.Mutex
	writeGate *Condition
}

// NewReadWriteLock creates an unlocked ReadWriteLock.
func NewReadWriteLock() *ReadWriteLock {
	l := &ReadWriteLock{}
	l.readGate = NewCondition(&l.readMu)
	l.writeGate = NewCondition(&l.writeMu)
	return l
}

func runningReaders(c int64) int64 { return c & readerMask }
func waitingWriters(c int64) int64 { return (c & waitingWriterMask) >> 31 }
func writerRunning(c int64) bool { return c&runningWriterFlag != 0 }
func writerInvolved(c int64) bool { return c&(waitingWriterMask|runningWriterFlag) != 0 }
func readersOrWriter(c int64) bool { return runningReaders(c) > 0 || writerRunning(c) }

// AcquireReadLock blocks until the read lock is held. It returns
// ErrMaxReaders if the reader limit would be exceeded.
//
// Thread-safety: this method is thread-safe and can be called concurrently.
func (l *ReadWriteLock) AcquireReadLock() error {
	for {
		c := l.counter.Get()
		if runningReaders(c) == MaxReaders {
			return ErrMaxReaders
		}

		if writerInvolved(c) {
			// a writer is running or waiting; new readers queue behind it
			l.readMu.Lock()
			for writerInvolved(l.counter.Get()) {
				l.readGate.Wait()
			}
			l.readMu.Unlock()
			continue
		}

		if l.counter.CompareAndSet(c, c+1) {
			return nil
		}
	}
}

// ReleaseReadLock releases one hold on the read lock. If this was the last
// reader and a writer is waiting, the writer is woken.
func (l *ReadWriteLock) ReleaseReadLock() error {
	for {
		c := l.counter.Get()
		if runningReaders(c) == 0 {
			return ErrNotLocked
		}
		if !l.counter.CompareAndSet(c, c-1) {
			continue
		}
		next := c - 1
		if runningReaders(next) == 0 && waitingWriters(next) > 0 {
			l.writeMu.Lock()
			l.writeGate.Signal()
			l.writeMu.Unlock()
		}
		return nil
	}
}

// AcquireWriteLock blocks until the write lock is held exclusively. It
// returns ErrMaxWaitingWriters if the waiting-writer limit would be
// exceeded.
func (l *ReadWriteLock) AcquireWriteLock() error {
	for {
		c := l.counter.Get()
		if waitingWriters(c) == MaxWaitingWriters {
			return ErrMaxWaitingWriters
		}

		// uncontended: claim the lock directly
		if c == 0 {
			if l.counter.CompareAndSet(0, runningWriterFlag) {
				return nil
			}
			continue
		}

		// register as a waiting writer, then block until promotion succeeds
		if !l.counter.CompareAndSet(c, c+waitingWriterIncrement) {
			continue
		}

		l.writeMu.Lock()
		for {
			c = l.counter.Get()
			if !readersOrWriter(c) {
				if l.counter.CompareAndSet(c, c-waitingWriterIncrement+runningWriterFlag) {
					l.writeMu.Unlock()
					return nil
				}
				continue
			}
			l.writeGate.Wait()
		}
	}
}

// ReleaseWriteLock releases the write lock, waking all blocked readers and,
// if writers are still queued, one waiting writer.
func (l *ReadWriteLock) ReleaseWriteLock() error {
	for {
		c := l.counter.Get()
		if !writerRunning(c) {
			return ErrNotLocked
		}
		if !l.counter.CompareAndSet(c, c&^runningWriterFlag) {
			continue
		}
		next := c &^ runningWriterFlag

		l.readMu.Lock()
		l.readGate.Broadcast()
		l.readMu.Unlock()

		if waitingWriters(next) > 0 {
			l.writeMu.Lock()
			l.writeGate.Signal()
			l.writeMu.Unlock()
		}
		return nil
	}
}

// WithReadLock runs fn while holding the read lock.
func (l *ReadWriteLock) WithReadLock(fn func() error) error {
	if err := l.AcquireReadLock(); err != nil {
		return err
	}
	defer l.ReleaseReadLock()
	return fn()
}

// WithWriteLock runs fn while holding the write lock.
func (l *ReadWriteLock) WithWriteLock(fn func() error) error {
	if err := l.AcquireWriteLock(); err != nil {
		return err
	}
	defer l.ReleaseWriteLock()
	return fn()
}

// HasWaitingWriter reports whether any writer is queued. Intended for
// polling-retry consumers that prefer to back off rather than pile onto a
// contended lock.
func (l *ReadWriteLock) HasWaitingWriter() bool {
	return waitingWriters(l.counter.Get()) > 0
}
