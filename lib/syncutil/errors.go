package syncutil

import "errors"

var (
	// ErrInvalidCount is returned when a CountDownLatch is created with a
	// non-positive count.
	ErrInvalidCount = errors.New("syncutil: latch count must be greater than zero")

	// ErrMaxReaders is returned when the ReadWriteLock reader limit is
	// exceeded. The lock fails fast instead of silently wrapping its counter.
	ErrMaxReaders = errors.New("syncutil: maximum number of concurrent readers exceeded")

	// ErrMaxWaitingWriters is returned when the ReadWriteLock waiting-writer
	// limit is exceeded.
	ErrMaxWaitingWriters = errors.New("syncutil: maximum number of waiting writers exceeded")

	// ErrNotLocked is returned when releasing a lock that is not held.
	ErrNotLocked = errors.New("syncutil: lock is not held")
)
