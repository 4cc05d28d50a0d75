package stash

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/VictoriaMetrics/metrics"
	"github.com/hashicorp/go-hclog"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sys/unix"

	"github.com/riddopic/garcun/lib/atomics"
	"github.com/riddopic/garcun/lib/logging"
	"github.com/riddopic/garcun/lib/runtime"
)

// ErrClosed is returned by every operation on a closed store.
var ErrClosed = errors.New("stash: store closed")

// Stash is a crash-tolerant, journaled key-value store. Reads are served
// from an in-memory table; mutations update the table immediately and are
// journaled by a background writer (write-behind), so Set returns without
// waiting for disk. SetSync and Flush provide the durability barrier.
//
/// Thread-safety: all methods are safe for concurrent use. Individual
// operations are atomic on their own; compound read-modify-write sequences
// need Synchronize. That includes racing writers on the same key: when a
// Set and a Delete of one key run concurrently, the table and the journal
// may apply them in different orders, so the state replayed after a crash
// can reflect either outcome. Callers that need a deterministic last write
// for a contended key must serialize those writes through Synchronize.
type Stash struct {
	path       string
	table      *xsync.MapOf[string, []byte]
	journal    *journal
	serializer Serializer
	format     Format
	defaultFn  func(key string) []byte
	logger     hclog.Logger

	// Synchronize holds the write side; ordinary operations hold the read
	// side, so they exclude compaction and compound blocks but not each
	// other.
	mu sync.RWMutex

	rt     *runtime.Runtime
	handle runtime.Handle
	closed *atomics.Bool

	mSets        *metrics.Counter
	mDeletes     *metrics.Counter
	mCompactions *metrics.Counter
}

// Option customizes a store at Open time.
type Option func(*Stash)

// WithSerializer sets the value codec used for journaled records.
func WithSerializer(s Serializer) Option {
	return func(st *Stash) { st.serializer = s }
}

// WithFormat sets the record framing codec.
func WithFormat(f Format) Option {
	return func(st *Stash) { st.format = f }
}

// WithDefault makes Get return value for missing keys.
func WithDefault(value []byte) Option {
	return func(st *Stash) { st.defaultFn = func(string) []byte { return value } }
}

// WithDefaultFunc makes Get call fn for missing keys.
func WithDefaultFunc(fn func(key string) []byte) Option {
	return func(st *Stash) { st.defaultFn = fn }
}

// WithLogger sets the store's logger.
func WithLogger(logger hclog.Logger) Option {
	return func(st *Stash) { st.logger = logger }
}

// WithRuntime registers the store with rt instead of the process default.
func WithRuntime(rt *runtime.Runtime) Option {
	return func(st *Stash) { st.rt = rt }
}

// Open loads (or creates) the journal at path, replays it to rebuild the
// in-memory table and starts the background writer. The store registers
// itself with the runtime registry so an unclosed store is force-closed at
// shutdown.
func Open(path string, opts ...Option) (*Stash, error) {
	s := &Stash{
		path:   path,
		table:  xsync.NewMapOf[string, []byte](),
		closed: atomics.NewBool(false),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.serializer == nil {
		s.serializer = NewRawSerializer()
	}
	if s.format == nil {
		s.format = NewBinaryFormat()
	}
	if s.logger == nil {
		s.logger = logging.New("stash")
	}
	if s.rt == nil {
		s.rt = runtime.Default()
	}

	if err := s.replay(); err != nil {
		return nil, err
	}

	j, err := openJournal(path, s.format, s.logger)
	if err != nil {
		return nil, err
	}
	s.journal = j

	s.handle = s.rt.Register("stash:"+path, s)
	s.mSets = metrics.GetOrCreateCounter(fmt.Sprintf(`garcun_stash_sets_total{path=%q}`, path))
	s.mDeletes = metrics.GetOrCreateCounter(fmt.Sprintf(`garcun_stash_deletes_total{path=%q}`, path))
	s.mCompactions = metrics.GetOrCreateCounter(fmt.Sprintf(`garcun_stash_compactions_total{path=%q}`, path))
	return s, nil
}

// replay streams the journal under a shared lock and rebuilds the table.
// A missing or empty file is a fresh store; a bad header or CRC aborts the
// open.
func (s *Stash) replay() error {
	file, err := os.OpenFile(s.path, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("stash: opening journal for replay: %w", err)
	}
	defer file.Close()

	return withFlock(file, unix.LOCK_SH, func() error {
		info, err := file.Stat()
		if err != nil {
			return fmt.Errorf("stash: stat journal: %w", err)
		}
		if info.Size() == 0 {
			return nil
		}

		if _, err := s.format.ReadHeader(file); err != nil {
			return err
		}
		for {
			key, value, tombstone, err := s.format.ReadRecord(file)
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			if tombstone {
				s.table.Delete(string(key))
				continue
			}
			decoded, err := s.serializer.Deserialize(value)
			if err != nil {
				return fmt.Errorf("%w: undecodable value: %v", ErrCorrupt, err)
			}
			s.table.Store(string(key), decoded)
		}
	})
}

// Set stores value under key. The table is updated immediately; durability
// is write-behind. Use SetSync or Flush when the write must hit disk before
// proceeding.
func (s *Stash) Set(key string, value []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.set(key, value)
}

// SetSync stores value under key and blocks until the record is durably on
// disk.
func (s *Stash) SetSync(key string, value []byte) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.set(key, value); err != nil {
		return err
	}
	return s.journal.Flush()
}

// set is the shared mutation path. Caller holds at least the read lock.
func (s *Stash) set(key string, value []byte) error {
	if s.closed.Get() {
		return ErrClosed
	}
	encoded, err := s.serializer.Serialize(value)
	if err != nil {
		return fmt.Errorf("stash: serializing value: %w", err)
	}
	s.table.Store(key, value)
	if err := s.journal.Append([]byte(key), encoded); err != nil {
		return err
	}
	s.mSets.Inc()
	return nil
}

// Get returns the value stored under key. ok reports whether the key was
// present; on a miss the configured default (if any) is returned with
// ok == false.
func (s *Stash) Get(key string) (value []byte, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if value, ok = s.table.Load(key); ok {
		return value, true
	}
	if s.defaultFn != nil {
		return s.defaultFn(key), false
	}
	return nil, false
}

// Path returns the journal file path the store was opened with.
func (s *Stash) Path() string {
	return s.path
}

// Has reports whether key is present.
func (s *Stash) Has(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.table.Load(key)
	return ok
}

// Delete removes key from the table and journals a tombstone. Deleting a
// missing key is a no-op.
func (s *Stash) Delete(key string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed.Get() {
		return ErrClosed
	}
	if _, present := s.table.LoadAndDelete(key); !present {
		return nil
	}
	if err := s.journal.AppendTombstone([]byte(key)); err != nil {
		return err
	}
	s.mDeletes.Inc()
	return nil
}

// Keys returns a snapshot of all keys, in no particular order.
func (s *Stash) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, s.table.Size())
	s.table.Range(func(key string, _ []byte) bool {
		keys = append(keys, key)
		return true
	})
	return keys
}

// Len returns the number of live keys.
func (s *Stash) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table.Size()
}

// Flush blocks until all buffered writes are durably on disk.
func (s *Stash) Flush() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed.Get() {
		return ErrClosed
	}
	return s.journal.Flush()
}

// Synchronize runs fn with every other store operation excluded, making a
// compound sequence of gets and sets atomic with respect to concurrent
// callers. fn operates through the Tx it is handed; the store's own methods
// would deadlock inside the block.
func (s *Stash) Synchronize(fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Get() {
		return ErrClosed
	}
	return fn(&Tx{s: s})
}

// Tx is the store view handed to a Synchronize block. Its methods mirror
// the store's but run under the exclusion the block already holds.
type Tx struct {
	s *Stash
}

// Get returns the value stored under key, applying the store's default on
// a miss.
func (tx *Tx) Get(key string) ([]byte, bool) {
	if value, ok := tx.s.table.Load(key); ok {
		return value, true
	}
	if tx.s.defaultFn != nil {
		return tx.s.defaultFn(key), false
	}
	return nil, false
}

// Set stores value under key.
func (tx *Tx) Set(key string, value []byte) error {
	return tx.s.set(key, value)
}

// Delete removes key, journaling a tombstone if it was present.
func (tx *Tx) Delete(key string) error {
	if _, present := tx.s.table.LoadAndDelete(key); !present {
		return nil
	}
	if err := tx.s.journal.AppendTombstone([]byte(key)); err != nil {
		return err
	}
	tx.s.mDeletes.Inc()
	return nil
}

// Has reports whether key is present.
func (tx *Tx) Has(key string) bool {
	_, ok := tx.s.table.Load(key)
	return ok
}

// Len returns the number of live keys.
func (tx *Tx) Len() int {
	return tx.s.table.Size()
}

// Flush blocks until all buffered writes are durably on disk.
func (tx *Tx) Flush() error {
	return tx.s.journal.Flush()
}

// Compact rewrites the live table to a fresh journal, dropping overwritten
// versions and tombstoned keys. If the rewrite would not change the file
// size the journal is already compact and the original is left untouched.
func (s *Stash) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed.Get() {
		return ErrClosed
	}
	if err := s.journal.Flush(); err != nil {
		return err
	}

	tmpPath := s.path + ".compact"
	size, err := s.writeSnapshot(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return err
	}

	// identical size means nothing to reclaim
	if size == s.journal.Size() {
		os.Remove(tmpPath)
		return nil
	}

	if err := s.journal.Close(); err != nil {
		return fmt.Errorf("stash: closing journal for compaction: %w", err)
	}
	if err := s.swapJournal(tmpPath); err != nil {
		return err
	}

	j, err := openJournal(s.path, s.format, s.logger)
	if err != nil {
		return err
	}
	s.journal = j
	s.mCompactions.Inc()
	s.logger.Debug("journal compacted", "path", s.path, "size", size)
	return nil
}

// writeSnapshot serializes the current table to path and returns the byte
// size of the resulting journal.
func (s *Stash) writeSnapshot(path string) (int64, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("stash: creating compaction file: %w", err)
	}
	defer file.Close()

	var size int64
	n, err := s.format.WriteHeader(file)
	if err != nil {
		return 0, err
	}
	size += int64(n)

	var writeErr error
	s.table.Range(func(key string, value []byte) bool {
		encoded, err := s.serializer.Serialize(value)
		if err != nil {
			writeErr = fmt.Errorf("stash: serializing value: %w", err)
			return false
		}
		n, err := s.format.WriteRecord(file, []byte(key), encoded, false)
		if err != nil {
			writeErr = err
			return false
		}
		size += int64(n)
		return true
	})
	if writeErr != nil {
		return 0, writeErr
	}
	if err := file.Sync(); err != nil {
		return 0, fmt.Errorf("stash: syncing compaction file: %w", err)
	}
	return size, nil
}

// swapJournal renames tmpPath over the live journal under an exclusive lock
// on the file being replaced.
func (s *Stash) swapJournal(tmpPath string) error {
	old, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("stash: locking journal for swap: %w", err)
	}
	defer old.Close()

	return withFlock(old, unix.LOCK_EX, func() error {
		if err := os.Rename(tmpPath, s.path); err != nil {
			return fmt.Errorf("stash: swapping compacted journal: %w", err)
		}
		return nil
	})
}

// Close flushes buffered writes, stops the background writer and
// unregisters the store. Safe to call more than once; operations after
// Close return ErrClosed.
func (s *Stash) Close() error {
	if !s.closed.MakeTrue() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	flushErr := s.journal.Flush()
	closeErr := s.journal.Close()
	s.rt.Unregister(s.handle)

	if flushErr != nil && !errors.Is(flushErr, ErrJournalClosed) {
		return flushErr
	}
	return closeErr
}
