package stash

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/hashicorp/go-hclog"
	"golang.org/x/sys/unix"

	"github.com/riddopic/garcun/lib/stash/internal"
	"github.com/riddopic/garcun/lib/syncutil"
)

const (
	// writeRetries is how many times a failing append is retried before the
	// journal is declared failed.
	writeRetries = 3

	// flushTimeout bounds how long Flush waits for the writer to drain.
	flushTimeout = 30 * time.Second
)

var (
	// ErrWriterFailed is wrapped by every operation after the background
	// writer hit a non-recoverable I/O error. The store must be reopened.
	ErrWriterFailed = errors.New("stash: journal writer failed")

	// ErrJournalClosed is returned by operations on a closed journal.
	ErrJournalClosed = errors.New("stash: journal closed")
)

// record is one unit of work for the background writer. A record with a
// non-nil flush event carries no payload; it makes the writer sync the file
// and signal the event, which is how Flush observes the queue drain.
type record struct {
	key       []byte
	value     []byte
	tombstone bool
	flush     *syncutil.Event
}

// journal owns the file handle and the single background writer goroutine.
// Producers append records through a lock-free MPSC queue; the writer frames
// them with the Format and appends them to the file under an exclusive
// advisory lock, in exactly the order they were dequeued.
type journal struct {
	path   string
	format Format
	logger hclog.Logger

	queue *internal.MPSC[record]
	done  *syncutil.Event

	mu   sync.Mutex
	file *os.File
	size int64 // bytes appended so far, header included
	err  error // terminal writer failure, sticky

	mRecords *metrics.Counter
	mBytes   *metrics.Counter
}

// openJournal opens (creating if needed) the journal file, validates or
// writes the header, and starts the background writer. The caller replays
// existing records itself before calling this.
func openJournal(path string, format Format, logger hclog.Logger) (*journal, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("stash: opening journal: %w", err)
	}

	j := &journal{
		path:   path,
		format: format,
		logger: logger,
		queue:  internal.NewMPSC[record](),
		done:   syncutil.NewEvent(),
		file:   file,

		mRecords: metrics.GetOrCreateCounter(fmt.Sprintf(`garcun_stash_records_written_total{path=%q}`, path)),
		mBytes:   metrics.GetOrCreateCounter(fmt.Sprintf(`garcun_stash_bytes_written_total{path=%q}`, path)),
	}

	if err := withFlock(file, unix.LOCK_EX, func() error {
		info, err := file.Stat()
		if err != nil {
			return err
		}
		if info.Size() == 0 {
			n, err := format.WriteHeader(file)
			if err != nil {
				return err
			}
			if err := file.Sync(); err != nil {
				return err
			}
			j.size = int64(n)
			return nil
		}
		j.size = info.Size()
		return nil
	}); err != nil {
		file.Close()
		return nil, fmt.Errorf("stash: initializing journal: %w", err)
	}

	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		file.Close()
		return nil, fmt.Errorf("stash: seeking journal end: %w", err)
	}

	go j.writeLoop()
	return j, nil
}

// Append enqueues a set record for the background writer.
func (j *journal) Append(key, value []byte) error {
	return j.push(&record{key: key, value: value})
}

// AppendTombstone enqueues a delete record.
func (j *journal) AppendTombstone(key []byte) error {
	return j.push(&record{key: key, tombstone: true})
}

func (j *journal) push(rec *record) error {
	if err := j.Err(); err != nil {
		return err
	}
	if !j.queue.Push(rec) {
		return ErrJournalClosed
	}
	return nil
}

// Flush blocks until every record enqueued before the call has been written
// and synced, or returns the journal's terminal error.
func (j *journal) Flush() error {
	if err := j.Err(); err != nil {
		return err
	}

	marker := syncutil.NewEvent()
	if !j.queue.Push(&record{flush: marker}) {
		return ErrJournalClosed
	}
	if !marker.WaitFor(flushTimeout) {
		return fmt.Errorf("stash: flush timed out after %v", flushTimeout)
	}
	return j.Err()
}

// Size returns the journal length in bytes as of the last completed write.
func (j *journal) Size() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.size
}

// Err returns the terminal writer error, if any.
func (j *journal) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Close drains the queue, stops the writer and closes the file. Safe to
// call more than once.
func (j *journal) Close() error {
	if !j.queue.IsClosed() {
		j.queue.Close()
	}
	j.done.Wait()

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file != nil {
		err := j.file.Close()
		j.file = nil
		return err
	}
	return nil
}

// writeLoop is the single consumer: one record at a time, in dequeue order.
// After a terminal failure it keeps draining so producers blocked in Flush
// are released, but nothing more reaches the file.
func (j *journal) writeLoop() {
	defer j.done.Set()

	for rec := range j.queue.Recv() {
		if rec.flush != nil {
			if j.Err() == nil {
				j.mu.Lock()
				j.file.Sync()
				j.mu.Unlock()
			}
			rec.flush.Set()
			continue
		}

		if j.Err() != nil {
			continue
		}
		if err := j.writeRecord(rec); err != nil {
			j.fail(err)
		}
	}
}

// writeRecord appends one framed record, retrying transient failures.
func (j *journal) writeRecord(rec *record) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	// detect external rotation of the journal file before touching it
	if same, err := sameInode(j.file, j.path); err == nil && !same {
		j.logger.Warn("journal file replaced externally, reopening", "path", j.path)
		if err := j.reopenLocked(); err != nil {
			return err
		}
	}

	var lastErr error
	for attempt := 1; attempt <= writeRetries; attempt++ {
		var written int
		lastErr = withFlock(j.file, unix.LOCK_EX, func() error {
			n, err := j.format.WriteRecord(j.file, rec.key, rec.value, rec.tombstone)
			if err != nil {
				return err
			}
			written = n
			return j.file.Sync()
		})
		if lastErr == nil {
			j.size += int64(written)
			j.mRecords.Inc()
			j.mBytes.Add(written)
			return nil
		}
		j.logger.Warn("journal append failed, retrying",
			"attempt", attempt, "retries", writeRetries, "error", lastErr)
	}
	return fmt.Errorf("giving up after %d attempts: %w", writeRetries, lastErr)
}

// reopenLocked replaces the file handle with a fresh open of j.path.
// Caller must hold j.mu.
func (j *journal) reopenLocked() error {
	file, err := os.OpenFile(j.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("reopening journal: %w", err)
	}
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		file.Close()
		return fmt.Errorf("seeking reopened journal: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat reopened journal: %w", err)
	}
	j.file.Close()
	j.file = file
	j.size = info.Size()
	return nil
}

// fail records the terminal error. All subsequent operations surface it.
func (j *journal) fail(err error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.err != nil {
		return
	}
	j.err = fmt.Errorf("%w: %v", ErrWriterFailed, err)
	j.logger.Error("journal writer failed, store requires reopen", "error", err)
}
