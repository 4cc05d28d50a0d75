package stash

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T, path string, opts ...Option) *Stash {
	t.Helper()
	s, err := Open(path, opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBasicOperations(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "basic.stash"))

	if err := s.Set("a", []byte("1")); err != nil {
		t.Fatal(err)
	}
	if v, ok := s.Get("a"); !ok || string(v) != "1" {
		t.Errorf("Get(a) = (%q, %v)", v, ok)
	}
	if !s.Has("a") || s.Has("b") {
		t.Error("Has misreports membership")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d", s.Len())
	}

	if err := s.Delete("a"); err != nil {
		t.Fatal(err)
	}
	if s.Has("a") || s.Len() != 0 {
		t.Error("delete did not remove the key")
	}
	if _, ok := s.Get("a"); ok {
		t.Error("Get found a deleted key")
	}
}

func TestGetDefault(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "default.stash"),
		WithDefault([]byte("fallback")))

	if v, ok := s.Get("missing"); ok || string(v) != "fallback" {
		t.Errorf("Get(missing) = (%q, %v)", v, ok)
	}

	s.Set("present", []byte("real"))
	if v, ok := s.Get("present"); !ok || string(v) != "real" {
		t.Errorf("stored value shadowed by default: (%q, %v)", v, ok)
	}
}

func TestGetDefaultFunc(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "defaultfn.stash"),
		WithDefaultFunc(func(key string) []byte { return []byte("default-for-" + key) }))

	if v, ok := s.Get("x"); ok || string(v) != "default-for-x" {
		t.Errorf("Get(x) = (%q, %v)", v, ok)
	}
}

// A synced write survives closing and reopening the store at the same path.
func TestDurableWriteSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t1.stash")

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.SetSync("a", []byte("1")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened := openTestStore(t, path)
	if v, ok := reopened.Get("a"); !ok || string(v) != "1" {
		t.Errorf("after reopen: Get(a) = (%q, %v)", v, ok)
	}
}

// Replay reconstructs exactly the table that existed before close:
// last-write-wins for repeated keys, tombstones remove keys.
func TestJournalRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roundtrip.stash")

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 50; i++ {
		key := fmt.Sprintf("key-%d", i%10) // repeated keys, last write wins
		if err := s.Set(key, []byte(fmt.Sprintf("value-%d", i))); err != nil {
			t.Fatal(err)
		}
	}
	s.Delete("key-3")
	s.Delete("key-7")
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened := openTestStore(t, path)
	if reopened.Len() != 8 {
		t.Fatalf("reconstructed %d keys, expected 8", reopened.Len())
	}
	for _, gone := range []string{"key-3", "key-7"} {
		if reopened.Has(gone) {
			t.Errorf("tombstoned key %q came back", gone)
		}
	}
	for i := 40; i < 50; i++ {
		key := fmt.Sprintf("key-%d", i%10)
		if key == "key-3" || key == "key-7" {
			continue
		}
		want := fmt.Sprintf("value-%d", i)
		if v, ok := reopened.Get(key); !ok || string(v) != want {
			t.Errorf("Get(%s) = (%q, %v), want %q", key, v, ok, want)
		}
	}
}

// A single flipped byte in the journal makes the reopen fail with a
// corruption error rather than load bad data.
func TestReplayDetectsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.stash")

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	s.SetSync("a", []byte("payload"))
	s.Close()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	raw[len(raw)-3] ^= 0x01 // flip a byte inside the last record
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(path); !errors.Is(err, ErrCorrupt) {
		t.Errorf("expected ErrCorrupt on reopen, got %v", err)
	}
}

func TestOpenRejectsForeignVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "version.stash")

	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	s.SetSync("a", []byte("1"))
	s.Close()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	raw[len(formatMagic)]++ // bump the version field
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(path); !errors.Is(err, ErrVersionMismatch) {
		t.Errorf("expected ErrVersionMismatch, got %v", err)
	}
}

func TestCompactReclaimsSpace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "compact.stash")
	s := openTestStore(t, path)

	// overwrite one key many times; only the last version is live
	for i := 0; i < 100; i++ {
		if err := s.Set("hot", []byte(fmt.Sprintf("version-%d", i))); err != nil {
			t.Fatal(err)
		}
	}
	s.Set("cold", []byte("keep"))
	s.Delete("hot")
	if err := s.Flush(); err != nil {
		t.Fatal(err)
	}

	before, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Compact(); err != nil {
		t.Fatal(err)
	}

	after, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if after.Size() >= before.Size() {
		t.Errorf("compaction did not shrink the journal: %d -> %d",
			before.Size(), after.Size())
	}

	// the store keeps working on the fresh journal
	if v, ok := s.Get("cold"); !ok || string(v) != "keep" {
		t.Errorf("Get(cold) after compact = (%q, %v)", v, ok)
	}
	if err := s.SetSync("new", []byte("post-compact")); err != nil {
		t.Fatal(err)
	}

	s.Close()
	reopened := openTestStore(t, path)
	if v, ok := reopened.Get("new"); !ok || string(v) != "post-compact" {
		t.Errorf("post-compact write lost: (%q, %v)", v, ok)
	}
	if reopened.Has("hot") {
		t.Error("deleted key resurrected by compaction")
	}
}

func TestCompactShortCircuitsWhenAlreadyCompact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nocompact.stash")
	s := openTestStore(t, path)

	s.SetSync("only", []byte("entry"))

	before, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Compact(); err != nil {
		t.Fatal(err)
	}
	after, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}

	if before.Size() != after.Size() {
		t.Errorf("already-compact journal rewritten: %d -> %d", before.Size(), after.Size())
	}
	if _, err := os.Stat(path + ".compact"); !os.IsNotExist(err) {
		t.Error("temp compaction file left behind")
	}
}

func TestSynchronizeComposesAtomically(t *testing.T) {
	s := openTestStore(t, filepath.Join(t.TempDir(), "sync.stash"))

	s.Set("counter", []byte("0"))
	err := s.Synchronize(func(tx *Tx) error {
		v, _ := tx.Get("counter")
		if string(v) != "0" {
			return fmt.Errorf("unexpected counter %q", v)
		}
		return tx.Set("counter", []byte("1"))
	})
	if err != nil {
		t.Fatal(err)
	}

	if v, ok := s.Get("counter"); !ok || string(v) != "1" {
		t.Errorf("Get(counter) = (%q, %v)", v, ok)
	}
}

func TestGobSerializerRoundTripsThroughJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gob.stash")

	s, err := Open(path, WithSerializer(NewGOBSerializer()))
	if err != nil {
		t.Fatal(err)
	}
	payload := []byte{0x00, 0xff, 0x42}
	if err := s.SetSync("binary", payload); err != nil {
		t.Fatal(err)
	}
	s.Close()

	reopened := openTestStore(t, path, WithSerializer(NewGOBSerializer()))
	if v, ok := reopened.Get("binary"); !ok || !bytes.Equal(v, payload) {
		t.Errorf("Get(binary) = (%v, %v)", v, ok)
	}
}

func TestOperationsAfterClose(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "closed.stash"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	if err := s.Set("a", []byte("1")); !errors.Is(err, ErrClosed) {
		t.Errorf("Set after close: %v", err)
	}
	if err := s.Flush(); !errors.Is(err, ErrClosed) {
		t.Errorf("Flush after close: %v", err)
	}
	if err := s.Compact(); !errors.Is(err, ErrClosed) {
		t.Errorf("Compact after close: %v", err)
	}
}
