// Package stash implements a crash-tolerant, append-only, journaled
// key-value store.
//
// Architecture:
//
//   - In-memory table (xsync.MapOf): authoritative for reads. Mutations
//     land here first, so readers never wait on disk.
//   - Journal: a single append-only file. A background writer goroutine
//     consumes mutation records from a lock-free MPSC queue and appends
//     them, framed and CRC-protected, in dequeue order. Set is therefore
//     write-behind; SetSync and Flush are the durability barrier.
//   - Recovery: Open replays the whole journal to rebuild the table.
//     Tombstone records remove keys, later records win over earlier ones.
//     A version mismatch or CRC failure aborts the open.
//   - Multi-process safety: advisory file locks (shared for replay,
//     exclusive for appends and compaction) guard the file across
//     processes; an inode check spots external file replacement.
//   - Compaction: rewrites the live table to a temporary file and renames
//     it over the journal, reclaiming space held by overwritten and
//     deleted records.
//
// Both the record framing (Format) and the value codec (Serializer) are
// pluggable; the defaults are the CRC-protected binary format and the raw
// pass-through codec.
//
// Every open store is registered with the runtime registry
// (lib/runtime); stores still open at Runtime.Shutdown are force-closed
// with a warning, so buffered writes are not silently lost at process
// exit.
package stash
