package transaction

// The transaction package implements TinyMVCC's transaction layer: snapshot isolation over tables whose rows are
// updated in place. This file only holds documentation; the tests in this directory run whole transactions through
// the command layer.
//
// Every row lives in exactly one slot of a table heap (kv/storage). The slot holds the newest version of the row and
// a small header, the row meta: a timestamp and a deleted flag. The timestamp is the commit timestamp of the version,
// or, while a transaction has an uncommitted write on the row, that transaction's temporary marker. Markers are
// larger than any commit timestamp.
//
// Older versions are kept as *undo logs*. An undo log records the columns a write changed, with their values before
// the write, and the timestamp of the version it restores. Logs are linked newest to oldest into a *version chain*
// per row; the first link of each chain is the row's *version link*, kept by the transaction manager. Undo logs are
// owned by the transaction that wrote them and stored in its arena, so a link is just (transaction id, index).
//
// A transaction reads as of its read timestamp, the last commit timestamp when it began. For each row it
// either sees its own write, sees the physical row because it was committed at or before the read timestamp, or
// walks the chain until it finds a log at or below the read timestamp and applies every log on the way to a copy of
// the row (mvcc.ResolveRow).
//
// The first time a transaction writes a row it must win the row: nobody else may hold the version link's in-progress
// flag, and the row must not have been committed after the transaction's snapshot. Otherwise the write conflicts and
// the transaction is tainted and has to abort. The check and the publish of the new version link happen under a
// per-row *latch* (see the latches package). Later writes of the same transaction to the row are folded into the
// undo log it already has, so a chain grows by at most one log per transaction.
//
// Committing takes a new commit timestamp, stamps it on every row the transaction wrote and releases the in-progress
// flags. Aborting restores every written row from the transaction's own undo logs. Either way the transaction leaves
// the watermark tracker (see the watermark package), which knows the oldest read timestamp still in use and so which
// undo logs no reader can reach any more.
//
// Within this package, `mvcc` holds the transaction, undo log and visibility code, `manager` runs transactions over
// tables, and `commands` implements insert, update, delete and scan statements on top of them.
