package mvcc

import (
	"github.com/pingcap-incubator/tinymvcc/kv/storage"
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/latches"
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/metrics"
	"github.com/pingcap-incubator/tinymvcc/kv/types"
	"github.com/pingcap-incubator/tinymvcc/log"
	"github.com/pingcap/errors"
	"go.uber.org/zap"
)

// VersionTable is a table as the write protocol sees it: the row store, the version chain heads of its rows, and
// the row latches that make a conflict check and the publish of a new head one step.
type VersionTable interface {
	ChainReader
	ID() TableID
	Store() storage.RowStore
	Latches() *latches.Latches
	// GetVersionLink returns the chain head of rid, if the row has one.
	GetVersionLink(rid storage.RID) (VersionLink, bool)
	// UpdateVersionLink installs link as the head of rid. If check is not nil it is called with the current head and
	// the update only happens when it returns true. The result reports whether the head was installed.
	UpdateVersionLink(rid storage.RID, link VersionLink, check func(cur VersionLink, ok bool) bool) bool
}

// InsertRow adds a new row written by txn. The row has no history, older snapshots walk an empty chain and do not
// see it.
func InsertRow(txn *Txn, table VersionTable, row types.Row) (storage.RID, error) {
	if txn.State() != TxnRunning {
		return storage.RID{}, errors.Annotatef(ErrTxnNotRunning, "txn %d", txn.ID())
	}
	rid, err := table.Store().InsertRow(storage.RowMeta{Ts: txn.TempTs()}, row)
	if err != nil {
		return storage.RID{}, errors.Trace(err)
	}
	table.UpdateVersionLink(rid, VersionLink{InProgress: true}, nil)
	txn.AppendWriteSet(table.ID(), rid)
	metrics.WriteCounter.WithLabelValues(metrics.WriteInsert).Inc()
	return rid, nil
}

// UpdateRow replaces the row at rid with newRow. observed is the meta the caller read the row with; if the row has
// changed since, the write conflicts.
func UpdateRow(txn *Txn, table VersionTable, rid storage.RID, observed storage.RowMeta, newRow types.Row) error {
	if err := table.Store().Schema().Check(newRow); err != nil {
		return errors.Trace(err)
	}
	return writeRow(txn, table, rid, observed, newRow, false)
}

// DeleteRow deletes the row at rid. The slot keeps an empty payload.
func DeleteRow(txn *Txn, table VersionTable, rid storage.RID, observed storage.RowMeta) error {
	return writeRow(txn, table, rid, observed, types.EmptyRow(table.Store().Schema()), true)
}

func writeRow(txn *Txn, table VersionTable, rid storage.RID, observed storage.RowMeta, newRow types.Row,
	deleted bool) error {
	if txn.State() != TxnRunning {
		return errors.Annotatef(ErrTxnNotRunning, "txn %d", txn.ID())
	}
	store := table.Store()
	meta, cur, err := store.GetRow(rid)
	if err != nil {
		return errors.Trace(err)
	}
	if meta.Ts == txn.TempTs() {
		return selfWrite(txn, table, rid, meta, cur, newRow, deleted)
	}
	return firstWrite(txn, table, rid, observed, newRow, deleted)
}

// selfWrite handles a row txn has already written. Only txn can write a row carrying its temporary marker, so no
// latch is needed. If txn owns the head log, the change is folded into it; a row txn inserted has no log at all.
func selfWrite(txn *Txn, table VersionTable, rid storage.RID, meta storage.RowMeta, cur types.Row, newRow types.Row,
	deleted bool) error {
	schema := table.Store().Schema()
	head := table.GetUndoLink(rid)
	if head.IsValid() && head.PrevTxn == txn.ID() {
		existing, ok := txn.GetUndoLog(head.PrevLogIdx)
		if !ok {
			return errors.Annotatef(ErrInvalidUndoLink, "rid %s, link %s", rid, head)
		}
		diff := GenerateDiffLog(schema, meta, cur, newRow, deleted)
		merged, err := MergeUndoLog(schema, existing, diff)
		if err != nil {
			return err
		}
		txn.ModifyUndoLog(head.PrevLogIdx, merged)
		metrics.WriteCounter.WithLabelValues(metrics.WriteCoalesced).Inc()
	} else {
		metrics.WriteCounter.WithLabelValues(metrics.WriteInPlace).Inc()
	}
	if err := table.Store().UpdateRowInPlace(storage.RowMeta{Ts: txn.TempTs(), Deleted: deleted}, newRow, rid, nil); err != nil {
		return errors.Trace(err)
	}
	txn.AppendWriteSet(table.ID(), rid)
	return nil
}

// firstWrite handles the first write of txn to a row. Under the row latch it checks that nobody else is writing the
// row and that nothing was committed after txn's snapshot, then chains the pre-image in front of the old head,
// takes the head, and overwrites the row.
func firstWrite(txn *Txn, table VersionTable, rid storage.RID, observed storage.RowMeta, newRow types.Row,
	deleted bool) error {
	l := table.Latches()
	l.WaitForLatch(rid)
	defer l.ReleaseLatch(rid)

	store := table.Store()
	meta, cur, err := store.GetRow(rid)
	if err != nil {
		return errors.Trace(err)
	}
	head, _ := table.GetVersionLink(rid)
	switch {
	case head.InProgress, meta != observed, IsTempTs(meta.Ts), meta.Ts > txn.ReadTs():
		return conflict(txn, rid, meta, head.InProgress)
	}

	ul := GenerateDiffLog(store.Schema(), meta, cur, newRow, deleted)
	ul.Ts = meta.Ts
	ul.Prev = head.Prev
	link := txn.AppendUndoLog(ul)
	taken := VersionLink{Prev: link, InProgress: true}
	if !table.UpdateVersionLink(rid, taken, func(v VersionLink, ok bool) bool {
		return v == head
	}) {
		return conflict(txn, rid, meta, true)
	}

	check := func(m storage.RowMeta, _ types.Row) bool { return m == meta }
	if err := store.UpdateRowInPlace(storage.RowMeta{Ts: txn.TempTs(), Deleted: deleted}, newRow, rid, check); err != nil {
		// The row was not overwritten. txn's log stays in its arena for readers that already walked into it.
		table.UpdateVersionLink(rid, head, func(v VersionLink, ok bool) bool { return v == taken })
		if errors.Cause(err) == storage.ErrSlotChanged {
			return conflict(txn, rid, meta, false)
		}
		return errors.Trace(err)
	}
	txn.AppendWriteSet(table.ID(), rid)
	metrics.WriteCounter.WithLabelValues(metrics.WriteFirst).Inc()
	return nil
}

func conflict(txn *Txn, rid storage.RID, meta storage.RowMeta, inProgress bool) error {
	txn.SetTainted()
	metrics.WriteConflictCounter.Inc()
	log.Debug("write conflict", log.TxnID(txn.ID()), log.ReadTs(txn.ReadTs()), log.RID(rid),
		zap.String("row-ts", FormatTs(meta.Ts)), zap.Bool("in-progress", inProgress))
	return errors.WithStack(&ErrWriteConflict{
		RID:        rid,
		TxnID:      txn.ID(),
		ConflictTs: meta.Ts,
		InProgress: inProgress,
	})
}
