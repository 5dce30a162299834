package manager

import (
	"sync"

	"github.com/pingcap-incubator/tinymvcc/kv/storage"
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/latches"
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/mvcc"
	"github.com/pingcap-incubator/tinymvcc/kv/types"
	"github.com/pingcap/errors"
)

// Table is a table heap together with the version chain heads of its rows.
type Table struct {
	id      mvcc.TableID
	name    string
	heap    *storage.TableHeap
	latches *latches.Latches
	mgr     *Manager

	versionLatch sync.RWMutex
	versions     map[storage.RID]mvcc.VersionLink
}

var _ mvcc.VersionTable = &Table{}

func (t *Table) ID() mvcc.TableID {
	return t.id
}

func (t *Table) Name() string {
	return t.name
}

func (t *Table) Schema() *types.Schema {
	return t.heap.Schema()
}

func (t *Table) Heap() *storage.TableHeap {
	return t.heap
}

func (t *Table) Store() storage.RowStore {
	return t.heap
}

func (t *Table) Latches() *latches.Latches {
	return t.latches
}

func (t *Table) GetVersionLink(rid storage.RID) (mvcc.VersionLink, bool) {
	t.versionLatch.RLock()
	defer t.versionLatch.RUnlock()
	link, ok := t.versions[rid]
	return link, ok
}

func (t *Table) UpdateVersionLink(rid storage.RID, link mvcc.VersionLink, check func(mvcc.VersionLink, bool) bool) bool {
	t.versionLatch.Lock()
	defer t.versionLatch.Unlock()
	cur, ok := t.versions[rid]
	if check != nil && !check(cur, ok) {
		return false
	}
	t.versions[rid] = link
	return true
}

func (t *Table) GetUndoLink(rid storage.RID) mvcc.UndoLink {
	link, _ := t.GetVersionLink(rid)
	return link.Prev
}

func (t *Table) GetUndoLogOptional(link mvcc.UndoLink) (mvcc.UndoLog, bool) {
	return t.mgr.GetUndoLogOptional(link)
}

// releaseHead clears the in-progress flag on rid's head.
func (t *Table) releaseHead(rid storage.RID) {
	t.versionLatch.Lock()
	defer t.versionLatch.Unlock()
	link := t.versions[rid]
	link.InProgress = false
	t.versions[rid] = link
}

// rollback undoes txn's write to rid. The head keeps pointing at txn's log: a reader may hold the aborted row and
// walk the chain after the rollback, and it must still find the log that undoes the write. Applied to the restored
// row, the log changes nothing.
func (t *Table) rollback(txn *mvcc.Txn, rid storage.RID) error {
	meta, cur, err := t.heap.GetRow(rid)
	if err != nil {
		return errors.Trace(err)
	}
	if meta.Ts != txn.TempTs() {
		return nil
	}
	head, _ := t.GetVersionLink(rid)
	if !head.Prev.IsValid() || head.Prev.PrevTxn != txn.ID() {
		// txn inserted the row.
		if err := t.heap.UpdateRowMeta(storage.RowMeta{Ts: 0, Deleted: true}, rid); err != nil {
			return errors.Trace(err)
		}
		t.UpdateVersionLink(rid, mvcc.VersionLink{}, nil)
		return nil
	}

	ul, ok := txn.GetUndoLog(head.Prev.PrevLogIdx)
	if !ok {
		return errors.Annotatef(mvcc.ErrInvalidUndoLink, "rid %s, link %s", rid, head.Prev)
	}
	row, ok, err := mvcc.ReconstructRow(t.heap.Schema(), meta, cur, []mvcc.UndoLog{ul})
	if err != nil {
		return err
	}
	if !ok {
		row = types.EmptyRow(t.heap.Schema())
	}
	if err := t.heap.UpdateRowInPlace(storage.RowMeta{Ts: ul.Ts, Deleted: !ok}, row, rid, nil); err != nil {
		return errors.Trace(err)
	}
	t.releaseHead(rid)
	return nil
}
