// Package manager runs transactions over a set of in-memory tables. It hands out snapshots, keeps the chain head of
// every row, resolves undo links to the logs of the transactions that own them, and commits or rolls back the rows a
// transaction wrote.
package manager

import (
	"sync"

	"github.com/pingcap-incubator/tinymvcc/kv/storage"
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/latches"
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/metrics"
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/mvcc"
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/watermark"
	"github.com/pingcap-incubator/tinymvcc/kv/types"
	"github.com/pingcap-incubator/tinymvcc/log"
	"github.com/pingcap/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// ErrTxnNotRunning is returned when committing or aborting a transaction that already finished.
var ErrTxnNotRunning = mvcc.ErrTxnNotRunning

// ErrUnknownTable is returned when a transaction's write set names a table the manager does not have.
var ErrUnknownTable = errors.New("unknown table")

// Options configure a Manager.
type Options struct {
	// PageSlots is the number of rows per page of new tables.
	PageSlots int
	// LatchShards is the number of latch shards of new tables.
	LatchShards int
}

// Manager is safe for concurrent use.
type Manager struct {
	opts Options

	nextTxnID    atomic.Uint64
	lastCommitTs atomic.Uint64
	// commitMu orders commits. Begin takes it too, so a new snapshot is never older than the published watermark.
	commitMu  sync.Mutex
	watermark *watermark.Watermark

	txnLatch sync.RWMutex
	txns     map[uint64]*mvcc.Txn

	tableLatch  sync.RWMutex
	tables      map[mvcc.TableID]*Table
	nextTableID mvcc.TableID
}

func NewManager(opts Options) *Manager {
	return &Manager{
		opts:      opts,
		watermark: watermark.New(0),
		txns:      make(map[uint64]*mvcc.Txn),
		tables:    make(map[mvcc.TableID]*Table),
	}
}

// CreateTable creates an empty table.
func (m *Manager) CreateTable(name string, schema *types.Schema) *Table {
	m.tableLatch.Lock()
	defer m.tableLatch.Unlock()
	m.nextTableID++
	t := &Table{
		id:       m.nextTableID,
		name:     name,
		heap:     storage.NewTableHeap(schema, m.opts.PageSlots),
		latches:  latches.NewLatches(m.opts.LatchShards),
		versions: make(map[storage.RID]mvcc.VersionLink),
		mgr:      m,
	}
	m.tables[t.id] = t
	return t
}

func (m *Manager) Table(id mvcc.TableID) (*Table, bool) {
	m.tableLatch.RLock()
	defer m.tableLatch.RUnlock()
	t, ok := m.tables[id]
	return t, ok
}

// Begin starts a transaction reading the latest committed state.
func (m *Manager) Begin() (*mvcc.Txn, error) {
	m.commitMu.Lock()
	defer m.commitMu.Unlock()

	readTs := m.lastCommitTs.Load()
	txn := mvcc.NewTxn(m.nextTxnID.Inc(), readTs)
	if err := m.watermark.AddTxn(readTs); err != nil {
		return nil, errors.Trace(err)
	}
	m.txnLatch.Lock()
	m.txns[txn.ID()] = txn
	m.txnLatch.Unlock()

	metrics.TxnCounter.WithLabelValues(metrics.TxnBegin).Inc()
	metrics.ActiveTxnGauge.Inc()
	metrics.WatermarkGauge.Set(float64(m.watermark.GetWatermark()))
	log.Debug("begin transaction", log.TxnID(txn.ID()), log.ReadTs(readTs))
	return txn, nil
}

// Commit makes every write of txn visible at a new commit timestamp. A tainted transaction cannot commit.
func (m *Manager) Commit(txn *mvcc.Txn) error {
	m.commitMu.Lock()
	defer m.commitMu.Unlock()

	if txn.State() != mvcc.TxnRunning {
		return errors.Annotatef(ErrTxnNotRunning, "commit txn %d in state %s", txn.ID(), txn.State())
	}
	commitTs := m.lastCommitTs.Load() + 1
	for tableID, rids := range txn.WriteSet() {
		t, ok := m.Table(tableID)
		if !ok {
			return errors.Annotatef(ErrUnknownTable, "table %d", tableID)
		}
		for _, rid := range rids {
			meta, err := t.heap.GetRowMeta(rid)
			if err != nil {
				return errors.Trace(err)
			}
			if err := t.heap.UpdateRowMeta(storage.RowMeta{Ts: commitTs, Deleted: meta.Deleted}, rid); err != nil {
				return errors.Trace(err)
			}
			t.releaseHead(rid)
		}
	}
	txn.SetCommitted(commitTs)
	m.lastCommitTs.Store(commitTs)
	m.watermark.UpdateCommitTs(commitTs)
	m.finish(txn)

	metrics.TxnCounter.WithLabelValues(metrics.TxnCommit).Inc()
	log.Debug("commit transaction", log.TxnID(txn.ID()), log.ReadTs(txn.ReadTs()), log.CommitTs(commitTs))
	return nil
}

// Abort rolls back every write of txn. Rows it updated or deleted get their pre-image back from its undo logs, and
// their chains keep txn's logs so that readers in the middle of a chain walk are not cut off; rows it inserted are
// left deleted.
func (m *Manager) Abort(txn *mvcc.Txn) error {
	if s := txn.State(); s != mvcc.TxnRunning && s != mvcc.TxnTainted {
		return errors.Annotatef(ErrTxnNotRunning, "abort txn %d in state %s", txn.ID(), s)
	}
	for tableID, rids := range txn.WriteSet() {
		t, ok := m.Table(tableID)
		if !ok {
			return errors.Annotatef(ErrUnknownTable, "table %d", tableID)
		}
		for _, rid := range rids {
			if err := t.rollback(txn, rid); err != nil {
				return err
			}
		}
	}
	txn.SetAborted()
	m.finish(txn)

	metrics.TxnCounter.WithLabelValues(metrics.TxnAbort).Inc()
	log.Info("abort transaction", log.TxnID(txn.ID()), log.ReadTs(txn.ReadTs()),
		zap.Int("undo-logs", txn.UndoLogCount()))
	return nil
}

func (m *Manager) finish(txn *mvcc.Txn) {
	if err := m.watermark.RemoveTxn(txn.ReadTs()); err != nil {
		log.Error("transaction was not registered", log.TxnID(txn.ID()), zap.Error(err))
	}
	if txn.UndoLogCount() == 0 {
		// No chain links into a transaction without undo logs.
		m.txnLatch.Lock()
		delete(m.txns, txn.ID())
		m.txnLatch.Unlock()
	}
	metrics.ActiveTxnGauge.Dec()
	metrics.WatermarkGauge.Set(float64(m.watermark.GetWatermark()))
}

// GetTxn returns the transaction with the given id. Finished transactions that wrote undo logs stay known so their
// logs can be read; nothing frees them, even after ReclaimableLogs reports every log of a transaction.
// TODO: drop a finished transaction once the watermark has passed its commit ts and all its logs are reclaimable.
func (m *Manager) GetTxn(id uint64) (*mvcc.Txn, bool) {
	m.txnLatch.RLock()
	defer m.txnLatch.RUnlock()
	txn, ok := m.txns[id]
	return txn, ok
}

// GetUndoLogOptional returns the log link points at, or false if there is no such log.
func (m *Manager) GetUndoLogOptional(link mvcc.UndoLink) (mvcc.UndoLog, bool) {
	if !link.IsValid() {
		return mvcc.UndoLog{}, false
	}
	txn, ok := m.GetTxn(link.PrevTxn)
	if !ok {
		return mvcc.UndoLog{}, false
	}
	return txn.GetUndoLog(link.PrevLogIdx)
}

// GetUndoLog is like GetUndoLogOptional, but a missing log is an error.
func (m *Manager) GetUndoLog(link mvcc.UndoLink) (mvcc.UndoLog, error) {
	ul, ok := m.GetUndoLogOptional(link)
	if !ok {
		return mvcc.UndoLog{}, errors.Annotatef(mvcc.ErrInvalidUndoLink, "link %s", link)
	}
	return ul, nil
}

// Watermark returns the oldest read timestamp any running transaction uses.
func (m *Manager) Watermark() uint64 {
	return m.watermark.GetWatermark()
}

func (m *Manager) LastCommitTs() uint64 {
	return m.lastCommitTs.Load()
}
