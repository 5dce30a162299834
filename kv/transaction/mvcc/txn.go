package mvcc

import (
	"fmt"
	"sync"

	"github.com/pingcap-incubator/tinymvcc/kv/storage"
)

// TableID names a table within one transaction manager.
type TableID uint32

type TxnState int

const (
	TxnRunning TxnState = iota
	// TxnTainted is entered on a write conflict. A tainted transaction can only abort.
	TxnTainted
	TxnCommitted
	TxnAborted
)

func (s TxnState) String() string {
	switch s {
	case TxnRunning:
		return "running"
	case TxnTainted:
		return "tainted"
	case TxnCommitted:
		return "committed"
	case TxnAborted:
		return "aborted"
	}
	return fmt.Sprintf("TxnState(%d)", int(s))
}

// Txn is a snapshot-isolation transaction. It reads the database as of ReadTs and owns an append-only arena of undo
// logs, addressed by UndoLink{ID, index}. The arena is written only by the goroutine running the transaction but read
// by any reader walking a version chain through it, so access goes through latch.
type Txn struct {
	id     uint64
	readTs uint64

	latch    sync.RWMutex
	state    TxnState
	commitTs uint64
	undoLogs []UndoLog
	writeSet map[TableID]map[storage.RID]struct{}
}

// NewTxn creates a running transaction. Ids must be unique and must not be InvalidTxnID.
func NewTxn(id, readTs uint64) *Txn {
	return &Txn{
		id:       id,
		readTs:   readTs,
		writeSet: make(map[TableID]map[storage.RID]struct{}),
	}
}

func (txn *Txn) ID() uint64 {
	return txn.id
}

func (txn *Txn) ReadTs() uint64 {
	return txn.readTs
}

// TempTs is the timestamp the transaction stamps on rows it has written but not committed.
func (txn *Txn) TempTs() uint64 {
	return TxnStartID + txn.id
}

// CommitTs returns the commit timestamp, or 0 while the transaction has not committed.
func (txn *Txn) CommitTs() uint64 {
	txn.latch.RLock()
	defer txn.latch.RUnlock()
	return txn.commitTs
}

func (txn *Txn) State() TxnState {
	txn.latch.RLock()
	defer txn.latch.RUnlock()
	return txn.state
}

// SetTainted marks a running transaction tainted.
func (txn *Txn) SetTainted() {
	txn.latch.Lock()
	defer txn.latch.Unlock()
	if txn.state == TxnRunning {
		txn.state = TxnTainted
	}
}

// SetCommitted is called by the transaction manager once every row of the write set carries commitTs.
func (txn *Txn) SetCommitted(commitTs uint64) {
	txn.latch.Lock()
	defer txn.latch.Unlock()
	txn.state = TxnCommitted
	txn.commitTs = commitTs
}

// SetAborted is called by the transaction manager once every write has been rolled back.
func (txn *Txn) SetAborted() {
	txn.latch.Lock()
	defer txn.latch.Unlock()
	txn.state = TxnAborted
}

// AppendUndoLog adds log to the arena and returns the link that addresses it.
func (txn *Txn) AppendUndoLog(log UndoLog) UndoLink {
	txn.latch.Lock()
	defer txn.latch.Unlock()
	txn.undoLogs = append(txn.undoLogs, log)
	return UndoLink{PrevTxn: txn.id, PrevLogIdx: len(txn.undoLogs) - 1}
}

// ModifyUndoLog replaces the log at idx. Readers see either the old or the new log, never a mix.
func (txn *Txn) ModifyUndoLog(idx int, log UndoLog) {
	txn.latch.Lock()
	defer txn.latch.Unlock()
	txn.undoLogs[idx] = log
}

// GetUndoLog returns the log at idx. Logs are replaced whole, never mutated, so the returned value is safe to keep.
func (txn *Txn) GetUndoLog(idx int) (UndoLog, bool) {
	txn.latch.RLock()
	defer txn.latch.RUnlock()
	if idx < 0 || idx >= len(txn.undoLogs) {
		return UndoLog{}, false
	}
	return txn.undoLogs[idx], true
}

func (txn *Txn) UndoLogCount() int {
	txn.latch.RLock()
	defer txn.latch.RUnlock()
	return len(txn.undoLogs)
}

// AppendWriteSet records that the transaction wrote rid of table.
func (txn *Txn) AppendWriteSet(table TableID, rid storage.RID) {
	txn.latch.Lock()
	defer txn.latch.Unlock()
	rids, ok := txn.writeSet[table]
	if !ok {
		rids = make(map[storage.RID]struct{})
		txn.writeSet[table] = rids
	}
	rids[rid] = struct{}{}
}

// WriteSet returns a copy of the rows written so far, by table.
func (txn *Txn) WriteSet() map[TableID][]storage.RID {
	txn.latch.RLock()
	defer txn.latch.RUnlock()
	ws := make(map[TableID][]storage.RID, len(txn.writeSet))
	for table, rids := range txn.writeSet {
		for rid := range rids {
			ws[table] = append(ws[table], rid)
		}
	}
	return ws
}

func (txn *Txn) String() string {
	return fmt.Sprintf("txn%d(read_ts=%d, %s)", txn.id, txn.readTs, txn.State())
}
