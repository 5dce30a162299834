package mvcc

import (
	"github.com/pingcap-incubator/tinymvcc/kv/storage"
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/metrics"
	"github.com/pingcap-incubator/tinymvcc/kv/types"
	"github.com/pingcap-incubator/tinymvcc/log"
	"github.com/pingcap/errors"
	"go.uber.org/zap"
)

// ChainReader gives access to version chains: the head link of a row and the undo logs links point at.
type ChainReader interface {
	// GetUndoLink returns the first link of rid's chain, or the invalid link if the row has no history.
	GetUndoLink(rid storage.RID) UndoLink
	// GetUndoLogOptional returns the log link points at. It returns false if the owning transaction is unknown or has
	// no such log.
	GetUndoLogOptional(link UndoLink) (UndoLog, bool)
}

// Decision tells a reader how to obtain its version of a row from the physical row's meta.
type Decision int

const (
	// DecisionOwnWrite: the reader wrote the row and sees its own write.
	DecisionOwnWrite Decision = iota
	// DecisionDirect: the physical row was committed at or before the snapshot.
	DecisionDirect
	// DecisionReconstruct: the physical row is newer than the snapshot, the reader has to walk the version chain.
	DecisionReconstruct
)

func (d Decision) String() string {
	switch d {
	case DecisionOwnWrite:
		return "own-write"
	case DecisionDirect:
		return "direct"
	case DecisionReconstruct:
		return "reconstruct"
	}
	return "unknown"
}

// Resolve classifies a physical row for txn.
func Resolve(txn *Txn, meta storage.RowMeta) Decision {
	if meta.Ts == txn.TempTs() {
		return DecisionOwnWrite
	}
	// Temporary markers of other transactions are above every read timestamp.
	if meta.Ts <= txn.ReadTs() {
		return DecisionDirect
	}
	return DecisionReconstruct
}

// CollectUndoLogs walks rid's chain from the head and returns the logs needed to rebuild the version visible at
// readTs, newest first. The walk stops at the first log whose Ts is at or below readTs, which is included. ok is false
// when the chain ends first, meaning the row did not exist at readTs.
func CollectUndoLogs(chains ChainReader, rid storage.RID, readTs uint64) (logs []UndoLog, ok bool, err error) {
	link := chains.GetUndoLink(rid)
	for link.IsValid() {
		ul, found := chains.GetUndoLogOptional(link)
		if !found {
			log.Error("version chain points at a missing undo log", log.RID(rid), zap.Stringer("undo-link", link))
			return nil, false, errors.Annotatef(ErrInvalidUndoLink, "rid %s, link %s", rid, link)
		}
		logs = append(logs, ul)
		if ul.Ts <= readTs {
			return logs, true, nil
		}
		link = ul.Prev
	}
	return nil, false, nil
}

// ResolveRow returns the version of a physical row that txn sees. ok is false when the row is not visible.
func ResolveRow(txn *Txn, chains ChainReader, schema *types.Schema, rid storage.RID, meta storage.RowMeta,
	row types.Row) (types.Row, bool, error) {
	switch Resolve(txn, meta) {
	case DecisionOwnWrite, DecisionDirect:
		if meta.Deleted {
			return nil, false, nil
		}
		return row, true, nil
	}

	logs, ok, err := CollectUndoLogs(chains, rid, txn.ReadTs())
	if err != nil {
		return nil, false, err
	}
	metrics.ChainWalkHistogram.Observe(float64(len(logs)))
	if !ok {
		return nil, false, nil
	}
	metrics.ReconstructCounter.Inc()
	return ReconstructRow(schema, meta, row, logs)
}
