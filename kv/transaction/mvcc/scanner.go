package mvcc

import (
	"github.com/pingcap-incubator/tinymvcc/kv/storage"
	"github.com/pingcap-incubator/tinymvcc/kv/types"
	"github.com/pingcap/errors"
)

// Predicate filters rows after visibility has been resolved.
type Predicate func(row types.Row) bool

// Scanner produces the rows of a table heap visible to a transaction, in RID order.
// Invariant: either the scanner is finished and cannot be used, or it is ready to return a row immediately.
type Scanner struct {
	iter   *storage.TableIterator
	heap   *storage.TableHeap
	chains ChainReader
	txn    *Txn
	filter Predicate
}

// NewScanner creates a scanner over the rows of heap that exist now. filter may be nil.
func NewScanner(txn *Txn, heap *storage.TableHeap, chains ChainReader, filter Predicate) *Scanner {
	return &Scanner{
		iter:   heap.Iterator(),
		heap:   heap,
		chains: chains,
		txn:    txn,
		filter: filter,
	}
}

// Next returns the next visible row that passes the filter along with its RID and the meta it was read with. When the
// scanner is exhausted the returned row is nil.
func (scan *Scanner) Next() (storage.RID, storage.RowMeta, types.Row, error) {
	if s := scan.txn.State(); s != TxnRunning && s != TxnTainted {
		return storage.RID{}, storage.RowMeta{}, nil, errors.Annotatef(ErrTxnNotRunning, "txn %d", scan.txn.ID())
	}
	for ; scan.iter.Valid(); scan.iter.Next() {
		rid := scan.iter.RID()
		meta, row, err := scan.iter.Row()
		if err != nil {
			return storage.RID{}, storage.RowMeta{}, nil, err
		}
		visible, ok, err := ResolveRow(scan.txn, scan.chains, scan.heap.Schema(), rid, meta, row)
		if err != nil {
			return storage.RID{}, storage.RowMeta{}, nil, err
		}
		if !ok {
			continue
		}
		if scan.filter != nil && !scan.filter(visible) {
			continue
		}
		scan.iter.Next()
		return rid, meta, visible, nil
	}
	return storage.RID{}, storage.RowMeta{}, nil, nil
}
