// Package watermark tracks the oldest snapshot any running transaction still reads from.
//
// Every transaction registers its read timestamp when it begins and removes it when it commits or aborts. Several
// transactions may share a read timestamp, so each active timestamp carries a reference count. The watermark is the
// smallest active read timestamp, or the last commit timestamp when no transaction is running. Undo logs older than
// the newest log at or below the watermark can no longer be reached by any snapshot.
package watermark

import (
	"sync"

	"github.com/google/btree"
	"github.com/pingcap/errors"
)

var (
	// ErrStaleReadTs is returned when a transaction tries to register a snapshot older than the published watermark.
	ErrStaleReadTs = errors.New("read ts is below the watermark")
	// ErrUnknownReadTs is returned when removing a read timestamp no transaction registered.
	ErrUnknownReadTs = errors.New("read ts is not registered")
)

const btreeDegree = 8

type readTsItem struct {
	ts   uint64
	refs int
}

func (i *readTsItem) Less(than btree.Item) bool {
	return i.ts < than.(*readTsItem).ts
}

// Watermark is safe for concurrent use. Mutations take the latch exclusively, GetWatermark takes it shared.
type Watermark struct {
	latch        sync.RWMutex
	commitTs     uint64
	watermark    uint64
	currentReads *btree.BTree
}

// New creates a tracker whose last known commit timestamp is commitTs.
func New(commitTs uint64) *Watermark {
	return &Watermark{
		commitTs:     commitTs,
		watermark:    commitTs,
		currentReads: btree.New(btreeDegree),
	}
}

// AddTxn registers a snapshot at readTs.
func (w *Watermark) AddTxn(readTs uint64) error {
	w.latch.Lock()
	defer w.latch.Unlock()

	if readTs < w.published() {
		return errors.Annotatef(ErrStaleReadTs, "read ts %d, watermark %d", readTs, w.published())
	}
	if item := w.currentReads.Get(&readTsItem{ts: readTs}); item != nil {
		item.(*readTsItem).refs++
	} else {
		if w.currentReads.Len() == 0 {
			w.watermark = readTs
		}
		w.currentReads.ReplaceOrInsert(&readTsItem{ts: readTs, refs: 1})
	}
	if readTs < w.watermark {
		w.watermark = readTs
	}
	return nil
}

// RemoveTxn drops one reference to readTs and republishes the watermark.
func (w *Watermark) RemoveTxn(readTs uint64) error {
	w.latch.Lock()
	defer w.latch.Unlock()

	item := w.currentReads.Get(&readTsItem{ts: readTs})
	if item == nil {
		return errors.Annotatef(ErrUnknownReadTs, "read ts %d", readTs)
	}
	it := item.(*readTsItem)
	it.refs--
	if it.refs == 0 {
		w.currentReads.Delete(it)
	}
	if w.currentReads.Len() == 0 {
		w.watermark = w.commitTs
	} else {
		w.watermark = w.currentReads.Min().(*readTsItem).ts
	}
	return nil
}

// UpdateCommitTs records the latest commit timestamp. It becomes the watermark while no snapshot is active.
func (w *Watermark) UpdateCommitTs(commitTs uint64) {
	w.latch.Lock()
	defer w.latch.Unlock()
	w.commitTs = commitTs
	if w.currentReads.Len() == 0 {
		w.watermark = commitTs
	}
}

// GetWatermark returns the published watermark.
func (w *Watermark) GetWatermark() uint64 {
	w.latch.RLock()
	defer w.latch.RUnlock()
	return w.published()
}

func (w *Watermark) published() uint64 {
	if w.currentReads.Len() == 0 {
		return w.commitTs
	}
	return w.watermark
}

// ActiveReads returns the number of registered snapshots, counting shared read timestamps once per transaction.
func (w *Watermark) ActiveReads() int {
	w.latch.RLock()
	defer w.latch.RUnlock()
	n := 0
	w.currentReads.Ascend(func(i btree.Item) bool {
		n += i.(*readTsItem).refs
		return true
	})
	return n
}
