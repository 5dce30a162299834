package latches

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash"
	"github.com/pingcap-incubator/tinymvcc/kv/storage"
)

// Latching provides the per-row exclusivity needed while a writer checks a row's version link for conflicts and
// publishes a new undo log. It should not be confused with the reservation flag on a version link: a latch is held
// only for the few steps of the check-and-publish, the reservation is held until the transaction ends.
//
// A latch is a per-row lock. Latching is implemented with maps from RID to a Go WaitGroup. Threads who find a row
// latched wait on its WaitGroup and then retry. Rows are spread over shards by the xxhash of their RID, each shard has
// its own mutex, so writers of unrelated rows rarely contend on the same guard.

// DefaultShards is used when NewLatches is given a non-positive shard count.
const DefaultShards = 64

type shard struct {
	// Mutex to guard latchMap. A thread must hold this mutex while it makes any change to latchMap.
	guard    sync.Mutex
	latchMap map[storage.RID]*sync.WaitGroup
}

type Latches struct {
	shards []*shard
	// An optional validation function, only used for testing. It is called with every RID right after it has
	// been latched.
	Validation func(rid storage.RID)
}

// NewLatches creates a new Latches object for managing row latches. There should only be one such object per table,
// shared between all threads.
func NewLatches(shards int) *Latches {
	if shards <= 0 {
		shards = DefaultShards
	}
	l := &Latches{shards: make([]*shard, shards)}
	for i := range l.shards {
		l.shards[i] = &shard{latchMap: make(map[storage.RID]*sync.WaitGroup)}
	}
	return l
}

func (l *Latches) shardOf(rid storage.RID) *shard {
	var buf [8]byte
	binary.BigEndian.PutUint32(buf[:4], rid.PageID)
	binary.BigEndian.PutUint32(buf[4:], rid.Slot)
	return l.shards[xxhash.Sum64(buf[:])%uint64(len(l.shards))]
}

// AcquireLatch tries to latch rid. If this succeeds, nil is returned. If the row is already latched, the WaitGroup
// of the current holder is returned so the thread can wait until it is released.
func (l *Latches) AcquireLatch(rid storage.RID) *sync.WaitGroup {
	s := l.shardOf(rid)
	s.guard.Lock()
	defer s.guard.Unlock()

	if wg, ok := s.latchMap[rid]; ok {
		return wg
	}
	wg := new(sync.WaitGroup)
	wg.Add(1)
	s.latchMap[rid] = wg
	return nil
}

// ReleaseLatch releases the latch on rid and wakes up any threads blocked on it. The latch must be held.
func (l *Latches) ReleaseLatch(rid storage.RID) {
	s := l.shardOf(rid)
	s.guard.Lock()
	defer s.guard.Unlock()

	wg, ok := s.latchMap[rid]
	if !ok {
		panic("release of a row latch that is not held: " + rid.String())
	}
	delete(s.latchMap, rid)
	wg.Done()
}

// WaitForLatch latches rid, waiting for the current holder to release it if necessary. It may block for as long as
// the holder keeps the latch, which is bounded by a single check-and-publish step.
func (l *Latches) WaitForLatch(rid storage.RID) {
	for {
		wg := l.AcquireLatch(rid)
		if wg == nil {
			l.validate(rid)
			return
		}
		wg.Wait()
	}
}

func (l *Latches) validate(rid storage.RID) {
	if l.Validation != nil {
		l.Validation(rid)
	}
}
