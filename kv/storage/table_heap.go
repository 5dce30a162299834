package storage

import (
	"sync"

	"github.com/pingcap-incubator/tinymvcc/kv/types"
	"github.com/pingcap-incubator/tinymvcc/rowcodec"
	"github.com/pingcap/errors"
)

// DefaultPageSlots is the number of slots per page when none is configured.
const DefaultPageSlots = 64

type slot struct {
	meta RowMeta
	data []byte
}

type tablePage struct {
	// latch guards slots. Readers hold it shared so that meta and data are read together.
	latch sync.RWMutex
	slots []slot
}

// TableHeap is an in-memory row store. Rows are appended to fixed-capacity pages and never move, so a RID stays
// valid for the lifetime of the heap. Row payloads are kept in the rowcodec encoding.
type TableHeap struct {
	schema    *types.Schema
	pageSlots int

	// latch guards pages. A page is only appended, never removed.
	latch sync.RWMutex
	pages []*tablePage
}

var _ RowStore = &TableHeap{}

// NewTableHeap creates an empty heap for rows of schema. pageSlots <= 0 selects DefaultPageSlots.
func NewTableHeap(schema *types.Schema, pageSlots int) *TableHeap {
	if pageSlots <= 0 {
		pageSlots = DefaultPageSlots
	}
	return &TableHeap{
		schema:    schema,
		pageSlots: pageSlots,
	}
}

func (h *TableHeap) Schema() *types.Schema {
	return h.schema
}

// InsertRow appends a row to the last page, allocating a new page when it is full.
func (h *TableHeap) InsertRow(meta RowMeta, row types.Row) (RID, error) {
	if err := h.schema.Check(row); err != nil {
		return RID{}, errors.Trace(err)
	}
	data := rowcodec.Encode(nil, row)

	h.latch.Lock()
	defer h.latch.Unlock()
	if len(h.pages) == 0 || h.pages[len(h.pages)-1].full(h.pageSlots) {
		h.pages = append(h.pages, &tablePage{slots: make([]slot, 0, h.pageSlots)})
	}
	pageID := len(h.pages) - 1
	page := h.pages[pageID]
	page.latch.Lock()
	page.slots = append(page.slots, slot{meta: meta, data: data})
	slotID := len(page.slots) - 1
	page.latch.Unlock()
	return RID{PageID: uint32(pageID), Slot: uint32(slotID)}, nil
}

func (p *tablePage) full(capacity int) bool {
	p.latch.RLock()
	defer p.latch.RUnlock()
	return len(p.slots) >= capacity
}

func (h *TableHeap) page(rid RID) (*tablePage, error) {
	h.latch.RLock()
	defer h.latch.RUnlock()
	if int(rid.PageID) >= len(h.pages) {
		return nil, errors.Annotatef(ErrInvalidRID, "rid %s", rid)
	}
	return h.pages[rid.PageID], nil
}

// GetRow returns the meta and the decoded row stored at rid.
func (h *TableHeap) GetRow(rid RID) (RowMeta, types.Row, error) {
	page, err := h.page(rid)
	if err != nil {
		return RowMeta{}, nil, err
	}
	page.latch.RLock()
	if int(rid.Slot) >= len(page.slots) {
		page.latch.RUnlock()
		return RowMeta{}, nil, errors.Annotatef(ErrInvalidRID, "rid %s", rid)
	}
	s := page.slots[rid.Slot]
	page.latch.RUnlock()

	row, err := rowcodec.Decode(h.schema, s.data)
	if err != nil {
		return RowMeta{}, nil, errors.Annotatef(err, "rid %s", rid)
	}
	return s.meta, row, nil
}

func (h *TableHeap) GetRowMeta(rid RID) (RowMeta, error) {
	page, err := h.page(rid)
	if err != nil {
		return RowMeta{}, err
	}
	page.latch.RLock()
	defer page.latch.RUnlock()
	if int(rid.Slot) >= len(page.slots) {
		return RowMeta{}, errors.Annotatef(ErrInvalidRID, "rid %s", rid)
	}
	return page.slots[rid.Slot].meta, nil
}

func (h *TableHeap) UpdateRowMeta(meta RowMeta, rid RID) error {
	page, err := h.page(rid)
	if err != nil {
		return err
	}
	page.latch.Lock()
	defer page.latch.Unlock()
	if int(rid.Slot) >= len(page.slots) {
		return errors.Annotatef(ErrInvalidRID, "rid %s", rid)
	}
	page.slots[rid.Slot].meta = meta
	return nil
}

func (h *TableHeap) UpdateRowInPlace(meta RowMeta, row types.Row, rid RID, check CheckFunc) error {
	if err := h.schema.Check(row); err != nil {
		return errors.Trace(err)
	}
	data := rowcodec.Encode(nil, row)

	page, err := h.page(rid)
	if err != nil {
		return err
	}
	page.latch.Lock()
	defer page.latch.Unlock()
	if int(rid.Slot) >= len(page.slots) {
		return errors.Annotatef(ErrInvalidRID, "rid %s", rid)
	}
	if check != nil {
		cur := page.slots[rid.Slot]
		curRow, err := rowcodec.Decode(h.schema, cur.data)
		if err != nil {
			return errors.Annotatef(err, "rid %s", rid)
		}
		if !check(cur.meta, curRow) {
			return errors.Annotatef(ErrSlotChanged, "rid %s", rid)
		}
	}
	page.slots[rid.Slot] = slot{meta: meta, data: data}
	return nil
}

// NumRows returns the number of slots allocated so far, including deleted rows.
func (h *TableHeap) NumRows() int {
	h.latch.RLock()
	defer h.latch.RUnlock()
	if len(h.pages) == 0 {
		return 0
	}
	last := h.pages[len(h.pages)-1]
	last.latch.RLock()
	defer last.latch.RUnlock()
	return (len(h.pages)-1)*h.pageSlots + len(last.slots)
}

// Iterator returns an iterator over every slot that exists when it is created. Rows inserted afterwards are not
// visited.
func (h *TableHeap) Iterator() *TableIterator {
	n := h.NumRows()
	it := &TableIterator{heap: h, stop: n}
	return it
}

// TableIterator walks the slots of a TableHeap in RID order.
type TableIterator struct {
	heap *TableHeap
	pos  int
	stop int
}

func (it *TableIterator) Valid() bool {
	return it.pos < it.stop
}

func (it *TableIterator) Next() {
	if it.pos < it.stop {
		it.pos++
	}
}

// RID returns the RID of the current slot.
func (it *TableIterator) RID() RID {
	return RID{PageID: uint32(it.pos / it.heap.pageSlots), Slot: uint32(it.pos % it.heap.pageSlots)}
}

// Row reads the current slot.
func (it *TableIterator) Row() (RowMeta, types.Row, error) {
	return it.heap.GetRow(it.RID())
}
