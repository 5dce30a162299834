package storage

import (
	"fmt"

	"github.com/pingcap-incubator/tinymvcc/kv/types"
	"github.com/pingcap/errors"
)

var (
	// ErrInvalidRID is returned when a RID does not address an existing slot.
	ErrInvalidRID = errors.New("invalid rid")
	// ErrSlotChanged is returned by UpdateRowInPlace when the check function rejects the slot contents.
	ErrSlotChanged = errors.New("slot changed since it was read")
)

// RID identifies a row slot. It is stable for the lifetime of the row.
type RID struct {
	PageID uint32
	Slot   uint32
}

func (r RID) String() string {
	return fmt.Sprintf("%d/%d", r.PageID, r.Slot)
}

// Less orders RIDs by page, then slot.
func (r RID) Less(other RID) bool {
	if r.PageID != other.PageID {
		return r.PageID < other.PageID
	}
	return r.Slot < other.Slot
}

// RowMeta is the header stored next to the row bytes of every slot. Ts is either a commit timestamp or the
// temporary marker of the transaction holding an uncommitted write on the row.
type RowMeta struct {
	Ts      uint64
	Deleted bool
}

// CheckFunc inspects the current contents of a slot and reports whether an in-place update may go ahead.
type CheckFunc func(meta RowMeta, row types.Row) bool

// RowStore holds fixed-schema rows addressed by RID. Every call observes a consistent (meta, row) pair.
type RowStore interface {
	Schema() *types.Schema
	InsertRow(meta RowMeta, row types.Row) (RID, error)
	GetRow(rid RID) (RowMeta, types.Row, error)
	GetRowMeta(rid RID) (RowMeta, error)
	UpdateRowMeta(meta RowMeta, rid RID) error
	// UpdateRowInPlace overwrites the slot. If check is not nil and returns false, the slot is left untouched
	// and ErrSlotChanged is returned.
	UpdateRowInPlace(meta RowMeta, row types.Row, rid RID, check CheckFunc) error
}
