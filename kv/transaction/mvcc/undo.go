package mvcc

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/pingcap-incubator/tinymvcc/kv/storage"
	"github.com/pingcap-incubator/tinymvcc/kv/types"
	"github.com/pingcap/errors"
)

const (
	// TxnStartID is added to a transaction id to form its temporary marker. Commit timestamps never reach it, so
	// any row timestamp at or above it belongs to a transaction that has not committed.
	TxnStartID uint64 = 1 << 62
	// InvalidTxnID is never handed out to a transaction. A link whose PrevTxn is InvalidTxnID ends the chain.
	InvalidTxnID uint64 = 0
)

// IsTempTs reports whether ts is a temporary marker rather than a commit timestamp.
func IsTempTs(ts uint64) bool {
	return ts >= TxnStartID
}

// FormatTs renders a commit timestamp as a number and a temporary marker as txn<id>.
func FormatTs(ts uint64) string {
	if IsTempTs(ts) {
		return fmt.Sprintf("txn%d", ts-TxnStartID)
	}
	return fmt.Sprintf("%d", ts)
}

// UndoLink addresses one undo log: the log at PrevLogIdx in the arena of transaction PrevTxn. The zero value is the
// invalid link.
type UndoLink struct {
	PrevTxn    uint64
	PrevLogIdx int
}

func (l UndoLink) IsValid() bool {
	return l.PrevTxn != InvalidTxnID
}

func (l UndoLink) String() string {
	if !l.IsValid() {
		return "<invalid>"
	}
	return fmt.Sprintf("txn%d@%d", l.PrevTxn, l.PrevLogIdx)
}

// VersionLink is the head of a row's version chain. InProgress is held by the one transaction that has an
// uncommitted write on the row, from its first write until it commits or aborts.
type VersionLink struct {
	Prev       UndoLink
	InProgress bool
}

// UndoLog is one node of a version chain. Applied to a newer version of the row it yields the version that was
// current at Ts. Row holds the values of the columns set in ModifiedFields, in column order.
type UndoLog struct {
	Deleted        bool
	ModifiedFields ColumnMask
	Row            types.Row
	Ts             uint64
	Prev           UndoLink
}

// ColumnMask is a fixed-size set of column indexes.
type ColumnMask struct {
	n    int
	bits []uint64
}

// NewColumnMask returns an empty mask for a schema of n columns.
func NewColumnMask(n int) ColumnMask {
	return ColumnMask{n: n, bits: make([]uint64, (n+63)/64)}
}

// MaskOf builds a mask from booleans, one per column.
func MaskOf(flags ...bool) ColumnMask {
	m := NewColumnMask(len(flags))
	for i, f := range flags {
		if f {
			m.Set(i)
		}
	}
	return m
}

func (m ColumnMask) Len() int {
	return m.n
}

func (m ColumnMask) Set(i int) {
	m.bits[i/64] |= 1 << uint(i%64)
}

func (m ColumnMask) IsSet(i int) bool {
	if i < 0 || i >= m.n {
		return false
	}
	return m.bits[i/64]&(1<<uint(i%64)) != 0
}

// Count returns the number of columns in the mask.
func (m ColumnMask) Count() int {
	c := 0
	for _, w := range m.bits {
		c += bits.OnesCount64(w)
	}
	return c
}

// Indexes returns the columns in the mask in ascending order.
func (m ColumnMask) Indexes() []int {
	idxs := make([]int, 0, m.Count())
	for i := 0; i < m.n; i++ {
		if m.IsSet(i) {
			idxs = append(idxs, i)
		}
	}
	return idxs
}

// Union returns a new mask holding the columns of both masks. Both must have the same length.
func (m ColumnMask) Union(other ColumnMask) ColumnMask {
	u := NewColumnMask(m.n)
	for i := range u.bits {
		u.bits[i] = m.bits[i] | other.bits[i]
	}
	return u
}

// String renders the mask as [t,f,...].
func (m ColumnMask) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i := 0; i < m.n; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		if m.IsSet(i) {
			b.WriteByte('t')
		} else {
			b.WriteByte('f')
		}
	}
	b.WriteByte(']')
	return b.String()
}

// checkUndoLog verifies that log can be applied to rows of schema.
func checkUndoLog(schema *types.Schema, ul *UndoLog) error {
	if ul.ModifiedFields.Len() != schema.ColumnCount() {
		return errors.Annotatef(ErrMalformedDelta, "mask has %d columns, schema has %d",
			ul.ModifiedFields.Len(), schema.ColumnCount())
	}
	if ul.Deleted {
		return nil
	}
	idxs := ul.ModifiedFields.Indexes()
	if len(ul.Row) != len(idxs) {
		return errors.Annotatef(ErrMalformedDelta, "mask sets %d columns, partial row has %d values",
			len(idxs), len(ul.Row))
	}
	if err := schema.Project(idxs).Check(ul.Row); err != nil {
		return errors.Annotate(ErrMalformedDelta, err.Error())
	}
	return nil
}

// ReconstructRow applies logs, newest first, to the physical row and returns the version the last log describes.
// ok is false when that version does not exist, either because it is a deletion or because the base row is deleted
// and no log is given.
func ReconstructRow(schema *types.Schema, baseMeta storage.RowMeta, baseRow types.Row, logs []UndoLog) (row types.Row, ok bool, err error) {
	deleted := baseMeta.Deleted
	if deleted && len(logs) == 0 {
		return nil, false, nil
	}
	row = baseRow.Clone()
	for i := range logs {
		ul := &logs[i]
		if err := checkUndoLog(schema, ul); err != nil {
			return nil, false, err
		}
		if ul.Deleted {
			deleted = true
			continue
		}
		deleted = false
		for j, col := range ul.ModifiedFields.Indexes() {
			row[col] = ul.Row[j]
		}
	}
	if deleted {
		return nil, false, nil
	}
	return row, true, nil
}

// GenerateDiffLog builds the undo log that turns a row written as (newRow, newDeleted) back into its pre-image
// (preMeta, preRow). Ts and Prev of the result are left for the caller to fill in.
//
// A deleted pre-image yields a deletion log. A deleting write saves the whole pre-image. Otherwise only the columns
// that change are saved.
func GenerateDiffLog(schema *types.Schema, preMeta storage.RowMeta, preRow types.Row, newRow types.Row, newDeleted bool) UndoLog {
	n := schema.ColumnCount()
	mask := NewColumnMask(n)
	if preMeta.Deleted {
		return UndoLog{Deleted: true, ModifiedFields: mask}
	}
	var partial types.Row
	for i := 0; i < n; i++ {
		if newDeleted || !preRow[i].Equal(newRow[i]) {
			mask.Set(i)
			partial = append(partial, preRow[i])
		}
	}
	return UndoLog{ModifiedFields: mask, Row: partial}
}

// MergeUndoLog folds a later diff of the same transaction into the undo log it already owns for the row. Columns the
// existing log saved keep their saved values, since those are the values of the version before the transaction's
// first write. Columns only the later diff touches take the later diff's values, which the transaction had not
// changed yet. Deleted, Ts and Prev always come from the existing log.
func MergeUndoLog(schema *types.Schema, existing, diff UndoLog) (UndoLog, error) {
	if err := checkUndoLog(schema, &existing); err != nil {
		return UndoLog{}, err
	}
	if err := checkUndoLog(schema, &diff); err != nil {
		return UndoLog{}, err
	}
	if existing.Deleted || diff.Deleted {
		// Either the row did not exist before this transaction, or the transaction is writing over its own deletion
		// whose log already saved every column.
		return existing, nil
	}

	mask := existing.ModifiedFields.Union(diff.ModifiedFields)
	partial := make(types.Row, 0, mask.Count())
	ei, di := 0, 0
	for i := 0; i < mask.Len(); i++ {
		inExisting, inDiff := existing.ModifiedFields.IsSet(i), diff.ModifiedFields.IsSet(i)
		switch {
		case inExisting:
			partial = append(partial, existing.Row[ei])
		case inDiff:
			partial = append(partial, diff.Row[di])
		}
		if inExisting {
			ei++
		}
		if inDiff {
			di++
		}
	}
	return UndoLog{
		ModifiedFields: mask,
		Row:            partial,
		Ts:             existing.Ts,
		Prev:           existing.Prev,
	}, nil
}

// Format renders the log against schema the way the version chain dump shows it: deletions as <del>, columns the log
// does not save as _.
func (ul *UndoLog) Format(schema *types.Schema) string {
	if ul.Deleted {
		return fmt.Sprintf("<del> ts=%s", FormatTs(ul.Ts))
	}
	var b strings.Builder
	b.WriteByte('(')
	j := 0
	for i := 0; i < schema.ColumnCount(); i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		if ul.ModifiedFields.IsSet(i) && j < len(ul.Row) {
			b.WriteString(ul.Row[j].String())
			j++
		} else {
			b.WriteByte('_')
		}
	}
	fmt.Fprintf(&b, ") ts=%s", FormatTs(ul.Ts))
	return b.String()
}
