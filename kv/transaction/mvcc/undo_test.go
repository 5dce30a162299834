package mvcc

import (
	"testing"

	"github.com/pingcap-incubator/tinymvcc/kv/storage"
	"github.com/pingcap-incubator/tinymvcc/kv/types"
	"github.com/pingcap/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoColumnSchema() *types.Schema {
	return types.NewSchema(
		types.Column{Name: "a", Kind: types.KindInt},
		types.Column{Name: "b", Kind: types.KindVarchar},
	)
}

func ir(a int64, b string) types.Row {
	return types.Row{types.NewInt(a), types.NewVarchar(b)}
}

func TestColumnMask(t *testing.T) {
	m := NewColumnMask(70)
	m.Set(0)
	m.Set(65)
	assert.Equal(t, 70, m.Len())
	assert.Equal(t, 2, m.Count())
	assert.True(t, m.IsSet(65))
	assert.False(t, m.IsSet(64))
	assert.False(t, m.IsSet(70))
	assert.Equal(t, []int{0, 65}, m.Indexes())

	u := MaskOf(true, false, false).Union(MaskOf(false, false, true))
	assert.Equal(t, "[t,f,t]", u.String())
}

func TestReconstructPartialLog(t *testing.T) {
	schema := twoColumnSchema()
	base := storage.RowMeta{Ts: 5}
	older := UndoLog{ModifiedFields: MaskOf(true, false), Row: types.Row{types.NewInt(41)}, Ts: 3}

	row, ok, err := ReconstructRow(schema, base, ir(42, "a"), []UndoLog{older})
	require.Nil(t, err)
	require.True(t, ok)
	assert.True(t, row.Equal(ir(41, "a")), row.String())

	// A deletion in front of the partial log.
	deletion := UndoLog{Deleted: true, ModifiedFields: NewColumnMask(2), Ts: 4}
	_, ok, err = ReconstructRow(schema, base, ir(42, "a"), []UndoLog{deletion})
	require.Nil(t, err)
	assert.False(t, ok)

	// The deletion applied first, then the older partial log brings the row back.
	row, ok, err = ReconstructRow(schema, base, ir(42, "a"), []UndoLog{deletion, older})
	require.Nil(t, err)
	require.True(t, ok)
	assert.True(t, row.Equal(ir(41, "a")))
}

func TestReconstructLeavesBaseUntouched(t *testing.T) {
	schema := twoColumnSchema()
	base := ir(1, "x")
	ul := UndoLog{ModifiedFields: MaskOf(true, true), Row: ir(0, "y"), Ts: 1}
	_, ok, err := ReconstructRow(schema, storage.RowMeta{Ts: 2}, base, []UndoLog{ul})
	require.Nil(t, err)
	require.True(t, ok)
	assert.True(t, base.Equal(ir(1, "x")))
}

func TestReconstructDeletedBase(t *testing.T) {
	schema := twoColumnSchema()
	deleted := storage.RowMeta{Ts: 7, Deleted: true}

	_, ok, err := ReconstructRow(schema, deleted, types.EmptyRow(schema), nil)
	require.Nil(t, err)
	assert.False(t, ok)

	full := UndoLog{ModifiedFields: MaskOf(true, true), Row: ir(3, "c"), Ts: 6}
	row, ok, err := ReconstructRow(schema, deleted, types.EmptyRow(schema), []UndoLog{full})
	require.Nil(t, err)
	require.True(t, ok)
	assert.True(t, row.Equal(ir(3, "c")))

	// A live base row with no logs is returned as is.
	row, ok, err = ReconstructRow(schema, storage.RowMeta{Ts: 7}, ir(9, "z"), nil)
	require.Nil(t, err)
	require.True(t, ok)
	assert.True(t, row.Equal(ir(9, "z")))
}

func TestReconstructMalformed(t *testing.T) {
	schema := twoColumnSchema()
	base := storage.RowMeta{Ts: 5}

	wrongLen := UndoLog{ModifiedFields: MaskOf(true), Row: types.Row{types.NewInt(1)}}
	_, _, err := ReconstructRow(schema, base, ir(1, "a"), []UndoLog{wrongLen})
	assert.Equal(t, ErrMalformedDelta, errors.Cause(err))

	wrongCount := UndoLog{ModifiedFields: MaskOf(true, true), Row: types.Row{types.NewInt(1)}}
	_, _, err = ReconstructRow(schema, base, ir(1, "a"), []UndoLog{wrongCount})
	assert.Equal(t, ErrMalformedDelta, errors.Cause(err))

	wrongKind := UndoLog{ModifiedFields: MaskOf(false, true), Row: types.Row{types.NewInt(1)}}
	_, _, err = ReconstructRow(schema, base, ir(1, "a"), []UndoLog{wrongKind})
	assert.Equal(t, ErrMalformedDelta, errors.Cause(err))
}

func TestGenerateDiffLog(t *testing.T) {
	schema := twoColumnSchema()

	diff := GenerateDiffLog(schema, storage.RowMeta{Ts: 1}, ir(1, "a"), ir(2, "a"), false)
	assert.False(t, diff.Deleted)
	assert.Equal(t, "[t,f]", diff.ModifiedFields.String())
	assert.True(t, diff.Row.Equal(types.Row{types.NewInt(1)}))

	// Deleting saves every column.
	diff = GenerateDiffLog(schema, storage.RowMeta{Ts: 1}, ir(1, "a"), types.EmptyRow(schema), true)
	assert.Equal(t, "[t,t]", diff.ModifiedFields.String())
	assert.True(t, diff.Row.Equal(ir(1, "a")))

	// The row did not exist before.
	diff = GenerateDiffLog(schema, storage.RowMeta{Ts: 1, Deleted: true}, types.EmptyRow(schema), ir(5, "e"), false)
	assert.True(t, diff.Deleted)
	assert.Equal(t, 0, diff.ModifiedFields.Count())
	assert.Equal(t, 2, diff.ModifiedFields.Len())

	// Writing the same values saves nothing.
	diff = GenerateDiffLog(schema, storage.RowMeta{Ts: 1}, ir(1, "a"), ir(1, "a"), false)
	assert.Equal(t, 0, diff.ModifiedFields.Count())
	assert.Len(t, diff.Row, 0)
}

func TestMergeUndoLog(t *testing.T) {
	schema := twoColumnSchema()
	prev := UndoLink{PrevTxn: 3, PrevLogIdx: 1}
	// The transaction first changed a from 1 to 2.
	existing := UndoLog{ModifiedFields: MaskOf(true, false), Row: types.Row{types.NewInt(1)}, Ts: 4, Prev: prev}
	// Then it changed a again and b for the first time.
	diff := GenerateDiffLog(schema, storage.RowMeta{}, ir(2, "x"), ir(3, "y"), false)

	merged, err := MergeUndoLog(schema, existing, diff)
	require.Nil(t, err)
	assert.Equal(t, "[t,t]", merged.ModifiedFields.String())
	assert.True(t, merged.Row.Equal(ir(1, "x")), merged.Row.String())
	assert.Equal(t, uint64(4), merged.Ts)
	assert.Equal(t, prev, merged.Prev)
	assert.False(t, merged.Deleted)

	// Applying the merged log to the final row gives back the version before the transaction.
	row, ok, err := ReconstructRow(schema, storage.RowMeta{}, ir(3, "y"), []UndoLog{merged})
	require.Nil(t, err)
	require.True(t, ok)
	assert.True(t, row.Equal(ir(1, "x")))

	// The existing log is not modified.
	assert.Equal(t, "[t,f]", existing.ModifiedFields.String())
	assert.Len(t, existing.Row, 1)
}

func TestMergeKeepsDeletion(t *testing.T) {
	schema := twoColumnSchema()
	existing := UndoLog{Deleted: true, ModifiedFields: NewColumnMask(2), Ts: 2}
	diff := GenerateDiffLog(schema, storage.RowMeta{}, ir(1, "a"), ir(2, "b"), false)
	merged, err := MergeUndoLog(schema, existing, diff)
	require.Nil(t, err)
	assert.True(t, merged.Deleted)
	assert.Equal(t, uint64(2), merged.Ts)

	_, err = MergeUndoLog(schema, existing, UndoLog{ModifiedFields: NewColumnMask(3)})
	assert.Equal(t, ErrMalformedDelta, errors.Cause(err))
}

func TestFormatUndoLog(t *testing.T) {
	schema := types.NewSchema(
		types.Column{Name: "a", Kind: types.KindInt},
		types.Column{Name: "b", Kind: types.KindInt},
		types.Column{Name: "c", Kind: types.KindInt},
	)
	ul := UndoLog{ModifiedFields: MaskOf(true, false, false), Row: types.Row{types.NewInt(2)}, Ts: 1}
	assert.Equal(t, "(2, _, _) ts=1", ul.Format(schema))
	ul = UndoLog{ModifiedFields: MaskOf(true, true, true), Row: types.Row{types.NewInt(4), types.NewNull(), types.NewNull()}, Ts: 1}
	assert.Equal(t, "(4, <NULL>, <NULL>) ts=1", ul.Format(schema))
	ul = UndoLog{Deleted: true, ModifiedFields: NewColumnMask(3), Ts: 2}
	assert.Equal(t, "<del> ts=2", ul.Format(schema))

	assert.Equal(t, "txn8", FormatTs(TxnStartID+8))
	assert.Equal(t, "3", FormatTs(3))
}
