package transaction

import (
	"testing"

	"github.com/pingcap-incubator/tinymvcc/kv/transaction/commands"
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/mvcc"
	"github.com/pingcap-incubator/tinymvcc/kv/types"
	"github.com/pingcap/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSnapshotRead: a reader keeps its snapshot while another transaction updates, deletes and inserts.
func TestSnapshotRead(t *testing.T) {
	builder := newBuilder(t)
	builder.init(row(1, 10, 100), row(2, 20, 200))

	builder.begin("reader")
	builder.begin("writer")
	require.Nil(t, builder.update("writer", key(1), setA(11)))
	require.Nil(t, builder.delete("writer", key(2)))
	builder.insert("writer", row(3, 30, 300))

	builder.assertScan("writer", row(1, 11, 100), row(3, 30, 300))
	builder.assertScan("reader", row(1, 10, 100), row(2, 20, 200))
	builder.commit("writer")
	builder.assertScan("reader", row(1, 10, 100), row(2, 20, 200))

	builder.begin("after")
	builder.assertScan("after", row(1, 11, 100), row(3, 30, 300))
	builder.commit("reader")
}

// TestCoalescedWrites: several writes of one transaction to a row keep a single undo log holding the pre-transaction
// values.
func TestCoalescedWrites(t *testing.T) {
	builder := newBuilder(t)
	builder.init(row(1, 10, 100))

	builder.begin("old")
	txn := builder.begin("writer")
	require.Nil(t, builder.update("writer", key(1), setA(11)))
	require.Nil(t, builder.update("writer", key(1), setB(101)))
	require.Nil(t, builder.update("writer", key(1), setA(12)))
	assert.Equal(t, 1, txn.UndoLogCount())

	expected := "RID=0/0 ts=txn3 tuple=(1, 12, 101)\n" +
		"  txn3@0 (_, 10, 100) ts=1\n"
	assert.Equal(t, expected, builder.dump())

	builder.assertScan("old", row(1, 10, 100))
	builder.assertScan("writer", row(1, 12, 101))
	builder.commit("writer")
	builder.assertScan("old", row(1, 10, 100))
}

// TestWriteSkewIsAllowed: snapshot isolation only stops writers of the same row.
func TestWriteSkewIsAllowed(t *testing.T) {
	builder := newBuilder(t)
	builder.init(row(1, 1, 0), row(2, 1, 0))

	builder.begin("t1")
	builder.begin("t2")
	require.Nil(t, builder.update("t1", key(1), setA(0)))
	require.Nil(t, builder.update("t2", key(2), setA(0)))
	builder.commit("t1")
	builder.commit("t2")

	builder.begin("check")
	builder.assertScan("check", row(1, 0, 0), row(2, 0, 0))
}

// TestLostUpdateIsPrevented: the second writer of a row conflicts, whether the first one committed or not.
func TestLostUpdateIsPrevented(t *testing.T) {
	builder := newBuilder(t)
	builder.init(row(1, 0, 0))

	builder.begin("t1")
	builder.begin("t2")
	builder.begin("t3")
	require.Nil(t, builder.update("t1", key(1), setA(1)))

	err := builder.update("t2", key(1), setA(2))
	require.True(t, mvcc.IsWriteConflict(err), "%v", err)
	assert.True(t, errors.Cause(err).(*mvcc.ErrWriteConflict).InProgress)

	builder.commit("t1")
	err = builder.update("t3", key(1), setA(3))
	require.True(t, mvcc.IsWriteConflict(err), "%v", err)
	assert.False(t, errors.Cause(err).(*mvcc.ErrWriteConflict).InProgress)

	// Tainted transactions can still read but not write or commit.
	builder.assertScan("t2", row(1, 0, 0))
	err = builder.delete("t2", key(1))
	assert.Equal(t, mvcc.ErrTxnNotRunning, errors.Cause(err))
	assert.NotNil(t, builder.mgr.Commit(builder.txns["t2"]))
	builder.abort("t2")
	builder.abort("t3")

	builder.begin("check")
	builder.assertScan("check", row(1, 1, 0))
}

// TestAbortRestores: an aborted transaction leaves no trace for later readers and writers.
func TestAbortRestores(t *testing.T) {
	builder := newBuilder(t)
	builder.init(row(1, 10, 100), row(2, 20, 200))

	builder.begin("reader")
	builder.begin("writer")
	require.Nil(t, builder.update("writer", nil, setA(0)))
	require.Nil(t, builder.delete("writer", key(2)))
	builder.insert("writer", row(3, 30, 300))
	builder.abort("writer")

	builder.assertScan("reader", row(1, 10, 100), row(2, 20, 200))
	builder.begin("next")
	builder.assertScan("next", row(1, 10, 100), row(2, 20, 200))
	require.Nil(t, builder.update("next", nil, setB(0)))
	builder.commit("next")

	builder.begin("check")
	builder.assertScan("check", row(1, 10, 0), row(2, 20, 0))
}

// TestDeleteThenInsert: a deleted key can be inserted again, old snapshots still see the deleted row.
func TestDeleteThenInsert(t *testing.T) {
	builder := newBuilder(t)
	builder.init(row(1, 10, 100))

	builder.begin("old")
	builder.begin("t1")
	require.Nil(t, builder.delete("t1", key(1)))
	builder.insert("t1", row(1, 11, 111))
	builder.assertScan("t1", row(1, 11, 111))
	builder.commit("t1")

	builder.assertScan("old", row(1, 10, 100))
	builder.begin("new")
	builder.assertScan("new", row(1, 11, 111))

	expected := "RID=0/0 ts=2 <del marker> tuple=(<NULL>, <NULL>, <NULL>)\n" +
		"  txn3@0 (1, 10, 100) ts=1\n" +
		"RID=0/1 ts=2 tuple=(1, 11, 111)\n"
	assert.Equal(t, expected, builder.dump())
}

func TestScanLimitAndFilter(t *testing.T) {
	builder := newBuilder(t)
	builder.init(row(1, 1, 0), row(2, 2, 0), row(3, 3, 0), row(4, 4, 0), row(5, 5, 0))
	builder.begin("r")

	odd := func(r types.Row) bool { return r[1].Int()%2 == 1 }
	cmd := commands.NewScan(builder.table, odd, 2)
	resp, err := builder.run("r", &cmd)
	require.Nil(t, err)
	rows := resp.(*commands.ScanResult).Rows
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Row.Equal(row(1, 1, 0)))
	assert.True(t, rows[1].Row.Equal(row(3, 3, 0)))
	assert.Equal(t, uint64(1), rows[1].Meta.Ts)

	cmd = commands.NewScan(builder.table, odd, 0)
	resp, err = builder.run("r", &cmd)
	require.Nil(t, err)
	assert.Len(t, resp.(*commands.ScanResult).Rows, 3)
}
