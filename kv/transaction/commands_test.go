package transaction

// This file contains utility code for testing commands.

import (
	"bytes"
	"testing"

	"github.com/pingcap-incubator/tinymvcc/kv/storage"
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/commands"
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/manager"
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/mvcc"
	"github.com/pingcap-incubator/tinymvcc/kv/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testBuilder is a helper type for running command tests. Transactions are referred to by name.
type testBuilder struct {
	t     *testing.T
	mgr   *manager.Manager
	table *manager.Table
	txns  map[string]*mvcc.Txn
}

// The test table has three integer columns, the first one is a key.
func newBuilder(t *testing.T) *testBuilder {
	mgr := manager.NewManager(manager.Options{PageSlots: 4})
	schema := types.NewSchema(
		types.Column{Name: "k", Kind: types.KindInt},
		types.Column{Name: "a", Kind: types.KindInt},
		types.Column{Name: "b", Kind: types.KindInt},
	)
	table := mgr.CreateTable("t", schema)
	table.Latches().Validation = func(rid storage.RID) {
		meta, err := table.Heap().GetRowMeta(rid)
		assert.Nil(t, err)
		assert.True(t, mvcc.IsTempTs(meta.Ts) || meta.Ts <= mgr.LastCommitTs(), "latched row %s has ts %d", rid, meta.Ts)
	}
	return &testBuilder{t: t, mgr: mgr, table: table, txns: make(map[string]*mvcc.Txn)}
}

func row(k int64, vals ...interface{}) types.Row {
	r := types.Row{types.NewInt(k)}
	for _, v := range vals {
		switch v := v.(type) {
		case nil:
			r = append(r, types.NewNull())
		case int:
			r = append(r, types.NewInt(int64(v)))
		}
	}
	return r
}

func key(k int64) mvcc.Predicate {
	return func(r types.Row) bool { return r[0].Int() == k }
}

func setA(a int) commands.SetFunc {
	return func(r types.Row) types.Row {
		r[1] = types.NewInt(int64(a))
		return r
	}
}

func setB(b int) commands.SetFunc {
	return func(r types.Row) types.Row {
		r[2] = types.NewInt(int64(b))
		return r
	}
}

func (builder *testBuilder) begin(name string) *mvcc.Txn {
	txn, err := builder.mgr.Begin()
	require.Nil(builder.t, err)
	builder.txns[name] = txn
	return txn
}

func (builder *testBuilder) run(name string, cmd commands.Command) (interface{}, error) {
	txn, ok := builder.txns[name]
	require.True(builder.t, ok, "no transaction %s", name)
	return commands.RunCommand(cmd, txn)
}

func (builder *testBuilder) write(name string, cmd commands.Command) int {
	resp, err := builder.run(name, cmd)
	require.Nil(builder.t, err)
	return resp.(*commands.WriteResult).Count
}

// init inserts rows in a committed transaction of their own.
func (builder *testBuilder) init(rows ...types.Row) {
	cmd := commands.NewInsert(builder.table, rows...)
	_, err := commands.RunInTxn(builder.mgr, &cmd)
	require.Nil(builder.t, err)
}

func (builder *testBuilder) insert(name string, rows ...types.Row) {
	cmd := commands.NewInsert(builder.table, rows...)
	assert.Equal(builder.t, len(rows), builder.write(name, &cmd))
}

func (builder *testBuilder) update(name string, filter mvcc.Predicate, set commands.SetFunc) error {
	cmd := commands.NewUpdate(builder.table, filter, set)
	_, err := builder.run(name, &cmd)
	return err
}

func (builder *testBuilder) delete(name string, filter mvcc.Predicate) error {
	cmd := commands.NewDelete(builder.table, filter)
	_, err := builder.run(name, &cmd)
	return err
}

func (builder *testBuilder) scan(name string) []types.Row {
	cmd := commands.NewScan(builder.table, nil, 0)
	resp, err := builder.run(name, &cmd)
	require.Nil(builder.t, err)
	var rows []types.Row
	for _, r := range resp.(*commands.ScanResult).Rows {
		rows = append(rows, r.Row)
	}
	return rows
}

// assertScan asserts that txn name sees exactly rows, in RID order.
func (builder *testBuilder) assertScan(name string, rows ...types.Row) {
	got := builder.scan(name)
	if !assert.Equal(builder.t, len(rows), len(got), "txn %s sees %v", name, got) {
		return
	}
	for i := range rows {
		assert.True(builder.t, rows[i].Equal(got[i]), "txn %s row %d: %s != %s", name, i, got[i], rows[i])
	}
}

func (builder *testBuilder) commit(name string) {
	require.Nil(builder.t, builder.mgr.Commit(builder.txns[name]))
}

func (builder *testBuilder) abort(name string) {
	require.Nil(builder.t, builder.mgr.Abort(builder.txns[name]))
}

func (builder *testBuilder) dump() string {
	var buf bytes.Buffer
	require.Nil(builder.t, builder.mgr.DumpVersionChains(&buf, builder.table))
	return buf.String()
}
