package commands

import (
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/manager"
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/mvcc"
	"github.com/pingcap-incubator/tinymvcc/kv/types"
	"github.com/pingcap/errors"
)

// Insert adds rows to a table.
type Insert struct {
	ReadWrite
	CommandBase
	rows []types.Row
}

func NewInsert(table *manager.Table, rows ...types.Row) Insert {
	return Insert{
		CommandBase: CommandBase{table: table},
		rows:        rows,
	}
}

func (ins *Insert) Execute(txn *mvcc.Txn) (interface{}, error) {
	resp := new(WriteResult)
	for _, row := range ins.rows {
		if _, err := mvcc.InsertRow(txn, ins.table, row); err != nil {
			return nil, err
		}
		resp.Count++
	}
	return resp, nil
}

// SetFunc computes the new value of a row from its current value.
type SetFunc func(row types.Row) types.Row

// Update rewrites every visible row that passes a filter.
//
// All target rows are collected before the first write, so the filter sees every row as it was before the statement.
type Update struct {
	ReadWrite
	CommandBase
	filter mvcc.Predicate
	set    SetFunc
}

func NewUpdate(table *manager.Table, filter mvcc.Predicate, set SetFunc) Update {
	return Update{
		CommandBase: CommandBase{table: table},
		filter:      filter,
		set:         set,
	}
}

func (u *Update) Execute(txn *mvcc.Txn) (interface{}, error) {
	targets, err := scanRows(txn, u.table, u.filter, 0)
	if err != nil {
		return nil, err
	}
	resp := new(WriteResult)
	for _, target := range targets {
		next := u.set(target.Row.Clone())
		if err := mvcc.UpdateRow(txn, u.table, target.RID, target.Meta, next); err != nil {
			return nil, errors.Trace(err)
		}
		resp.Count++
	}
	return resp, nil
}

// Delete removes every visible row that passes a filter.
type Delete struct {
	ReadWrite
	CommandBase
	filter mvcc.Predicate
}

func NewDelete(table *manager.Table, filter mvcc.Predicate) Delete {
	return Delete{
		CommandBase: CommandBase{table: table},
		filter:      filter,
	}
}

func (d *Delete) Execute(txn *mvcc.Txn) (interface{}, error) {
	targets, err := scanRows(txn, d.table, d.filter, 0)
	if err != nil {
		return nil, err
	}
	resp := new(WriteResult)
	for _, target := range targets {
		if err := mvcc.DeleteRow(txn, d.table, target.RID, target.Meta); err != nil {
			return nil, errors.Trace(err)
		}
		resp.Count++
	}
	return resp, nil
}
