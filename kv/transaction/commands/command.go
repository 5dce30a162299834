package commands

import (
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/manager"
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/mvcc"
	"github.com/pingcap-incubator/tinymvcc/log"
	"github.com/pingcap/errors"
	"go.uber.org/zap"
)

// Command is one statement executed inside a transaction.
type Command interface {
	Table() *manager.Table
	// WillWrite reports whether the command may write. Read-only commands can run in any transaction that is not
	// finished, including a tainted one.
	WillWrite() bool
	// Execute runs the command in txn and returns its result.
	Execute(txn *mvcc.Txn) (interface{}, error)
}

// RunCommand runs cmd in txn. A write conflict leaves txn tainted; the caller has to abort it.
func RunCommand(cmd Command, txn *mvcc.Txn) (interface{}, error) {
	if cmd.WillWrite() && txn.State() != mvcc.TxnRunning {
		return nil, errors.Annotatef(mvcc.ErrTxnNotRunning, "txn %d", txn.ID())
	}
	resp, err := cmd.Execute(txn)
	if err != nil {
		if mvcc.IsWriteConflict(err) {
			log.Debug("command hit a write conflict", log.TxnID(txn.ID()), log.TableID(uint32(cmd.Table().ID())),
				zap.Error(err))
		}
		return nil, err
	}
	return resp, nil
}

// RunInTxn runs cmd in a transaction of its own, committing on success and aborting on any error.
func RunInTxn(mgr *manager.Manager, cmd Command) (interface{}, error) {
	txn, err := mgr.Begin()
	if err != nil {
		return nil, err
	}
	resp, err := RunCommand(cmd, txn)
	if err != nil {
		if abortErr := mgr.Abort(txn); abortErr != nil {
			log.Error("abort failed", log.TxnID(txn.ID()), zap.Error(abortErr))
		}
		return nil, err
	}
	if err := mgr.Commit(txn); err != nil {
		return nil, err
	}
	return resp, nil
}

// CommandBase provides some default function implementations for the Command interface.
type CommandBase struct {
	table *manager.Table
}

func (base CommandBase) Table() *manager.Table {
	return base.table
}

// ReadOnly is a helper type for commands which will never write anything to the database.
type ReadOnly struct{}

func (ro ReadOnly) WillWrite() bool {
	return false
}

// ReadWrite is a helper type for commands which write.
type ReadWrite struct{}

func (rw ReadWrite) WillWrite() bool {
	return true
}

// WriteResult is returned by commands that write rows.
type WriteResult struct {
	// Count is the number of rows inserted, updated or deleted.
	Count int
}
