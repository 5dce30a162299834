package mvcc

import (
	"fmt"

	"github.com/pingcap-incubator/tinymvcc/kv/storage"
	"github.com/pingcap/errors"
)

var (
	// ErrInvalidUndoLink means a valid link points at an undo log that does not exist. The version chain is
	// corrupted and the read cannot continue.
	ErrInvalidUndoLink = errors.New("undo link points at a missing undo log")
	// ErrMalformedDelta means an undo log does not fit the table schema.
	ErrMalformedDelta = errors.New("malformed undo log")
	// ErrTxnNotRunning is returned when a transaction that is tainted, committed or aborted is used to read or write.
	ErrTxnNotRunning = errors.New("transaction is not running")
)

// ErrWriteConflict is returned when a transaction writes a row another transaction has written since its snapshot was
// taken, or is still writing. The transaction is tainted and must be aborted.
type ErrWriteConflict struct {
	RID   storage.RID
	TxnID uint64
	// ConflictTs is the timestamp found on the row, either a commit timestamp or a temporary marker.
	ConflictTs uint64
	// InProgress is set when another transaction holds the row's chain head.
	InProgress bool
}

func (e *ErrWriteConflict) Error() string {
	return fmt.Sprintf("write conflict on rid %s: txn %d, row ts %s, in progress %v",
		e.RID, e.TxnID, FormatTs(e.ConflictTs), e.InProgress)
}

// IsWriteConflict reports whether the cause of err is an ErrWriteConflict.
func IsWriteConflict(err error) bool {
	_, ok := errors.Cause(err).(*ErrWriteConflict)
	return ok
}
