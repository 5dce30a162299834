package commands

import (
	"github.com/pingcap-incubator/tinymvcc/kv/storage"
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/manager"
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/mvcc"
	"github.com/pingcap-incubator/tinymvcc/kv/types"
)

// Scan returns the rows of a table visible to the transaction that pass an optional filter.
type Scan struct {
	ReadOnly
	CommandBase
	filter mvcc.Predicate
	limit  int
}

// NewScan creates a scan. A nil filter keeps every row, a limit <= 0 means no limit.
func NewScan(table *manager.Table, filter mvcc.Predicate, limit int) Scan {
	return Scan{
		CommandBase: CommandBase{table: table},
		filter:      filter,
		limit:       limit,
	}
}

// ScannedRow is one row produced by a scan, with the meta it was read under.
type ScannedRow struct {
	RID  storage.RID
	Meta storage.RowMeta
	Row  types.Row
}

type ScanResult struct {
	Rows []ScannedRow
}

func (s *Scan) Execute(txn *mvcc.Txn) (interface{}, error) {
	rows, err := scanRows(txn, s.table, s.filter, s.limit)
	if err != nil {
		return nil, err
	}
	return &ScanResult{Rows: rows}, nil
}

func scanRows(txn *mvcc.Txn, table *manager.Table, filter mvcc.Predicate, limit int) ([]ScannedRow, error) {
	var rows []ScannedRow
	scanner := mvcc.NewScanner(txn, table.Heap(), table, filter)
	for limit <= 0 || len(rows) < limit {
		rid, meta, row, err := scanner.Next()
		if err != nil {
			return nil, err
		}
		if row == nil {
			break
		}
		rows = append(rows, ScannedRow{RID: rid, Meta: meta, Row: row})
	}
	return rows, nil
}
