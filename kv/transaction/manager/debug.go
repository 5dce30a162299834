package manager

import (
	"fmt"
	"io"

	"github.com/pingcap-incubator/tinymvcc/kv/transaction/mvcc"
)

// DumpVersionChains writes every row of t followed by its version chain, newest first:
//
//	RID=0/1 ts=3 tuple=(3, <NULL>, <NULL>)
//	  txn5@0 <del> ts=2
//	  txn3@0 (4, _, _) ts=1
//	RID=0/3 ts=txn6 <del marker> tuple=(<NULL>, <NULL>, <NULL>)
//	  txn6@0 (6, <NULL>, <NULL>) ts=2
//
// A link whose log cannot be found ends the chain with a <missing> line.
func (m *Manager) DumpVersionChains(w io.Writer, t *Table) error {
	schema := t.heap.Schema()
	for it := t.heap.Iterator(); it.Valid(); it.Next() {
		rid := it.RID()
		meta, row, err := it.Row()
		if err != nil {
			return err
		}
		del := ""
		if meta.Deleted {
			del = " <del marker>"
		}
		if _, err := fmt.Fprintf(w, "RID=%s ts=%s%s tuple=%s\n", rid, mvcc.FormatTs(meta.Ts), del, row); err != nil {
			return err
		}
		for link := t.GetUndoLink(rid); link.IsValid(); {
			ul, ok := m.GetUndoLogOptional(link)
			if !ok {
				if _, err := fmt.Fprintf(w, "  %s <missing>\n", link); err != nil {
					return err
				}
				break
			}
			if _, err := fmt.Fprintf(w, "  %s %s\n", link, ul.Format(schema)); err != nil {
				return err
			}
			link = ul.Prev
		}
	}
	return nil
}
