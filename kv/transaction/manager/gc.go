package manager

import (
	"github.com/pingcap-incubator/tinymvcc/kv/storage"
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/mvcc"
	"github.com/pingcap/errors"
)

// ReclaimableLogs returns the links of rid's chain that no running or future transaction can reach. Every snapshot
// reads at or above the watermark, so a reader stops at the physical row if it was committed at or below the
// watermark, and otherwise at the newest log at or below it. Everything behind that point is unreachable.
//
// Nothing is freed; the logs stay in their transactions' arenas.
func (m *Manager) ReclaimableLogs(t *Table, rid storage.RID) ([]mvcc.UndoLink, error) {
	wm := m.Watermark()
	meta, err := t.heap.GetRowMeta(rid)
	if err != nil {
		return nil, errors.Trace(err)
	}
	stopped := !mvcc.IsTempTs(meta.Ts) && meta.Ts <= wm

	var links []mvcc.UndoLink
	link := t.GetUndoLink(rid)
	for link.IsValid() {
		ul, err := m.GetUndoLog(link)
		if err != nil {
			return nil, err
		}
		if stopped {
			links = append(links, link)
		} else if ul.Ts <= wm {
			stopped = true
		}
		link = ul.Prev
	}
	return links, nil
}
