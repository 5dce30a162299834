package main

import (
	"fmt"
	"io"

	"github.com/pingcap-incubator/tinymvcc/kv/transaction/commands"
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/manager"
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/mvcc"
	"github.com/pingcap-incubator/tinymvcc/kv/types"
	"github.com/pingcap/errors"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newDemoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run a scripted scenario and print the version chains after each step",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}
			mgr := manager.NewManager(manager.Options{
				PageSlots:   conf.Engine.PageSlots,
				LatchShards: conf.Engine.LatchShards,
			})
			return runDemo(cmd.OutOrStdout(), mgr)
		},
	}
}

var accountSchema = types.NewSchema(
	types.Column{Name: "id", Kind: types.KindInt},
	types.Column{Name: "owner", Kind: types.KindVarchar},
	types.Column{Name: "balance", Kind: types.KindDecimal},
)

func account(id int64, owner string, balance int64) types.Row {
	return types.Row{types.NewInt(id), types.NewVarchar(owner), types.NewDecimal(decimal.New(balance, 0))}
}

func byID(id int64) mvcc.Predicate {
	return func(r types.Row) bool { return r[0].Int() == id }
}

func addBalance(delta int64) commands.SetFunc {
	return func(r types.Row) types.Row {
		r[2] = types.NewDecimal(r[2].Decimal().Add(decimal.New(delta, 0)))
		return r
	}
}

// demo prints the steps of the scenario.
type demo struct {
	w     io.Writer
	mgr   *manager.Manager
	table *manager.Table
}

func (d *demo) step(format string, args ...interface{}) {
	fmt.Fprintf(d.w, "\n== "+format+"\n", args...)
}

func (d *demo) dump() error {
	return d.mgr.DumpVersionChains(d.w, d.table)
}

func (d *demo) scan(name string, txn *mvcc.Txn) error {
	cmd := commands.NewScan(d.table, nil, 0)
	resp, err := commands.RunCommand(&cmd, txn)
	if err != nil {
		return err
	}
	fmt.Fprintf(d.w, "%s (read ts %d) sees:\n", name, txn.ReadTs())
	for _, r := range resp.(*commands.ScanResult).Rows {
		fmt.Fprintf(d.w, "  %s %s\n", r.RID, r.Row)
	}
	return nil
}

func (d *demo) run(txn *mvcc.Txn, cmd commands.Command) error {
	_, err := commands.RunCommand(cmd, txn)
	return err
}

func runDemo(w io.Writer, mgr *manager.Manager) error {
	d := &demo{w: w, mgr: mgr, table: mgr.CreateTable("accounts", accountSchema)}

	d.step("load three accounts")
	load := commands.NewInsert(d.table, account(1, "alice", 100), account(2, "bob", 50), account(3, "carol", 10))
	if _, err := commands.RunInTxn(mgr, &load); err != nil {
		return err
	}
	if err := d.dump(); err != nil {
		return err
	}

	reader, err := mgr.Begin()
	if err != nil {
		return err
	}
	writer, err := mgr.Begin()
	if err != nil {
		return err
	}

	d.step("txn %d moves 30 from alice to bob and closes carol's account", writer.ID())
	debit := commands.NewUpdate(d.table, byID(1), addBalance(-30))
	credit := commands.NewUpdate(d.table, byID(2), addBalance(30))
	closeAcct := commands.NewDelete(d.table, byID(3))
	for _, cmd := range []commands.Command{&debit, &credit, &closeAcct} {
		if err := d.run(writer, cmd); err != nil {
			return err
		}
	}
	if err := d.dump(); err != nil {
		return err
	}

	d.step("txn %d charges alice a fee, the write folds into the existing undo log", writer.ID())
	fee := commands.NewUpdate(d.table, byID(1), addBalance(-1))
	if err := d.run(writer, &fee); err != nil {
		return err
	}
	if err := d.dump(); err != nil {
		return err
	}

	other, err := mgr.Begin()
	if err != nil {
		return err
	}
	d.step("txn %d tries to write alice too", other.ID())
	steal := commands.NewUpdate(d.table, byID(1), addBalance(-100))
	err = d.run(other, &steal)
	if !mvcc.IsWriteConflict(err) {
		return errors.Errorf("expected a write conflict, got %v", err)
	}
	fmt.Fprintf(w, "txn %d: %v\n", other.ID(), errors.Cause(err))
	if err := mgr.Abort(other); err != nil {
		return err
	}

	d.step("commit txn %d", writer.ID())
	if err := mgr.Commit(writer); err != nil {
		return err
	}
	if err := d.scan(fmt.Sprintf("txn %d", reader.ID()), reader); err != nil {
		return err
	}
	latest, err := mgr.Begin()
	if err != nil {
		return err
	}
	if err := d.scan(fmt.Sprintf("txn %d", latest.ID()), latest); err != nil {
		return err
	}
	if err := d.dump(); err != nil {
		return err
	}

	d.step("finish the readers")
	for _, txn := range []*mvcc.Txn{reader, latest} {
		if err := mgr.Commit(txn); err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "watermark %d, last commit ts %d\n", mgr.Watermark(), mgr.LastCommitTs())
	return d.reclaimable()
}

// reclaimable lists the undo logs no transaction can read any more.
func (d *demo) reclaimable() error {
	it := d.table.Heap().Iterator()
	for ; it.Valid(); it.Next() {
		rid := it.RID()
		links, err := d.mgr.ReclaimableLogs(d.table, rid)
		if err != nil {
			return err
		}
		if len(links) > 0 {
			fmt.Fprintf(d.w, "%s: reclaimable %v\n", rid, links)
		}
	}
	return nil
}
