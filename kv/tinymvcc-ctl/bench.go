package main

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/pingcap-incubator/tinymvcc/config"
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/commands"
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/manager"
	"github.com/pingcap-incubator/tinymvcc/kv/transaction/mvcc"
	"github.com/pingcap-incubator/tinymvcc/kv/types"
	"github.com/pingcap-incubator/tinymvcc/log"
	"github.com/pingcap/errors"
	"github.com/spf13/cobra"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

func newBenchCommand(ctx context.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "bench",
		Short: "Run concurrent transfer transactions and check that no money is created or lost",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig()
			if err != nil {
				return err
			}
			serveStatus(conf)
			b := newBench(conf)
			stats, err := b.run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), stats)
			return nil
		},
	}
}

const initialBalance = 1000

var benchSchema = types.NewSchema(
	types.Column{Name: "id", Kind: types.KindInt},
	types.Column{Name: "balance", Kind: types.KindInt},
)

type benchStats struct {
	committed atomic.Uint64
	conflicts atomic.Uint64
	failed    atomic.Uint64
	elapsed   time.Duration
	watermark uint64
}

func (s *benchStats) String() string {
	committed := s.committed.Load()
	return fmt.Sprintf("committed: %d, conflicts: %d, failed: %d, elapsed: %v, txn/s: %.1f, watermark: %d",
		committed, s.conflicts.Load(), s.failed.Load(), s.elapsed,
		float64(committed)/s.elapsed.Seconds(), s.watermark)
}

type bench struct {
	conf  config.Bench
	mgr   *manager.Manager
	table *manager.Table
}

func newBench(conf *config.Config) *bench {
	mgr := manager.NewManager(manager.Options{
		PageSlots:   conf.Engine.PageSlots,
		LatchShards: conf.Engine.LatchShards,
	})
	return &bench{
		conf:  conf.Bench,
		mgr:   mgr,
		table: mgr.CreateTable("bench", benchSchema),
	}
}

func (b *bench) run(ctx context.Context) (*benchStats, error) {
	rows := make([]types.Row, 0, b.conf.Rows)
	for i := 0; i < b.conf.Rows; i++ {
		rows = append(rows, types.Row{types.NewInt(int64(i)), types.NewInt(initialBalance)})
	}
	load := commands.NewInsert(b.table, rows...)
	if _, err := commands.RunInTxn(b.mgr, &load); err != nil {
		return nil, err
	}

	pool, err := ants.NewPool(b.conf.Workers)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer pool.Release()

	stats := new(benchStats)
	start := time.Now()
	var wg sync.WaitGroup
	total := b.conf.Workers * b.conf.Txns
	for i := 0; i < total && ctx.Err() == nil; i++ {
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			b.transfer(stats)
		})
		if err != nil {
			wg.Done()
			return nil, errors.Trace(err)
		}
	}
	wg.Wait()
	stats.elapsed = time.Since(start)
	stats.watermark = b.mgr.Watermark()

	if err := b.check(); err != nil {
		return nil, err
	}
	return stats, nil
}

// transfer moves one unit from a random account to each of WritesPerTxn-1 others.
func (b *bench) transfer(stats *benchStats) {
	ids := rand.Perm(b.conf.Rows)[:b.conf.WritesPerTxn]
	txn, err := b.mgr.Begin()
	if err != nil {
		stats.failed.Inc()
		log.Error("begin failed", zap.Error(err))
		return
	}
	for i, id := range ids {
		delta := int64(1)
		if i == 0 {
			delta = -int64(len(ids) - 1)
		}
		cmd := commands.NewUpdate(b.table, byID(int64(id)), addInt(delta))
		if _, err = commands.RunCommand(&cmd, txn); err != nil {
			break
		}
	}
	if err == nil {
		if err = b.mgr.Commit(txn); err == nil {
			stats.committed.Inc()
			return
		}
	}
	if mvcc.IsWriteConflict(err) {
		stats.conflicts.Inc()
	} else {
		stats.failed.Inc()
		log.Error("transfer failed", log.TxnID(txn.ID()), zap.Error(err))
	}
	if abortErr := b.mgr.Abort(txn); abortErr != nil {
		log.Error("abort failed", log.TxnID(txn.ID()), zap.Error(abortErr))
	}
}

// check verifies that the balances still add up.
func (b *bench) check() error {
	cmd := commands.NewScan(b.table, nil, 0)
	resp, err := commands.RunInTxn(b.mgr, &cmd)
	if err != nil {
		return err
	}
	scanned := resp.(*commands.ScanResult).Rows
	var sum int64
	for _, r := range scanned {
		sum += r.Row[1].Int()
	}
	if len(scanned) != b.conf.Rows || sum != int64(b.conf.Rows)*initialBalance {
		return errors.Errorf("bench table is inconsistent: %d rows, balance sum %d", len(scanned), sum)
	}
	return nil
}

func addInt(delta int64) commands.SetFunc {
	return func(r types.Row) types.Row {
		r[1] = types.NewInt(r[1].Int() + delta)
		return r
	}
}
