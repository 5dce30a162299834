package metrics

import "github.com/prometheus/client_golang/prometheus"

// Label values of TxnCounter.
const (
	TxnBegin  = "begin"
	TxnCommit = "commit"
	TxnAbort  = "abort"
)

// Label values of WriteCounter.
const (
	WriteInsert    = "insert"
	WriteFirst     = "first"
	WriteCoalesced = "coalesced"
	WriteInPlace   = "in_place"
)

var (
	TxnCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tinymvcc",
			Subsystem: "txn",
			Name:      "total",
			Help:      "Counter of transaction state changes.",
		}, []string{"type"})

	WriteCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tinymvcc",
			Subsystem: "txn",
			Name:      "write_total",
			Help:      "Counter of row writes by the way they touched the version chain.",
		}, []string{"type"})

	WriteConflictCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tinymvcc",
			Subsystem: "txn",
			Name:      "write_conflict_total",
			Help:      "Counter of write-write conflicts.",
		})

	ReconstructCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tinymvcc",
			Subsystem: "mvcc",
			Name:      "reconstruct_total",
			Help:      "Counter of rows rebuilt from undo logs.",
		})

	ChainWalkHistogram = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tinymvcc",
			Subsystem: "mvcc",
			Name:      "chain_walk_length",
			Help:      "Bucketed histogram of undo logs visited per reconstruction.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		})

	WatermarkGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tinymvcc",
			Subsystem: "txn",
			Name:      "watermark",
			Help:      "The oldest read timestamp still in use.",
		})

	ActiveTxnGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tinymvcc",
			Subsystem: "txn",
			Name:      "active",
			Help:      "Number of running transactions.",
		})
)

func init() {
	prometheus.MustRegister(TxnCounter)
	prometheus.MustRegister(WriteCounter)
	prometheus.MustRegister(WriteConflictCounter)
	prometheus.MustRegister(ReconstructCounter)
	prometheus.MustRegister(ChainWalkHistogram)
	prometheus.MustRegister(WatermarkGauge)
	prometheus.MustRegister(ActiveTxnGauge)
}
