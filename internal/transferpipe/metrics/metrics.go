package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingestion - block listing and retrieval
var (
	BlocksListed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transferpipe_blocks_listed_total",
		Help: "Total number of block slots returned by range listings",
	})

	ListErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transferpipe_list_errors_total",
		Help: "Range listings that failed after retries",
	})

	EmptyRanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transferpipe_empty_ranges_total",
		Help: "Range listings that returned no blocks",
	})

	BlocksFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transferpipe_blocks_fetched_total",
		Help: "Total number of blocks fetched and processed",
	})

	BlocksDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transferpipe_blocks_dropped_total",
			Help: "Blocks dropped after the cursor moved past them, by reason",
		},
		[]string{"reason"},
	)

	RPCRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transferpipe_rpc_retries_total",
			Help: "Upstream calls retried, by method",
		},
		[]string{"method"},
	)

	FetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "transferpipe_block_fetch_duration_seconds",
		Help:    "Time taken to fetch a single block including retries",
		Buckets: prometheus.DefBuckets,
	})
)

// Extraction
var (
	InstructionsSeen = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transferpipe_instructions_total",
			Help: "Instructions inspected, by classified kind",
		},
		[]string{"kind"},
	)

	TransactionsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transferpipe_transactions_skipped_total",
			Help: "Transactions not inspected, by reason",
		},
		[]string{"reason"},
	)

	TransfersNormalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transferpipe_transfers_normalized_total",
			Help: "Transfer records extracted, by symbol",
		},
		[]string{"symbol"},
	)
)

// Publication
var (
	TransfersPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transferpipe_transfers_published_total",
			Help: "Transfer records acknowledged by the broker, by symbol",
		},
		[]string{"symbol"},
	)

	TransfersFiltered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transferpipe_transfers_filtered_total",
			Help: "Transfer records dropped by the publish filter, by symbol",
		},
		[]string{"symbol"},
	)

	PublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transferpipe_publish_failures_total",
			Help: "Transfer records that failed or timed out on publish, by symbol",
		},
		[]string{"symbol"},
	)
)

// State
var (
	Cursor = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transferpipe_cursor_slot",
		Help: "Next slot the scheduler will list from",
	})

	InFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "transferpipe_blocks_in_flight",
		Help: "Blocks currently being fetched, processed or published",
	})
)

// Writer
var (
	RecordsStored = promauto.NewCounter(prometheus.CounterOpts{
		Name: "transferpipe_writer_records_stored_total",
		Help: "Transfer records inserted into the store",
	})

	RecordsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transferpipe_writer_records_rejected_total",
			Help: "Consumed records not stored, by reason",
		},
		[]string{"reason"},
	)
)
