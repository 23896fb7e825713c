package metrics

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	ExplorerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokengate_explorer_requests_total",
		Help: "Number of explorer api requests by chain, action and outcome",
	}, []string{"chain", "action", "status"})

	TransfersFetched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokengate_transfers_fetched_total",
		Help: "Number of transfer events received from explorers",
	}, []string{"chain"})

	TransactionsInserted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokengate_transactions_inserted_total",
		Help: "Number of ledger rows inserted (duplicates excluded)",
	}, []string{"chain"})

	OverflowGuardHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokengate_overflow_guard_hits_total",
		Help: "Number of fetch runs stopped because a single block exceeded one page",
	}, []string{"chain"})

	IngestionRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokengate_ingestion_runs_total",
		Help: "Number of per-contract ingestion runs by result",
	}, []string{"result"})

	AggregationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tokengate_aggregation_duration_seconds",
		Help:    "Duration of balance refresh and holder count update",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	SignatureLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokengate_signature_lookups_total",
		Help: "Number of selector signature lookups by result",
	}, []string{"result"})

	Classifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokengate_classifications_total",
		Help: "Number of address classifications by verdict",
	}, []string{"verdict"})

	TrackedContracts = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tokengate_tracked_contracts",
		Help: "Number of contracts tracked for ingestion",
	})
)

type Metrics struct {
	mutex         sync.Mutex
	preCollectFns []func()
}

type MetricsHandler struct {
	handler         http.Handler
	mutex           sync.Mutex
	lastCollectTime time.Time
}

var metrics = &Metrics{
	preCollectFns: []func(){},
}

// AddPreCollectFn registers fn to refresh gauges right before a scrape (at most once per second).
func AddPreCollectFn(fn func()) {
	metrics.mutex.Lock()
	defer metrics.mutex.Unlock()
	metrics.preCollectFns = append(metrics.preCollectFns, fn)
}

func StartMetricsServer(logger logrus.FieldLogger, host string, port string) error {
	if host == "" {
		host = "127.0.0.1"
	}
	if port == "" {
		port = "9090"
	}

	srv := &http.Server{
		Addr:              host + ":" + port,
		Handler:           GetMetricsHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}

	go func() {
		logger.Infof("metrics server listening on %v", srv.Addr)
		if err := srv.Serve(listener); err != nil {
			logger.WithError(err).Fatal("Error serving metrics")
		}
	}()

	return nil
}

func GetMetricsHandler() http.Handler {
	return &MetricsHandler{
		handler: promhttp.Handler(),
	}
}

func (mh *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mh.mutex.Lock()
	if time.Since(mh.lastCollectTime) > 1*time.Second {
		metrics.mutex.Lock()
		fns := metrics.preCollectFns
		metrics.mutex.Unlock()

		for _, fn := range fns {
			fn()
		}
		mh.lastCollectTime = time.Now()
	}
	mh.mutex.Unlock()

	mh.handler.ServeHTTP(w, r)
}
