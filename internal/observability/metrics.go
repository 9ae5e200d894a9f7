package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	httpDurationHistogram *prometheus.HistogramVec
	donationCounter       *prometheus.CounterVec
	claimRunCounter       *prometheus.CounterVec
	shipmentClaimsGauge   prometheus.Gauge
	unmatchedCounter      prometheus.Counter
	workerRunCounter      *prometheus.CounterVec
)

// Init registers all Prometheus collectors.
func Init() {
	registerOnce.Do(func() {
		httpDurationHistogram = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"})

		donationCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "donations_processed_total",
			Help: "Reconciled donation outcomes",
		}, []string{"result"})

		claimRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "claim_runs_total",
			Help: "Daily claim batch outcomes",
		}, []string{"job", "result"})

		shipmentClaimsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shipment_claims_last",
			Help: "Number of claims in the most recent shipment",
		})

		unmatchedCounter = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "payments_unmatched_total",
			Help: "Payments no KID resolver could match",
		})

		workerRunCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "worker_runs_total",
			Help: "Background worker run outcomes",
		}, []string{"worker", "result"})

		prometheus.MustRegister(
			httpDurationHistogram,
			donationCounter,
			claimRunCounter,
			shipmentClaimsGauge,
			unmatchedCounter,
			workerRunCounter,
		)
	})
}

func ObserveHTTP(method, path string, status int, duration time.Duration) {
	if httpDurationHistogram == nil {
		return
	}
	httpDurationHistogram.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}

func IncrementDonation(result string) {
	if donationCounter == nil {
		return
	}
	donationCounter.WithLabelValues(result).Inc()
}

func IncrementClaimRun(job, result string) {
	if claimRunCounter == nil {
		return
	}
	claimRunCounter.WithLabelValues(job, result).Inc()
}

func SetShipmentClaims(n int) {
	if shipmentClaimsGauge == nil {
		return
	}
	shipmentClaimsGauge.Set(float64(n))
}

func IncrementUnmatchedPayment() {
	if unmatchedCounter == nil {
		return
	}
	unmatchedCounter.Inc()
}

func IncrementWorkerRun(worker, result string) {
	if workerRunCounter == nil {
		return
	}
	workerRunCounter.WithLabelValues(worker, result).Inc()
}
