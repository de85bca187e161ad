package metrics

import (
	"fmt"
	"time"

	"smtp-forensics/internal/bulk"
	"smtp-forensics/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the counters of one pipeline run on a private registry, so
// runs in the same process (tests included) never collide.
type Metrics struct {
	registry *prometheus.Registry

	flowRows       *prometheus.CounterVec
	flowStartTLS   prometheus.Counter
	objects        *prometheus.CounterVec
	attachments    prometheus.Counter
	uniqueAddress  *prometheus.GaugeVec
	documents      *prometheus.CounterVec
	bulkItems      *prometheus.CounterVec
	bulkBatches    *prometheus.CounterVec
	stageDuration  *prometheus.GaugeVec
	lastRunSuccess prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		flowRows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smtpfx_flow_rows_total",
			Help: "Field table rows by outcome (accepted or the reject reason).",
		}, []string{"outcome"}),
		flowStartTLS: factory.NewCounter(prometheus.CounterOpts{
			Name: "smtpfx_flow_starttls_total",
			Help: "Accepted flow rows carrying a STARTTLS command.",
		}),
		objects: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smtpfx_objects_total",
			Help: "Message objects by parse outcome.",
		}, []string{"outcome"}),
		attachments: factory.NewCounter(prometheus.CounterOpts{
			Name: "smtpfx_attachments_total",
			Help: "Attachments found in parsed messages.",
		}),
		uniqueAddress: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "smtpfx_unique_addresses",
			Help: "Distinct sender and recipient addresses.",
		}, []string{"role"}),
		documents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smtpfx_documents_prepared_total",
			Help: "Bulk documents by index and preparation outcome.",
		}, []string{"index", "outcome"}),
		bulkItems: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smtpfx_bulk_items_total",
			Help: "Documents sent to the index store by outcome.",
		}, []string{"index", "outcome"}),
		bulkBatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "smtpfx_bulk_batches_total",
			Help: "Bulk requests sent by outcome.",
		}, []string{"index", "outcome"}),
		stageDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "smtpfx_stage_duration_seconds",
			Help: "Wall time of each pipeline stage in the last run.",
		}, []string{"stage"}),
		lastRunSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Name: "smtpfx_last_run_success",
			Help: "1 when the last run completed, 0 otherwise.",
		}),
	}
}

// Registry exposes the private registry for gathering
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveFlows(stats models.FlowStats) {
	m.flowRows.WithLabelValues("accepted").Add(float64(stats.Accepted))
	for reason, n := range stats.RejectReasons {
		m.flowRows.WithLabelValues(reason).Add(float64(n))
	}
	m.flowStartTLS.Add(float64(stats.StartTLS))
}

func (m *Metrics) ObserveParse(stats models.ParseStats) {
	m.objects.WithLabelValues("parsed").Add(float64(stats.Parsed))
	m.objects.WithLabelValues("failed").Add(float64(stats.Failed))
	m.objects.WithLabelValues("skipped_small").Add(float64(stats.SkippedSmall))
	m.objects.WithLabelValues("lenient").Add(float64(stats.Lenient))
	m.attachments.Add(float64(stats.TotalAttachments))
	m.uniqueAddress.WithLabelValues("sender").Set(float64(len(stats.UniqueSenders)))
	m.uniqueAddress.WithLabelValues("recipient").Set(float64(len(stats.UniqueRecipients)))
}

func (m *Metrics) ObservePrepare(index string, stats bulk.PrepareStats) {
	m.documents.WithLabelValues(index, "prepared").Add(float64(stats.Prepared))
	m.documents.WithLabelValues(index, "skipped").Add(float64(stats.Skipped))
}

func (m *Metrics) ObserveLoad(stats bulk.LoadStats) {
	m.bulkItems.WithLabelValues(stats.Index, "indexed").Add(float64(stats.Indexed))
	m.bulkItems.WithLabelValues(stats.Index, "failed").Add(float64(stats.Failed))
	m.bulkBatches.WithLabelValues(stats.Index, "sent").Add(float64(stats.Batches - stats.FailedBatches))
	m.bulkBatches.WithLabelValues(stats.Index, "failed").Add(float64(stats.FailedBatches))
}

// ObserveStage records how long a stage took
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Set(d.Seconds())
}

func (m *Metrics) SetSuccess(ok bool) {
	if ok {
		m.lastRunSuccess.Set(1)
		return
	}
	m.lastRunSuccess.Set(0)
}

// WriteTextfile writes all metrics in the text exposition format, for the
// node exporter textfile collector. The file is replaced atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
