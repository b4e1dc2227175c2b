package metrics

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/exceptionless/exceptionless-go/agent/internal/queue"
)

const namespace = "exceptionless_queue_"

// StatsSource is implemented by *queue.Engine.
type StatsSource interface {
	Stats() queue.Stats
}

// Families converts s into metric families, sorted by name.
func Families(s queue.Stats) []*dto.MetricFamily {
	fams := []*dto.MetricFamily{
		counter("events_enqueued_total", "Events persisted to the queue, including requeues.", float64(s.Enqueued)),
		counter("events_submitted_total", "Events accepted by the ingestion endpoint.", float64(s.Submitted)),
		counter("events_requeued_total", "Events put back on the queue after a failed submission.", float64(s.Requeued)),
		dropped(s.Dropped),
		gauge("processing", "1 while a drain is in flight.", boolValue(s.Processing)),
		gauge("suspended", "1 while processing is suspended.", boolValue(s.Suspended)),
		gauge("discarding", "1 while new events are discarded.", boolValue(s.Discarding)),
		gauge("suspended_until_seconds", "Unix time processing is suspended until, 0 if never.", unixSeconds(s)),
		gauge("batch_size", "Current submission batch size.", float64(s.BatchSize)),
		gauge("last_status_code", "HTTP status of the last submission, 0 for transport failures.", float64(s.LastStatusCode)),
	}
	sort.Slice(fams, func(i, j int) bool { return fams[i].GetName() < fams[j].GetName() })
	return fams
}

// Write encodes s to w in the Prometheus text format.
func Write(w io.Writer, s queue.Stats) error {
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range Families(s) {
		if len(mf.GetMetric()) == 0 {
			continue
		}
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("metrics: encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// Handler serves src's stats on GET.
func Handler(src StatsSource) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
		if err := Write(w, src.Stats()); err != nil {
			slog.Error("metrics: write failed", "err", err)
		}
	})
}

func dropped(byReason map[queue.DropReason]int64) *dto.MetricFamily {
	mf := &dto.MetricFamily{
		Name: ptr(namespace + "events_dropped_total"),
		Help: ptr("Events discarded without delivery, by reason."),
		Type: dto.MetricType_COUNTER.Enum(),
	}
	reasons := make([]string, 0, len(byReason))
	for r := range byReason {
		reasons = append(reasons, string(r))
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		mf.Metric = append(mf.Metric, &dto.Metric{
			Label:   []*dto.LabelPair{{Name: ptr("reason"), Value: ptr(r)}},
			Counter: &dto.Counter{Value: ptr(float64(byReason[queue.DropReason(r)]))},
		})
	}
	return mf
}

func counter(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   ptr(namespace + name),
		Help:   ptr(help),
		Type:   dto.MetricType_COUNTER.Enum(),
		Metric: []*dto.Metric{{Counter: &dto.Counter{Value: ptr(v)}}},
	}
}

func gauge(name, help string, v float64) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   ptr(namespace + name),
		Help:   ptr(help),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: ptr(v)}}},
	}
}

func unixSeconds(s queue.Stats) float64 {
	if s.SuspendedUntil.IsZero() {
		return 0
	}
	return float64(s.SuspendedUntil.Unix())
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func ptr[T any](v T) *T { return &v }
