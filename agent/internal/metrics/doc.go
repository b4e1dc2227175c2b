// Package metrics renders queue engine statistics in the Prometheus text
// exposition format.
//
// Families are built directly as client_model MetricFamily values and
// encoded with prometheus/common/expfmt, so the agent exposes the same
// format it would be scraped in without running a registry:
//
//	exceptionless_queue_events_enqueued_total
//	exceptionless_queue_events_submitted_total
//	exceptionless_queue_events_requeued_total
//	exceptionless_queue_events_dropped_total{reason="..."}
//	exceptionless_queue_processing            (0|1)
//	exceptionless_queue_suspended             (0|1)
//	exceptionless_queue_discarding            (0|1)
//	exceptionless_queue_suspended_until_seconds
//	exceptionless_queue_batch_size
//	exceptionless_queue_last_status_code
package metrics
