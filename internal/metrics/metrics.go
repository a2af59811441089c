// Package metrics exposes Prometheus counters for the coordination
// core on a dedicated registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zhangtao0212/my-valuecell-sub001/internal/response"
)

// Metrics holds the core's counters.
type Metrics struct {
	registry *prometheus.Registry

	// PlansCreated counts planning rounds that produced a plan.
	PlansCreated prometheus.Counter
	// PlansFailed counts planning rounds that ended in failure.
	PlansFailed prometheus.Counter
	// TasksCompleted counts tasks reaching completed.
	TasksCompleted prometheus.Counter
	// TasksFailed counts tasks reaching failed.
	TasksFailed prometheus.Counter
	// ResponsesEmitted counts responses broadcast to clients, by event.
	ResponsesEmitted *prometheus.CounterVec
	// ItemsPersisted counts conversation items written through the buffer.
	ItemsPersisted prometheus.Counter
	// ContextsExpired counts planning contexts evicted by the sweep.
	ContextsExpired prometheus.Counter
}

// New creates the metric set on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		PlansCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "valuecell_plans_created_total",
			Help: "Planning rounds that produced an execution plan.",
		}),
		PlansFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "valuecell_plans_failed_total",
			Help: "Planning rounds that ended in failure.",
		}),
		TasksCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "valuecell_tasks_completed_total",
			Help: "Tasks that reached the completed state.",
		}),
		TasksFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "valuecell_tasks_failed_total",
			Help: "Tasks that reached the failed state.",
		}),
		ResponsesEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "valuecell_responses_emitted_total",
			Help: "Responses broadcast to clients, by event kind.",
		}, []string{"event"}),
		ItemsPersisted: factory.NewCounter(prometheus.CounterOpts{
			Name: "valuecell_items_persisted_total",
			Help: "Conversation items written through the response buffer.",
		}),
		ContextsExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "valuecell_planning_contexts_expired_total",
			Help: "Planning contexts evicted by the expiry sweep.",
		}),
	}
}

// ObserveEmitter hooks the emitter's persistence path.
func (m *Metrics) ObserveEmitter(e *response.Emitter) {
	e.SetPersistHook(func(n int) {
		m.ItemsPersisted.Add(float64(n))
	})
}

// CountResponse records one broadcast response.
func (m *Metrics) CountResponse(r response.Response) {
	m.ResponsesEmitted.WithLabelValues(string(r.Event)).Inc()
	switch r.Event {
	case response.EventTaskCompleted:
		m.TasksCompleted.Inc()
	case response.EventTaskFailed:
		m.TasksFailed.Inc()
	case response.EventPlanFailed:
		m.PlansFailed.Inc()
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
