package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics структура для метрик Prometheus
type Metrics struct {
	UpdatesProcessed     prometheus.Counter
	CommandsProcessed    *prometheus.CounterVec
	CallbacksProcessed   *prometheus.CounterVec
	ErrorsTotal          prometheus.Counter
	RateLimited          prometheus.Counter
	UpdateProcessingTime prometheus.Histogram
	TransitionDuration   *prometheus.HistogramVec
	ActiveDashboards     prometheus.Gauge
}

// NewMetrics создает метрики в указанном реестре (nil означает реестр по умолчанию)
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		UpdatesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "telegram_bot_updates_processed_total",
			Help: "Total number of processed updates",
		}),

		CommandsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "telegram_bot_commands_processed_total",
			Help: "Processed commands by name",
		}, []string{"command"}),

		CallbacksProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "telegram_bot_callbacks_processed_total",
			Help: "Processed callback queries by kind",
		}, []string{"kind"}),

		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "telegram_bot_errors_total",
			Help: "Errors and recovered panics while handling updates",
		}),

		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "telegram_bot_rate_limited_total",
			Help: "Updates dropped by the per-chat rate limit",
		}),

		UpdateProcessingTime: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "telegram_bot_update_processing_time_seconds",
			Help:    "Time spent processing updates",
			Buckets: prometheus.DefBuckets,
		}),

		TransitionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "telegram_bot_transition_duration_seconds",
			Help:    "Time from a status button tap to the re-rendered list",
			Buckets: prometheus.DefBuckets,
		}, []string{"role", "outcome"}),

		ActiveDashboards: factory.NewGauge(prometheus.GaugeOpts{
			Name: "telegram_bot_active_dashboards",
			Help: "Chats with a booking dashboard in memory",
		}),
	}
}
