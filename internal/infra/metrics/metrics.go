package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Источники сообщений для MessagesIndexed.
const (
	SourceLive    = "live"
	SourceHistory = "history"
)

var (
	MessagesIndexed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wcb_messages_indexed_total",
		Help: "Сообщения, прошедшие через индексатор",
	}, []string{"source"})
	OccurrencesRecorded = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wcb_occurrences_recorded_total",
		Help: "Учтённые вхождения отслеживаемых слов",
	})
	DuplicateOccurrences = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "wcb_duplicate_occurrences_total",
		Help: "Повторные попытки учесть уже учтённое сообщение",
	})
	ScanPasses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wcb_scan_passes_total",
		Help: "Проходы сканера истории по результату",
	}, []string{"status"})
	ScanDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "wcb_scan_duration_seconds",
		Help:    "Длительность прохода сканера истории",
		Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
	})
	ScansInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wcb_scans_in_flight",
		Help: "Проходы сканера, выполняющиеся сейчас",
	})
	Communities = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wcb_communities",
		Help: "Наблюдаемые сообщества",
	})
	WatchWords = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wcb_watch_words",
		Help: "Отслеживаемые слова во всех сообществах",
	})
	CommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wcb_commands_total",
		Help: "Команды бота по результату",
	}, []string{"command", "outcome"})
	BotSendErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bot_send_errors_total",
		Help: "Ошибки отправки сообщений ботом",
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"component", "operation", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		MessagesIndexed,
		OccurrencesRecorded,
		DuplicateOccurrences,
		ScanPasses,
		ScanDuration,
		ScansInFlight,
		Communities,
		WatchWords,
		CommandsTotal,
		BotSendErrors,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	NetworkRequestDuration.WithLabelValues(component, operation, status).Observe(time.Since(start).Seconds())
	NetworkRequestTotal.WithLabelValues(component, operation, status).Inc()
}

// ObserveCommand учитывает выполнение команды бота.
func ObserveCommand(command, outcome string) {
	if command == "" {
		command = "unknown"
	}
	CommandsTotal.WithLabelValues(command, outcome).Inc()
}
