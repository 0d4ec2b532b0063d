package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

var (
	// Logger carries the structured enforcement event log. It is a nop
	// until Init runs so library code can log unconditionally.
	Logger = zap.NewNop()

	tracerProvider *trace.TracerProvider

	messagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardbot_messages_total",
			Help: "Messages seen by the guard pipeline, by outcome",
		},
		[]string{"result"},
	)

	spamVerdictsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardbot_spam_verdicts_total",
			Help: "Spam verdicts produced by the rule engine, by matched rule",
		},
		[]string{"rule"},
	)

	enforcementTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "guardbot_enforcement_actions_total",
			Help: "Enforcement side effects dispatched to the gateway",
		},
		[]string{"action"},
	)

	processingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "guardbot_message_processing_seconds",
			Help:    "Time spent moderating a message",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	blacklistWords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "guardbot_blacklist_words",
			Help: "Number of words in the active blacklist snapshot",
		},
	)
)

func Init(ctx context.Context) error {
	var err error
	Logger, err = zap.NewProduction()
	if err != nil {
		return err
	}

	prometheus.MustRegister(
		messagesTotal,
		spamVerdictsTotal,
		enforcementTotal,
		processingDuration,
		blacklistWords,
	)

	tracerProvider = trace.NewTracerProvider()
	otel.SetTracerProvider(tracerProvider)

	return nil
}

func Shutdown(ctx context.Context) error {
	_ = Logger.Sync()
	if tracerProvider != nil {
		return tracerProvider.Shutdown(ctx)
	}
	return nil
}

func RecordMessage(result string) {
	messagesTotal.WithLabelValues(result).Inc()
}

func RecordSpamVerdict(rule string) {
	spamVerdictsTotal.WithLabelValues(rule).Inc()
}

func RecordEnforcement(action string) {
	enforcementTotal.WithLabelValues(action).Inc()
}

func SetBlacklistSize(n int) {
	blacklistWords.Set(float64(n))
}

// StartMessageTimer returns a closure recording the elapsed processing
// time under the final pipeline status.
func StartMessageTimer() func(status string) {
	start := time.Now()
	return func(status string) {
		processingDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	}
}
