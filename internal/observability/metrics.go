// Package observability wires tracing and application metrics. This file
// holds the Prometheus collectors for upstream AI traffic: token
// consumption, conversation starts, and classified upstream failures.
// Labels stay low-cardinality (model id and stable error code only).
package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	aiTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_tokens_total",
			Help: "Tokens consumed upstream, by model and direction.",
		},
		[]string{"model", "direction"}, // direction: prompt|completion
	)

	aiConversations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ai_conversations_started_total",
			Help: "Persistent chats created.",
		},
	)

	aiErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_upstream_errors_total",
			Help: "Upstream AI failures by stable error code.",
		},
		[]string{"code"},
	)
)

func init() {
	prometheus.MustRegister(aiTokens, aiConversations, aiErrors)
}

// RecordAIUsage adds one request's token counts to the model's counters.
func RecordAIUsage(model string, promptTokens, completionTokens int) {
	if promptTokens > 0 {
		aiTokens.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		aiTokens.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
}

// RecordConversationStarted counts a newly created persistent chat.
func RecordConversationStarted() {
	aiConversations.Inc()
}

// RecordAIError counts one classified upstream failure.
func RecordAIError(code string) {
	aiErrors.WithLabelValues(code).Inc()
}
