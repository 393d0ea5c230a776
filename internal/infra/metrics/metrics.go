package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})

	LLMGenerationDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_generation_duration_seconds",
		Help:    "Длительность генерации ответа LLM",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})

	LLMTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_tokens_total",
		Help: "Количество токенов, использованных LLM",
	}, []string{"model", "type"})

	IngestBatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_batches_total",
		Help: "Количество обработанных батчей сообщений",
	}, []string{"status"})

	IngestMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ingest_messages_total",
		Help: "Количество сообщений, прошедших извлечение",
	})

	RecommendationWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "recommendation_writes_total",
		Help: "Записи рекомендаций в хранилище",
	}, []string{"op", "status"})

	EnrichmentDropsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrichment_drops_total",
		Help: "Кандидаты, отброшенные на этапе обогащения",
	}, []string{"reason"})

	VerifyRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "verify_requests_total",
		Help: "Проверки отпечатка экспорта",
	}, []string{"outcome"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		NetworkRequestDuration,
		NetworkRequestTotal,
		LLMGenerationDuration,
		LLMTokensTotal,
		IngestBatchesTotal,
		IngestMessagesTotal,
		RecommendationWritesTotal,
		EnrichmentDropsTotal,
		VerifyRequestsTotal,
	)
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ObserveLLMGeneration записывает длительность и токены генерации LLM.
func ObserveLLMGeneration(model string, duration time.Duration, promptTokens, completionTokens, totalTokens int) {
	if model == "" {
		model = "unknown"
	}
	LLMGenerationDuration.WithLabelValues(model).Observe(duration.Seconds())
	if promptTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
	if totalTokens <= 0 {
		totalTokens = promptTokens + completionTokens
	}
	if totalTokens > 0 {
		LLMTokensTotal.WithLabelValues(model, "total").Add(float64(totalTokens))
	}
}

// ObserveIngestBatch фиксирует итог обработки батча.
func ObserveIngestBatch(messages int, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	IngestBatchesTotal.WithLabelValues(status).Inc()
	if err == nil && messages > 0 {
		IngestMessagesTotal.Add(float64(messages))
	}
}

// IncRecommendationWrite фиксирует попытку записи рекомендации.
func IncRecommendationWrite(op string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	RecommendationWritesTotal.WithLabelValues(op, status).Inc()
}

// IncEnrichmentDrop фиксирует отброшенного кандидата.
func IncEnrichmentDrop(reason string) {
	EnrichmentDropsTotal.WithLabelValues(reason).Inc()
}

// IncVerifyRequest фиксирует исход проверки отпечатка.
func IncVerifyRequest(outcome string) {
	VerifyRequestsTotal.WithLabelValues(outcome).Inc()
}
