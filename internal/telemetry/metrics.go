package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики оркестратора и API. Регистрируются в default registry,
// promhttp.Handler() в main отдаёт их на /metrics.
var (
	// RunsStarted — количество захваченных runs.
	RunsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cascade_runs_started_total",
		Help: "Total runs claimed by the orchestrator",
	})

	// RunsFinished — количество завершённых runs по статусу.
	RunsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cascade_runs_finished_total",
		Help: "Total runs finished, by terminal status",
	}, []string{"status"})

	// RunDuration — длительность выполнения run в секундах.
	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cascade_run_duration_seconds",
		Help:    "Run execution duration from claim to terminal status",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 14), // 0.1s .. ~13m
	})

	// StepsExecuted — количество выполненных шагов по base и исходу.
	StepsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cascade_steps_executed_total",
		Help: "Total pipeline steps executed, by tool base and outcome",
	}, []string{"base", "outcome"})

	// CreditRejections — количество запусков, отклонённых по кредитам.
	CreditRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cascade_credit_rejections_total",
		Help: "Total run requests rejected for insufficient credits",
	})

	// JobsDispatched — количество jobs, отправленных во внешний сервис.
	JobsDispatched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cascade_jobs_dispatched_total",
		Help: "Total jobs dispatched to the external job service",
	})
)
