package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "h2opt_jobs_started_total",
		Help: "Total number of optimization jobs accepted.",
	})

	jobsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "h2opt_jobs_finished_total",
		Help: "Total number of optimization jobs finished, by terminal status.",
	}, []string{"status"})

	evaluationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "h2opt_objective_evaluations_total",
		Help: "Total number of objective evaluations across all jobs.",
	})
)
