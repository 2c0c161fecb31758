package observe

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/guberm/wealthsimple-trading-bot/internal/contracts"
)

var (
	runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wstrader_runs_total",
		Help: "Finished rebalance runs by mode and outcome",
	}, []string{"mode", "outcome"})

	runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "wstrader_run_duration_seconds",
		Help:    "Wall time of one rebalance run",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	ordersTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wstrader_orders_total",
		Help: "Order outcomes by side and status",
	}, []string{"side", "status"})

	stageFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "wstrader_stage_failures_total",
		Help: "Pipeline stage failures by stage",
	}, []string{"stage"})

	portfolioValue = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wstrader_portfolio_value_cad",
		Help: "Total portfolio value observed by the last run",
	})

	cashBalance = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wstrader_cash_balance_cad",
		Help: "Cash balance observed by the last run",
	})

	lastRunFinished = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "wstrader_last_run_timestamp_seconds",
		Help: "Unix time the last run finished",
	})
)

func init() {
	prometheus.MustRegister(
		runsTotal,
		runDuration,
		ordersTotal,
		stageFailuresTotal,
		portfolioValue,
		cashBalance,
		lastRunFinished,
	)
}

// RecordRun folds one finished run into the process metrics
func RecordRun(report *contracts.RunReport) {
	runsTotal.WithLabelValues(string(report.Mode), string(report.Outcome)).Inc()
	runDuration.Observe(report.Duration().Seconds())
	lastRunFinished.Set(float64(report.FinishedAt.Unix()))

	for i := range report.Stages {
		if !report.Stages[i].Success {
			stageFailuresTotal.WithLabelValues(string(report.Stages[i].Stage)).Inc()
		}
	}

	for i := range report.Outcomes {
		o := &report.Outcomes[i]
		ordersTotal.WithLabelValues(string(o.Side), string(o.Status)).Inc()
	}

	if report.Summary != nil {
		total, _ := report.Summary.TotalValue.Float64()
		portfolioValue.Set(total)
		cash, _ := report.Summary.CashBalance.Float64()
		cashBalance.Set(cash)
	}
}
