package metrics

import (
	"database/sql"
	"log"

	"github.com/prometheus/client_golang/prometheus"
)

func registerDBMetrics(db *sql.DB, logger *log.Logger) {
	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "registration_sessions_open",
			Help: "Registration sessions currently in progress",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM registration_sessions WHERE status = 'in_progress'")
		},
	))

	prometheus.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: metricPrefix + "registration_sessions_submitting",
			Help: "Registration sessions with a submission in flight",
		},
		func() float64 {
			return queryCount(db, logger, "SELECT COUNT(*) FROM registration_sessions WHERE submitting")
		},
	))
}

func queryCount(db *sql.DB, logger *log.Logger, query string) float64 {
	if db == nil {
		return 0
	}
	var count int64
	if err := db.QueryRow(query).Scan(&count); err != nil {
		if logger != nil {
			logger.Printf("metrics query failed: %v", err)
		}
		return 0
	}
	if count < 0 {
		return 0
	}
	return float64(count)
}
