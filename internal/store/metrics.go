package store

import "github.com/prometheus/client_golang/prometheus"

var (
	// savesTotal counts save attempts by outcome ("ok" or "failed").
	savesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nicknamebot_store_saves_total",
			Help: "Total number of storage file saves by result.",
		},
		[]string{"result"},
	)

	// recordsGauge is the number of records currently held in memory.
	recordsGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "nicknamebot_store_records",
			Help: "Number of nickname records held in memory.",
		},
	)
)

func init() {
	prometheus.MustRegister(savesTotal, recordsGauge)
}
