package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ledgerPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "stepquest",
		Subsystem: "persistence",
		Name:      "last_ledger_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent step sync persisted to Postgres.",
	})
	attackPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "stepquest",
		Subsystem: "persistence",
		Name:      "last_attack_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent boss attack persisted to Postgres.",
	})
	syncCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stepquest",
		Subsystem: "ledger",
		Name:      "syncs_total",
		Help:      "Step sync requests by outcome.",
	}, []string{"outcome"})
	attackCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stepquest",
		Subsystem: "combat",
		Name:      "attacks_total",
		Help:      "Boss attack requests by outcome.",
	}, []string{"outcome"})
	bossDefeatCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stepquest",
		Subsystem: "combat",
		Name:      "boss_defeats_total",
		Help:      "Bosses driven below zero health.",
	})
)

func init() {
	prometheus.MustRegister(ledgerPersistGauge, attackPersistGauge, syncCounter, attackCounter, bossDefeatCounter)
}

// RecordLedgerPersisted updates the ledger persistence watermark gauge.
func RecordLedgerPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	ledgerPersistGauge.Set(float64(ts.Unix()))
}

// RecordAttackPersisted updates the attack persistence watermark gauge.
func RecordAttackPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	attackPersistGauge.Set(float64(ts.Unix()))
}

// RecordSync counts a step sync outcome ("applied", "replayed", "rejected").
func RecordSync(outcome string) {
	syncCounter.WithLabelValues(outcome).Inc()
}

// RecordAttack counts a boss attack outcome ("hit", "defeat", "rejected").
func RecordAttack(outcome string) {
	attackCounter.WithLabelValues(outcome).Inc()
	if outcome == "defeat" {
		bossDefeatCounter.Inc()
	}
}
