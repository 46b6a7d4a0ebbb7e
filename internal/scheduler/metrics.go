package scheduler

import "github.com/prometheus/client_golang/prometheus"

var (
	respawnCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stepquest",
		Subsystem: "scheduler",
		Name:      "boss_respawns_total",
		Help:      "Defeated bosses replaced by the respawn sweep.",
	})

	dailySpawnCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stepquest",
		Subsystem: "scheduler",
		Name:      "daily_boss_spawns_total",
		Help:      "Daily bosses spawned from the rotation.",
	})
)

func init() {
	prometheus.MustRegister(respawnCounter, dailySpawnCounter)
}

func recordRespawn()    { respawnCounter.Inc() }
func recordDailySpawn() { dailySpawnCounter.Inc() }
