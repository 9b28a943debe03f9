package jobs

import (
	"time"

	"github.com/rs/zerolog/log"

	"github.com/carelink/telehealth-go/internal/notify"
)

// HeartbeatJob probes every open notification channel on a fixed interval.
// A failed send during a cycle is proof of a dead connection and the registry
// prunes it. This is the only mechanism that reclaims connections which die
// without a clean close (client crash, network drop).
type HeartbeatJob struct {
	registry *notify.Registry
	interval time.Duration
	done     chan struct{}
}

func NewHeartbeatJob(registry *notify.Registry, interval time.Duration) *HeartbeatJob {
	return &HeartbeatJob{
		registry: registry,
		interval: interval,
		done:     make(chan struct{}),
	}
}

func (j *HeartbeatJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("heartbeat job started")
}

func (j *HeartbeatJob) Stop() {
	close(j.done)
	log.Info().Msg("heartbeat job stopped")
}

func (j *HeartbeatJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.probe()
		}
	}
}

func (j *HeartbeatJob) probe() {
	before := j.registry.Status().TotalConnections
	if before == 0 {
		return
	}

	sent := j.registry.BroadcastAll(notify.HeartbeatEvent{
		Type:      notify.EventHeartbeat,
		Timestamp: time.Now(),
		Alive:     true,
	})
	pruned := before - sent

	if pruned > 0 {
		log.Info().
			Int("sent", sent).
			Int("pruned", pruned).
			Msg("heartbeat cycle pruned dead connections")
	} else {
		log.Debug().
			Int("sent", sent).
			Msg("heartbeat cycle complete")
	}
}
