package swarm

import (
	"time"
)

// The liveness & timeout supervisor: periodic tasks sharing the pool mutex
// with the router. Each loop observes the stop flag at its head.

const (
	statePublishInterval   = 10 * time.Second
	epochManageInterval    = 60 * time.Second
	claimTimeoutInterval   = 30 * time.Second
	heartbeatCheckInterval = 30 * time.Second
)

func (c *Core) statePublisherLoop() {
	ticker := c.Clock.NewTicker(statePublishInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.Chan():
			if err := c.PublishState(); err != nil {
				c.Log.Warnw("failed publishing state", "error", err)
			}
		}
	}
}

func (c *Core) epochManagerLoop() {
	ticker := c.Clock.NewTicker(epochManageInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.Chan():
			if !c.sealDue(c.now()) {
				continue
			}
			if err := c.SealEpoch(); err != nil {
				// epoch stays active; retried on the next tick
				c.Log.Errorw("failed sealing epoch", "error", err)
			}
		}
	}
}

func (c *Core) claimTimeoutLoop() {
	ticker := c.Clock.NewTicker(claimTimeoutInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.Chan():
			c.ReclaimExpired()
		}
	}
}

// ReclaimExpired returns timed-out claims to pending and announces each
// reclamation once.
func (c *Core) ReclaimExpired() {
	now := c.now()
	c.Mu.Lock()
	expired := c.reclaimExpiredLocked(now)
	c.Mu.Unlock()
	for jobCid, claim := range expired {
		c.emit(topicClaimTimeout, map[string]any{
			"job_cid":   jobCid,
			"miner":     claim.Miner,
			"timestamp": now.Unix(),
		})
		c.Log.Infow("Claim timed out", "cid", jobCid, "miner", claim.Miner)
	}
}

func (c *Core) heartbeatMonitorLoop() {
	ticker := c.Clock.NewTicker(heartbeatCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.Chan():
			c.CheckHeartbeats()
		}
	}
}

// CheckHeartbeats flips miners with stale heartbeats offline.
func (c *Core) CheckHeartbeats() {
	c.Mu.Lock()
	flipped := c.markOfflineLocked(c.now())
	c.Mu.Unlock()
	for _, ens := range flipped {
		c.Log.Infow("Miner offline", "miner", ens)
	}
}
