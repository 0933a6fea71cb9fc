package swarm

import (
	"time"
)

// All helpers in this file assume Core.Mu is held.

// trackedLocked reports whether cid has ever been accepted: pending, claimed,
// in any epoch proof log, all of it lands in SeenJobs. Duplicate
// announcements are no-ops against this set.
func (c *Core) trackedLocked(cid string) bool {
	return c.State.SeenJobs[cid]
}

func (c *Core) appendPendingLocked(cid string, reward float64, now time.Time) {
	c.State.SeenJobs[cid] = true
	c.State.PendingJobs = append(c.State.PendingJobs, cid)
	c.State.TotalJobs++
	c.State.TotalVolume += reward
	if c.State.Epoch != nil {
		c.State.Epoch.Jobs++
		c.State.Epoch.Volume += reward
	}
	c.State.LastUpdated = now.Unix()
}

func (c *Core) pendingLocked(cid string) bool {
	for _, p := range c.State.PendingJobs {
		if p == cid {
			return true
		}
	}
	return false
}

func (c *Core) removePendingLocked(cid string) {
	for i, p := range c.State.PendingJobs {
		if p == cid {
			c.State.PendingJobs = append(c.State.PendingJobs[:i], c.State.PendingJobs[i+1:]...)
			return
		}
	}
}

// claimLocked awards cid to miner. Caller has already checked pending
// membership and miner registration.
func (c *Core) claimLocked(cid, miner string, now time.Time) *Claim {
	c.removePendingLocked(cid)
	claim := &Claim{
		Miner:     miner,
		ClaimedAt: now.Unix(),
		TimeoutAt: now.Add(c.Env.ClaimTimeout).Unix(),
	}
	c.State.ClaimedJobs[cid] = claim
	if m := c.State.ActiveMiners[miner]; m != nil {
		m.RunningJobs++
	}
	c.State.LastUpdated = now.Unix()
	return claim
}

func (c *Core) acceptProofLocked(entry ProofEntry, now time.Time) {
	delete(c.State.ClaimedJobs, entry.JobCid)
	c.State.TotalProofs++
	if m := c.State.ActiveMiners[entry.Miner]; m != nil {
		m.JobsCompleted++
		if m.RunningJobs > 0 {
			m.RunningJobs--
		}
	}
	c.State.ProofLog = append(c.State.ProofLog, entry)
	c.State.LastUpdated = now.Unix()
}

// reclaimExpiredLocked removes timed-out claims and re-pends their jobs. The
// previous claimant is never banned.
func (c *Core) reclaimExpiredLocked(now time.Time) map[string]*Claim {
	expired := map[string]*Claim{}
	for cid, claim := range c.State.ClaimedJobs {
		if claim.TimeoutAt >= now.Unix() {
			continue
		}
		expired[cid] = claim
		delete(c.State.ClaimedJobs, cid)
		c.State.PendingJobs = append(c.State.PendingJobs, cid)
		if m := c.State.ActiveMiners[claim.Miner]; m != nil && m.RunningJobs > 0 {
			m.RunningJobs--
		}
	}
	if len(expired) != 0 {
		c.State.LastUpdated = now.Unix()
	}
	return expired
}

// upsertMinerLocked registers or re-registers a miner, preserving completed
// job stats across re-registrations.
func (c *Core) upsertMinerLocked(ens string, gpus, models []string, mode string, now time.Time) *Miner {
	m, ok := c.State.ActiveMiners[ens]
	if !ok {
		m = &Miner{ENS: ens}
		c.State.ActiveMiners[ens] = m
	}
	m.RegisteredAt = now.Unix()
	m.LastHeartbeat = now.Unix()
	m.GPUs = gpus
	m.Models = models
	m.Mode = mode
	m.Status = MinerOnline
	c.State.LastUpdated = now.Unix()
	return m
}

func (c *Core) heartbeatLocked(ens string, now time.Time) bool {
	m, ok := c.State.ActiveMiners[ens]
	if !ok {
		return false
	}
	m.LastHeartbeat = now.Unix()
	m.Status = MinerOnline
	c.State.LastUpdated = now.Unix()
	return true
}

// markOfflineLocked flips miners with stale heartbeats offline; they stay in
// the registry for stats and re-registration.
func (c *Core) markOfflineLocked(now time.Time) []string {
	var flipped []string
	cutoff := now.Add(-c.Env.MinerTimeout).Unix()
	for ens, m := range c.State.ActiveMiners {
		if m.Status != MinerOnline || m.LastHeartbeat >= cutoff {
			continue
		}
		m.Status = MinerOffline
		flipped = append(flipped, ens)
	}
	if len(flipped) != 0 {
		c.State.LastUpdated = now.Unix()
	}
	return flipped
}
