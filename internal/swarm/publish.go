package swarm

import (
	"encoding/json"
	"sort"
	"strconv"

	"swarmpool/internal/nonce"
	"swarmpool/internal/sidecar"
	"swarmpool/internal/utils"
)

// buildStateSnapshotLocked copies pool state into its signed wire form. Callers
// hold Mu.
func (c *Core) buildStateSnapshotLocked(now int64) *StateSnapshot {
	s := c.State
	snap := &StateSnapshot{
		Type:          "state",
		Version:       SnapshotVersion,
		ID:            nonce.NewNonce(c.Env.PoolENS),
		Pool:          s.Pool,
		TotalJobs:     s.TotalJobs,
		TotalProofs:   s.TotalProofs,
		TotalVolume:   utils.FormatAmount(s.TotalVolume),
		PendingJobs:   append([]string{}, s.PendingJobs...),
		ClaimedJobs:   map[string]*Claim{},
		Miners:        map[string]*Miner{},
		LastEpochSeal: s.LastEpochSeal,
		LastUpdated:   s.LastUpdated,
		Timestamp:     now,
	}
	for cid, claim := range s.ClaimedJobs {
		cp := *claim
		snap.ClaimedJobs[cid] = &cp
	}
	for ens, m := range s.ActiveMiners {
		cp := *m
		snap.Miners[ens] = &cp
	}
	if s.Epoch != nil {
		snap.Epoch = EpochStateSnapshot{
			ID:     s.Epoch.ID,
			Name:   s.Epoch.Name,
			OpenAt: s.Epoch.OpenAt,
			Status: s.Epoch.Status,
			Jobs:   s.Epoch.Jobs,
			Volume: utils.FormatAmount(s.Epoch.Volume),
		}
	}
	return snap
}

// PublishState signs and uploads the authoritative pool state, announces the
// identifier and caches it for restart recovery. Consumers tolerate a missed
// tick.
func (c *Core) PublishState() error {
	now := c.now().Unix()
	c.Mu.Lock()
	snap := c.buildStateSnapshotLocked(now)
	c.Mu.Unlock()

	sig, err := c.Operator.Sign(snap)
	if err != nil {
		return utils.Wrap("failed signing state snapshot", err)
	}
	snap.Sig = sig

	cid, err := c.Store.UploadJSON(snap)
	if err != nil {
		return utils.Wrap("failed uploading state snapshot", err)
	}
	if err := c.Store.Pin(cid); err != nil {
		c.Log.Debugw("failed pinning state snapshot", "error", err)
	}

	ctx, cancel := c.sidecarCtx()
	defer cancel()
	if err := c.Sidecar.Set(ctx, sidecar.StateCidKey, cid, 0); err != nil {
		c.Log.Warnw("failed caching state cid", "error", err)
	}

	c.emit(topicState, map[string]any{"cid": cid, "timestamp": now})
	c.archiveState(snap, cid)
	return nil
}

// Restore rebuilds pool state from the last published snapshot. Claims do not
// survive a restart: anything claimed at crash time folds back into pending
// and miners re-claim. The current epoch's proof log is reread from the
// durable sidecar.
func (c *Core) Restore() error {
	ctx, cancel := c.sidecarCtx()
	defer cancel()
	cid, err := c.Sidecar.Get(ctx, sidecar.StateCidKey)
	if err != nil {
		return utils.Wrap("failed reading cached state cid", err)
	}
	if cid == "" {
		c.Log.Info("No previous state, starting fresh")
		return nil
	}

	blob, err := c.Store.FetchJSON(cid)
	if err != nil {
		c.Log.Warnw("cached state unfetchable, starting fresh", "cid", cid, "error", err)
		return nil
	}
	raw, err := json.Marshal(blob)
	if err != nil {
		return utils.Wrap("failed remarshaling state snapshot", err)
	}
	var snap StateSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		c.Log.Warnw("cached state unparseable, starting fresh", "cid", cid, "error", err)
		return nil
	}

	c.Mu.Lock()
	defer c.Mu.Unlock()
	s := NewPoolState(c.Env.PoolENS)
	s.TotalJobs = snap.TotalJobs
	s.TotalProofs = snap.TotalProofs
	s.TotalVolume, _ = strconv.ParseFloat(snap.TotalVolume, 64)
	s.LastEpochSeal = snap.LastEpochSeal
	s.LastUpdated = snap.LastUpdated
	s.PendingJobs = append(s.PendingJobs, snap.PendingJobs...)

	// all prior claims expire on restart
	reclaimed := make([]string, 0, len(snap.ClaimedJobs))
	for jobCid := range snap.ClaimedJobs {
		reclaimed = append(reclaimed, jobCid)
	}
	sort.Strings(reclaimed)
	s.PendingJobs = append(s.PendingJobs, reclaimed...)

	for ens, m := range snap.Miners {
		cp := *m
		s.ActiveMiners[ens] = &cp
	}
	if snap.Epoch.ID != "" {
		vol, _ := strconv.ParseFloat(snap.Epoch.Volume, 64)
		s.Epoch = &Epoch{
			ID:     snap.Epoch.ID,
			Name:   snap.Epoch.Name,
			OpenAt: snap.Epoch.OpenAt,
			Status: snap.Epoch.Status,
			Jobs:   snap.Epoch.Jobs,
			Volume: vol,
		}
		s.ProofLog = c.rereadProofLog(snap.Epoch.ID)
	}
	for _, cid := range s.PendingJobs {
		s.SeenJobs[cid] = true
	}
	for _, e := range s.ProofLog {
		s.SeenJobs[e.JobCid] = true
	}
	c.State = s
	c.Log.Infow(
		"Restored pool state",
		"cid", cid,
		"pending", len(s.PendingJobs),
		"reclaimed", len(reclaimed),
		"miners", len(s.ActiveMiners),
		"epoch", snap.Epoch.ID,
	)
	return nil
}

func (c *Core) rereadProofLog(epochID string) []ProofEntry {
	ctx, cancel := c.sidecarCtx()
	defer cancel()
	raw, err := c.Sidecar.LRange(ctx, sidecar.EpochProofsKey(epochID), 0, -1)
	if err != nil {
		c.Log.Warnw("failed rereading epoch proof log", "epoch", epochID, "error", err)
		return nil
	}
	log := make([]ProofEntry, 0, len(raw))
	for _, item := range raw {
		var e ProofEntry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			c.Log.Warnw("skipping malformed proof log entry", "error", err)
			continue
		}
		log = append(log, e)
	}
	return log
}
