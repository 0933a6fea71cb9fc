package swarm

import (
	"encoding/json"
	"time"

	"swarmpool/internal/canon"
	"swarmpool/internal/sidecar"
	"swarmpool/internal/transport"
)

// RunRouter is the single ingestion loop. Each handler runs to completion
// before the next message is dequeued; handler failures are logged and
// swallowed, they never terminate the loop.
func (c *Core) RunRouter() {
	c.Log.Infof("Router listening on namespace [%s]", c.Env.PoolENS)
	for c.running() {
		msg, err := c.Bus.GetMessage(1 * time.Second)
		if err != nil {
			if !c.running() {
				return
			}
			c.Log.Warnw("transport read error", "error", err)
			time.Sleep(1 * time.Second)
			continue
		}
		if msg == nil {
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Core) dispatch(msg *transport.Message) {
	defer func() {
		if r := recover(); r != nil {
			c.Log.Errorw("handler panic", "topic", msg.Topic, "panic", r)
		}
	}()
	payload, err := canon.Decode(msg.Data)
	if err != nil {
		c.Log.Debugw("dropping malformed message", "topic", msg.Topic, "error", err)
		return
	}
	switch {
	case topicSuffix(msg.Topic, topicHeartbeats):
		c.handleHeartbeat(payload)
	case topicSuffix(msg.Topic, topicClaims):
		c.handleClaim(payload)
	case topicSuffix(msg.Topic, topicProofs):
		c.handleProof(payload)
	case topicSuffix(msg.Topic, topicMiners):
		c.handleMinerRegistration(payload)
	case topicSuffix(msg.Topic, topicJobs):
		c.handleJobAnnouncement(payload)
	default:
		c.Log.Debugw("message on unknown topic", "topic", msg.Topic)
	}
}

func (c *Core) emit(suffix string, payload any) {
	if err := c.Bus.Publish(c.topic(suffix), payload); err != nil {
		c.Log.Warnw("failed publishing announcement", "topic", suffix, "error", err)
	}
}

// handleJobAnnouncement ingests {cid, client, timestamp}: fetch the job blob,
// check the client signature, then track the job as pending.
func (c *Core) handleJobAnnouncement(msg map[string]any) {
	cid := getString(msg, "cid")
	client := getString(msg, "client")
	if cid == "" || client == "" {
		c.Log.Debugw("dropping announcement with missing fields")
		return
	}
	Log := c.Log.With("cid", cid)

	// duplicate announcements are silent no-ops, checked before any fetch
	c.Mu.Lock()
	dup := c.trackedLocked(cid)
	c.Mu.Unlock()
	if dup {
		return
	}

	blob, err := c.Store.FetchJSON(cid)
	if err != nil {
		Log.Debugw("dropping unfetchable job", "error", err)
		return
	}
	if !c.Verifier.Verify(blob, client) {
		Log.Debugw("dropping job with invalid signature", "client", client)
		return
	}
	jobType := getString(blob, "job_type")
	model := getString(blob, "model")
	if jobType == "" || model == "" {
		Log.Debugw("dropping job without job_type/model")
		return
	}
	reward := getFloat(blob, "reward")

	now := c.now()
	c.Mu.Lock()
	if c.trackedLocked(cid) {
		c.Mu.Unlock()
		return
	}
	c.appendPendingLocked(cid, reward, now)
	c.Mu.Unlock()

	if err := c.Store.Pin(cid); err != nil {
		Log.Warnw("failed pinning job blob", "error", err)
	}
	c.emit(topicJobsNew, map[string]any{
		"cid":       cid,
		"job_type":  jobType,
		"model":     model,
		"reward":    blob["reward"],
		"timestamp": now.Unix(),
	})
	Log.Infow("Job accepted", "job_type", jobType, "model", model, "client", client)
}

// handleClaim arbitrates {job_cid, miner, nonce, timestamp, sig}. Among
// concurrent claims for one job the first observed here wins; the rest are
// dropped silently.
func (c *Core) handleClaim(msg map[string]any) {
	jobCid := getString(msg, "job_cid")
	miner := getString(msg, "miner")
	if jobCid == "" || miner == "" {
		return
	}
	Log := c.Log.With("cid", jobCid, "miner", miner)

	c.Mu.Lock()
	_, registered := c.State.ActiveMiners[miner]
	pending := c.pendingLocked(jobCid)
	c.Mu.Unlock()
	if !pending || !registered {
		Log.Debugw("dropping claim", "pending", pending, "registered", registered)
		return
	}

	// signature check happens before any state mutation
	if !c.Verifier.Verify(msg, miner) {
		Log.Debugw("dropping claim with invalid signature")
		return
	}

	now := c.now()
	c.Mu.Lock()
	if !c.pendingLocked(jobCid) {
		// lost the race while the signature was checked
		c.Mu.Unlock()
		return
	}
	c.claimLocked(jobCid, miner, now)
	c.Mu.Unlock()

	c.emit(topicClaimAccepted, map[string]any{
		"job_cid":   jobCid,
		"miner":     miner,
		"timestamp": now.Unix(),
	})
	Log.Infow("Claim accepted")
}

// handleProof ingests {job_cid, proof_cid, miner, timestamp}: only the
// current claimant may prove, and the proof blob must check out before the
// claim is settled into the epoch log.
func (c *Core) handleProof(msg map[string]any) {
	jobCid := getString(msg, "job_cid")
	proofCid := getString(msg, "proof_cid")
	miner := getString(msg, "miner")
	if jobCid == "" || proofCid == "" || miner == "" {
		return
	}
	Log := c.Log.With("cid", jobCid, "miner", miner)

	c.Mu.Lock()
	claim := c.State.ClaimedJobs[jobCid]
	c.Mu.Unlock()
	if claim == nil || claim.Miner != miner {
		Log.Debugw("dropping proof from non-claimant")
		return
	}

	blob, err := c.Store.FetchJSON(proofCid)
	if err != nil {
		Log.Debugw("dropping unfetchable proof", "error", err)
		return
	}
	if !c.Verifier.Verify(blob, miner) {
		Log.Debugw("dropping proof with invalid signature")
		return
	}
	if getString(blob, "job_cid") != jobCid {
		Log.Debugw("dropping proof for mismatched job")
		return
	}
	for _, field := range []string{"status", "output_cid", "metrics", "proof_hash"} {
		if _, ok := blob[field]; !ok {
			Log.Debugw("dropping proof with missing field", "field", field)
			return
		}
	}

	now := c.now()
	entry := ProofEntry{JobCid: jobCid, ProofCid: proofCid, Miner: miner, Timestamp: now.Unix()}
	c.Mu.Lock()
	claim = c.State.ClaimedJobs[jobCid]
	if claim == nil || claim.Miner != miner {
		// claim timed out while the blob was fetched
		c.Mu.Unlock()
		return
	}
	c.acceptProofLocked(entry, now)
	epochID := c.State.Epoch.ID
	c.Mu.Unlock()

	c.appendProofLog(epochID, entry)
	if err := c.Store.Pin(proofCid); err != nil {
		Log.Warnw("failed pinning proof blob", "error", err)
	}
	c.emit(topicProofAccepted, map[string]any{
		"job_cid":   jobCid,
		"proof_cid": proofCid,
		"miner":     miner,
		"timestamp": now.Unix(),
	})
	Log.Infow("Proof accepted", "proof_cid", proofCid)
}

// appendProofLog writes the entry to the durable per-epoch log. The in-memory
// log already holds it; a sidecar failure costs restart recovery, not the
// running epoch.
func (c *Core) appendProofLog(epochID string, entry ProofEntry) {
	raw, err := json.Marshal(entry)
	if err != nil {
		c.Log.Errorw("failed marshaling proof entry", "error", err)
		return
	}
	ctx, cancel := c.sidecarCtx()
	defer cancel()
	if err := c.Sidecar.RPush(ctx, sidecar.EpochProofsKey(epochID), string(raw)); err != nil {
		c.Log.Warnw("failed appending proof to sidecar", "error", err)
	}
}

// handleMinerRegistration upserts a signed registration record. Completed job
// counts survive re-registration.
func (c *Core) handleMinerRegistration(msg map[string]any) {
	ens := getString(msg, "miner", "ens")
	if ens == "" {
		return
	}
	if !c.Verifier.Verify(msg, ens) {
		c.Log.Debugw("dropping registration with invalid signature", "miner", ens)
		return
	}
	mode := getString(msg, "mode")
	if mode == "" {
		mode = ModeSolo
	}

	now := c.now()
	c.Mu.Lock()
	c.upsertMinerLocked(ens, getStrings(msg, "gpus"), getStrings(msg, "models"), mode, now)
	c.Mu.Unlock()

	c.emit(topicMinerJoined, map[string]any{
		"miner":     ens,
		"timestamp": now.Unix(),
	})
	c.Log.Infow("Miner joined", "miner", ens, "mode", mode)
}

// handleHeartbeat refreshes liveness for a registered miner; unknown miners
// are ignored, registration comes first.
func (c *Core) handleHeartbeat(msg map[string]any) {
	miner := getString(msg, "miner")
	if miner == "" {
		return
	}
	c.Mu.Lock()
	_, known := c.State.ActiveMiners[miner]
	c.Mu.Unlock()
	if !known {
		return
	}
	if !c.Verifier.Verify(msg, miner) {
		c.Log.Debugw("dropping heartbeat with invalid signature", "miner", miner)
		return
	}
	c.Mu.Lock()
	c.heartbeatLocked(miner, c.now())
	c.Mu.Unlock()
}
