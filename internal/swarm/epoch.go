package swarm

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"swarmpool/internal/discord"
	"swarmpool/internal/nonce"
	"swarmpool/internal/sidecar"
	"swarmpool/internal/utils"
)

const (
	minerPoolShare = 0.75
	hiveOpsShare   = 0.25

	dustPolicy = "miner_pool_to_hive_ops"
)

// MerkleRoot hashes the sorted proof content identifiers. This is a flat
// sort-and-concatenate digest kept for wire compatibility with existing
// verifiers, not a commitment to any tree shape.
func MerkleRoot(proofCids []string) string {
	if len(proofCids) == 0 {
		return "0x" + strings.Repeat("0", 64)
	}
	sorted := slices.Clone(proofCids)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "")))
	return "0x" + hex.EncodeToString(sum[:])
}

// Settle splits the epoch volume 75/25 between miners and hive operations.
// Miners are paid by proof count; mode is advisory metadata. With an empty
// log the miner pool folds into hive ops, and the snapshot says so.
func Settle(proofLog []ProofEntry, totalVolume float64) Settlements {
	minerPool := totalVolume * minerPoolShare
	hiveOps := totalVolume * hiveOpsShare

	s := Settlements{Miners: map[string]string{}}
	if len(proofLog) == 0 {
		s.HiveOps = utils.FormatAmount(hiveOps + minerPool)
		s.DustPolicy = dustPolicy
		return s
	}

	byMiner := map[string]int{}
	for _, e := range proofLog {
		byMiner[e.Miner]++
	}
	for miner, jobs := range byMiner {
		payout := utils.Round4(minerPool * float64(jobs) / float64(len(proofLog)))
		s.Miners[miner] = utils.FormatAmount(payout)
	}
	s.HiveOps = utils.FormatAmount(hiveOps)
	return s
}

// epochID is deterministic from the open instant.
func epochID(openAt time.Time) string {
	return fmt.Sprintf("epoch-%d", openAt.Unix())
}

func epochName(openAt time.Time) string {
	return openAt.UTC().Format("2006-01-02T15:04")
}

// openEpochLocked starts a fresh accumulation interval. Callers hold Mu.
func (c *Core) openEpochLocked(now time.Time) *Epoch {
	e := &Epoch{
		ID:     epochID(now),
		Name:   epochName(now),
		OpenAt: now.Unix(),
		Status: EpochActive,
	}
	c.State.Epoch = e
	c.State.ProofLog = nil
	c.State.LastEpochSeal = now.Unix()
	c.State.LastUpdated = now.Unix()
	return e
}

// OpenEpoch opens a successor epoch and announces it.
func (c *Core) OpenEpoch() {
	now := c.now()
	c.Mu.Lock()
	e := c.openEpochLocked(now)
	c.Mu.Unlock()
	c.emit(topicEpochOpened, map[string]any{
		"epoch_id":  e.ID,
		"name":      e.Name,
		"timestamp": now.Unix(),
	})
	c.Log.Infow("Epoch opened", "epoch", e.ID)
}

func (c *Core) sealDue(now time.Time) bool {
	c.Mu.Lock()
	defer c.Mu.Unlock()
	if c.State.Epoch == nil {
		return false
	}
	return now.Unix() >= c.State.LastEpochSeal+int64(c.Env.EpochDuration/time.Second)
}

// SealEpoch closes the active epoch: build the manifest, sign it, publish it,
// record it durably, then open the successor. Sealing is one-way; on upload
// failure the epoch stays active and the next tick retries.
func (c *Core) SealEpoch() error {
	now := c.now()

	c.Mu.Lock()
	e := c.State.Epoch
	if e == nil {
		c.Mu.Unlock()
		return nil
	}
	proofLog := slices.Clone(c.State.ProofLog)
	volume := e.Volume
	snap := &EpochSealSnapshot{
		Type:        "epoch",
		Version:     SnapshotVersion,
		ID:          nonce.NewNonce(c.Env.PoolENS),
		EpochID:     e.ID,
		Name:        e.Name,
		Status:      EpochSealed,
		OpenAt:      e.OpenAt,
		CloseAt:     now.Unix(),
		Jobs:        e.Jobs,
		Proofs:      len(proofLog),
		TotalVolume: utils.FormatAmount(volume),
		ProofsList:  proofLog,
		MerkleRoot:  merkleRootOf(proofLog),
		Pool:        c.Env.PoolENS,
		Timestamp:   now.Unix(),
	}
	c.Mu.Unlock()
	snap.Settlements = Settle(proofLog, volume)

	// a seal that already made it to history must not double-credit
	sealed, err := c.alreadySealed(snap.EpochID)
	if err != nil {
		c.Log.Warnw("failed reading seal history", "error", err)
	}
	if sealed {
		c.Log.Warnw("epoch already sealed, opening successor only", "epoch", snap.EpochID)
		c.OpenEpoch()
		return nil
	}

	sig, err := c.Operator.Sign(snap)
	if err != nil {
		return utils.Wrap("failed signing epoch snapshot", err)
	}
	snap.Sig = sig

	cid, err := c.Store.UploadJSON(snap)
	if err != nil {
		return utils.Wrap("failed uploading epoch snapshot", err)
	}
	if err := c.Store.Pin(cid); err != nil {
		c.Log.Warnw("failed pinning epoch snapshot", "error", err)
	}

	ctx, cancel := c.sidecarCtx()
	defer cancel()
	if err := c.Sidecar.Set(ctx, sidecar.EpochKey(snap.EpochID), cid, 0); err != nil {
		c.Log.Warnw("failed recording sealed epoch", "error", err)
	}
	if err := c.Sidecar.LPush(ctx, sidecar.HistoryKey, snap.EpochID); err != nil {
		c.Log.Warnw("failed pushing seal history", "error", err)
	}

	c.emit(topicEpochSealed, map[string]any{
		"epoch_id":  snap.EpochID,
		"cid":       cid,
		"jobs":      snap.Jobs,
		"volume":    snap.TotalVolume,
		"timestamp": now.Unix(),
	})
	c.archiveEpoch(snap, cid)
	if err := discord.LogEpochSealedToDiscord(c.Env.DiscordURL, snap.EpochID, cid, snap.Jobs, snap.TotalVolume); err != nil {
		c.Log.Debugw("failed sending seal notification", "error", err)
	}
	c.Log.Infow(
		"Epoch sealed",
		"epoch", snap.EpochID,
		"cid", cid,
		"proofs", snap.Proofs,
		"volume", snap.TotalVolume,
		"merkle_root", snap.MerkleRoot,
	)

	c.OpenEpoch()
	return nil
}

func (c *Core) alreadySealed(epochID string) (bool, error) {
	ctx, cancel := c.sidecarCtx()
	defer cancel()
	history, err := c.Sidecar.LRange(ctx, sidecar.HistoryKey, 0, -1)
	if err != nil {
		return false, err
	}
	return slices.Contains(history, epochID), nil
}

func merkleRootOf(proofLog []ProofEntry) string {
	cids := make([]string, 0, len(proofLog))
	for _, e := range proofLog {
		cids = append(cids, e.ProofCid)
	}
	return MerkleRoot(cids)
}
