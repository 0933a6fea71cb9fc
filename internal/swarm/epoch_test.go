package swarm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMerkleRootEmpty(t *testing.T) {
	require.Equal(t, "0x"+strings.Repeat("0", 64), MerkleRoot(nil))
}

func TestMerkleRootSortsLexicographically(t *testing.T) {
	a, b := "ipfs://bafyproofaa", "ipfs://bafyproofbb"
	sum := sha256.Sum256([]byte(a + b))
	want := "0x" + hex.EncodeToString(sum[:])

	require.Equal(t, want, MerkleRoot([]string{a, b}))
	// order of observation does not matter
	require.Equal(t, want, MerkleRoot([]string{b, a}))
}

func TestMerkleRootSingle(t *testing.T) {
	sum := sha256.Sum256([]byte("ipfs://bafyproofaa"))
	require.Equal(t, "0x"+hex.EncodeToString(sum[:]), MerkleRoot([]string{"ipfs://bafyproofaa"}))
}

func TestSettleSplitsVolume(t *testing.T) {
	log := []ProofEntry{
		{JobCid: jobA, ProofCid: proofA, Miner: alice},
		{JobCid: jobB, ProofCid: proofB, Miner: alice},
	}
	s := Settle(log, 2.00)
	require.Equal(t, "1.5000", s.Miners[alice])
	require.Equal(t, "0.5000", s.HiveOps)
	require.Empty(t, s.DustPolicy)
}

func TestSettleByProofCount(t *testing.T) {
	log := []ProofEntry{
		{ProofCid: "ipfs://p1", Miner: alice},
		{ProofCid: "ipfs://p2", Miner: alice},
		{ProofCid: "ipfs://p3", Miner: bob},
	}
	s := Settle(log, 4.00)
	// miner pool 3.00 split 2:1
	require.Equal(t, "2.0000", s.Miners[alice])
	require.Equal(t, "1.0000", s.Miners[bob])
	require.Equal(t, "1.0000", s.HiveOps)
}

func TestSettleEmptyEpochRollsDustForward(t *testing.T) {
	s := Settle(nil, 2.00)
	require.Empty(t, s.Miners)
	require.Equal(t, "2.0000", s.HiveOps)
	require.Equal(t, "miner_pool_to_hive_ops", s.DustPolicy)
}

func TestSettleRoundingBound(t *testing.T) {
	log := []ProofEntry{
		{ProofCid: "ipfs://p1", Miner: alice},
		{ProofCid: "ipfs://p2", Miner: bob},
		{ProofCid: "ipfs://p3", Miner: carol},
	}
	volume := 1.00
	s := Settle(log, volume)

	total := 0.0
	for _, amount := range s.Miners {
		v, err := strconv.ParseFloat(amount, 64)
		require.NoError(t, err)
		total += v
	}
	hive, err := strconv.ParseFloat(s.HiveOps, 64)
	require.NoError(t, err)
	total += hive

	require.InDelta(t, volume, total, float64(len(s.Miners))*1e-4)
}

func TestSealEpoch(t *testing.T) {
	h := newHarness(t)
	h.register(t, alice)
	for _, job := range []struct{ job, proof string }{{jobA, proofA}, {jobB, proofB}} {
		h.announce(t, job.job, carol, "1.00")
		h.claim(t, job.job, alice)
		h.prove(t, job.job, job.proof, alice)
	}
	firstEpoch := h.core.State.Epoch.ID

	h.clock.Advance(3600 * time.Second)
	require.True(t, h.core.sealDue(h.clock.Now()))
	require.NoError(t, h.core.SealEpoch())

	snap := h.store.lastUpload()
	require.NotNil(t, snap)
	require.Equal(t, "epoch", snap["type"])
	require.Equal(t, "sealed", snap["status"])
	require.Equal(t, firstEpoch, snap["epoch_id"])
	require.Equal(t, "2.0000", snap["total_volume"])
	require.Equal(t, "eip191:0xfeedface", snap["sig"])

	settlements := snap["settlements"].(map[string]any)
	miners := settlements["miners"].(map[string]any)
	require.Equal(t, "1.5000", miners[alice])
	require.Equal(t, "0.5000", settlements["hive_ops"])

	sum := sha256.Sum256([]byte(proofA + proofB))
	require.Equal(t, "0x"+hex.EncodeToString(sum[:]), snap["merkle_root"])

	proofs := snap["proofs_list"].([]any)
	require.Len(t, proofs, 2)

	// sealed identifier recorded durably
	history, err := h.sidecar.LRange(context.Background(), "pool:epochs:history", 0, -1)
	require.NoError(t, err)
	require.Equal(t, []string{firstEpoch}, history)
	cid, err := h.sidecar.Get(context.Background(), "pool:epoch:"+firstEpoch)
	require.NoError(t, err)
	require.NotEmpty(t, cid)

	sealed := h.bus.onTopic("swarmos.eth/epochs/sealed")
	require.Len(t, sealed, 1)
	require.Equal(t, firstEpoch, sealed[0].Payload["epoch_id"])

	// a successor epoch is active with clean counters
	s := h.core.State
	require.NotEqual(t, firstEpoch, s.Epoch.ID)
	require.Equal(t, EpochActive, s.Epoch.Status)
	require.Equal(t, 0, s.Epoch.Jobs)
	require.Empty(t, s.ProofLog)
	require.Len(t, h.bus.onTopic("swarmos.eth/epochs/opened"), 1)

	// lifetime counters survive the seal
	require.Equal(t, 2, s.TotalJobs)
	require.Equal(t, 2, s.TotalProofs)
}

func TestSealIdempotentOnIdentifier(t *testing.T) {
	h := newHarness(t)
	epochID := h.core.State.Epoch.ID
	require.NoError(t, h.sidecar.LPush(context.Background(), "pool:epochs:history", epochID))

	h.clock.Advance(3600 * time.Second)
	require.NoError(t, h.core.SealEpoch())

	// nothing re-published, no double credit
	require.Empty(t, h.store.uploads)
	require.Empty(t, h.bus.onTopic("swarmos.eth/epochs/sealed"))
	// but a successor epoch still opens
	require.NotEqual(t, epochID, h.core.State.Epoch.ID)
}

func TestSealNotDueBeforeDuration(t *testing.T) {
	h := newHarness(t)
	h.clock.Advance(3599 * time.Second)
	require.False(t, h.core.sealDue(h.clock.Now()))
	h.clock.Advance(1 * time.Second)
	require.True(t, h.core.sealDue(h.clock.Now()))
}

func TestEpochIDDeterministic(t *testing.T) {
	open := time.Unix(1735689600, 0)
	require.Equal(t, "epoch-1735689600", epochID(open))
	require.Equal(t, epochID(open), epochID(open))
	require.Equal(t, "2025-01-01T00:00", epochName(open))
}
