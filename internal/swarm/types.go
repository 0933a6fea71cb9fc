package swarm

import (
	"encoding/json"
	"strconv"
)

const (
	SnapshotVersion = "swarm-1"

	EpochActive = "active"
	EpochSealed = "sealed"

	MinerOnline  = "online"
	MinerOffline = "offline"

	ModeSolo = "solo"
	ModePool = "pool"
)

// Claim is soft state: a lease on a job that a timeout can revert.
type Claim struct {
	Miner     string `json:"miner"`
	ClaimedAt int64  `json:"claimed_at"`
	TimeoutAt int64  `json:"timeout_at"`
}

type Miner struct {
	ENS           string   `json:"ens"`
	RegisteredAt  int64    `json:"registered_at"`
	LastHeartbeat int64    `json:"last_heartbeat"`
	GPUs          []string `json:"gpus,omitempty"`
	Models        []string `json:"models,omitempty"`
	Mode          string   `json:"mode,omitempty"`
	JobsCompleted int      `json:"jobs_completed"`
	RunningJobs   int      `json:"running_jobs"`
	Status        string   `json:"status"`
}

// ProofEntry is the durable per-epoch log record; entries are never deleted.
type ProofEntry struct {
	JobCid    string `json:"job_cid"`
	ProofCid  string `json:"proof_cid"`
	Miner     string `json:"miner"`
	Timestamp int64  `json:"timestamp"`
}

type Epoch struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	OpenAt int64   `json:"open_at"`
	Status string  `json:"status"`
	Jobs   int     `json:"jobs"`
	Volume float64 `json:"-"`
}

// PoolState is the authoritative in-memory pool state. Only ever touched with
// Core.Mu held.
type PoolState struct {
	Pool        string
	TotalJobs   int
	TotalProofs int
	TotalVolume float64

	// job cid -> exactly one of pending, claimed, or an epoch proof log
	PendingJobs []string
	ClaimedJobs map[string]*Claim

	// keyed by identity; miners are never evicted
	ActiveMiners map[string]*Miner

	Epoch         *Epoch
	ProofLog      []ProofEntry
	LastEpochSeal int64
	LastUpdated   int64

	// every job cid accepted in this process lifetime, including jobs sealed
	// into past epochs; duplicate announcements are no-ops against this set
	SeenJobs map[string]bool
}

func NewPoolState(pool string) *PoolState {
	return &PoolState{
		Pool:         pool,
		ClaimedJobs:  map[string]*Claim{},
		ActiveMiners: map[string]*Miner{},
		SeenJobs:     map[string]bool{},
	}
}

type Settlements struct {
	Miners     map[string]string `json:"miners"`
	HiveOps    string            `json:"hive_ops"`
	DustPolicy string            `json:"dust_policy,omitempty"`
}

type EpochSealSnapshot struct {
	Type        string       `json:"type"`
	Version     string       `json:"version"`
	ID          string       `json:"id"`
	EpochID     string       `json:"epoch_id"`
	Name        string       `json:"name"`
	Status      string       `json:"status"`
	OpenAt      int64        `json:"open_at"`
	CloseAt     int64        `json:"close_at"`
	Jobs        int          `json:"jobs"`
	Proofs      int          `json:"proofs"`
	TotalVolume string       `json:"total_volume"`
	ProofsList  []ProofEntry `json:"proofs_list"`
	Settlements Settlements  `json:"settlements"`
	MerkleRoot  string       `json:"merkle_root"`
	Pool        string       `json:"pool"`
	Timestamp   int64        `json:"ts"`
	Sig         string       `json:"sig,omitempty"`
}

type EpochStateSnapshot struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	OpenAt int64  `json:"open_at"`
	Status string `json:"status"`
	Jobs   int    `json:"jobs"`
	Volume string `json:"volume"`
}

type StateSnapshot struct {
	Type          string             `json:"type"`
	Version       string             `json:"version"`
	ID            string             `json:"id"`
	Pool          string             `json:"pool"`
	TotalJobs     int                `json:"total_jobs"`
	TotalProofs   int                `json:"total_proofs"`
	TotalVolume   string             `json:"total_volume"`
	PendingJobs   []string           `json:"pending_jobs"`
	ClaimedJobs   map[string]*Claim  `json:"claimed_jobs"`
	Miners        map[string]*Miner  `json:"miners"`
	Epoch         EpochStateSnapshot `json:"epoch"`
	LastEpochSeal int64              `json:"last_epoch_seal"`
	LastUpdated   int64              `json:"last_updated"`
	Timestamp     int64              `json:"ts"`
	Sig           string             `json:"sig,omitempty"`
}

// Tolerant field access for inbound payloads; only the fields the daemon
// reads are validated, everything else rides along.

func getString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func getFloat(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case json.Number:
		f, _ := v.Float64()
		return f
	case float64:
		return v
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	}
	return 0
}

func getStrings(m map[string]any, key string) []string {
	raw, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
