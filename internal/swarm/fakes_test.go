package swarm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"swarmpool/internal/setup"
	"swarmpool/internal/transport"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

type fakeStore struct {
	mu      sync.Mutex
	blobs   map[string]map[string]any
	uploads []string
	pinned  []string
	nextCid int
}

func newFakeStore() *fakeStore {
	return &fakeStore{blobs: map[string]map[string]any{}}
}

func (f *fakeStore) put(cid string, blob map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[cid] = blob
}

func (f *fakeStore) FetchJSON(cid string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	blob, ok := f.blobs[cid]
	if !ok {
		return nil, fmt.Errorf("no blob at %s", cid)
	}
	return blob, nil
}

func (f *fakeStore) UploadJSON(obj any) (string, error) {
	raw, err := json.Marshal(obj)
	if err != nil {
		return "", err
	}
	var blob map[string]any
	if err := json.Unmarshal(raw, &blob); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextCid++
	cid := fmt.Sprintf("ipfs://bafyupload%03d", f.nextCid)
	f.blobs[cid] = blob
	f.uploads = append(f.uploads, cid)
	return cid, nil
}

func (f *fakeStore) Pin(cid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pinned = append(f.pinned, cid)
	return nil
}

func (f *fakeStore) lastUpload() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.uploads) == 0 {
		return nil
	}
	return f.blobs[f.uploads[len(f.uploads)-1]]
}

type published struct {
	Topic   string
	Payload map[string]any
}

type fakeBus struct {
	mu        sync.Mutex
	queue     []*transport.Message
	published []published
}

func (f *fakeBus) Subscribe(topics ...string) error { return nil }

func (f *fakeBus) GetMessage(timeout time.Duration) (*transport.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return nil, nil
	}
	msg := f.queue[0]
	f.queue = f.queue[1:]
	return msg, nil
}

func (f *fakeBus) Publish(topic string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, published{Topic: topic, Payload: obj})
	return nil
}

func (f *fakeBus) onTopic(topic string) []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []published
	for _, p := range f.published {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

type fakeVerifier struct {
	verify func(payload map[string]any, identity string) bool
	calls  int
}

func (f *fakeVerifier) Verify(payload map[string]any, identity string) bool {
	f.calls++
	if f.verify == nil {
		return true
	}
	return f.verify(payload, identity)
}

type fakeSigner struct{}

func (fakeSigner) Sign(payload any) (string, error) {
	return "eip191:0xfeedface", nil
}

type fakeSidecar struct {
	mu    sync.Mutex
	kv    map[string]string
	lists map[string][]string
}

func newFakeSidecar() *fakeSidecar {
	return &fakeSidecar{kv: map[string]string{}, lists: map[string][]string{}}
}

func (f *fakeSidecar) Set(ctx context.Context, key, val string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kv[key] = val
	return nil
}

func (f *fakeSidecar) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.kv[key], nil
}

func (f *fakeSidecar) LPush(ctx context.Context, key, val string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[key] = append([]string{val}, f.lists[key]...)
	return nil
}

func (f *fakeSidecar) RPush(ctx context.Context, key, val string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[key] = append(f.lists[key], val)
	return nil
}

func (f *fakeSidecar) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.lists[key]
	if stop < 0 || stop >= int64(len(list)) {
		stop = int64(len(list)) - 1
	}
	if start > stop {
		return nil, nil
	}
	return append([]string{}, list[start:stop+1]...), nil
}

func (f *fakeSidecar) Del(ctx context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.kv, key)
		delete(f.lists, key)
	}
	return nil
}

type harness struct {
	core     *Core
	store    *fakeStore
	bus      *fakeBus
	verifier *fakeVerifier
	sidecar  *fakeSidecar
	clock    clockwork.FakeClock
}

var testEpochStart = time.Unix(1735689600, 0).UTC()

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:    newFakeStore(),
		bus:      &fakeBus{},
		verifier: &fakeVerifier{},
		sidecar:  newFakeSidecar(),
		clock:    clockwork.NewFakeClockAt(testEpochStart),
	}
	h.core = &Core{
		Log: zap.NewNop().Sugar(),
		Env: setup.Env{
			PoolENS:       "swarmos.eth",
			EpochDuration: 3600 * time.Second,
			ClaimTimeout:  300 * time.Second,
			MinerTimeout:  120 * time.Second,
		},
		Store:    h.store,
		Bus:      h.bus,
		Verifier: h.verifier,
		Operator: fakeSigner{},
		Sidecar:  h.sidecar,
		Clock:    h.clock,
		State:    NewPoolState("swarmos.eth"),
		stop:     make(chan struct{}),
	}
	h.core.Mu.Lock()
	h.core.openEpochLocked(h.clock.Now())
	h.core.Mu.Unlock()
	return h
}

func (h *harness) deliver(t *testing.T, suffix string, payload map[string]any) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal message: %v", err)
	}
	h.core.dispatch(&transport.Message{Topic: h.core.topic(suffix), Data: raw})
}

func (h *harness) register(t *testing.T, ens string) {
	t.Helper()
	h.deliver(t, topicMiners, map[string]any{
		"miner":     ens,
		"timestamp": h.clock.Now().Unix(),
		"gpus":      []string{"rtx5090"},
		"models":    []string{"bumble70b"},
		"mode":      ModeSolo,
		"sig":       "eip191:0xaa",
	})
}

func (h *harness) announce(t *testing.T, cid, client string, reward string) {
	t.Helper()
	h.store.put(cid, map[string]any{
		"job_id":    "job-001",
		"job_type":  "inference",
		"model":     "bumble70b",
		"input_cid": "ipfs://bafyinput",
		"reward":    json.Number(reward),
		"client":    client,
		"timestamp": h.clock.Now().Unix(),
		"nonce":     "6e6f6e6365",
		"sig":       "eip191:0xbb",
	})
	h.deliver(t, topicJobs, map[string]any{
		"cid":       cid,
		"client":    client,
		"timestamp": h.clock.Now().Unix(),
	})
}

func (h *harness) claim(t *testing.T, jobCid, miner string) {
	t.Helper()
	h.deliver(t, topicClaims, map[string]any{
		"job_cid":   jobCid,
		"miner":     miner,
		"nonce":     "6e6f6e6365",
		"timestamp": h.clock.Now().Unix(),
		"sig":       "eip191:0xcc",
	})
}

func (h *harness) prove(t *testing.T, jobCid, proofCid, miner string) {
	t.Helper()
	h.store.put(proofCid, map[string]any{
		"job_cid":    jobCid,
		"status":     "completed",
		"output_cid": "ipfs://bafyoutput",
		"metrics": map[string]any{
			"inference_seconds": 4.2,
			"confidence":        91,
			"model_version":     "2.0.0",
		},
		"proof_hash": "keccak256:00",
		"miner":      miner,
		"sig":        "eip191:0xdd",
	})
	h.deliver(t, topicProofs, map[string]any{
		"job_cid":   jobCid,
		"proof_cid": proofCid,
		"miner":     miner,
		"timestamp": h.clock.Now().Unix(),
	})
}
