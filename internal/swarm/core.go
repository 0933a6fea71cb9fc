// Package swarm is the pool daemon core: one router over five topic streams,
// the epoch engine, and the liveness supervisor, all sharing a single
// mutex-owned pool state.
package swarm

import (
	"context"
	"sync"
	"time"

	"swarmpool/internal/setup"
	"swarmpool/internal/transport"

	"github.com/jonboulle/clockwork"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.uber.org/zap"
)

// Adapters the core consumes. The concrete implementations live in
// internal/ipfs, internal/transport, internal/ens and internal/sidecar.

type ContentStore interface {
	FetchJSON(cid string) (map[string]any, error)
	UploadJSON(obj any) (string, error)
	Pin(cid string) error
}

type Bus interface {
	Subscribe(topics ...string) error
	GetMessage(timeout time.Duration) (*transport.Message, error)
	Publish(topic string, payload any) error
}

type Verifier interface {
	Verify(payload map[string]any, identity string) bool
}

type Signer interface {
	Sign(payload any) (string, error)
}

type Sidecar interface {
	Set(ctx context.Context, key, val string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	LPush(ctx context.Context, key, val string) error
	RPush(ctx context.Context, key, val string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	Del(ctx context.Context, keys ...string) error
}

type Core struct {
	Log      *zap.SugaredLogger
	Env      setup.Env
	Store    ContentStore
	Bus      Bus
	Verifier Verifier
	Operator Signer
	Sidecar  Sidecar
	Mongo    *mongo.Client
	Clock    clockwork.Clock

	Mu    sync.Mutex
	State *PoolState

	stop chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func CreateCore(d *setup.Dependencies) *Core {
	return &Core{
		Log:      d.Log,
		Env:      d.Env,
		Store:    d.Store,
		Bus:      d.Transport,
		Verifier: d.Verifier,
		Operator: d.Operator,
		Sidecar:  d.Sidecar,
		Mongo:    d.Mongo,
		Clock:    clockwork.NewRealClock(),
		State:    NewPoolState(d.Env.PoolENS),
		stop:     make(chan struct{}),
	}
}

func (c *Core) now() time.Time {
	return c.Clock.Now()
}

func (c *Core) sidecarCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 5*time.Second)
}

func (c *Core) running() bool {
	select {
	case <-c.stop:
		return false
	default:
		return true
	}
}

// Stop flips the running flag; loops observe it at their next head and
// return. In-flight handlers run to completion.
func (c *Core) Stop() {
	c.once.Do(func() {
		close(c.stop)
	})
	c.wg.Wait()
}

// Run restores state, opens an epoch if none is active, starts the supervisor
// loops and blocks in the router until Stop.
func (c *Core) Run() error {
	if err := c.Restore(); err != nil {
		return err
	}
	if err := c.Bus.Subscribe(c.inboundTopics()...); err != nil {
		return err
	}

	c.Mu.Lock()
	noEpoch := c.State.Epoch == nil
	c.Mu.Unlock()
	if noEpoch {
		c.OpenEpoch()
	}

	for _, loop := range []func(){
		c.statePublisherLoop,
		c.epochManagerLoop,
		c.claimTimeoutLoop,
		c.heartbeatMonitorLoop,
	} {
		loop := loop
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			loop()
		}()
	}

	c.RunRouter()
	return nil
}
