// Package ens resolves pool identities (ENS names) to signing addresses and
// answers signature validity for inbound payloads. Resolution is delegated to
// an external gateway; results are cached because identities rebind rarely.
package ens

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"swarmpool/internal/signing"
	"swarmpool/internal/utils"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

type Resolver interface {
	Resolve(name string) (common.Address, error)
}

// GatewayResolver asks an ENS gateway for the address bound to a name.
type GatewayResolver struct {
	client *http.Client
	log    *zap.SugaredLogger
	url    string

	mu    sync.Mutex
	cache map[string]cached
	ttl   time.Duration
}

type cached struct {
	addr common.Address
	at   time.Time
}

type resolveResponse struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address,omitempty"`
}

func NewGatewayResolver(client *http.Client, url string, log *zap.SugaredLogger) *GatewayResolver {
	return &GatewayResolver{
		client: client,
		log:    log,
		url:    strings.TrimSuffix(url, "/"),
		cache:  map[string]cached{},
		ttl:    5 * time.Minute,
	}
}

func (r *GatewayResolver) Resolve(name string) (common.Address, error) {
	name = Normalize(name)
	r.mu.Lock()
	if c, ok := r.cache[name]; ok && time.Since(c.at) < r.ttl {
		r.mu.Unlock()
		return c.addr, nil
	}
	r.mu.Unlock()

	res, err := r.client.Get(fmt.Sprintf("%s/api/v1/resolve?name=%s", r.url, name))
	if err != nil {
		return common.Address{}, utils.Wrap("failed to generate request to ens gateway", err)
	}
	defer func() {
		_ = res.Body.Close()
	}()
	if res.StatusCode != 200 {
		return common.Address{}, utils.Wrap("non 200 status code", fmt.Errorf("%d", res.StatusCode))
	}
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return common.Address{}, utils.Wrap("failed reading body", err)
	}
	var resolved resolveResponse
	err = json.Unmarshal(body, &resolved)
	if err != nil {
		return common.Address{}, utils.Wrap("failed to unmarshal body", err)
	}
	if !common.IsHexAddress(resolved.Address) {
		return common.Address{}, fmt.Errorf("gateway returned no address for %s", name)
	}
	addr := common.HexToAddress(resolved.Address)

	r.mu.Lock()
	r.cache[name] = cached{addr: addr, at: time.Now()}
	r.mu.Unlock()
	return addr, nil
}

// StaticResolver serves a fixed name -> address registry.
type StaticResolver map[string]common.Address

func (s StaticResolver) Resolve(name string) (common.Address, error) {
	addr, ok := s[Normalize(name)]
	if !ok {
		return common.Address{}, fmt.Errorf("unknown identity %s", name)
	}
	return addr, nil
}

// Normalize strips the did prefix; identities travel both as "alice.eth" and
// "ens:alice.eth".
func Normalize(name string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), "ens:")
}

// Verifier answers valid/invalid for a payload and a claimed identity.
type Verifier struct {
	resolver Resolver
	log      *zap.SugaredLogger
}

func NewVerifier(resolver Resolver, log *zap.SugaredLogger) *Verifier {
	return &Verifier{resolver: resolver, log: log}
}

func (v *Verifier) Verify(payload map[string]any, identity string) bool {
	addr, err := v.resolver.Resolve(identity)
	if err != nil {
		v.log.Debugw("failed resolving identity", "identity", identity, "error", err)
		return false
	}
	return signing.VerifyAddress(payload, addr)
}
