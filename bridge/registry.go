package bridge

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/types"
)

// TokenRegistry is the external collaborator that resolves a local token and
// a destination chain into the destination-side token parameters. The bridge
// type is a tagged variant chosen once per token at registration time.
type TokenRegistry interface {
	Get(token common.Address, destChainKey common.Hash) (*types.TokenInfo, error)
	BridgeTypeOf(token common.Address) (types.BridgeType, error)
}

type routeKey struct {
	token        common.Address
	destChainKey common.Hash
}

// InMemoryRegistry is a registry backed by a map, populated from config at
// startup.
type InMemoryRegistry struct {
	lock        *sync.RWMutex
	routes      map[routeKey]*types.TokenInfo
	bridgeTypes map[common.Address]types.BridgeType
}

func NewInMemoryRegistry() *InMemoryRegistry {
	return &InMemoryRegistry{
		lock:        &sync.RWMutex{},
		routes:      make(map[routeKey]*types.TokenInfo),
		bridgeTypes: make(map[common.Address]types.BridgeType),
	}
}

func (r *InMemoryRegistry) Register(token common.Address, destChainKey common.Hash, info *types.TokenInfo) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.routes[routeKey{token: token, destChainKey: destChainKey}] = info
	r.bridgeTypes[token] = info.BridgeType
}

func (r *InMemoryRegistry) Get(token common.Address, destChainKey common.Hash) (*types.TokenInfo, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	info, ok := r.routes[routeKey{token: token, destChainKey: destChainKey}]
	if !ok {
		return nil, types.NewPolicyRejection("token %s has no route to chain %s", token, destChainKey)
	}

	return info, nil
}

func (r *InMemoryRegistry) BridgeTypeOf(token common.Address) (types.BridgeType, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	bridgeType, ok := r.bridgeTypes[token]
	if !ok {
		return 0, types.NewPolicyRejection("token %s is not registered", token)
	}

	return bridgeType, nil
}
