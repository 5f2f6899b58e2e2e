package fees

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"sync"
	"time"

	"github.com/sisu-network/lib/log"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/config"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/network"
)

const (
	UpdateFrequency = 1000 * 60 * 10 // 10 minutes
)

// Policy is the fee charged on one withdraw of a given token.
type Policy struct {
	Fee              *big.Int
	DeductFromAmount bool
}

type policyCache struct {
	token      string
	policy     *Policy
	updateTime int64
}

type FeeManager interface {
	GetPolicy(token string) (*Policy, error)
}

// feeResponse is the payload served by the remote fee endpoint.
type feeResponse struct {
	Fee              string `json:"fee"`
	DeductFromAmount bool   `json:"deduct_from_amount"`
}

type defaultFeeManager struct {
	endpoint        string
	networkHttp     network.Http
	cache           *sync.Map
	updateFrequency int64
	tokens          map[string]config.Token
}

func NewFeeManager(endpoint string, tokens map[string]config.Token,
	networkHttp network.Http) FeeManager {

	return &defaultFeeManager{
		endpoint:        endpoint,
		networkHttp:     networkHttp,
		cache:           &sync.Map{},
		updateFrequency: UpdateFrequency,
		tokens:          tokens,
	}
}

// configPolicy builds a policy from the static token config. This is both the
// fallback when the remote endpoint fails and the only source when no
// endpoint is configured.
func (m *defaultFeeManager) configPolicy(token string) (*Policy, error) {
	cfg, ok := m.tokens[token]
	if !ok {
		return nil, fmt.Errorf("Token %s not supported", token)
	}

	fee := big.NewInt(0)
	if cfg.Fee != "" {
		var ok bool
		fee, ok = new(big.Int).SetString(cfg.Fee, 10)
		if !ok {
			return nil, fmt.Errorf("invalid configured fee %s for token %s", cfg.Fee, token)
		}
	}

	return &Policy{Fee: fee, DeductFromAmount: cfg.DeductFromAmount}, nil
}

func (m *defaultFeeManager) remotePolicy(token string) (*Policy, error) {
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s?token=%s", m.endpoint, token), nil)
	if err != nil {
		return nil, err
	}

	data, err := m.networkHttp.Get(req)
	if err != nil {
		return nil, err
	}

	response := feeResponse{}
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, err
	}

	fee, ok := new(big.Int).SetString(response.Fee, 10)
	if !ok {
		return nil, fmt.Errorf("invalid fee %s returned for token %s", response.Fee, token)
	}

	return &Policy{Fee: fee, DeductFromAmount: response.DeductFromAmount}, nil
}

func (m *defaultFeeManager) GetPolicy(token string) (*Policy, error) {
	if _, ok := m.tokens[token]; !ok {
		return nil, fmt.Errorf("Token %s not supported", token)
	}

	if m.endpoint == "" {
		return m.configPolicy(token)
	}

	value, ok := m.cache.Load(token)
	if ok {
		// check expiration time
		now := time.Now()
		cache, ok := value.(*policyCache)
		if ok {
			if cache.updateTime+m.updateFrequency > now.UnixMilli() {
				return cache.policy, nil
			}
		}
	}

	// Load from the fee endpoint.
	policy, err := m.remotePolicy(token)
	if err != nil {
		log.Errorf("Failed to get fee policy for token %s, err = %s", token, err)
		return m.configPolicy(token)
	}

	m.cache.Store(token, &policyCache{
		token:      token,
		policy:     policy,
		updateTime: time.Now().UnixMilli(),
	})

	return policy, nil
}
