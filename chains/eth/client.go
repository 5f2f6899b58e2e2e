package eth

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sisu-network/lib/log"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/config"
)

type NoHealthyClientErr struct {
	chain string
}

func NewNoHealthyClientErr(chain string) error {
	return &NoHealthyClientErr{chain: chain}
}

func (e *NoHealthyClientErr) Error() string {
	return fmt.Sprintf("No healthy client for chain %s", e.chain)
}

// A wrapper around eth.client so that we can mock in watcher tests.
type EthClient interface {
	Start()

	BlockNumber(ctx context.Context) (uint64, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error)
}

type defaultEthClient struct {
	chain string

	clients   []*ethclient.Client
	healthies []bool
	rpcs      []string

	lock *sync.RWMutex
}

func NewEthClient(cfg config.Chain) EthClient {
	return &defaultEthClient{
		chain: cfg.Chain,
		rpcs:  cfg.Rpcs,
		lock:  &sync.RWMutex{},
	}
}

func (c *defaultEthClient) Start() {
	go c.loopCheck()
}

func (c *defaultEthClient) loopCheck() {
	sleepTime := time.Minute * 30
	for {
		time.Sleep(sleepTime)
		c.updateRpcs()
	}
}

func (c *defaultEthClient) updateRpcs() {
	c.lock.RLock()
	rpcs := c.rpcs
	oldClients := c.clients
	c.lock.RUnlock()

	rpcs, clients, healthies := c.getRpcsHealthiness(rpcs)

	// Close all the old clients
	c.lock.Lock()
	if oldClients != nil {
		for _, client := range oldClients {
			client.Close()
		}
	}

	c.rpcs, c.clients, c.healthies = rpcs, clients, healthies
	c.lock.Unlock()
}

func (c *defaultEthClient) getRpcsHealthiness(allRpcs []string) ([]string, []*ethclient.Client, []bool) {
	clients := make([]*ethclient.Client, 0)
	rpcs := make([]string, 0)
	healthies := make([]bool, 0)

	for _, rpc := range allRpcs {
		client, err := ethclient.Dial(rpc)
		if err == nil {
			_, err := client.BlockNumber(context.Background())
			if err == nil {
				clients = append(clients, client)
				rpcs = append(rpcs, rpc)
				healthies = append(healthies, true)
			}
		}
	}

	return rpcs, clients, healthies
}

func (c *defaultEthClient) shuffle() ([]*ethclient.Client, []bool, []string) {
	c.lock.RLock()
	defer c.lock.RUnlock()

	n := len(c.clients)

	clients := make([]*ethclient.Client, n)
	healthy := make([]bool, n)
	rpcs := make([]string, n)

	copy(clients, c.clients)
	copy(healthy, c.healthies)
	copy(rpcs, c.rpcs)

	for i := 0; i < 20 && n > 1; i++ {
		x := rand.Intn(n)
		y := rand.Intn(n)

		clients[x], clients[y] = clients[y], clients[x]
		healthy[x], healthy[y] = healthy[y], healthy[x]
		rpcs[x], rpcs[y] = rpcs[y], rpcs[x]
	}

	return clients, healthy, rpcs
}

func (c *defaultEthClient) getHealthyClient() (*ethclient.Client, string) {
	c.lock.RLock()
	if c.clients == nil {
		c.lock.RUnlock()
		c.updateRpcs()
	} else {
		c.lock.RUnlock()
	}

	// Shuffle rpcs so that we will use different healthy rpc
	clients, healthies, rpcs := c.shuffle()
	for i, healthy := range healthies {
		if healthy {
			return clients[i], rpcs[i]
		}
	}

	return nil, ""
}

func (c *defaultEthClient) execute(f func(client *ethclient.Client, rpc string) (any, error)) (any, error) {
	client, rpc := c.getHealthyClient()
	if client == nil {
		return nil, NewNoHealthyClientErr(c.chain)
	}

	return f(client, rpc)
}

func (c *defaultEthClient) BlockNumber(ctx context.Context) (uint64, error) {
	num, err := c.execute(func(client *ethclient.Client, rpc string) (any, error) {
		return client.BlockNumber(ctx)
	})
	if err != nil {
		return 0, err
	}

	return num.(uint64), nil
}

func (c *defaultEthClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]ethtypes.Log, error) {
	logs, err := c.execute(func(client *ethclient.Client, rpc string) (any, error) {
		logs, err := client.FilterLogs(ctx, q)
		if err != nil {
			log.Verbosef("FilterLogs failed on rpc %s for chain %s", rpc, c.chain)
		}

		return logs, err
	})
	if err != nil {
		return nil, err
	}

	return logs.([]ethtypes.Log), nil
}
