package database

import (
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/types"
)

type depositKey struct {
	chain string
	nonce uint64
}

type approvalKey struct {
	chain string
	hash  common.Hash
}

// inMemoryDb mirrors the MySQL store's semantics for tests and local runs.
type inMemoryDb struct {
	lock *sync.RWMutex

	blockHeights map[string]int64
	deposits     map[depositKey]*types.ObservedDeposit
	approvals    map[approvalKey]*types.SubmittedApproval
}

func newInMemoryDb() Database {
	return &inMemoryDb{
		lock:         &sync.RWMutex{},
		blockHeights: make(map[string]int64),
		deposits:     make(map[depositKey]*types.ObservedDeposit),
		approvals:    make(map[approvalKey]*types.SubmittedApproval),
	}
}

func (d *inMemoryDb) Init() error {
	return nil
}

func (d *inMemoryDb) LoadBlockHeight(chain string) (int64, error) {
	d.lock.RLock()
	defer d.lock.RUnlock()

	return d.blockHeights[chain], nil
}

func (d *inMemoryDb) SaveBlockHeight(chain string, height int64) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	d.blockHeights[chain] = height
	return nil
}

func (d *inMemoryDb) UpsertObservedDeposit(dep *types.ObservedDeposit) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	key := depositKey{chain: dep.SourceChain, nonce: dep.Nonce}
	if _, ok := d.deposits[key]; ok {
		// Same insert-ignore semantics as the MySQL store.
		return nil
	}

	cp := *dep
	cp.Amount = new(big.Int).Set(dep.Amount)
	d.deposits[key] = &cp
	return nil
}

func (d *inMemoryDb) GetObservedDeposit(chain string, nonce uint64) (*types.ObservedDeposit, error) {
	d.lock.RLock()
	defer d.lock.RUnlock()

	dep, ok := d.deposits[depositKey{chain: chain, nonce: nonce}]
	if !ok {
		return nil, nil
	}

	cp := *dep
	cp.Amount = new(big.Int).Set(dep.Amount)
	return &cp, nil
}

func (d *inMemoryDb) GetReadyDeposits(now int64, limit int) ([]*types.ObservedDeposit, error) {
	d.lock.RLock()
	defer d.lock.RUnlock()

	ready := make([]*types.ObservedDeposit, 0)
	for _, dep := range d.deposits {
		if dep.Status == types.DepositStatusObserved && dep.NextRetry <= now {
			cp := *dep
			cp.Amount = new(big.Int).Set(dep.Amount)
			ready = append(ready, &cp)
		}
	}

	sort.Slice(ready, func(i, j int) bool {
		return ready[i].BlockHeight < ready[j].BlockHeight
	})
	if len(ready) > limit {
		ready = ready[:limit]
	}

	return ready, nil
}

func (d *inMemoryDb) UpdateDepositStatus(chain string, nonce uint64, status string) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	if dep, ok := d.deposits[depositKey{chain: chain, nonce: nonce}]; ok {
		dep.Status = status
	}

	return nil
}

func (d *inMemoryDb) RecordDepositFailure(chain string, nonce uint64, attempts int,
	nextRetry int64, lastError string) error {

	d.lock.Lock()
	defer d.lock.Unlock()

	if dep, ok := d.deposits[depositKey{chain: chain, nonce: nonce}]; ok {
		dep.Attempts = attempts
		dep.NextRetry = nextRetry
		dep.LastError = lastError
	}

	return nil
}

func (d *inMemoryDb) UpsertSubmittedApproval(approval *types.SubmittedApproval) error {
	d.lock.Lock()
	defer d.lock.Unlock()

	cp := *approval
	d.approvals[approvalKey{chain: approval.DestChain, hash: approval.WithdrawHash}] = &cp
	return nil
}

func (d *inMemoryDb) GetSubmittedApproval(destChain string, hash common.Hash) (*types.SubmittedApproval, error) {
	d.lock.RLock()
	defer d.lock.RUnlock()

	approval, ok := d.approvals[approvalKey{chain: destChain, hash: hash}]
	if !ok {
		return nil, nil
	}

	cp := *approval
	return &cp, nil
}
