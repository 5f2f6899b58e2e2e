package server

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/bridge"
	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/types"
)

// ApiHandler exposes the hosted bridge core over the daemon's rpc endpoint
// (service namespace "bridge"). The transport is trusted: the approver and
// canceler identities are fixed at construction, while deposit and execute
// callers name themselves.
type ApiHandler struct {
	core     *bridge.Core
	approver common.Address
	canceler common.Address
	operator common.Address
}

func NewApi(core *bridge.Core, approver, canceler, operator common.Address) *ApiHandler {
	return &ApiHandler{
		core:     core,
		approver: approver,
		canceler: canceler,
		operator: operator,
	}
}

// Empty function for checking health only.
func (api *ApiHandler) CheckHealth() string {
	return "ok"
}

func (api *ApiHandler) ChainKey() common.Hash {
	return api.core.ChainKey()
}

func (api *ApiHandler) Deposit(payer common.Address, token common.Address, destChainKey common.Hash,
	destAccount common.Hash, amount *big.Int) (common.Hash, error) {
	return api.core.Deposit(payer, token, destChainKey, destAccount, amount)
}

func (api *ApiHandler) ApproveWithdraw(req *types.ApproveRequest) (common.Hash, error) {
	return api.core.ApproveWithdraw(api.approver, req)
}

func (api *ApiHandler) ExecuteWithdraw(caller common.Address, hash common.Hash,
	attachedValue *big.Int) error {
	return api.core.ExecuteWithdraw(caller, hash, attachedValue)
}

func (api *ApiHandler) CancelWithdrawApproval(hash common.Hash) error {
	return api.core.CancelWithdrawApproval(api.canceler, hash)
}

func (api *ApiHandler) ReenableWithdrawApproval(hash common.Hash) error {
	return api.core.ReenableWithdrawApproval(api.operator, hash)
}

func (api *ApiHandler) GetWithdrawApproval(hash common.Hash) *types.WithdrawApproval {
	return api.core.GetWithdrawApproval(hash)
}

func (api *ApiHandler) GetWithdrawFromHash(hash common.Hash) *types.Withdraw {
	return api.core.GetWithdrawFromHash(hash)
}

func (api *ApiHandler) GetDepositFromHash(hash common.Hash) *types.Deposit {
	return api.core.GetDepositFromHash(hash)
}

func (api *ApiHandler) PendingApprovals() []*types.PendingApproval {
	return api.core.PendingApprovals()
}
