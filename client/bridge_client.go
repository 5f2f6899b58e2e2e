package client

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sisu-network/lib/log"

	"github.com/PlasticDigits/cl8y-bridge-monorepo-sub000/types"
)

const RetryTime = 10 * time.Second

// DefaultClient talks to a remote bridge daemon over its rpc endpoint.
type DefaultClient struct {
	client *rpc.Client
	url    string
}

func NewClient(url string) *DefaultClient {
	return &DefaultClient{url: url}
}

// TryDial blocks until the remote bridge answers a health check.
func (c *DefaultClient) TryDial() {
	log.Info("Trying to dial bridge at ", c.url)

	for {
		var err error
		c.client, err = rpc.DialContext(context.Background(), c.url)
		if err != nil {
			log.Error("Cannot connect to bridge, err = ", err)
			time.Sleep(RetryTime)
			continue
		}

		var health string
		err = c.client.CallContext(context.Background(), &health, "bridge_checkHealth")
		if err != nil {
			log.Error("Bridge health check failed, err = ", err)
			time.Sleep(RetryTime)
			continue
		}

		break
	}

	log.Info("Bridge at ", c.url, " is connected")
}

// remoteErr classifies an error that crossed the rpc boundary. Rejections
// keep their kind via the message prefix; everything else is transient infra.
func remoteErr(err error) error {
	if err == nil {
		return nil
	}

	if kind := types.KindFromMessage(err.Error()); kind != types.RejectNone {
		return &types.Rejection{Kind: kind, Msg: err.Error()}
	}

	return types.NewTransientError("bridge rpc failed: %v", err)
}

func (c *DefaultClient) ChainKey(ctx context.Context) (common.Hash, error) {
	var key common.Hash
	err := c.client.CallContext(ctx, &key, "bridge_chainKey")
	return key, remoteErr(err)
}

func (c *DefaultClient) GetWithdrawApproval(ctx context.Context, hash common.Hash) (*types.WithdrawApproval, error) {
	var approval *types.WithdrawApproval
	err := c.client.CallContext(ctx, &approval, "bridge_getWithdrawApproval", hash)
	if err != nil {
		return nil, remoteErr(err)
	}
	if approval == nil {
		return nil, ErrNotFound
	}

	return approval, nil
}

func (c *DefaultClient) GetWithdrawFromHash(ctx context.Context, hash common.Hash) (*types.Withdraw, error) {
	var withdraw *types.Withdraw
	err := c.client.CallContext(ctx, &withdraw, "bridge_getWithdrawFromHash", hash)
	if err != nil {
		return nil, remoteErr(err)
	}
	if withdraw == nil {
		return nil, ErrNotFound
	}

	return withdraw, nil
}

func (c *DefaultClient) GetDepositFromHash(ctx context.Context, hash common.Hash) (*types.Deposit, error) {
	var deposit *types.Deposit
	err := c.client.CallContext(ctx, &deposit, "bridge_getDepositFromHash", hash)
	if err != nil {
		return nil, remoteErr(err)
	}
	if deposit == nil {
		return nil, ErrNotFound
	}

	return deposit, nil
}

func (c *DefaultClient) PendingApprovals(ctx context.Context) ([]*types.PendingApproval, error) {
	pending := make([]*types.PendingApproval, 0)
	err := c.client.CallContext(ctx, &pending, "bridge_pendingApprovals")
	return pending, remoteErr(err)
}

func (c *DefaultClient) ApproveWithdraw(ctx context.Context, req *types.ApproveRequest) (common.Hash, error) {
	var hash common.Hash
	err := c.client.CallContext(ctx, &hash, "bridge_approveWithdraw", req)
	return hash, remoteErr(err)
}

func (c *DefaultClient) CancelWithdrawApproval(ctx context.Context, hash common.Hash) error {
	var ignored string
	return remoteErr(c.client.CallContext(ctx, &ignored, "bridge_cancelWithdrawApproval", hash))
}
