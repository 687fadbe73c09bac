package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/google/uuid"

	"github.com/tocwex/slab-sub000/pkg/logger"
)

const (
	// Default retry configuration for RPC calls
	RPCDefaultRetryAttempts = 1
	RPCDefaultRetryDelay    = 1000 * time.Millisecond
	RPCDefaultRetryTimeout  = 10 * time.Second

	// Default retry configuration for dialing RPC endpoints
	RPCDefaultDialRetryAttempts = 1
	RPCDefaultDialRetryDelay    = 1000 * time.Millisecond
	RPCDefaultDialTimeout       = 10 * time.Second

	// Default timeout for health checks
	RPCDefaultHealthCheckTimeout = 2 * time.Second
)

type RetryConfig struct {
	Attempts     uint
	Delay        time.Duration
	Timeout      time.Duration
	DialAttempts uint
	DialDelay    time.Duration
	DialTimeout  time.Duration
}

func defaultRetryConfig() RetryConfig {
	return RetryConfig{
		Attempts:     RPCDefaultRetryAttempts,
		Delay:        RPCDefaultRetryDelay,
		Timeout:      RPCDefaultRetryTimeout,
		DialAttempts: RPCDefaultDialRetryAttempts,
		DialDelay:    RPCDefaultDialRetryDelay,
		DialTimeout:  RPCDefaultDialTimeout,
	}
}

// WithRetryConfig overrides the default retry configuration.
func WithRetryConfig(cfg RetryConfig) func(*MultiClient) {
	return func(mc *MultiClient) {
		mc.RetryConfig = cfg
	}
}

// MultiClient should comply with the OnchainClient interface
var _ OnchainClient = &MultiClient{}

// MultiClient is an ethclient that retries every call on the primary RPC and falls back to the
// backups in order. A backup that succeeds is promoted to primary.
type MultiClient struct {
	*ethclient.Client
	Backups     []*ethclient.Client
	RetryConfig RetryConfig
	lggr        logger.Logger
	chainName   string
	mu          sync.RWMutex
}

// rpcHealthCheck calls eth_blockNumber and, when a chain ID is configured, verifies eth_chainId.
func (mc *MultiClient) rpcHealthCheck(ctx context.Context, client *ethclient.Client, wantChainID uint64) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, RPCDefaultHealthCheckTimeout)
	defer cancel()

	if _, err := client.BlockNumber(timeoutCtx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if wantChainID == 0 {
		return nil
	}

	got, err := client.ChainID(timeoutCtx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if !got.IsUint64() || got.Uint64() != wantChainID {
		return fmt.Errorf("RPC serves chain %s, expected %d", got, wantChainID)
	}

	return nil
}

func NewMultiClient(lggr logger.Logger, rpcsCfg RPCConfig, opts ...func(client *MultiClient)) (*MultiClient, error) {
	if len(rpcsCfg.RPCs) == 0 {
		return nil, errors.New("no RPCs provided, need at least one")
	}

	mc := MultiClient{lggr: lggr.Named("MultiClient"), chainName: ChainName(rpcsCfg.ChainID)}
	mc.RetryConfig = defaultRetryConfig()

	for _, opt := range opts {
		opt(&mc)
	}

	clients := make([]*ethclient.Client, 0, len(rpcsCfg.RPCs))
	for i, rpc := range rpcsCfg.RPCs {
		client, err := mc.dialWithRetry(rpc)
		if err != nil {
			mc.lggr.Warnw("failed to dial RPC, trying the next one",
				"index", i, "rpc", rpc.Name, "chain", mc.chainName, "err", err)

			continue
		}
		if err := mc.rpcHealthCheck(context.Background(), client, rpcsCfg.ChainID); err != nil {
			mc.lggr.Warnw("RPC health check failed, trying the next one",
				"index", i, "rpc", rpc.Name, "chain", mc.chainName, "err", err)
			client.Close()

			continue
		}
		clients = append(clients, client)
	}

	if len(clients) == 0 {
		return nil, errors.New("no valid RPC clients created")
	}

	mc.Client = clients[0]
	mc.Backups = clients[1:]

	return &mc, nil
}

func (mc *MultiClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return mc.retryWithBackups(ctx, "SendTransaction", func(ct context.Context, client *ethclient.Client) error {
		return client.SendTransaction(ct, tx)
	})
}

func (mc *MultiClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return withBackups(ctx, mc, "CallContract", func(ct context.Context, client *ethclient.Client) ([]byte, error) {
		return client.CallContract(ct, msg, blockNumber)
	})
}

func (mc *MultiClient) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return withBackups(ctx, mc, "CodeAt", func(ct context.Context, client *ethclient.Client) ([]byte, error) {
		return client.CodeAt(ct, account, blockNumber)
	})
}

func (mc *MultiClient) NonceAt(ctx context.Context, account common.Address, block *big.Int) (uint64, error) {
	return withBackups(ctx, mc, "NonceAt", func(ct context.Context, client *ethclient.Client) (uint64, error) {
		return client.NonceAt(ct, account, block)
	})
}

func (mc *MultiClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return withBackups(ctx, mc, "HeaderByNumber", func(ct context.Context, client *ethclient.Client) (*types.Header, error) {
		return client.HeaderByNumber(ct, number)
	})
}

func (mc *MultiClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return withBackups(ctx, mc, "SuggestGasPrice", func(ct context.Context, client *ethclient.Client) (*big.Int, error) {
		return client.SuggestGasPrice(ct)
	})
}

func (mc *MultiClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return withBackups(ctx, mc, "SuggestGasTipCap", func(ct context.Context, client *ethclient.Client) (*big.Int, error) {
		return client.SuggestGasTipCap(ct)
	})
}

func (mc *MultiClient) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return withBackups(ctx, mc, "PendingCodeAt", func(ct context.Context, client *ethclient.Client) ([]byte, error) {
		return client.PendingCodeAt(ct, account)
	})
}

func (mc *MultiClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return withBackups(ctx, mc, "PendingNonceAt", func(ct context.Context, client *ethclient.Client) (uint64, error) {
		return client.PendingNonceAt(ct, account)
	})
}

func (mc *MultiClient) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return withBackups(ctx, mc, "EstimateGas", func(ct context.Context, client *ethclient.Client) (uint64, error) {
		return client.EstimateGas(ct, call)
	})
}

func (mc *MultiClient) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return withBackups(ctx, mc, "BalanceAt", func(ct context.Context, client *ethclient.Client) (*big.Int, error) {
		return client.BalanceAt(ct, account, blockNumber)
	})
}

func (mc *MultiClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return withBackups(ctx, mc, "FilterLogs", func(ct context.Context, client *ethclient.Client) ([]types.Log, error) {
		return client.FilterLogs(ct, q)
	})
}

// TransactionReceipt queries the primary only and never retries; callers poll with
// WaitMinedWithInterval.
func (mc *MultiClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return mc.primary().TransactionReceipt(ctx, txHash)
}

func withBackups[T any](ctx context.Context, mc *MultiClient, opName string, op func(context.Context, *ethclient.Client) (T, error)) (T, error) {
	var result T
	err := mc.retryWithBackups(ctx, opName, func(ct context.Context, client *ethclient.Client) error {
		var err error
		result, err = op(ct, client)

		return err
	})

	return result, err
}

func (mc *MultiClient) retryWithBackups(ctx context.Context, opName string, op func(context.Context, *ethclient.Client) error) error {
	var err error
	traceID := uuid.New()

	for rpcIndex, client := range mc.clients() {
		retryCount := 0
		err2 := retry.Do(func() error {
			timeoutCtx, cancel := ensureTimeout(ctx, mc.RetryConfig.Timeout)
			defer cancel()

			err = op(timeoutCtx, client)
			if err != nil {
				mc.lggr.Warnw("RPC call failed, retrying", "traceID", traceID.String(), "chain", mc.chainName,
					"op", opName, "index", rpcIndex, "err", MaybeDataErr(err))

				return err
			}

			mc.reorderRPCs(rpcIndex)

			return nil
		}, retry.Context(ctx), retry.Attempts(mc.RetryConfig.Attempts), retry.Delay(mc.RetryConfig.Delay),
			retry.OnRetry(func(n uint, err error) { retryCount++ }))
		if err2 == nil {
			if retryCount > 0 {
				mc.lggr.Infow("RPC call succeeded after retries", "traceID", traceID.String(), "chain", mc.chainName,
					"op", opName, "index", rpcIndex, "retries", retryCount)
			}

			return nil
		}
		if ctx.Err() != nil {
			break
		}
		mc.lggr.Infow("RPC failed, trying next client", "traceID", traceID.String(), "chain", mc.chainName,
			"op", opName, "index", rpcIndex)
	}

	return errors.Join(err, fmt.Errorf("all backup clients failed for chain %q", mc.chainName))
}

func (mc *MultiClient) dialWithRetry(rpc RPC) (*ethclient.Client, error) {
	endpoint, err := rpc.ToEndpoint()
	if err != nil {
		return nil, err
	}

	traceID := uuid.New()
	var client *ethclient.Client
	retryCount := 0
	err = retry.Do(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), mc.RetryConfig.DialTimeout)
		defer cancel()

		var err2 error
		mc.lggr.Debugw("dialing endpoint", "traceID", traceID.String(), "chain", mc.chainName, "rpc", rpc.Name)
		client, err2 = ethclient.DialContext(ctx, endpoint)
		if err2 != nil {
			mc.lggr.Warnw("dialing failed, retrying", "traceID", traceID.String(), "chain", mc.chainName,
				"rpc", rpc.Name, "err", err2)

			return err2
		}

		return nil
	}, retry.Attempts(mc.RetryConfig.DialAttempts), retry.Delay(mc.RetryConfig.DialDelay),
		retry.OnRetry(func(n uint, err error) { retryCount++ }))

	if err != nil {
		return nil, errors.Join(err, fmt.Errorf("failed to dial RPC %s for chain %s after retries", rpc.Name, mc.chainName))
	}
	if retryCount > 0 {
		mc.lggr.Infow("dialed endpoint after retries", "traceID", traceID.String(), "rpc", rpc.Name, "retries", retryCount)
	}

	return client, nil
}

// ensureTimeout keeps the parent's deadline if it has one, otherwise applies timeout.
func ensureTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hasDeadline := parent.Deadline(); hasDeadline {
		return context.WithCancel(parent)
	}

	return context.WithTimeout(parent, timeout)
}

// reorderRPCs promotes the backup at rpcIndex to primary. The clients that failed before it move
// to the end of the backup list, followed by the old primary.
func (mc *MultiClient) reorderRPCs(rpcIndex int) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if rpcIndex < 1 || len(mc.Backups) == 0 {
		return
	}

	newDefaultRPCIndex := rpcIndex - 1
	newDefaultRPC := mc.Backups[newDefaultRPCIndex]

	reordered := make([]*ethclient.Client, 0, len(mc.Backups))
	reordered = append(reordered, mc.Backups[newDefaultRPCIndex+1:]...)
	reordered = append(reordered, mc.Backups[:newDefaultRPCIndex]...)
	reordered = append(reordered, mc.Client)

	mc.Backups = reordered
	mc.Client = newDefaultRPC
}

func (mc *MultiClient) primary() *ethclient.Client {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	return mc.Client
}

func (mc *MultiClient) clients() []*ethclient.Client {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	return append([]*ethclient.Client{mc.Client}, mc.Backups...)
}

// MaybeDataErr appends the revert data of an rpc.DataError to its message.
func MaybeDataErr(err error) error {
	//revive:disable
	var d rpc.DataError
	ok := errors.As(err, &d)
	if ok {
		return fmt.Errorf("%s: %v", d.Error(), d.ErrorData())
	}

	return err
}
