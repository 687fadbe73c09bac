// Package safe talks to Gnosis Safe multisig wallets: the transaction service API, SafeTx
// hashing and signing, execution and deployment of new Safes.
package safe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-resty/resty/v2"

	"github.com/tocwex/slab-sub000/contracts"
	"github.com/tocwex/slab-sub000/pkg/logger"
)

var (
	// ErrNotFound is returned when the service does not know a Safe or transaction.
	ErrNotFound = errors.New("not found in safe transaction service")
	// ErrNoService is returned when no transaction service is known for a chain.
	ErrNoService = errors.New("no safe transaction service for chain")
)

var serviceURLs = map[uint64]string{
	contracts.ChainIDMainnet: "https://safe-transaction-mainnet.safe.global",
	contracts.ChainIDSepolia: "https://safe-transaction-sepolia.safe.global",
}

// ServiceURL returns the public transaction service of a chain.
func ServiceURL(chainID uint64) (string, error) {
	u, ok := serviceURLs[chainID]
	if !ok {
		return "", fmt.Errorf("%w %d", ErrNoService, chainID)
	}

	return u, nil
}

// ClientOption configures a Client.
type ClientOption func(*resty.Client)

// WithTimeout sets the per request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *resty.Client) { c.SetTimeout(d) }
}

// WithHeaders adds headers to every request, e.g. an API key.
func WithHeaders(headers map[string]string) ClientOption {
	return func(c *resty.Client) { c.SetHeaders(headers) }
}

// WithDebug logs raw requests and responses.
func WithDebug(debug bool) ClientOption {
	return func(c *resty.Client) { c.SetDebug(debug) }
}

// Client is a Safe transaction service client. Requests are not retried; callers go through the
// query cache for that.
type Client struct {
	http *resty.Client
	lggr logger.Logger
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, lggr logger.Logger, opts ...ClientOption) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json").
		SetTimeout(30 * time.Second)
	for _, opt := range opts {
		opt(c)
	}

	return &Client{http: c, lggr: lggr.Named("SafeService")}
}

// SafeInfo returns the owners, threshold and nonce of a Safe.
func (c *Client) SafeInfo(ctx context.Context, safe common.Address) (Info, error) {
	var info Info
	err := c.get(ctx, "/api/v1/safes/{address}/", map[string]string{"address": safe.Hex()}, nil, &info)

	return info, err
}

// SafesByOwner lists the Safes owner is an owner of.
func (c *Client) SafesByOwner(ctx context.Context, owner common.Address) ([]common.Address, error) {
	var res ownerSafes
	if err := c.get(ctx, "/api/v1/owners/{address}/safes/", map[string]string{"address": owner.Hex()}, nil, &res); err != nil {
		return nil, err
	}

	return res.Safes, nil
}

// PendingTransactions lists the unexecuted transactions of a Safe with a nonce of at least
// minNonce, following pagination.
func (c *Client) PendingTransactions(ctx context.Context, safe common.Address, minNonce uint64) ([]MultisigTransaction, error) {
	query := map[string]string{
		"executed":   "false",
		"nonce__gte": strconv.FormatUint(minNonce, 10),
		"ordering":   "nonce",
	}

	var out []MultisigTransaction
	path := "/api/v1/safes/{address}/multisig-transactions/"
	for {
		var res page[MultisigTransaction]
		if err := c.get(ctx, path, map[string]string{"address": safe.Hex()}, query, &res); err != nil {
			return nil, err
		}
		out = append(out, res.Results...)
		if res.Next == nil || *res.Next == "" {
			break
		}
		// next is absolute and carries the query
		path, query = *res.Next, nil
	}

	return out, nil
}

// Transaction returns a single multisig transaction.
func (c *Client) Transaction(ctx context.Context, safeTxHash common.Hash) (MultisigTransaction, error) {
	var tx MultisigTransaction
	err := c.get(ctx, "/api/v1/multisig-transactions/{hash}/", map[string]string{"hash": safeTxHash.Hex()}, nil, &tx)

	return tx, err
}

// Propose submits a signed transaction to the Safe's queue.
func (c *Client) Propose(ctx context.Context, safe common.Address, req ProposeRequest) error {
	c.lggr.Infow("proposing safe transaction", "safe", safe.Hex(), "safeTxHash", req.ContractTransactionHash.Hex(), "nonce", req.Nonce)

	return c.post(ctx, "/api/v1/safes/{address}/multisig-transactions/", map[string]string{"address": safe.Hex()}, req)
}

// Confirm adds an owner signature to a queued transaction.
func (c *Client) Confirm(ctx context.Context, safeTxHash common.Hash, signature []byte) error {
	c.lggr.Infow("confirming safe transaction", "safeTxHash", safeTxHash.Hex())

	return c.post(ctx, "/api/v1/multisig-transactions/{hash}/confirmations/",
		map[string]string{"hash": safeTxHash.Hex()}, confirmRequest{Signature: hexutil.Encode(signature)})
}

func (c *Client) get(ctx context.Context, path string, params, query map[string]string, out any) error {
	req := c.http.R().SetContext(ctx).SetPathParams(params).SetResult(out)
	if query != nil {
		req.SetQueryParams(query)
	}

	resp, err := req.Get(path)
	if err != nil {
		return fmt.Errorf("failed to call safe transaction service: %w", err)
	}

	return checkResponse(resp)
}

func (c *Client) post(ctx context.Context, path string, params map[string]string, body any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParams(params).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(path)
	if err != nil {
		return fmt.Errorf("failed to call safe transaction service: %w", err)
	}

	return checkResponse(resp)
}

func checkResponse(resp *resty.Response) error {
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, resp.Request.URL)
	case resp.IsError():
		return fmt.Errorf("safe transaction service returned %s for %s %s: %s",
			resp.Status(), resp.Request.Method, resp.Request.URL, resp.String())
	default:
		return nil
	}
}
