package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"fuji-cli/pkg/sdk"
	"fuji-cli/pkg/types"
)

// DefaultBaseDelay is the first backoff delay after HTTP 429
const DefaultBaseDelay = 500 * time.Millisecond

// FujiClient talks to the routing API and implements sdk.SDK
type FujiClient struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	log        logrus.FieldLogger
}

var _ sdk.SDK = (*FujiClient)(nil)

// Option customizes a FujiClient
type Option func(*FujiClient)

// WithRetry sets the number of retries on HTTP 429 and the first backoff delay
func WithRetry(maxRetries int, baseDelay time.Duration) Option {
	return func(c *FujiClient) {
		c.maxRetries = maxRetries
		c.baseDelay = baseDelay
	}
}

// WithLogger attaches a logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *FujiClient) {
		c.log = log
	}
}

// NewFujiClient creates a new routing API client
func NewFujiClient(baseURL string, opts ...Option) *FujiClient {
	c := &FujiClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: 3,
		baseDelay:  DefaultBaseDelay,
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// apiError is the error body returned by the routing API
type apiError struct {
	Message string `json:"message"`
	Errors  any    `json:"errors"`
}

// do performs a request with retry on 429
func (c *FujiClient) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	target := c.baseURL + path

	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries+1; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("executing request: %w", err)
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return respBody, nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("HTTP 429 at %s (attempt %d/%d)", path, attempt+1, c.maxRetries+1)
			if attempt < c.maxRetries {
				delay := c.baseDelay * time.Duration(1<<uint(attempt))
				c.log.WithFields(logrus.Fields{"path": path, "delay": delay}).Debug("rate limited, backing off")
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(delay):
				}
				continue
			}
			return nil, lastErr
		}

		return nil, errorFromBody(resp.StatusCode, respBody)
	}

	return nil, lastErr
}

// errorFromBody extracts the API message when the body carries one
func errorFromBody(status int, body []byte) error {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil {
		if apiErr.Message != "" {
			return fmt.Errorf("API error (status %d): %s", status, apiErr.Message)
		}
		if apiErr.Errors != nil {
			return fmt.Errorf("API error (status %d): %v", status, apiErr.Errors)
		}
	}
	if len(body) > 0 {
		return fmt.Errorf("API error (status %d): %s", status, strings.TrimSpace(string(body)))
	}
	return fmt.Errorf("API returned status code %d", status)
}

func (c *FujiClient) getJSON(ctx context.Context, path string, dest any) error {
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("parsing JSON from %s: %w", path, err)
	}
	return nil
}

func (c *FujiClient) postJSON(ctx context.Context, path string, payload, dest any) error {
	body, err := c.do(ctx, http.MethodPost, path, payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("parsing JSON from %s: %w", path, err)
	}
	return nil
}

func (c *FujiClient) preview(ctx context.Context, name string, req sdk.PreviewRequest) (*sdk.Preview, error) {
	var p sdk.Preview
	if err := c.postJSON(ctx, "/previews/"+name, req, &p); err != nil {
		return nil, fmt.Errorf("failed to preview %s: %w", name, err)
	}
	return &p, nil
}

// PreviewDeposit previews a collateral deposit
func (c *FujiClient) PreviewDeposit(ctx context.Context, req sdk.PreviewRequest) (*sdk.Preview, error) {
	return c.preview(ctx, "deposit", req)
}

// PreviewBorrow previews a borrow against existing collateral
func (c *FujiClient) PreviewBorrow(ctx context.Context, req sdk.PreviewRequest) (*sdk.Preview, error) {
	return c.preview(ctx, "borrow", req)
}

// PreviewDepositAndBorrow previews a combined deposit and borrow
func (c *FujiClient) PreviewDepositAndBorrow(ctx context.Context, req sdk.PreviewRequest) (*sdk.Preview, error) {
	return c.preview(ctx, "deposit-and-borrow", req)
}

// PreviewWithdraw previews a collateral withdrawal
func (c *FujiClient) PreviewWithdraw(ctx context.Context, req sdk.PreviewRequest) (*sdk.Preview, error) {
	return c.preview(ctx, "withdraw", req)
}

// PreviewPayback previews a debt payback
func (c *FujiClient) PreviewPayback(ctx context.Context, req sdk.PreviewRequest) (*sdk.Preview, error) {
	return c.preview(ctx, "payback", req)
}

// PreviewPaybackAndWithdraw previews a combined payback and withdrawal
func (c *FujiClient) PreviewPaybackAndWithdraw(ctx context.Context, req sdk.PreviewRequest) (*sdk.Preview, error) {
	return c.preview(ctx, "payback-and-withdraw", req)
}

// BorrowingVaultsFor lists vaults accepting the collateral and lending the debt
func (c *FujiClient) BorrowingVaultsFor(ctx context.Context, collateral, debt types.Currency) ([]types.Vault, error) {
	q := url.Values{}
	q.Set("collateral", collateral.Key())
	q.Set("debt", debt.Key())

	var vaults []types.Vault
	if err := c.getJSON(ctx, "/vaults/borrowing?"+q.Encode(), &vaults); err != nil {
		return nil, fmt.Errorf("failed to get borrowing vaults: %w", err)
	}

	// Drop anything the API returned without a debt side
	return lo.Filter(vaults, func(v types.Vault, _ int) bool { return v.IsBorrowing() }), nil
}

// LendingVaultsFor lists lending vaults for the collateral
func (c *FujiClient) LendingVaultsFor(ctx context.Context, collateral types.Currency) ([]types.Vault, error) {
	q := url.Values{}
	q.Set("collateral", collateral.Key())

	var vaults []types.Vault
	if err := c.getJSON(ctx, "/vaults/lending?"+q.Encode(), &vaults); err != nil {
		return nil, fmt.Errorf("failed to get lending vaults: %w", err)
	}
	return lo.Map(vaults, func(v types.Vault, _ int) types.Vault {
		v.Debt = nil
		return v
	}), nil
}

// Tokens lists the currencies usable on one side of an operation on a chain
func (c *FujiClient) Tokens(ctx context.Context, chainID int64, side types.AssetType) ([]types.Currency, error) {
	q := url.Values{}
	q.Set("chainId", strconv.FormatInt(chainID, 10))
	q.Set("side", string(side))

	var tokens []types.Currency
	if err := c.getJSON(ctx, "/tokens?"+q.Encode(), &tokens); err != nil {
		return nil, fmt.Errorf("failed to get tokens: %w", err)
	}
	return tokens, nil
}

// FindToken searches for a token by symbol on a chain
func (c *FujiClient) FindToken(ctx context.Context, chainID int64, side types.AssetType, symbol string) (types.Currency, error) {
	tokens, err := c.Tokens(ctx, chainID, side)
	if err != nil {
		return types.Currency{}, err
	}

	token, ok := lo.Find(tokens, func(t types.Currency) bool {
		return strings.EqualFold(t.Symbol, symbol)
	})
	if !ok {
		return types.Currency{}, fmt.Errorf("token '%s' not found on chain %d", symbol, chainID)
	}
	return token, nil
}

type priceResponse struct {
	USD decimal.Decimal `json:"usd"`
}

// TokenPrice returns the USD price of a currency
func (c *FujiClient) TokenPrice(ctx context.Context, currency types.Currency) (decimal.Decimal, error) {
	q := url.Values{}
	q.Set("chainId", strconv.FormatInt(currency.ChainID, 10))
	q.Set("address", currency.Address.Hex())

	var resp priceResponse
	if err := c.getJSON(ctx, "/prices?"+q.Encode(), &resp); err != nil {
		return decimal.Zero, fmt.Errorf("failed to get price for %s: %w", currency.Symbol, err)
	}
	return resp.USD, nil
}

type routerResponse struct {
	Address common.Address `json:"address"`
}

// RouterAddress returns the router contract used as the ERC20 spender
func (c *FujiClient) RouterAddress(ctx context.Context, chainID int64) (common.Address, error) {
	var resp routerResponse
	if err := c.getJSON(ctx, "/routers/"+strconv.FormatInt(chainID, 10), &resp); err != nil {
		return common.Address{}, fmt.Errorf("failed to get router for chain %d: %w", chainID, err)
	}
	if resp.Address == (common.Address{}) {
		return common.Address{}, fmt.Errorf("no router deployed on chain %d", chainID)
	}
	return resp.Address, nil
}

type actionsRequest struct {
	Actions []sdk.Action `json:"actions"`
}

// PermitFor returns the EIP-712 payload to sign for the permit actions
func (c *FujiClient) PermitFor(ctx context.Context, actions []sdk.Action) (*apitypes.TypedData, error) {
	var data apitypes.TypedData
	if err := c.postJSON(ctx, "/permits", actionsRequest{Actions: actions}, &data); err != nil {
		return nil, fmt.Errorf("failed to get permit: %w", err)
	}
	return &data, nil
}

type txDetailsRequest struct {
	Actions    []sdk.Action   `json:"actions"`
	SrcChainID int64          `json:"srcChainId"`
	Account    common.Address `json:"account"`
	Signature  hexutil.Bytes  `json:"signature,omitempty"`
}

// TxDetails builds the transaction request for the actions on the source chain
func (c *FujiClient) TxDetails(ctx context.Context, actions []sdk.Action, srcChainID int64, account common.Address, signature []byte) (*sdk.TxRequest, error) {
	req := txDetailsRequest{
		Actions:    actions,
		SrcChainID: srcChainID,
		Account:    account,
		Signature:  signature,
	}

	var tx sdk.TxRequest
	if err := c.postJSON(ctx, "/tx-details", req, &tx); err != nil {
		return nil, fmt.Errorf("failed to get tx details: %w", err)
	}
	if tx.ChainID == 0 {
		tx.ChainID = srcChainID
	}
	if tx.From == (common.Address{}) {
		tx.From = account
	}
	return &tx, nil
}

// TransferStatus returns the destination status of a cross-chain transaction
func (c *FujiClient) TransferStatus(ctx context.Context, srcChainID int64, hash common.Hash) (*sdk.TransferStatus, error) {
	var status sdk.TransferStatus
	path := fmt.Sprintf("/transfers/%d/%s", srcChainID, hash.Hex())
	if err := c.getJSON(ctx, path, &status); err != nil {
		return nil, fmt.Errorf("failed to get transfer status: %w", err)
	}
	return &status, nil
}
