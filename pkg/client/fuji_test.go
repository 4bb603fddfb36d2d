package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuji-cli/pkg/sdk"
	"fuji-cli/pkg/types"
)

func newTestClient(url string) *FujiClient {
	return NewFujiClient(url, WithRetry(2, 5*time.Millisecond))
}

func TestPreviewPostsToModePath(t *testing.T) {
	var gotPath string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, http.MethodPost, r.Method)
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Write([]byte(`{"actions":[{"action":"DEPOSIT","chainId":1}],"steps":[{"step":"START","chainId":1}],"bridgeFee":0,"estimateTime":30,"estimateSlippage":250}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	p, err := c.PreviewPaybackAndWithdraw(context.Background(), sdk.PreviewRequest{SlippageBps: 30})
	require.NoError(t, err)

	assert.Equal(t, "/previews/payback-and-withdraw", gotPath)
	assert.EqualValues(t, 30, gotBody["slippage"])
	assert.Equal(t, int64(250), p.EstimateSlippage)
	assert.Len(t, p.Actions, 1)
}

func TestRetryOn429(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"usd":"2000.5"}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	price, err := c.TokenPrice(context.Background(), types.Currency{Symbol: "WETH", ChainID: 1})
	require.NoError(t, err)
	assert.Equal(t, "2000.5", price.String())
	assert.Equal(t, int32(3), attempts.Load())
}

func TestRetryGivesUp(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.RouterAddress(context.Background(), 1)
	assert.Error(t, err)
	assert.Equal(t, int32(3), attempts.Load()) // initial + 2 retries
}

func TestAPIErrorMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message":"amount too low"}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.PreviewDeposit(context.Background(), sdk.PreviewRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount too low")
	assert.Contains(t, err.Error(), "400")
}

func TestContextCancelledDuringBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewFujiClient(server.URL, WithRetry(5, time.Second))
	_, err := c.Tokens(ctx, 1, types.AssetCollateral)
	assert.Error(t, err)
}

func TestVaultDiscovery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/vaults/borrowing":
			assert.NotEmpty(t, r.URL.Query().Get("collateral"))
			assert.NotEmpty(t, r.URL.Query().Get("debt"))
			w.Write([]byte(`[
				{"name":"WETH-USDC","chainId":1,"collateral":{"symbol":"WETH"},"debt":{"symbol":"USDC","decimals":6}},
				{"name":"broken","chainId":1,"collateral":{"symbol":"WETH"}}
			]`))
		case "/vaults/lending":
			w.Write([]byte(`[{"name":"WETH","chainId":1,"collateral":{"symbol":"WETH"},"debt":{"symbol":"USDC"}}]`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	weth := types.Currency{Symbol: "WETH", ChainID: 1}
	usdc := types.Currency{Symbol: "USDC", ChainID: 1}

	borrowing, err := c.BorrowingVaultsFor(context.Background(), weth, usdc)
	require.NoError(t, err)
	require.Len(t, borrowing, 1)
	assert.Equal(t, "WETH-USDC", borrowing[0].Name)

	lending, err := c.LendingVaultsFor(context.Background(), weth)
	require.NoError(t, err)
	require.Len(t, lending, 1)
	assert.False(t, lending[0].IsBorrowing())
}

func TestFindToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "10", r.URL.Query().Get("chainId"))
		assert.Equal(t, "debt", r.URL.Query().Get("side"))
		w.Write([]byte(`[{"symbol":"USDC","chainId":10,"decimals":6},{"symbol":"DAI","chainId":10,"decimals":18}]`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	token, err := c.FindToken(context.Background(), 10, types.AssetDebt, "dai")
	require.NoError(t, err)
	assert.Equal(t, uint8(18), token.Decimals)

	_, err = c.FindToken(context.Background(), 10, types.AssetDebt, "WBTC")
	assert.Error(t, err)
}

func TestTxDetailsSendsSignature(t *testing.T) {
	account := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	router := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tx-details", r.URL.Path)
		var req map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "0x0102", req["signature"])
		assert.EqualValues(t, 137, req["srcChainId"])
		w.Write([]byte(`{"to":"` + router.Hex() + `","data":"0xdeadbeef","value":0}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	tx, err := c.TxDetails(context.Background(), []sdk.Action{{Kind: sdk.ActionBorrow}}, 137, account, []byte{1, 2})
	require.NoError(t, err)
	assert.Equal(t, int64(137), tx.ChainID)
	assert.Equal(t, account, tx.From)
	assert.Equal(t, router, tx.To)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, []byte(tx.Data))
}

func TestRouterAddressMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	_, err := c.RouterAddress(context.Background(), 1)
	assert.Error(t, err)
}

func TestTransferStatus(t *testing.T) {
	hash := common.HexToHash("0x01")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transfers/1/"+hash.Hex(), r.URL.Path)
		w.Write([]byte(`{"srcChainId":1,"destChainId":10,"destTxHash":"0xabc","status":"SUCCESS"}`))
	}))
	defer server.Close()

	c := newTestClient(server.URL)
	status, err := c.TransferStatus(context.Background(), 1, hash)
	require.NoError(t, err)
	assert.Equal(t, sdk.TransferSuccess, status.State)
	assert.Equal(t, int64(10), status.DestinationChainID)
}
