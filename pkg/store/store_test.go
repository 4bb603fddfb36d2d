package store

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuji-cli/pkg/chain"
	"fuji-cli/pkg/mode"
	"fuji-cli/pkg/types"
)

func TestNeedsAllowance(t *testing.T) {
	ten := decimal.NewFromInt(10)
	asset := types.NewAssetChange(weth, nil)

	// unknown allowance never blocks
	assert.False(t, NeedsAllowance(mode.Deposit, types.AssetCollateral, asset, ten))

	zero := decimal.Zero
	asset.Allowance.Value = &zero
	assert.True(t, NeedsAllowance(mode.Deposit, types.AssetCollateral, asset, ten))
	assert.True(t, NeedsAllowance(mode.DepositAndBorrow, types.AssetCollateral, asset, ten))
	assert.True(t, NeedsAllowance(mode.Payback, types.AssetDebt, asset, ten))
	assert.True(t, NeedsAllowance(mode.PaybackAndWithdraw, types.AssetDebt, asset, ten))
	assert.False(t, NeedsAllowance(mode.Borrow, types.AssetCollateral, asset, ten))
	assert.False(t, NeedsAllowance(mode.Withdraw, types.AssetCollateral, asset, ten))
	assert.False(t, NeedsAllowance(mode.DepositAndBorrow, types.AssetDebt, asset, ten))

	enough := decimal.NewFromInt(10)
	asset.Allowance.Value = &enough
	assert.False(t, NeedsAllowance(mode.Deposit, types.AssetCollateral, asset, ten))
}

func TestGasWithMargin(t *testing.T) {
	assert.Equal(t, uint64(150_000), GasWithMargin(100_000))
	assert.Equal(t, uint64(31_501), GasWithMargin(21_001))
}

func TestModeFollowsInputs(t *testing.T) {
	s := newFixture().borrow()
	assert.Equal(t, mode.DepositAndBorrow, s.Mode())

	s.SetEditing(true)
	s.ChangeAction(mode.ActionRemove)
	require.NoError(t, s.ChangeInput(types.AssetDebt, "5"))
	assert.Equal(t, mode.Payback, s.Mode())

	require.NoError(t, s.ChangeInput(types.AssetCollateral, "1"))
	assert.Equal(t, mode.PaybackAndWithdraw, s.Mode())

	require.NoError(t, s.ChangeInput(types.AssetDebt, ""))
	assert.Equal(t, mode.Withdraw, s.Mode())

	assert.Error(t, s.ChangeInput(types.AssetCollateral, "abc"))
	assert.Error(t, s.ChangeInput(types.AssetCollateral, "-1"))
}

func TestAllowCoversInputAmount(t *testing.T) {
	f := newFixture()
	s := f.borrow()
	ctx := context.Background()

	require.NoError(t, s.ChangeInput(types.AssetCollateral, "10"))
	require.NoError(t, s.ChangeInput(types.AssetDebt, "5"))
	require.Equal(t, mode.DepositAndBorrow, s.Mode())

	require.NoError(t, s.Refresh(ctx, types.AssetCollateral))
	assert.True(t, s.NeedsAllowance(types.AssetCollateral))
	assert.False(t, s.NeedsAllowance(types.AssetDebt), "debt is borrowed, not pulled")

	require.NoError(t, s.Allow(ctx, types.AssetCollateral))
	assert.False(t, s.NeedsAllowance(types.AssetCollateral))

	snap := s.Snapshot()
	assert.Equal(t, types.AllowanceReady, snap.Collateral.Allowance.Status)
	require.NotNil(t, snap.Collateral.Allowance.Value)
	assert.True(t, snap.Collateral.Allowance.Value.Equal(decimal.NewFromInt(10)))
	assert.True(t, snap.Collateral.USDPrice.Equal(decimal.NewFromInt(2000)))
	require.Len(t, f.wallet.approved, 1)
	assert.True(t, f.wallet.approved[0].Equal(decimal.NewFromInt(10)))
	assert.Len(t, f.notifier.successes, 1)
}

func TestRejectedApprovalIsInformational(t *testing.T) {
	f := newFixture()
	f.wallet.approveErr = chain.UserRejected("approval")
	s := f.borrow()
	require.NoError(t, s.ChangeInput(types.AssetCollateral, "1"))

	err := s.Allow(context.Background(), types.AssetCollateral)
	assert.True(t, chain.IsUserRejected(err))
	assert.Equal(t, []string{"Approval cancelled"}, f.notifier.infos)
	assert.Empty(t, f.notifier.errors)
	assert.Equal(t, types.AllowanceError, s.Snapshot().Collateral.Allowance.Status)
}

func TestStaleBalancesAreDiscarded(t *testing.T) {
	f := newFixture()
	f.chain.balances = map[string][]decimal.Decimal{
		"WETH": {decimal.NewFromInt(111), decimal.NewFromInt(1)},
		"DAI":  {decimal.NewFromInt(5)},
	}
	f.chain.gateSymbol = "WETH"
	f.chain.gate = make(chan struct{})
	f.chain.started = make(chan struct{})
	s := f.borrow()
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- s.Refresh(ctx, types.AssetCollateral) }()
	<-f.chain.started

	// switch currency while the first WETH balance is still in flight
	require.NoError(t, s.ChangeCurrency(ctx, types.AssetCollateral, dai))
	close(f.chain.gate)
	require.NoError(t, <-done)

	snap := s.Snapshot()
	assert.Equal(t, "DAI", snap.Collateral.Currency.Symbol)
	assert.True(t, snap.Collateral.Balances["WETH"].Equal(decimal.NewFromInt(1)))
	assert.True(t, snap.Collateral.Balances["DAI"].Equal(decimal.NewFromInt(5)))
}

func TestLendingHasNoDebt(t *testing.T) {
	f := newFixture()
	f.sdk.vaults = []types.Vault{{Address: common.HexToAddress("0x0c"), ChainID: 1, Name: "WETH lending", Collateral: weth}}
	s := NewLend(f.session(), types.NewAssetChange(weth, nil), 30)
	ctx := context.Background()

	assert.ErrorIs(t, s.ChangeInput(types.AssetDebt, "1"), ErrNoDebt)
	assert.ErrorIs(t, s.Refresh(ctx, types.AssetDebt), ErrNoDebt)
	assert.ErrorIs(t, s.Allow(ctx, types.AssetDebt), ErrNoDebt)
	assert.ErrorIs(t, s.ChangeCurrency(ctx, types.AssetDebt, usdc), ErrNoDebt)
	assert.False(t, s.NeedsAllowance(types.AssetDebt))

	assert.Equal(t, mode.Deposit, s.Mode())
	s.SetEditing(true)
	s.ChangeAction(mode.ActionRemove)
	assert.Equal(t, mode.Withdraw, s.Mode())
	s.ChangeAction(mode.ActionAdd)

	require.NoError(t, s.ChangeInput(types.AssetCollateral, "1"))
	require.NoError(t, s.UpdateVault(ctx))

	snap := s.Snapshot()
	assert.True(t, snap.Lending)
	assert.Nil(t, snap.Debt)
	assert.Equal(t, types.FetchReady, snap.Meta.Status)
	assert.Equal(t, "WETH lending", snap.Meta.Route.Vault.Name)
}

func TestUpdateVaultSelectsRecommendedRoute(t *testing.T) {
	f := newFixture()
	s := f.borrow()
	ctx := context.Background()

	// nothing to preview yet
	require.NoError(t, s.UpdateVault(ctx))
	assert.Equal(t, types.FetchInitial, s.Snapshot().Meta.Status)
	assert.Zero(t, f.sdk.previews)

	require.NoError(t, s.ChangeInput(types.AssetCollateral, "1"))
	require.NoError(t, s.ChangeInput(types.AssetDebt, "100"))
	require.NoError(t, s.UpdateTransactionMeta(ctx))

	snap := s.Snapshot()
	require.Equal(t, types.FetchReady, snap.Meta.Status)
	assert.Equal(t, vaultA.Address, snap.Meta.Route.Vault.Address)
	assert.True(t, snap.Meta.Route.Recommended)
	assert.Len(t, snap.Routes, 2)

	require.NoError(t, s.ChangeVault(ctx, vaultB.Address))
	snap = s.Snapshot()
	require.NotNil(t, snap.Meta.Route)
	assert.Equal(t, vaultB.Address, snap.Meta.Route.Vault.Address)
	assert.False(t, snap.Meta.Route.Recommended)

	assert.Error(t, s.ChangeVault(ctx, common.HexToAddress("0xff")))

	// the selection survives rediscovery
	require.NoError(t, s.UpdateVault(ctx))
	assert.Equal(t, vaultB.Address, s.Snapshot().Vault.Address)
}

func TestSelectedVaultPreviewFails(t *testing.T) {
	f := newFixture()
	f.sdk.failFor = map[string]error{vaultA.Name: errors.New("no liquidity")}
	s := f.borrow()
	require.NoError(t, s.ChangeInput(types.AssetCollateral, "1"))

	err := s.UpdateVault(context.Background())
	assert.ErrorContains(t, err, "no liquidity")

	snap := s.Snapshot()
	assert.Equal(t, types.FetchError, snap.Meta.Status)
	require.Len(t, snap.Routes, 1)
	assert.Equal(t, vaultB.Address, snap.Routes[0].Vault.Address)
}

func TestNoVaultAvailable(t *testing.T) {
	f := newFixture()
	f.sdk.vaults = nil
	s := f.borrow()

	assert.ErrorIs(t, s.UpdateVault(context.Background()), ErrNoVault)
	snap := s.Snapshot()
	assert.Equal(t, types.FetchError, snap.Meta.Status)
	assert.Nil(t, snap.Vault)
}

func TestChangeChainKeepsSymbol(t *testing.T) {
	f := newFixture()
	opUSDC := types.Currency{Symbol: "USDC", ChainID: 10, Decimals: 6, Address: common.HexToAddress("0x12")}
	opWETH := types.Currency{Symbol: "WETH", ChainID: 10, Decimals: 18, Address: common.HexToAddress("0x11")}
	f.sdk.tokens = map[int64][]types.Currency{10: {opUSDC, opWETH}}
	s := f.borrow()
	ctx := context.Background()

	require.NoError(t, s.ChangeChain(ctx, types.AssetCollateral, 10))
	snap := s.Snapshot()
	assert.Equal(t, opWETH, snap.Collateral.Currency)
	assert.Equal(t, int64(10), snap.Collateral.ChainID)
	assert.Len(t, snap.Collateral.Selectable, 2)

	assert.Error(t, s.ChangeChain(ctx, types.AssetCollateral, 137))
	assert.Error(t, s.ChangeCurrency(ctx, types.AssetCollateral, dai), "DAI is not offered on chain 10")
}

func TestSetSlippage(t *testing.T) {
	s := newFixture().borrow()
	assert.NoError(t, s.SetSlippage(100))
	assert.Equal(t, uint32(100), s.Snapshot().SlippageBps)
	assert.Error(t, s.SetSlippage(10_001))
}
