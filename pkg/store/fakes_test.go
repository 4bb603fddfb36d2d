package store

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/shopspring/decimal"

	"fuji-cli/pkg/history"
	"fuji-cli/pkg/logging"
	"fuji-cli/pkg/sdk"
	"fuji-cli/pkg/types"
)

var (
	alice  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	router = common.HexToAddress("0x00000000000000000000000000000000000000cc")

	weth = types.Currency{Symbol: "WETH", ChainID: 1, Decimals: 18, Address: common.HexToAddress("0x01")}
	dai  = types.Currency{Symbol: "DAI", ChainID: 1, Decimals: 18, Address: common.HexToAddress("0x03")}
	usdc = types.Currency{Symbol: "USDC", ChainID: 1, Decimals: 6, Address: common.HexToAddress("0x02")}

	vaultA = borrowingVault("0x0a", "WETH-USDC A")
	vaultB = borrowingVault("0x0b", "WETH-USDC B")
)

func borrowingVault(address, name string) types.Vault {
	debt := usdc
	return types.Vault{Address: common.HexToAddress(address), ChainID: 1, Name: name, Collateral: weth, Debt: &debt}
}

// events records the order of calls across fakes
type events struct {
	mu   sync.Mutex
	list []string
}

func (e *events) add(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.list = append(e.list, name)
}

func (e *events) all() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.list...)
}

type fakeSDK struct {
	mu       sync.Mutex
	events   *events
	vaults   []types.Vault
	tokens   map[int64][]types.Currency
	needSig  bool
	srcChain int64
	failFor  map[string]error
	previews int

	txCalls int
	txSrc   int64
	txSig   []byte
}

func newFakeSDK(ev *events) *fakeSDK {
	return &fakeSDK{events: ev, vaults: []types.Vault{vaultA, vaultB}}
}

func (f *fakeSDK) preview(req sdk.PreviewRequest) (*sdk.Preview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.previews++
	if err, ok := f.failFor[req.Vault.Name]; ok {
		return nil, err
	}

	src := req.Vault.ChainID
	if f.srcChain != 0 {
		src = f.srcChain
	}
	actions := []sdk.Action{{Kind: sdk.ActionDeposit, ChainID: req.Vault.ChainID}}
	if f.needSig {
		actions = append(actions, sdk.Action{Kind: sdk.ActionPermitBorrow, ChainID: req.Vault.ChainID})
	}
	return &sdk.Preview{
		Actions: actions,
		Steps: []sdk.Step{
			{Step: sdk.StepStart, ChainID: src},
			{Step: sdk.StepDeposit, ChainID: req.Vault.ChainID},
			{Step: sdk.StepEnd, ChainID: req.Vault.ChainID},
		},
		BridgeFee: big.NewInt(0),
	}, nil
}

func (f *fakeSDK) PreviewDeposit(_ context.Context, req sdk.PreviewRequest) (*sdk.Preview, error) {
	return f.preview(req)
}

func (f *fakeSDK) PreviewBorrow(_ context.Context, req sdk.PreviewRequest) (*sdk.Preview, error) {
	return f.preview(req)
}

func (f *fakeSDK) PreviewDepositAndBorrow(_ context.Context, req sdk.PreviewRequest) (*sdk.Preview, error) {
	return f.preview(req)
}

func (f *fakeSDK) PreviewWithdraw(_ context.Context, req sdk.PreviewRequest) (*sdk.Preview, error) {
	return f.preview(req)
}

func (f *fakeSDK) PreviewPayback(_ context.Context, req sdk.PreviewRequest) (*sdk.Preview, error) {
	return f.preview(req)
}

func (f *fakeSDK) PreviewPaybackAndWithdraw(_ context.Context, req sdk.PreviewRequest) (*sdk.Preview, error) {
	return f.preview(req)
}

func (f *fakeSDK) BorrowingVaultsFor(context.Context, types.Currency, types.Currency) ([]types.Vault, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.Vault(nil), f.vaults...), nil
}

func (f *fakeSDK) LendingVaultsFor(context.Context, types.Currency) ([]types.Vault, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.Vault(nil), f.vaults...), nil
}

func (f *fakeSDK) Tokens(_ context.Context, chainID int64, _ types.AssetType) ([]types.Currency, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens[chainID], nil
}

func (f *fakeSDK) TokenPrice(context.Context, types.Currency) (decimal.Decimal, error) {
	return decimal.NewFromInt(2000), nil
}

func (f *fakeSDK) RouterAddress(context.Context, int64) (common.Address, error) {
	return router, nil
}

func (f *fakeSDK) PermitFor(context.Context, []sdk.Action) (*apitypes.TypedData, error) {
	f.events.add("permit")
	return &apitypes.TypedData{PrimaryType: "Permit"}, nil
}

func (f *fakeSDK) TxDetails(_ context.Context, _ []sdk.Action, srcChainID int64, account common.Address, signature []byte) (*sdk.TxRequest, error) {
	f.events.add("txDetails")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txCalls++
	f.txSrc = srcChainID
	f.txSig = signature
	return &sdk.TxRequest{ChainID: srcChainID, From: account, To: router}, nil
}

func (f *fakeSDK) TransferStatus(context.Context, int64, common.Hash) (*sdk.TransferStatus, error) {
	return nil, fmt.Errorf("not tracked")
}

// fakeChain serves balances per symbol. The first balance call for
// gateSymbol blocks until gate is closed.
type fakeChain struct {
	mu         sync.Mutex
	balances   map[string][]decimal.Decimal
	calls      map[string]int
	allowance  decimal.Decimal
	gateSymbol string
	gate       chan struct{}
	started    chan struct{}
}

func (f *fakeChain) Balance(_ context.Context, currency types.Currency, _ common.Address) (decimal.Decimal, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	n := f.calls[currency.Symbol]
	f.calls[currency.Symbol]++
	values := f.balances[currency.Symbol]
	gated := f.gate != nil && currency.Symbol == f.gateSymbol && n == 0
	f.mu.Unlock()

	if gated {
		close(f.started)
		<-f.gate
	}
	if len(values) == 0 {
		return decimal.Zero, nil
	}
	return values[min(n, len(values)-1)], nil
}

func (f *fakeChain) Allowance(context.Context, types.Currency, common.Address, common.Address) (decimal.Decimal, error) {
	return f.allowance, nil
}

type fakeWallet struct {
	mu         sync.Mutex
	events     *events
	gas        uint64
	approveErr error
	signErr    error
	sendErr    error
	approved   []decimal.Decimal
	sentGas    []uint64
}

func (f *fakeWallet) Address() common.Address { return alice }

func (f *fakeWallet) Approve(_ context.Context, _ types.Currency, _ common.Address, amount decimal.Decimal) (common.Hash, error) {
	f.events.add("approve")
	if f.approveErr != nil {
		return common.Hash{}, f.approveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.approved = append(f.approved, amount)
	return common.HexToHash("0xa1"), nil
}

func (f *fakeWallet) SignTypedData(*apitypes.TypedData) ([]byte, error) {
	f.events.add("sign")
	if f.signErr != nil {
		return nil, f.signErr
	}
	return []byte{0xde, 0xad}, nil
}

func (f *fakeWallet) EstimateGas(context.Context, sdk.TxRequest) (uint64, error) {
	f.events.add("estimate")
	return f.gas, nil
}

func (f *fakeWallet) SendTransaction(_ context.Context, _ sdk.TxRequest, gasLimit uint64) (common.Hash, error) {
	f.events.add("send")
	if f.sendErr != nil {
		return common.Hash{}, f.sendErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sentGas = append(f.sentGas, gasLimit)
	return common.HexToHash("0xbeef"), nil
}

type fakeNotifier struct {
	mu        sync.Mutex
	pending   []string
	dismissed []string
	infos     []string
	successes []string
	errors    []string
	links     []string
}

func (f *fakeNotifier) Pending(msg string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, msg)
	return fmt.Sprintf("n%d", len(f.pending))
}

func (f *fakeNotifier) Dismiss(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dismissed = append(f.dismissed, id)
}

func (f *fakeNotifier) Info(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.infos = append(f.infos, msg)
}

func (f *fakeNotifier) Success(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.successes = append(f.successes, msg)
}

func (f *fakeNotifier) Error(msg, link string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, msg)
	f.links = append(f.links, link)
}

type fakeRecorder struct {
	entries []history.Entry
}

func (f *fakeRecorder) Add(entry history.Entry) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fixture struct {
	events   *events
	sdk      *fakeSDK
	chain    *fakeChain
	wallet   *fakeWallet
	notifier *fakeNotifier
	history  *fakeRecorder
}

func newFixture() *fixture {
	ev := &events{}
	return &fixture{
		events:   ev,
		sdk:      newFakeSDK(ev),
		chain:    &fakeChain{},
		wallet:   &fakeWallet{events: ev, gas: 100_000},
		notifier: &fakeNotifier{},
		history:  &fakeRecorder{},
	}
}

func (f *fixture) session() Session {
	return Session{
		SDK:      f.sdk,
		Chain:    f.chain,
		Wallet:   f.wallet,
		History:  f.history,
		Notifier: f.notifier,
		Log:      logging.Discard(),
	}
}

func (f *fixture) borrow() *Store {
	return NewBorrow(f.session(),
		types.NewAssetChange(weth, []types.Currency{weth, dai}),
		types.NewAssetChange(usdc, []types.Currency{usdc}),
		30)
}
