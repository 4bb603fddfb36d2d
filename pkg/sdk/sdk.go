package sdk

import (
	"context"
	"encoding/json"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"fuji-cli/pkg/types"
)

// RoutingStep is the kind of a single hop in a previewed route
type RoutingStep string

const (
	StepStart     RoutingStep = "START"
	StepDeposit   RoutingStep = "DEPOSIT"
	StepBorrow    RoutingStep = "BORROW"
	StepPayback   RoutingStep = "PAYBACK"
	StepWithdraw  RoutingStep = "WITHDRAW"
	StepXTransfer RoutingStep = "X_TRANSFER"
	StepEnd       RoutingStep = "END"
)

// Step is one hop of a route
type Step struct {
	Step            RoutingStep     `json:"step"`
	ChainID         int64           `json:"chainId"`
	Token           *types.Currency `json:"token,omitempty"`
	Amount          *big.Int        `json:"amount,omitempty"`
	LendingProvider string          `json:"lendingProvider,omitempty"`
}

// ActionKind names a router action
type ActionKind string

const (
	ActionDeposit        ActionKind = "DEPOSIT"
	ActionWithdraw       ActionKind = "WITHDRAW"
	ActionBorrow         ActionKind = "BORROW"
	ActionPayback        ActionKind = "PAYBACK"
	ActionXTransfer      ActionKind = "X_TRANSFER"
	ActionXTransferCall  ActionKind = "X_TRANSFER_WITH_CALL"
	ActionPermitBorrow   ActionKind = "PERMIT_BORROW"
	ActionPermitWithdraw ActionKind = "PERMIT_WITHDRAW"
	ActionSwap           ActionKind = "SWAP"
)

// Action is a router action. The payload is opaque to this client and is
// handed back to the routing API when building transactions.
type Action struct {
	Kind    ActionKind      `json:"action"`
	ChainID int64           `json:"chainId"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Preview is the raw result of previewing an operation
type Preview struct {
	Actions          []Action `json:"actions"`
	Steps            []Step   `json:"steps"`
	BridgeFee        *big.Int `json:"bridgeFee,omitempty"`
	EstimateTime     int64    `json:"estimateTime"`     // seconds
	EstimateSlippage int64    `json:"estimateSlippage"` // basis points
}

// PreviewRequest carries everything the routing API needs to preview a mode
type PreviewRequest struct {
	Vault            types.Vault     `json:"vault"`
	Collateral       types.Currency  `json:"collateral"`
	Debt             *types.Currency `json:"debt,omitempty"`
	CollateralAmount *big.Int        `json:"collateralAmount"`
	DebtAmount       *big.Int        `json:"debtAmount"`
	Account          common.Address  `json:"account"`
	SlippageBps      uint32          `json:"slippage"`
	Deadline         time.Time       `json:"deadline"`
}

// TxRequest is a transaction ready to be signed and broadcast
type TxRequest struct {
	ChainID int64          `json:"chainId"`
	From    common.Address `json:"from"`
	To      common.Address `json:"to"`
	Data    hexutil.Bytes  `json:"data"`
	Value   *big.Int       `json:"value,omitempty"`
}

// TransferState is the status reported for a chain of a cross-chain transfer
type TransferState string

const (
	TransferPending TransferState = "PENDING"
	TransferSuccess TransferState = "SUCCESS"
	TransferFailed  TransferState = "FAILED"
)

// TransferStatus reports the destination side of a bridged transaction
type TransferStatus struct {
	SourceChainID      int64         `json:"srcChainId"`
	DestinationChainID int64         `json:"destChainId"`
	DestinationHash    string        `json:"destTxHash,omitempty"`
	State              TransferState `json:"status"`
}

// Previewer exposes one preview method per mode
type Previewer interface {
	PreviewDeposit(ctx context.Context, req PreviewRequest) (*Preview, error)
	PreviewBorrow(ctx context.Context, req PreviewRequest) (*Preview, error)
	PreviewDepositAndBorrow(ctx context.Context, req PreviewRequest) (*Preview, error)
	PreviewWithdraw(ctx context.Context, req PreviewRequest) (*Preview, error)
	PreviewPayback(ctx context.Context, req PreviewRequest) (*Preview, error)
	PreviewPaybackAndWithdraw(ctx context.Context, req PreviewRequest) (*Preview, error)
}

// SDK is the full contract of the routing backend
type SDK interface {
	Previewer

	BorrowingVaultsFor(ctx context.Context, collateral, debt types.Currency) ([]types.Vault, error)
	LendingVaultsFor(ctx context.Context, collateral types.Currency) ([]types.Vault, error)
	Tokens(ctx context.Context, chainID int64, side types.AssetType) ([]types.Currency, error)
	TokenPrice(ctx context.Context, currency types.Currency) (decimal.Decimal, error)
	RouterAddress(ctx context.Context, chainID int64) (common.Address, error)
	PermitFor(ctx context.Context, actions []Action) (*apitypes.TypedData, error)
	TxDetails(ctx context.Context, actions []Action, srcChainID int64, account common.Address, signature []byte) (*TxRequest, error)
	TransferStatus(ctx context.Context, srcChainID int64, hash common.Hash) (*TransferStatus, error)
}

// NeedSignature reports whether the actions include an off-chain permit
func NeedSignature(actions []Action) bool {
	return lo.ContainsBy(actions, func(a Action) bool {
		return a.Kind == ActionPermitBorrow || a.Kind == ActionPermitWithdraw
	})
}

// BridgeStep returns the cross-chain transfer step of a route, if any
func BridgeStep(steps []Step) (Step, bool) {
	return lo.Find(steps, func(s Step) bool {
		return s.Step == StepXTransfer
	})
}

// IsCrossChain reports whether a route leaves its source chain
func IsCrossChain(steps []Step) bool {
	_, ok := BridgeStep(steps)
	return ok
}
