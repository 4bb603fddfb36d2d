package routing

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc/iter"

	"fuji-cli/pkg/mode"
	"fuji-cli/pkg/sdk"
	"fuji-cli/pkg/types"
)

// DefaultDeadline bounds how long a previewed route stays executable
const DefaultDeadline = 24 * time.Hour

// Request describes one route preview against a single vault
type Request struct {
	Mode             mode.Mode
	Vault            types.Vault
	Collateral       types.Currency
	Debt             *types.Currency
	CollateralAmount decimal.Decimal
	DebtAmount       decimal.Decimal
	Account          common.Address
	SlippageBps      uint32
	Recommended      bool
}

// RouteMeta is a previewed route ready for display and execution
type RouteMeta struct {
	Vault            types.Vault
	Recommended      bool
	BridgeFee        decimal.Decimal
	EstimateTime     time.Duration
	EstimateSlippage decimal.Decimal // percent
	Actions          []sdk.Action
	Steps            []sdk.Step
}

// SourceChainID is the chain the first step starts on
func (r *RouteMeta) SourceChainID() (int64, bool) {
	if r == nil || len(r.Steps) == 0 {
		return 0, false
	}
	return r.Steps[0].ChainID, true
}

// Result holds either a route or the error that prevented it
type Result struct {
	Data *RouteMeta
	Err  error
}

// Fetch previews a single route. Errors are returned in the result, never
// raised, so one failed vault cannot break rendering of the others.
func Fetch(ctx context.Context, previewer sdk.Previewer, req Request) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Result{Err: fmt.Errorf("preview %s panicked: %v", req.Mode, r)}
		}
	}()

	preview, err := preview(ctx, previewer, req)
	if err != nil {
		return Result{Err: fmt.Errorf("failed to preview %s on vault %s: %w", req.Mode, req.Vault.Name, err)}
	}
	if preview == nil {
		return Result{Err: fmt.Errorf("empty preview for %s on vault %s", req.Mode, req.Vault.Name)}
	}

	return Result{Data: &RouteMeta{
		Vault:            req.Vault,
		Recommended:      req.Recommended,
		BridgeFee:        BridgeFee(preview),
		EstimateTime:     time.Duration(preview.EstimateTime) * time.Second,
		EstimateSlippage: SlippagePercent(preview.EstimateSlippage),
		Actions:          preview.Actions,
		Steps:            preview.Steps,
	}}
}

// FetchAll previews every request concurrently. Results keep the order of
// reqs and the first one is flagged as recommended.
func FetchAll(ctx context.Context, previewer sdk.Previewer, reqs []Request) []Result {
	reqs = append([]Request(nil), reqs...)
	for i := range reqs {
		reqs[i].Recommended = i == 0
	}

	return iter.Map(reqs, func(req *Request) Result {
		return Fetch(ctx, previewer, *req)
	})
}

func preview(ctx context.Context, previewer sdk.Previewer, req Request) (*sdk.Preview, error) {
	in := sdk.PreviewRequest{
		Vault:            req.Vault,
		Collateral:       req.Collateral,
		Debt:             req.Debt,
		CollateralAmount: types.ParseUnits(req.CollateralAmount, req.Collateral.Decimals),
		DebtAmount:       big.NewInt(0),
		Account:          req.Account,
		SlippageBps:      req.SlippageBps,
		Deadline:         time.Now().Add(DefaultDeadline),
	}
	if req.Debt != nil {
		in.DebtAmount = types.ParseUnits(req.DebtAmount, req.Debt.Decimals)
	}

	// Debt modes need a debt currency
	if req.Mode.UsesDebt() && req.Debt == nil {
		return nil, fmt.Errorf("%s requires a debt currency", req.Mode)
	}

	switch req.Mode {
	case mode.Deposit:
		return previewer.PreviewDeposit(ctx, in)
	case mode.Borrow:
		return previewer.PreviewBorrow(ctx, in)
	case mode.DepositAndBorrow:
		return previewer.PreviewDepositAndBorrow(ctx, in)
	case mode.Withdraw:
		return previewer.PreviewWithdraw(ctx, in)
	case mode.Payback:
		return previewer.PreviewPayback(ctx, in)
	case mode.PaybackAndWithdraw:
		return previewer.PreviewPaybackAndWithdraw(ctx, in)
	default:
		return nil, fmt.Errorf("unsupported mode: %s", req.Mode)
	}
}

// BridgeFee converts the raw fee using the decimals of the bridged token
func BridgeFee(p *sdk.Preview) decimal.Decimal {
	if p == nil || p.BridgeFee == nil {
		return decimal.Zero
	}

	decimals := types.DefaultDecimals
	if step, ok := sdk.BridgeStep(p.Steps); ok && step.Token != nil {
		decimals = step.Token.Decimals
	}

	return types.FormatUnits(p.BridgeFee, decimals)
}

// SlippagePercent converts basis points to percent
func SlippagePercent(bps int64) decimal.Decimal {
	return decimal.NewFromInt(bps).Div(decimal.NewFromInt(100))
}
