package store

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"fuji-cli/pkg/chain"
	"fuji-cli/pkg/history"
	"fuji-cli/pkg/mode"
	"fuji-cli/pkg/routing"
	"fuji-cli/pkg/sdk"
	"fuji-cli/pkg/types"
)

// NeedsAllowance reports whether executing the mode requires approving
// more of the side's currency first. It is false while the allowance is
// unknown.
func NeedsAllowance(m mode.Mode, t types.AssetType, asset types.AssetChange, amount decimal.Decimal) bool {
	if !m.MovesIn(t) || asset.Allowance.Value == nil {
		return false
	}
	return asset.Allowance.Value.LessThan(amount)
}

// GasWithMargin inflates an estimate by 50%
func GasWithMargin(estimate uint64) uint64 {
	return estimate * 3 / 2
}

// NeedsAllowance reports whether the side must be approved before execution
func (s *Store) NeedsAllowance(t types.AssetType) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := side(s.position, t)
	if err != nil {
		return false
	}
	return NeedsAllowance(s.mode, t, *a, a.Amount)
}

// NeedsSignature reports whether the selected route requires a permit
// that was not signed yet
func (s *Store) NeedsSignature() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta.Route != nil && sdk.NeedSignature(s.meta.Route.Actions) && len(s.signature) == 0
}

// Allow approves the router to pull the side's input amount. On success
// the allowance is set to that amount without waiting for a re-read.
func (s *Store) Allow(ctx context.Context, t types.AssetType) error {
	if s.session.Wallet == nil {
		return s.invariant(ErrNoWallet)
	}

	s.mu.Lock()
	a, err := side(s.position, t)
	if err != nil {
		s.mu.Unlock()
		return s.invariant(err)
	}
	st := stamp{side: t, gen: s.gens[t]}
	currency, amount := a.Currency, a.Amount
	a.Allowance.Status = types.AllowanceAllowing
	s.mu.Unlock()

	spender, err := s.session.SDK.RouterAddress(ctx, currency.ChainID)
	if err == nil {
		_, err = s.session.Wallet.Approve(ctx, currency, spender, amount)
	}
	if err != nil {
		s.apply(st, func(a *types.AssetChange) { a.Allowance.Status = types.AllowanceError })
		s.report("Approval", err)
		return err
	}

	s.apply(st, func(a *types.AssetChange) {
		a.Allowance = types.Allowance{Status: types.AllowanceReady, Value: &amount}
	})
	s.session.Notifier.Success(fmt.Sprintf("Approved %s %s", amount, currency.Symbol))
	return nil
}

// Sign obtains the permit signature required by the selected route. It does
// nothing for routes without permit actions. On failure any previous
// signature is kept.
func (s *Store) Sign(ctx context.Context) error {
	s.mu.Lock()
	route := s.meta.Route
	s.mu.Unlock()

	if route == nil {
		return s.invariant(ErrNoRoute)
	}
	if !sdk.NeedSignature(route.Actions) {
		return nil
	}
	if s.session.Wallet == nil {
		return s.invariant(ErrNoWallet)
	}

	typed, err := s.session.SDK.PermitFor(ctx, route.Actions)
	if err == nil {
		var sig []byte
		sig, err = s.session.Wallet.SignTypedData(typed)
		if err == nil {
			return s.storeSignature(route, sig)
		}
	}
	s.report("Signature", err)
	return err
}

func (s *Store) storeSignature(route *routing.RouteMeta, sig []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.meta.Route != route {
		return s.invariant(ErrStaleRoute)
	}
	s.signature = sig
	return nil
}

// Execute submits the selected route and records it in history. Inputs are
// cleared on success.
func (s *Store) Execute(ctx context.Context) (common.Hash, error) {
	s.mu.Lock()
	route, vault, sig, m := s.meta.Route, s.vault, s.signature, s.mode
	s.mu.Unlock()

	if s.session.Wallet == nil {
		return common.Hash{}, s.invariant(ErrNoWallet)
	}
	if vault == nil {
		return common.Hash{}, s.invariant(ErrNoVault)
	}
	if route == nil {
		return common.Hash{}, s.invariant(ErrNoRoute)
	}
	if sdk.NeedSignature(route.Actions) && len(sig) == 0 {
		return common.Hash{}, s.invariant(ErrMissingSignature)
	}
	srcChainID, ok := route.SourceChainID()
	if !ok {
		return common.Hash{}, s.invariant(ErrNoRoute)
	}

	id := s.session.Notifier.Pending(fmt.Sprintf("Executing %s on %s", m, route.Vault.Name))
	defer s.session.Notifier.Dismiss(id)

	hash, err := s.submit(ctx, route.Actions, srcChainID, sig)
	if err != nil {
		s.report("Transaction", err)
		return common.Hash{}, err
	}

	log := s.session.Log.WithFields(logrus.Fields{
		"tx":    hash.Hex(),
		"mode":  m,
		"vault": route.Vault.Name,
		"chain": srcChainID,
	})
	log.Info("transaction submitted")

	if s.session.History != nil {
		if err := s.session.History.Add(history.NewEntry(hash, s.session.Account, m, route)); err != nil {
			log.WithError(err).Error("failed to record transaction")
		}
	}

	s.ClearInputs()
	s.session.Notifier.Success(fmt.Sprintf("%s submitted: %s", m, hash.Hex()))
	return hash, nil
}

func (s *Store) submit(ctx context.Context, actions []sdk.Action, srcChainID int64, sig []byte) (common.Hash, error) {
	tx, err := s.session.SDK.TxDetails(ctx, actions, srcChainID, s.session.Account, sig)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to build transaction: %w", err)
	}

	gas, err := s.session.Wallet.EstimateGas(ctx, *tx)
	if err != nil {
		return common.Hash{}, err
	}

	return s.session.Wallet.SendTransaction(ctx, *tx, GasWithMargin(gas))
}

// SignAndExecute signs the route first when it needs a permit
func (s *Store) SignAndExecute(ctx context.Context) (common.Hash, error) {
	if s.NeedsSignature() {
		if err := s.Sign(ctx); err != nil {
			return common.Hash{}, err
		}
	}
	return s.Execute(ctx)
}

// report notifies the user of a failed step. Rejections in the wallet are
// informational, anything else is an error with a support link.
func (s *Store) report(step string, err error) {
	if chain.IsUserRejected(err) {
		s.session.Log.WithField("step", step).Info("rejected by user")
		s.session.Notifier.Info(fmt.Sprintf("%s cancelled", step))
		return
	}
	s.session.Log.WithError(err).WithField("step", step).Error("operation failed")
	s.session.Notifier.Error(fmt.Sprintf("%s failed: %v", step, err), SupportURL)
}
