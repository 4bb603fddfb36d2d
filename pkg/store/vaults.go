package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"fuji-cli/pkg/routing"
	"fuji-cli/pkg/types"
)

type pair struct {
	collateral, debt uint64
}

func (s *Store) pairGenLocked() pair {
	return pair{collateral: s.gens[types.AssetCollateral], debt: s.gens[types.AssetDebt]}
}

// UpdateVault discovers the vaults for the selected currencies, keeps the
// selected vault if it is still offered and refreshes the routes
func (s *Store) UpdateVault(ctx context.Context) error {
	s.mu.Lock()
	gen := s.pairGenLocked()
	collateral := s.position.collateral().Currency
	var debt *types.Currency
	if b, ok := s.position.(*Borrowing); ok {
		c := b.Debt.Currency
		debt = &c
	}
	s.mu.Unlock()

	var (
		vaults []types.Vault
		err    error
	)
	if debt != nil {
		vaults, err = s.session.SDK.BorrowingVaultsFor(ctx, collateral, *debt)
	} else {
		vaults, err = s.session.SDK.LendingVaultsFor(ctx, collateral)
	}
	if err != nil {
		return fmt.Errorf("failed to discover vaults: %w", err)
	}

	s.mu.Lock()
	if s.pairGenLocked() != gen {
		s.mu.Unlock()
		s.session.Log.Debug("discarding stale vault discovery")
		return nil
	}
	s.vaults = vaults
	if len(vaults) == 0 {
		s.vault = nil
		s.routes = nil
		s.resetRouteLocked()
		s.meta.Status = types.FetchError
		s.meta.Err = ErrNoVault
		s.mu.Unlock()
		return s.invariant(ErrNoVault)
	}
	if s.vault == nil || !lo.ContainsBy(vaults, sameVault(s.vault.Address)) {
		v := vaults[0]
		s.vault = &v
	}
	s.mu.Unlock()

	return s.UpdateTransactionMeta(ctx)
}

func sameVault(address common.Address) func(types.Vault) bool {
	return func(v types.Vault) bool { return v.Address == address }
}

// ChangeVault selects one of the discovered vaults and refreshes both
// sides. Its route is used when it was already previewed.
func (s *Store) ChangeVault(ctx context.Context, address common.Address) error {
	if err := s.selectVault(address); err != nil {
		return err
	}
	return s.RefreshAll(ctx)
}

func (s *Store) selectVault(address common.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := lo.Find(s.vaults, sameVault(address))
	if !ok {
		return fmt.Errorf("vault %s is not available for this pair", address.Hex())
	}
	s.vault = &v
	s.resetRouteLocked()

	if route, ok := lo.Find(s.routes, func(r routing.RouteMeta) bool { return r.Vault.Address == address }); ok {
		s.meta = TransactionMeta{Status: types.FetchReady, Route: &route}
	}
	return nil
}

// UpdateTransactionMeta previews the current inputs on every discovered
// vault and selects the route of the selected vault. Routes resolved after
// a newer update started are discarded.
func (s *Store) UpdateTransactionMeta(ctx context.Context) error {
	s.mu.Lock()
	if s.vault == nil || len(s.vaults) == 0 {
		s.mu.Unlock()
		return s.invariant(ErrNoVault)
	}

	collateral := s.position.collateral()
	var debt *types.AssetChange
	if b, ok := s.position.(*Borrowing); ok {
		debt = &b.Debt
	}

	if !s.hasAmountsLocked(collateral, debt) {
		s.resetRouteLocked()
		s.routes = nil
		s.mu.Unlock()
		return nil
	}

	reqs := lo.Map(s.vaults, func(v types.Vault, _ int) routing.Request {
		req := routing.Request{
			Mode:             s.mode,
			Vault:            v,
			Collateral:       collateral.Currency,
			CollateralAmount: collateral.Amount,
			Account:          s.session.Account,
			SlippageBps:      s.slippage,
		}
		if debt != nil {
			c := debt.Currency
			req.Debt = &c
			req.DebtAmount = debt.Amount
		}
		return req
	})

	s.resetRouteLocked()
	s.meta.Status = types.FetchLoading
	gen := s.routeGen
	m := s.mode
	s.mu.Unlock()

	results := routing.FetchAll(ctx, s.session.SDK, reqs)

	var errs []error
	routes := make([]routing.RouteMeta, 0, len(results))
	for _, r := range results {
		if r.Err != nil {
			errs = append(errs, r.Err)
			continue
		}
		routes = append(routes, *r.Data)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.routeGen != gen {
		s.session.Log.Debug("discarding stale routes")
		return nil
	}
	s.routes = routes

	route, ok := lo.Find(routes, func(r routing.RouteMeta) bool { return r.Vault.Address == s.vault.Address })
	if !ok {
		err := errors.Join(errs...)
		if err == nil {
			err = ErrNoRoute
		}
		s.meta = TransactionMeta{Status: types.FetchError, Err: err}
		s.session.Log.WithError(err).WithField("vault", s.vault.Name).Warn("failed to preview route")
		return err
	}

	s.meta = TransactionMeta{Status: types.FetchReady, Route: &route}
	s.session.Log.WithFields(logrus.Fields{
		"mode":   m,
		"vault":  route.Vault.Name,
		"routes": len(routes),
		"failed": len(errs),
	}).Debug("routes updated")
	return nil
}

func (s *Store) hasAmountsLocked(collateral, debt *types.AssetChange) bool {
	if s.mode.UsesCollateral() && collateral.Amount.IsPositive() {
		return true
	}
	return debt != nil && s.mode.UsesDebt() && debt.Amount.IsPositive()
}
