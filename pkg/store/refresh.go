package store

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/iter"
	"github.com/sourcegraph/conc/pool"

	"fuji-cli/pkg/types"
)

// stamp identifies the side and currency generation a request was made for
type stamp struct {
	side types.AssetType
	gen  uint64
}

// apply runs fn on the side only if it was not switched to another chain
// or currency since the stamp was taken
func (s *Store) apply(st stamp, fn func(a *types.AssetChange)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.gens[st.side] != st.gen {
		return false
	}
	a, err := side(s.position, st.side)
	if err != nil {
		return false
	}
	fn(a)
	return true
}

// Refresh reloads the price, the balances and the router allowance of one
// side concurrently
func (s *Store) Refresh(ctx context.Context, t types.AssetType) error {
	s.mu.Lock()
	a, err := side(s.position, t)
	if err != nil {
		s.mu.Unlock()
		return s.invariant(err)
	}
	st := stamp{side: t, gen: s.gens[t]}
	currency := a.Currency
	currencies := lo.Filter(a.Selectable, func(c types.Currency, _ int) bool { return c.ChainID == currency.ChainID })
	if !lo.ContainsBy(currencies, currency.Equal) {
		currencies = append(currencies, currency)
	}
	a.Allowance.Status = types.AllowanceFetching
	account := s.session.Account
	s.mu.Unlock()

	p := pool.New().WithErrors().WithContext(ctx)
	p.Go(func(ctx context.Context) error { return s.refreshPrice(ctx, st, currency) })
	p.Go(func(ctx context.Context) error { return s.refreshBalances(ctx, st, account, currencies) })
	p.Go(func(ctx context.Context) error { return s.refreshAllowance(ctx, st, account, currency) })
	return p.Wait()
}

// RefreshAll refreshes every side of the position
func (s *Store) RefreshAll(ctx context.Context) error {
	s.mu.Lock()
	all := sides(s.position)
	s.mu.Unlock()

	p := pool.New().WithErrors()
	for _, t := range all {
		p.Go(func() error { return s.Refresh(ctx, t) })
	}
	return p.Wait()
}

func (s *Store) refreshPrice(ctx context.Context, st stamp, currency types.Currency) error {
	price, err := s.session.SDK.TokenPrice(ctx, currency)
	if err != nil {
		return fmt.Errorf("failed to fetch %s price: %w", currency.Symbol, err)
	}
	if !s.apply(st, func(a *types.AssetChange) { a.USDPrice = price }) {
		s.discarded(st, "price")
	}
	return nil
}

func (s *Store) refreshBalances(ctx context.Context, st stamp, account common.Address, currencies []types.Currency) error {
	balances, err := iter.MapErr(currencies, func(c *types.Currency) (decimal.Decimal, error) {
		return s.session.Chain.Balance(ctx, *c, account)
	})
	if err != nil {
		return fmt.Errorf("failed to fetch balances: %w", err)
	}

	out := make(map[string]decimal.Decimal, len(currencies))
	for i, c := range currencies {
		out[c.Symbol] = balances[i]
	}
	if !s.apply(st, func(a *types.AssetChange) { a.Balances = out }) {
		s.discarded(st, "balances")
	}
	return nil
}

func (s *Store) refreshAllowance(ctx context.Context, st stamp, account common.Address, currency types.Currency) error {
	value, err := s.allowance(ctx, account, currency)
	if err != nil {
		s.apply(st, func(a *types.AssetChange) { a.Allowance.Status = types.AllowanceError })
		return fmt.Errorf("failed to fetch %s allowance: %w", currency.Symbol, err)
	}
	if !s.apply(st, func(a *types.AssetChange) {
		a.Allowance = types.Allowance{Status: types.AllowanceReady, Value: &value}
	}) {
		s.discarded(st, "allowance")
	}
	return nil
}

func (s *Store) allowance(ctx context.Context, account common.Address, currency types.Currency) (decimal.Decimal, error) {
	spender, err := s.session.SDK.RouterAddress(ctx, currency.ChainID)
	if err != nil {
		return decimal.Zero, err
	}
	return s.session.Chain.Allowance(ctx, currency, account, spender)
}

func (s *Store) discarded(st stamp, what string) {
	s.session.Log.WithFields(logrus.Fields{"side": st.side, "data": what}).Debug("discarding stale result")
}
