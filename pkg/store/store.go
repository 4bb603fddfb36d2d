package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"fuji-cli/pkg/mode"
	"fuji-cli/pkg/routing"
	"fuji-cli/pkg/types"
)

// MaxSlippageBps is 100%
const MaxSlippageBps = 10_000

// TransactionMeta is the route currently selected for execution
type TransactionMeta struct {
	Status types.FetchStatus
	Route  *routing.RouteMeta
	Err    error
}

// State is a copy of the store taken under its lock
type State struct {
	Mode        mode.Mode
	Action      mode.ActionType
	Editing     bool
	Lending     bool
	Collateral  types.AssetChange
	Debt        *types.AssetChange
	Vault       *types.Vault
	Vaults      []types.Vault
	Routes      []routing.RouteMeta
	Meta        TransactionMeta
	SlippageBps uint32
	Signed      bool
}

// Store orchestrates one borrow or lend operation: inputs, balances,
// vault and route selection, and the allowance, signature and execution
// pipeline. All methods are safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	session Session

	position Context
	editing  bool
	action   mode.ActionType
	mode     mode.Mode

	vault  *types.Vault
	vaults []types.Vault
	routes []routing.RouteMeta
	meta   TransactionMeta

	slippage  uint32
	signature []byte

	// Bumped whenever a side's chain or currency changes. Async results
	// stamped with an older generation are dropped.
	gens     map[types.AssetType]uint64
	routeGen uint64
}

// NewBorrow creates a store for a borrowing position
func NewBorrow(session Session, collateral, debt types.AssetChange, slippageBps uint32) *Store {
	return newStore(session, &Borrowing{Collateral: collateral, Debt: debt}, slippageBps)
}

// NewLend creates a store for a lending position
func NewLend(session Session, collateral types.AssetChange, slippageBps uint32) *Store {
	return newStore(session, &Lending{Collateral: collateral}, slippageBps)
}

func newStore(session Session, pos Context, slippageBps uint32) *Store {
	s := &Store{
		session:  session.withDefaults(),
		position: pos,
		meta:     TransactionMeta{Status: types.FetchInitial},
		slippage: slippageBps,
		gens:     make(map[types.AssetType]uint64),
	}
	for _, t := range sides(pos) {
		a, _ := side(pos, t)
		if a.Balances == nil {
			a.Balances = make(map[string]decimal.Decimal)
		}
		if a.Allowance.Status == "" {
			a.Allowance.Status = types.AllowanceInitial
		}
	}
	s.updateModeLocked()
	return s
}

// Mode returns the derived mode
func (s *Store) Mode() mode.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Snapshot returns a copy of the current state
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Mode:        s.mode,
		Action:      s.action,
		Editing:     s.editing,
		Collateral:  cloneAsset(*s.position.collateral()),
		Vaults:      append([]types.Vault(nil), s.vaults...),
		Routes:      append([]routing.RouteMeta(nil), s.routes...),
		Meta:        s.meta,
		SlippageBps: s.slippage,
		Signed:      len(s.signature) > 0,
	}
	switch pos := s.position.(type) {
	case *Borrowing:
		debt := cloneAsset(pos.Debt)
		st.Debt = &debt
	case *Lending:
		st.Lending = true
	}
	if s.vault != nil {
		v := *s.vault
		st.Vault = &v
	}
	return st
}

func cloneAsset(a types.AssetChange) types.AssetChange {
	a.Selectable = append([]types.Currency(nil), a.Selectable...)
	a.Balances = lo.Assign(a.Balances)
	return a
}

// SetEditing switches between opening a position and editing one
func (s *Store) SetEditing(editing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editing = editing
	s.updateModeLocked()
}

// ChangeAction switches between adding to and removing from the position
func (s *Store) ChangeAction(action mode.ActionType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.action = action
	s.updateModeLocked()
}

// UpdateMode re-derives the mode from the current inputs
func (s *Store) UpdateMode() mode.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateModeLocked()
}

func (s *Store) updateModeLocked() mode.Mode {
	switch pos := s.position.(type) {
	case *Borrowing:
		debt := pos.Debt.Amount
		s.mode = mode.ForContext(s.editing, s.action, pos.Collateral.Amount, &debt)
	case *Lending:
		// No debt side, only deposit or withdraw
		s.mode = mode.ForLending(s.action)
	}
	return s.mode
}

// ChangeInput sets the amount typed for one side. The current route is
// invalidated and has to be fetched again with UpdateTransactionMeta.
func (s *Store) ChangeInput(t types.AssetType, input string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := side(s.position, t)
	if err != nil {
		return s.invariant(err)
	}
	if err := a.SetInput(input); err != nil {
		return err
	}
	s.updateModeLocked()
	s.resetRouteLocked()
	return nil
}

// ClearInputs empties every amount, typically after a successful execution
func (s *Store) ClearInputs() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range sides(s.position) {
		a, _ := side(s.position, t)
		_ = a.SetInput("")
	}
	s.updateModeLocked()
	s.resetRouteLocked()
	s.routes = nil
}

// SetSlippage changes the tolerated slippage for future previews
func (s *Store) SetSlippage(bps uint32) error {
	if bps > MaxSlippageBps {
		return fmt.Errorf("slippage must be at most %d bps, got %d", MaxSlippageBps, bps)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slippage = bps
	s.resetRouteLocked()
	return nil
}

// ChangeChain moves one side to another chain. The tokens of that chain
// are loaded and the currency with the same symbol is kept when possible.
func (s *Store) ChangeChain(ctx context.Context, t types.AssetType, chainID int64) error {
	s.mu.Lock()
	_, err := side(s.position, t)
	s.mu.Unlock()
	if err != nil {
		return s.invariant(err)
	}

	tokens, err := s.session.SDK.Tokens(ctx, chainID, t)
	if err != nil {
		return fmt.Errorf("failed to load %s tokens on chain %d: %w", t, chainID, err)
	}
	if len(tokens) == 0 {
		return fmt.Errorf("no %s tokens available on chain %d", t, chainID)
	}

	s.mu.Lock()
	a, _ := side(s.position, t)
	next, ok := lo.Find(tokens, func(c types.Currency) bool { return c.Symbol == a.Currency.Symbol })
	if !ok {
		next = tokens[0]
	}
	a.ChainID = chainID
	a.Selectable = tokens
	s.switchCurrencyLocked(t, a, next)
	s.mu.Unlock()

	return s.afterAssetChange(ctx, t)
}

// ChangeCurrency selects another currency for one side
func (s *Store) ChangeCurrency(ctx context.Context, t types.AssetType, currency types.Currency) error {
	s.mu.Lock()
	a, err := side(s.position, t)
	if err != nil {
		s.mu.Unlock()
		return s.invariant(err)
	}
	if len(a.Selectable) > 0 && !lo.ContainsBy(a.Selectable, currency.Equal) {
		s.mu.Unlock()
		return fmt.Errorf("%s is not selectable as %s", currency, t)
	}
	a.ChainID = currency.ChainID
	s.switchCurrencyLocked(t, a, currency)
	s.mu.Unlock()

	return s.afterAssetChange(ctx, t)
}

func (s *Store) switchCurrencyLocked(t types.AssetType, a *types.AssetChange, currency types.Currency) {
	s.gens[t]++
	a.Currency = currency
	a.Balances = make(map[string]decimal.Decimal)
	a.Allowance = types.Allowance{Status: types.AllowanceInitial}
	a.USDPrice = decimal.Zero
	s.resetRouteLocked()

	s.session.Log.WithFields(logrus.Fields{
		"side":     t,
		"currency": currency.Symbol,
		"chain":    currency.ChainID,
	}).Debug("currency changed")
}

func (s *Store) afterAssetChange(ctx context.Context, t types.AssetType) error {
	return errors.Join(s.Refresh(ctx, t), s.UpdateVault(ctx))
}

// resetRouteLocked drops the selected route and any signature made for it
func (s *Store) resetRouteLocked() {
	s.routeGen++
	s.meta = TransactionMeta{Status: types.FetchInitial}
	s.signature = nil
}

// invariant logs a broken precondition. These are reported to the caller
// and never crash the process.
func (s *Store) invariant(err error) error {
	s.session.Log.WithError(err).Error("operation refused")
	return err
}
