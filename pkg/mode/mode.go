package mode

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"fuji-cli/pkg/types"
)

// Mode is the combination of deposit/borrow/withdraw/payback implied by the
// current inputs. It is always derived, never chosen directly.
type Mode int

const (
	DepositAndBorrow Mode = iota
	PaybackAndWithdraw
	Deposit
	Borrow
	Withdraw
	Payback
)

var modeNames = map[Mode]string{
	DepositAndBorrow:   "DEPOSIT_AND_BORROW",
	PaybackAndWithdraw: "PAYBACK_AND_WITHDRAW",
	Deposit:            "DEPOSIT",
	Borrow:             "BORROW",
	Withdraw:           "WITHDRAW",
	Payback:            "PAYBACK",
}

// All lists every mode in declaration order
var All = []Mode{DepositAndBorrow, PaybackAndWithdraw, Deposit, Borrow, Withdraw, Payback}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Parse converts a mode name back to a Mode
func Parse(s string) (Mode, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for m, name := range modeNames {
		if name == s {
			return m, nil
		}
	}
	return 0, fmt.Errorf("unknown mode: %s", s)
}

// MarshalText stores modes by name in JSON and on disk
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText parses a mode name
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// ActionType tells whether the user adds to or removes from a position
type ActionType int

const (
	ActionAdd ActionType = iota
	ActionRemove
)

func (a ActionType) String() string {
	if a == ActionRemove {
		return "remove"
	}
	return "add"
}

// ParseAction accepts "add" or "remove"
func ParseAction(s string) (ActionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "add", "":
		return ActionAdd, nil
	case "remove":
		return ActionRemove, nil
	default:
		return ActionAdd, fmt.Errorf("action must be 'add' or 'remove', got %q", s)
	}
}

// ForContext derives the mode from the editing state and the input amounts.
// A nil debt means the position has no debt side at all.
func ForContext(isEditing bool, action ActionType, collateral decimal.Decimal, debt *decimal.Decimal) Mode {
	if !isEditing || debt == nil {
		return DepositAndBorrow
	}

	hasCollateral := !collateral.IsZero()
	hasDebt := !debt.IsZero()

	switch {
	case hasCollateral == hasDebt:
		if action == ActionAdd {
			return DepositAndBorrow
		}
		return PaybackAndWithdraw
	case hasCollateral:
		if action == ActionAdd {
			return Deposit
		}
		return Withdraw
	case hasDebt:
		if action == ActionAdd {
			return Borrow
		}
		return Payback
	}

	return DepositAndBorrow
}

// ForLending resolves the collateral-only mode used by lending positions
func ForLending(action ActionType) Mode {
	if action == ActionRemove {
		return Withdraw
	}
	return Deposit
}

// MovesIn reports whether the mode transfers the given side's asset into
// protocol custody, which is when an ERC20 approval is needed
func (m Mode) MovesIn(side types.AssetType) bool {
	switch side {
	case types.AssetCollateral:
		return m == Deposit || m == DepositAndBorrow
	case types.AssetDebt:
		return m == Payback || m == PaybackAndWithdraw
	default:
		return false
	}
}

// UsesCollateral returns true if the mode moves collateral in either direction
func (m Mode) UsesCollateral() bool {
	return m != Borrow && m != Payback
}

// UsesDebt returns true if the mode requires a debt input
func (m Mode) UsesDebt() bool {
	return m != Deposit && m != Withdraw
}
