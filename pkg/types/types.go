package types

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Currency is a token on a specific chain
type Currency struct {
	Symbol   string         `json:"symbol"`
	Name     string         `json:"name,omitempty"`
	ChainID  int64          `json:"chainId"`
	Address  common.Address `json:"address"`
	Decimals uint8          `json:"decimals"`
	Native   bool           `json:"native,omitempty"`
}

// Key identifies the currency across chains
func (c Currency) Key() string {
	return strconv.FormatInt(c.ChainID, 10) + ":" + strings.ToLower(c.Address.Hex())
}

// Equal reports whether both values point to the same token
func (c Currency) Equal(other Currency) bool {
	return c.ChainID == other.ChainID && c.Address == other.Address && c.Symbol == other.Symbol
}

func (c Currency) String() string {
	return fmt.Sprintf("%s (chain %d)", c.Symbol, c.ChainID)
}

// Vault pairs a collateral asset with an optional debt asset.
// Lending vaults have no debt.
type Vault struct {
	Address    common.Address `json:"address"`
	ChainID    int64          `json:"chainId"`
	Name       string         `json:"name"`
	Collateral Currency       `json:"collateral"`
	Debt       *Currency      `json:"debt,omitempty"`
	Providers  []string       `json:"providers,omitempty"`
}

// IsBorrowing returns true for vaults that carry a debt asset
func (v Vault) IsBorrowing() bool {
	return v.Debt != nil
}

// AssetType selects one side of an operation
type AssetType string

const (
	AssetCollateral AssetType = "collateral"
	AssetDebt       AssetType = "debt"
)

// AllowanceStatus tracks the approval state of an asset
type AllowanceStatus string

const (
	AllowanceInitial  AllowanceStatus = "initial"
	AllowanceFetching AllowanceStatus = "fetching"
	AllowanceAllowing AllowanceStatus = "allowing"
	AllowanceReady    AllowanceStatus = "ready"
	AllowanceError    AllowanceStatus = "error"
)

// Allowance is the known ERC20 approval of the router. A nil Value means
// the allowance has not been fetched yet.
type Allowance struct {
	Status AllowanceStatus  `json:"status"`
	Value  *decimal.Decimal `json:"value,omitempty"`
}

// FetchStatus gates consumers of asynchronously loaded data
type FetchStatus string

const (
	FetchInitial FetchStatus = "initial"
	FetchLoading FetchStatus = "loading"
	FetchReady   FetchStatus = "ready"
	FetchError   FetchStatus = "error"
)

// AssetChange is one side (collateral or debt) of an operation
type AssetChange struct {
	Selectable []Currency                 `json:"selectable"`
	Balances   map[string]decimal.Decimal `json:"balances"`
	Allowance  Allowance                  `json:"allowance"`
	Input      string                     `json:"input"`
	ChainID    int64                      `json:"chainId"`
	Currency   Currency                   `json:"currency"`
	Amount     decimal.Decimal            `json:"amount"`
	USDPrice   decimal.Decimal            `json:"usdPrice"`
}

// NewAssetChange creates an empty asset side for the given currency
func NewAssetChange(currency Currency, selectable []Currency) AssetChange {
	return AssetChange{
		Selectable: selectable,
		Balances:   make(map[string]decimal.Decimal),
		Allowance:  Allowance{Status: AllowanceInitial},
		ChainID:    currency.ChainID,
		Currency:   currency,
	}
}

// SetInput updates the textual input and the computed amount
func (a *AssetChange) SetInput(input string) error {
	input = strings.TrimSpace(input)

	if input == "" {
		a.Input = ""
		a.Amount = decimal.Zero
		return nil
	}

	amount, err := decimal.NewFromString(input)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", input, err)
	}
	if amount.IsNegative() {
		return fmt.Errorf("amount cannot be negative: %s", input)
	}

	a.Input = input
	a.Amount = amount
	return nil
}

// Balance returns the wallet balance of the active currency
func (a *AssetChange) Balance() decimal.Decimal {
	return a.Balances[a.Currency.Symbol]
}

// USDValue returns amount * price
func (a *AssetChange) USDValue() decimal.Decimal {
	return a.Amount.Mul(a.USDPrice)
}
