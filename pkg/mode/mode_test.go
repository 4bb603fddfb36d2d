package mode

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fuji-cli/pkg/types"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}

func TestForContextNotEditingAlwaysDepositAndBorrow(t *testing.T) {
	amounts := []string{"0", "1", "25.5"}
	for _, action := range []ActionType{ActionAdd, ActionRemove} {
		for _, c := range amounts {
			for _, d := range amounts {
				got := ForContext(false, action, dec(c), ptr(dec(d)))
				assert.Equal(t, DepositAndBorrow, got, "action=%s collateral=%s debt=%s", action, c, d)
			}
			assert.Equal(t, DepositAndBorrow, ForContext(false, action, dec(c), nil))
		}
	}
}

func TestForContextWithoutDebt(t *testing.T) {
	assert.Equal(t, DepositAndBorrow, ForContext(true, ActionAdd, dec("3"), nil))
	assert.Equal(t, DepositAndBorrow, ForContext(true, ActionRemove, dec("0"), nil))
}

func TestForContextBothZeroMatchesBothNonZero(t *testing.T) {
	for _, action := range []ActionType{ActionAdd, ActionRemove} {
		zero := ForContext(true, action, dec("0"), ptr(dec("0")))
		nonZero := ForContext(true, action, dec("2"), ptr(dec("7")))
		assert.Equal(t, nonZero, zero)
	}
	assert.Equal(t, DepositAndBorrow, ForContext(true, ActionAdd, dec("0"), ptr(dec("0"))))
	assert.Equal(t, PaybackAndWithdraw, ForContext(true, ActionRemove, dec("0"), ptr(dec("0"))))
}

func TestForContextSingleSided(t *testing.T) {
	tests := []struct {
		name       string
		action     ActionType
		collateral string
		debt       string
		expected   Mode
	}{
		{"deposit only", ActionAdd, "1", "0", Deposit},
		{"withdraw only", ActionRemove, "1", "0", Withdraw},
		{"borrow only", ActionAdd, "0", "5", Borrow},
		{"payback only", ActionRemove, "0", "5", Payback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ForContext(true, tt.action, dec(tt.collateral), ptr(dec(tt.debt)))
			assert.Equal(t, tt.expected, got)
			// same inputs, same answer
			assert.Equal(t, got, ForContext(true, tt.action, dec(tt.collateral), ptr(dec(tt.debt))))
		})
	}
}

func TestForLending(t *testing.T) {
	assert.Equal(t, Deposit, ForLending(ActionAdd))
	assert.Equal(t, Withdraw, ForLending(ActionRemove))
}

func TestMovesIn(t *testing.T) {
	assert.True(t, DepositAndBorrow.MovesIn(types.AssetCollateral))
	assert.True(t, Deposit.MovesIn(types.AssetCollateral))
	assert.False(t, Withdraw.MovesIn(types.AssetCollateral))
	assert.False(t, PaybackAndWithdraw.MovesIn(types.AssetCollateral))

	assert.True(t, Payback.MovesIn(types.AssetDebt))
	assert.True(t, PaybackAndWithdraw.MovesIn(types.AssetDebt))
	assert.False(t, Borrow.MovesIn(types.AssetDebt))
	assert.False(t, DepositAndBorrow.MovesIn(types.AssetDebt))
}

func TestUsesSides(t *testing.T) {
	assert.False(t, Deposit.UsesDebt())
	assert.False(t, Withdraw.UsesDebt())
	assert.True(t, Borrow.UsesDebt())
	assert.False(t, Borrow.UsesCollateral())
	assert.True(t, PaybackAndWithdraw.UsesCollateral())
}

func TestParseAndText(t *testing.T) {
	for _, m := range All {
		parsed, err := Parse(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}

	_, err := Parse("swap")
	assert.Error(t, err)

	data, err := json.Marshal(struct {
		Mode Mode `json:"mode"`
	}{Payback})
	require.NoError(t, err)
	assert.JSONEq(t, `{"mode":"PAYBACK"}`, string(data))

	var out struct {
		Mode Mode `json:"mode"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"mode":"withdraw"}`), &out))
	assert.Equal(t, Withdraw, out.Mode)
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction("REMOVE")
	require.NoError(t, err)
	assert.Equal(t, ActionRemove, a)

	a, err = ParseAction("")
	require.NoError(t, err)
	assert.Equal(t, ActionAdd, a)

	_, err = ParseAction("swap")
	assert.Error(t, err)
}
