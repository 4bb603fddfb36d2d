package store

import (
	"fmt"

	"fuji-cli/pkg/types"
)

// Context is the position a store operates on: *Borrowing or *Lending
type Context interface {
	collateral() *types.AssetChange
}

// Borrowing positions pair collateral with a debt asset
type Borrowing struct {
	Collateral types.AssetChange
	Debt       types.AssetChange
}

// Lending positions only hold collateral
type Lending struct {
	Collateral types.AssetChange
}

func (b *Borrowing) collateral() *types.AssetChange { return &b.Collateral }
func (l *Lending) collateral() *types.AssetChange { return &l.Collateral }

// side returns the asset of one side, or ErrNoDebt for the debt side of a
// lending position
func side(pos Context, t types.AssetType) (*types.AssetChange, error) {
	if t == types.AssetCollateral {
		return pos.collateral(), nil
	}
	if b, ok := pos.(*Borrowing); ok && t == types.AssetDebt {
		return &b.Debt, nil
	}
	if t == types.AssetDebt {
		return nil, ErrNoDebt
	}
	return nil, fmt.Errorf("unknown asset side %q", t)
}

// sides lists the asset sides a position has
func sides(pos Context) []types.AssetType {
	if _, ok := pos.(*Borrowing); ok {
		return []types.AssetType{types.AssetCollateral, types.AssetDebt}
	}
	return []types.AssetType{types.AssetCollateral}
}
