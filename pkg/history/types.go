package history

import (
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/samber/lo"

	"fuji-cli/pkg/mode"
	"fuji-cli/pkg/routing"
	"fuji-cli/pkg/sdk"
)

// Status is the state of a transaction on one chain, or overall
type Status string

const (
	StatusOngoing Status = "ongoing"
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// ChainStatus is the sub-status of a transaction on a single chain
type ChainStatus struct {
	ChainID int64  `json:"chain_id"`
	Hash    string `json:"hash,omitempty"`
	Status  Status `json:"status"`
}

// Entry is a submitted transaction and its progress
type Entry struct {
	Hash         string       `json:"hash"`
	Address      string       `json:"address"`
	Mode         mode.Mode    `json:"mode"`
	VaultAddress string       `json:"vault_address"`
	VaultName    string       `json:"vault_name,omitempty"`
	Steps        []sdk.Step   `json:"steps"`
	Status       Status       `json:"status"`
	Source       ChainStatus  `json:"source"`
	Destination  *ChainStatus `json:"destination,omitempty"`
	Error        string       `json:"error,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// NewEntry creates an ongoing entry for a freshly submitted transaction
func NewEntry(hash common.Hash, account common.Address, m mode.Mode, route *routing.RouteMeta) Entry {
	now := time.Now()
	entry := Entry{
		Hash:         hash.Hex(),
		Address:      account.Hex(),
		Mode:         m,
		VaultAddress: route.Vault.Address.Hex(),
		VaultName:    route.Vault.Name,
		Steps:        route.Steps,
		Status:       StatusOngoing,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	src, _ := route.SourceChainID()
	entry.Source = ChainStatus{ChainID: src, Hash: entry.Hash, Status: StatusOngoing}

	// Cross-chain routes also settle on the chain of the last step
	if sdk.IsCrossChain(route.Steps) {
		last := lo.LastOrEmpty(route.Steps)
		if last.ChainID != src {
			entry.Destination = &ChainStatus{ChainID: last.ChainID, Status: StatusOngoing}
		}
	}
	return entry
}

// BelongsTo reports whether the entry was submitted by the address
func (e Entry) BelongsTo(address common.Address) bool {
	return strings.EqualFold(e.Address, address.Hex())
}

// IsCrossChain reports whether the entry waits on a second chain
func (e Entry) IsCrossChain() bool {
	return e.Destination != nil
}

// resolve derives the overall status from the chain statuses
func (e *Entry) resolve() {
	switch {
	case e.Source.Status == StatusFailure:
		e.Status = StatusFailure
	case e.Destination != nil && e.Destination.Status == StatusFailure:
		e.Status = StatusFailure
	case e.Source.Status == StatusSuccess && (e.Destination == nil || e.Destination.Status == StatusSuccess):
		e.Status = StatusSuccess
	default:
		e.Status = StatusOngoing
	}
}
