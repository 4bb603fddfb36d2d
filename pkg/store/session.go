package store

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"fuji-cli/pkg/history"
	"fuji-cli/pkg/sdk"
	"fuji-cli/pkg/types"
)

// SupportURL is attached to error notifications
const SupportURL = "https://discord.com/invite/dnvJeEMeDJ"

// ChainReader reads balances and allowances
type ChainReader interface {
	Balance(ctx context.Context, currency types.Currency, account common.Address) (decimal.Decimal, error)
	Allowance(ctx context.Context, currency types.Currency, owner, spender common.Address) (decimal.Decimal, error)
}

// Wallet performs the user-approved actions of the pipeline
type Wallet interface {
	Address() common.Address
	Approve(ctx context.Context, currency types.Currency, spender common.Address, amount decimal.Decimal) (common.Hash, error)
	SignTypedData(typed *apitypes.TypedData) ([]byte, error)
	EstimateGas(ctx context.Context, req sdk.TxRequest) (uint64, error)
	SendTransaction(ctx context.Context, req sdk.TxRequest, gasLimit uint64) (common.Hash, error)
}

// Recorder stores submitted transactions
type Recorder interface {
	Add(entry history.Entry) error
}

// Notifier surfaces progress and outcomes to the user
type Notifier interface {
	Pending(msg string) (id string)
	Dismiss(id string)
	Info(msg string)
	Success(msg string)
	Error(msg, supportURL string)
}

// Session carries everything an operation needs. It replaces any ambient
// global state: each store gets its own.
type Session struct {
	Account  common.Address
	SDK      sdk.SDK
	Chain    ChainReader
	Wallet   Wallet
	History  Recorder
	Notifier Notifier
	Log      logrus.FieldLogger
}

func (s Session) withDefaults() Session {
	if s.Wallet != nil && s.Account == (common.Address{}) {
		s.Account = s.Wallet.Address()
	}
	if s.Notifier == nil {
		s.Notifier = NopNotifier{}
	}
	if s.Log == nil {
		s.Log = logrus.StandardLogger()
	}
	return s
}

// NopNotifier drops every notification
type NopNotifier struct{}

func (NopNotifier) Pending(string) string { return "" }
func (NopNotifier) Dismiss(string) {}
func (NopNotifier) Info(string) {}
func (NopNotifier) Success(string) {}
func (NopNotifier) Error(string, string) {}
