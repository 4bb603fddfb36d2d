package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"fuji-cli/pkg/sdk"
	"fuji-cli/pkg/types"
)

// RequestKind names what the wallet is asked to do
type RequestKind string

const (
	RequestApprove RequestKind = "approve"
	RequestSign    RequestKind = "sign"
	RequestSend    RequestKind = "send"
)

// Request is shown to the user before the wallet acts
type Request struct {
	Kind        RequestKind
	ChainID     int64
	Description string
}

// ConfirmFunc asks the user to accept a wallet request. Returning false
// rejects it with code 4001.
type ConfirmFunc func(req Request) bool

// AutoConfirm accepts every request
func AutoConfirm(Request) bool { return true }

// Wallet signs and sends transactions with a local private key
type Wallet struct {
	pool       *Pool
	privateKey *ecdsa.PrivateKey
	address    common.Address
	confirm    ConfirmFunc
	log        logrus.FieldLogger
}

// NewWallet creates a wallet from a hex private key
func NewWallet(pool *Pool, hexKey string, confirm ConfirmFunc, log logrus.FieldLogger) (*Wallet, error) {
	// Parse private key
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	if confirm == nil {
		confirm = AutoConfirm
	}

	return &Wallet{
		pool:       pool,
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		confirm:    confirm,
		log:        log,
	}, nil
}

// Address returns the account controlled by the wallet
func (w *Wallet) Address() common.Address {
	return w.address
}

// Approve lets spender pull amount of the currency and waits for one
// confirmation
func (w *Wallet) Approve(ctx context.Context, currency types.Currency, spender common.Address, amount decimal.Decimal) (common.Hash, error) {
	if !w.confirm(Request{
		Kind:        RequestApprove,
		ChainID:     currency.ChainID,
		Description: fmt.Sprintf("Approve %s %s for %s", amount.String(), currency.Symbol, spender.Hex()),
	}) {
		return common.Hash{}, UserRejected("approval")
	}

	data, err := erc20ABI.Pack("approve", spender, types.ParseUnits(amount, currency.Decimals))
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack approve data: %w", err)
	}

	req := sdk.TxRequest{
		ChainID: currency.ChainID,
		From:    w.address,
		To:      currency.Address,
		Data:    data,
	}

	gas, err := w.EstimateGas(ctx, req)
	if err != nil {
		return common.Hash{}, err
	}

	hash, err := w.send(ctx, req, gas*120/100) // Add 20% buffer
	if err != nil {
		return common.Hash{}, err
	}

	if _, err := w.pool.WaitForTransaction(ctx, currency.ChainID, hash, 1); err != nil {
		return hash, fmt.Errorf("approval failed: %w", err)
	}

	w.log.WithFields(logrus.Fields{
		"token":   currency.Symbol,
		"spender": spender.Hex(),
		"amount":  amount.String(),
		"tx":      hash.Hex(),
	}).Info("approval confirmed")
	return hash, nil
}

// SignTypedData produces an EIP-712 signature with V in {27, 28}
func (w *Wallet) SignTypedData(typed *apitypes.TypedData) ([]byte, error) {
	if typed == nil {
		return nil, fmt.Errorf("no typed data to sign")
	}

	var chainID int64
	if typed.Domain.ChainId != nil {
		chainID = (*big.Int)(typed.Domain.ChainId).Int64()
	}
	if !w.confirm(Request{
		Kind:        RequestSign,
		ChainID:     chainID,
		Description: fmt.Sprintf("Sign %s for %s", typed.PrimaryType, typed.Domain.Name),
	}) {
		return nil, UserRejected("signature")
	}

	hash, _, err := apitypes.TypedDataAndHash(*typed)
	if err != nil {
		return nil, fmt.Errorf("failed to hash typed data: %w", err)
	}

	sig, err := crypto.Sign(hash, w.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign typed data: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// EstimateGas estimates the gas a transaction request needs
func (w *Wallet) EstimateGas(ctx context.Context, req sdk.TxRequest) (uint64, error) {
	client, err := w.pool.Client(req.ChainID)
	if err != nil {
		return 0, err
	}

	gas, err := client.EstimateGas(ctx, ethereum.CallMsg{
		From:  w.address,
		To:    &req.To,
		Data:  req.Data,
		Value: req.Value,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to estimate gas: %w", err)
	}
	return gas, nil
}

// SendTransaction signs and broadcasts a transaction request with the given
// gas limit
func (w *Wallet) SendTransaction(ctx context.Context, req sdk.TxRequest, gasLimit uint64) (common.Hash, error) {
	if !w.confirm(Request{
		Kind:        RequestSend,
		ChainID:     req.ChainID,
		Description: fmt.Sprintf("Send transaction to %s (gas limit %d)", req.To.Hex(), gasLimit),
	}) {
		return common.Hash{}, UserRejected("transaction")
	}
	return w.send(ctx, req, gasLimit)
}

// WaitForTransaction waits for the receipt of a transaction sent by anyone
func (w *Wallet) WaitForTransaction(ctx context.Context, chainID int64, hash common.Hash, confirmations uint64) (*ethtypes.Receipt, error) {
	return w.pool.WaitForTransaction(ctx, chainID, hash, confirmations)
}

func (w *Wallet) send(ctx context.Context, req sdk.TxRequest, gasLimit uint64) (common.Hash, error) {
	client, err := w.pool.Client(req.ChainID)
	if err != nil {
		return common.Hash{}, err
	}
	network, err := w.pool.Network(req.ChainID)
	if err != nil {
		return common.Hash{}, err
	}

	// Get nonce
	nonce, err := client.PendingNonceAt(ctx, w.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}

	// Use configured gas price if available
	var gasPrice *big.Int
	if network.GasPrice != nil {
		gasPrice = big.NewInt(*network.GasPrice)
	} else {
		gasPrice, err = client.SuggestGasPrice(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("failed to get gas price: %w", err)
		}
	}

	if network.GasLimit != nil && *network.GasLimit > gasLimit {
		gasLimit = *network.GasLimit
	}

	value := req.Value
	if value == nil {
		value = big.NewInt(0)
	}

	tx := ethtypes.NewTransaction(nonce, req.To, value, gasLimit, gasPrice, req.Data)

	// Sign transaction
	signedTx, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(big.NewInt(req.ChainID)), w.privateKey)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := client.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	w.log.WithFields(logrus.Fields{
		"chain": req.ChainID,
		"tx":    signedTx.Hash().Hex(),
		"gas":   gasLimit,
	}).Debug("transaction sent")
	return signedTx.Hash(), nil
}
