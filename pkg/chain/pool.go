package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"fuji-cli/config"
	"fuji-cli/pkg/types"
)

// Backend is the part of ethclient.Client the wallet and reader use
type Backend interface {
	ethereum.ContractCaller
	ethereum.GasEstimator
	ethereum.GasPricer
	ethereum.TransactionSender
	ethereum.TransactionReader

	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

var _ Backend = (*ethclient.Client)(nil)

type endpoint struct {
	network config.Network
	client  Backend
	closer  func()
}

// Pool holds one RPC client per configured chain
type Pool struct {
	mu        sync.RWMutex
	networks  map[int64]config.Network
	endpoints map[int64]*endpoint
	dial      func(url string) (Backend, func(), error)
	poll      time.Duration
	log       logrus.FieldLogger
}

// NewPool creates a pool for the configured networks. Connections are
// dialed lazily, on first use of a chain.
func NewPool(networks []config.Network, log logrus.FieldLogger) *Pool {
	p := &Pool{
		networks:  make(map[int64]config.Network, len(networks)),
		endpoints: make(map[int64]*endpoint),
		dial:      dialEthclient,
		poll:      2 * time.Second,
		log:       log,
	}
	for _, n := range networks {
		p.networks[n.ChainID] = n
	}
	return p
}

func dialEthclient(url string) (Backend, func(), error) {
	client, err := ethclient.Dial(url)
	if err != nil {
		return nil, nil, err
	}
	return client, client.Close, nil
}

// SetReceiptPollInterval changes how often receipts are polled
func (p *Pool) SetReceiptPollInterval(d time.Duration) {
	p.poll = d
}

// Register installs a backend for a chain, replacing any dialed one
func (p *Pool) Register(network config.Network, backend Backend) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.networks[network.ChainID] = network
	p.endpoints[network.ChainID] = &endpoint{network: network, client: backend}
}

// Network returns the configuration of a chain
func (p *Pool) Network(chainID int64) (config.Network, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	n, ok := p.networks[chainID]
	if !ok {
		return config.Network{}, fmt.Errorf("network %d not configured", chainID)
	}
	return n, nil
}

// Client returns the RPC client for a chain, dialing it if needed
func (p *Pool) Client(chainID int64) (Backend, error) {
	p.mu.RLock()
	ep, ok := p.endpoints[chainID]
	p.mu.RUnlock()
	if ok {
		return ep.client, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if ep, ok := p.endpoints[chainID]; ok {
		return ep.client, nil
	}

	network, ok := p.networks[chainID]
	if !ok {
		return nil, fmt.Errorf("network %d not configured", chainID)
	}
	if network.RPCURL == "" {
		return nil, fmt.Errorf("RPC URL not configured for network %s", network.Name)
	}

	client, closer, err := p.dial(network.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint for %s: %w", network.Name, err)
	}

	p.endpoints[chainID] = &endpoint{network: network, client: client, closer: closer}
	p.log.WithFields(logrus.Fields{"chain": chainID, "network": network.Name}).Debug("connected to RPC")
	return client, nil
}

// Close closes every dialed connection
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, ep := range p.endpoints {
		if ep.closer != nil {
			ep.closer()
		}
		delete(p.endpoints, id)
	}
}

// NativeBalance returns the raw native balance of an account
func (p *Pool) NativeBalance(ctx context.Context, chainID int64, account common.Address) (*big.Int, error) {
	client, err := p.Client(chainID)
	if err != nil {
		return nil, err
	}

	balance, err := client.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return balance, nil
}

// TokenBalance returns the raw ERC20 balance of an account
func (p *Pool) TokenBalance(ctx context.Context, chainID int64, token, account common.Address) (*big.Int, error) {
	client, err := p.Client(chainID)
	if err != nil {
		return nil, err
	}

	data, err := erc20ABI.Pack("balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf data: %w", err)
	}

	result, err := client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call balanceOf: %w", err)
	}

	return new(big.Int).SetBytes(result), nil
}

// Balance returns the balance of a currency in whole units
func (p *Pool) Balance(ctx context.Context, currency types.Currency, account common.Address) (decimal.Decimal, error) {
	var (
		raw *big.Int
		err error
	)
	if currency.Native {
		raw, err = p.NativeBalance(ctx, currency.ChainID, account)
	} else {
		raw, err = p.TokenBalance(ctx, currency.ChainID, currency.Address, account)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s balance: %w", currency.Symbol, err)
	}
	return types.FormatUnits(raw, currency.Decimals), nil
}

// Allowance returns how much of the currency the spender may pull from
// owner, in whole units. Native currencies need no approval.
func (p *Pool) Allowance(ctx context.Context, currency types.Currency, owner, spender common.Address) (decimal.Decimal, error) {
	if currency.Native {
		return maxAllowance, nil
	}

	client, err := p.Client(currency.ChainID)
	if err != nil {
		return decimal.Zero, err
	}

	data, err := erc20ABI.Pack("allowance", owner, spender)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to pack allowance data: %w", err)
	}

	result, err := client.CallContract(ctx, ethereum.CallMsg{To: &currency.Address, Data: data}, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to call allowance: %w", err)
	}

	return types.FormatUnits(new(big.Int).SetBytes(result), currency.Decimals), nil
}

// Receipt returns the receipt of a mined transaction, or ethereum.NotFound
func (p *Pool) Receipt(ctx context.Context, chainID int64, hash common.Hash) (*ethtypes.Receipt, error) {
	client, err := p.Client(chainID)
	if err != nil {
		return nil, err
	}
	return client.TransactionReceipt(ctx, hash)
}
