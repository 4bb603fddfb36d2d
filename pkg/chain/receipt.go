package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

// WaitForTransaction blocks until the transaction is mined and buried under
// the requested number of confirmations. There is no timeout; cancel ctx to
// stop waiting.
func (p *Pool) WaitForTransaction(ctx context.Context, chainID int64, hash common.Hash, confirmations uint64) (*ethtypes.Receipt, error) {
	client, err := p.Client(chainID)
	if err != nil {
		return nil, err
	}
	if confirmations == 0 {
		confirmations = 1
	}

	log := p.log.WithFields(logrus.Fields{"chain": chainID, "tx": hash.Hex()})
	ticker := time.NewTicker(p.poll)
	defer ticker.Stop()

	var receipt *ethtypes.Receipt
	for {
		if receipt == nil {
			r, err := client.TransactionReceipt(ctx, hash)
			switch {
			case err == nil:
				receipt = r
				log.WithField("block", r.BlockNumber).Debug("transaction mined")
			case errors.Is(err, ethereum.NotFound):
				// still pending
			default:
				log.WithError(err).Warn("failed to fetch receipt, retrying")
			}
		}

		if receipt != nil {
			head, err := client.BlockNumber(ctx)
			if err != nil {
				log.WithError(err).Warn("failed to fetch head block, retrying")
			} else if head+1 >= receipt.BlockNumber.Uint64()+confirmations {
				if receipt.Status != ethtypes.ReceiptStatusSuccessful {
					return receipt, fmt.Errorf("%w: %s", ErrReverted, hash.Hex())
				}
				return receipt, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
