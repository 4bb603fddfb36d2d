package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"

	"fuji-cli/pkg/chain"
	"fuji-cli/pkg/sdk"
)

// DefaultTransferInterval is how often bridged transfers are polled
const DefaultTransferInterval = 15 * time.Second

// ReceiptWaiter blocks until a transaction is mined
type ReceiptWaiter interface {
	WaitForTransaction(ctx context.Context, chainID int64, hash common.Hash, confirmations uint64) (*ethtypes.Receipt, error)
}

// TransferTracker reports the destination side of bridged transactions
type TransferTracker interface {
	TransferStatus(ctx context.Context, srcChainID int64, hash common.Hash) (*sdk.TransferStatus, error)
}

// Watcher follows submitted transactions until they settle and writes
// every change back to the store
type Watcher struct {
	store     *Store
	receipts  ReceiptWaiter
	transfers TransferTracker
	interval  time.Duration
	onUpdate  func(Entry)
	log       logrus.FieldLogger
}

// NewWatcher creates a new watcher
func NewWatcher(store *Store, receipts ReceiptWaiter, transfers TransferTracker, log logrus.FieldLogger) *Watcher {
	return &Watcher{
		store:     store,
		receipts:  receipts,
		transfers: transfers,
		interval:  DefaultTransferInterval,
		onUpdate:  func(Entry) {},
		log:       log,
	}
}

// SetInterval sets the transfer polling interval
func (w *Watcher) SetInterval(interval time.Duration) {
	w.interval = interval
}

// OnUpdate registers a callback invoked after every stored change
func (w *Watcher) OnUpdate(fn func(Entry)) {
	w.onUpdate = fn
}

// Watch follows one transaction until it settles or ctx is cancelled
func (w *Watcher) Watch(ctx context.Context, hash string) (*Entry, error) {
	entry, err := w.store.Get(hash)
	if err != nil {
		return nil, err
	}
	log := w.log.WithFields(logrus.Fields{"tx": hash, "chain": entry.Source.ChainID})

	if entry.Source.Status == StatusOngoing {
		entry, err = w.watchSource(ctx, entry)
		if err != nil {
			return entry, err
		}
		log.WithField("status", entry.Source.Status).Info("source transaction settled")
	}

	if entry.Status == StatusOngoing && entry.IsCrossChain() {
		entry, err = w.watchDestination(ctx, entry)
		if err != nil {
			return entry, err
		}
		log.WithField("status", entry.Status).Info("cross-chain transfer settled")
	}

	return entry, nil
}

func (w *Watcher) watchSource(ctx context.Context, entry *Entry) (*Entry, error) {
	hash := common.HexToHash(entry.Hash)

	_, waitErr := w.receipts.WaitForTransaction(ctx, entry.Source.ChainID, hash, 1)
	if waitErr != nil && ctx.Err() != nil {
		return entry, ctx.Err()
	}

	updated, err := w.store.Update(entry.Hash, func(e *Entry) {
		if waitErr == nil {
			e.Source.Status = StatusSuccess
			return
		}
		e.Source.Status = StatusFailure
		e.Error = waitErr.Error()
		if e.Destination != nil {
			e.Destination.Status = StatusFailure
		}
	})
	if err != nil {
		return entry, fmt.Errorf("failed to update history: %w", err)
	}
	w.onUpdate(*updated)

	if waitErr != nil && !errors.Is(waitErr, chain.ErrReverted) {
		w.log.WithError(waitErr).WithField("tx", entry.Hash).Warn("source transaction failed")
	}
	return updated, nil
}

func (w *Watcher) watchDestination(ctx context.Context, entry *Entry) (*Entry, error) {
	hash := common.HexToHash(entry.Hash)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		status, err := w.transfers.TransferStatus(ctx, entry.Source.ChainID, hash)
		if err != nil {
			// Will retry next tick
			w.log.WithError(err).WithField("tx", entry.Hash).Debug("transfer status unavailable")
		} else if status.State != sdk.TransferPending {
			updated, err := w.store.Update(entry.Hash, func(e *Entry) {
				e.Destination.Hash = status.DestinationHash
				if status.State == sdk.TransferSuccess {
					e.Destination.Status = StatusSuccess
				} else {
					e.Destination.Status = StatusFailure
					e.Error = "cross-chain transfer failed"
				}
			})
			if err != nil {
				return entry, fmt.Errorf("failed to update history: %w", err)
			}
			w.onUpdate(*updated)
			return updated, nil
		}

		select {
		case <-ctx.Done():
			return entry, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Resume watches every entry still ongoing, for example after a restart,
// and returns once all of them settled
func (w *Watcher) Resume(ctx context.Context) (int, error) {
	entries, err := w.store.Ongoing()
	if err != nil {
		return 0, err
	}

	wg := conc.NewWaitGroup()
	for _, entry := range entries {
		hash := entry.Hash
		wg.Go(func() {
			if _, err := w.Watch(ctx, hash); err != nil && ctx.Err() == nil {
				w.log.WithError(err).WithField("tx", hash).Error("failed to watch transaction")
			}
		})
	}
	wg.Wait()

	return len(entries), ctx.Err()
}
