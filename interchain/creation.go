package interchain

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	errorsmod "cosmossdk.io/errors"

	"github.com/srdtrk/ibc-packet-tracker/chain"
)

const (
	// DefaultCreationAttempts is the number of polls before a channel creation search gives up.
	DefaultCreationAttempts uint = 5
	// DefaultCreationDelay is the pause between two polls.
	DefaultCreationDelay = 10 * time.Second
)

var errCreationNotYet = errors.New("no channel creation newer than baseline yet")

// Baseline holds the hashes of the last known handshake transactions. Empty
// hashes mean no handshake was observed.
type Baseline struct {
	AckTxHash     string
	ConfirmTxHash string
}

type creationConfig struct {
	attempts uint
	delay    time.Duration
}

// CreationOption configures FindNewChannelCreationTx.
type CreationOption func(*creationConfig)

func WithCreationAttempts(n uint) CreationOption {
	return func(cfg *creationConfig) { cfg.attempts = n }
}

func WithCreationDelay(d time.Duration) CreationOption {
	return func(cfg *creationConfig) { cfg.delay = d }
}

// GetChannelCreationAck returns the most recent channel_open_ack on the source
// chain for this port pair over the connection, or nil when there is none.
func (c *Channel) GetChannelCreationAck(ctx context.Context, from string) (*chain.TxResponse, error) {
	src, dst, err := c.GetOrderedPortsFrom(from)
	if err != nil {
		return nil, err
	}

	txs, err := src.Chain.FindTxsByEvents(ctx, []string{
		chain.Filter(chain.EventTypeChannelOpenAck, chain.AttributeKeyPortID, src.Port),
		chain.Filter(chain.EventTypeChannelOpenAck, chain.AttributeKeyCounterpartyPortID, dst.Port),
		chain.Filter(chain.EventTypeChannelOpenAck, chain.AttributeKeyConnectionID, c.connectionID),
	}, chain.OrderByDesc, 1)
	if err != nil {
		return nil, errorsmod.Wrapf(err, "channel_open_ack on %s", src.ChainID)
	}
	if len(txs) == 0 {
		return nil, nil
	}
	return txs[0], nil
}

// GetChannelCreationConfirm returns the most recent channel_open_confirm on the
// destination chain for this port pair, or nil when there is none.
func (c *Channel) GetChannelCreationConfirm(ctx context.Context, from string) (*chain.TxResponse, error) {
	src, dst, err := c.GetOrderedPortsFrom(from)
	if err != nil {
		return nil, err
	}

	txs, err := dst.Chain.FindTxsByEvents(ctx, []string{
		chain.Filter(chain.EventTypeChannelOpenConfirm, chain.AttributeKeyPortID, dst.Port),
		chain.Filter(chain.EventTypeChannelOpenConfirm, chain.AttributeKeyCounterpartyPortID, src.Port),
	}, chain.OrderByDesc, 1)
	if err != nil {
		return nil, errorsmod.Wrapf(err, "channel_open_confirm on %s", dst.ChainID)
	}
	if len(txs) == 0 {
		return nil, nil
	}
	return txs[0], nil
}

// GetLastChannelCreation queries both handshake sides concurrently. An error
// on either side fails the whole lookup.
func (c *Channel) GetLastChannelCreation(ctx context.Context, from string) (ack, confirm *chain.TxResponse, err error) {
	if _, _, err := c.GetOrderedPortsFrom(from); err != nil {
		return nil, nil, err
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		ack, err = c.GetChannelCreationAck(egCtx, from)
		return err
	})
	eg.Go(func() error {
		var err error
		confirm, err = c.GetChannelCreationConfirm(egCtx, from)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, nil, err
	}
	return ack, confirm, nil
}

// GetLastChannelCreationHash returns the current baseline for FindNewChannelCreationTx.
func (c *Channel) GetLastChannelCreationHash(ctx context.Context, from string) (Baseline, error) {
	ack, confirm, err := c.GetLastChannelCreation(ctx, from)
	if err != nil {
		return Baseline{}, err
	}

	var baseline Baseline
	if ack != nil {
		baseline.AckTxHash = ack.TxHash
	}
	if confirm != nil {
		baseline.ConfirmTxHash = confirm.TxHash
	}
	return baseline, nil
}

// FindNewChannelCreationTx polls until both handshake transactions exist and
// differ from the baseline. Query errors stop the polling immediately.
func (c *Channel) FindNewChannelCreationTx(ctx context.Context, from string, baseline Baseline, opts ...CreationOption) (TxRef, TxRef, error) {
	src, dst, err := c.GetOrderedPortsFrom(from)
	if err != nil {
		return TxRef{}, TxRef{}, err
	}

	cfg := creationConfig{attempts: DefaultCreationAttempts, delay: DefaultCreationDelay}
	for _, opt := range opts {
		opt(&cfg)
	}

	var ackRef, confirmRef TxRef
	err = retry.Do(
		func() error {
			ack, confirm, err := c.GetLastChannelCreation(ctx, from)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			if ack == nil || confirm == nil {
				return errCreationNotYet
			}
			if ack.TxHash == baseline.AckTxHash || confirm.TxHash == baseline.ConfirmTxHash {
				return errCreationNotYet
			}

			ackRef, confirmRef = newTxRef(src, ack), newTxRef(dst, confirm)
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(cfg.attempts),
		retry.Delay(cfg.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, _ error) {
			c.logger.Debug("waiting for new channel creation", zap.String("from", from), zap.Uint("attempt", n+1))
		}),
	)
	switch {
	case err == nil:
		return ackRef, confirmRef, nil
	case errors.Is(err, errCreationNotYet):
		return TxRef{}, TxRef{}, errorsmod.Wrapf(ErrNoNewChannelCreation,
			"no new channel creation tx newer than (ack_tx_hash: %q) or (confirm_tx_hash: %q) after %d attempts",
			baseline.AckTxHash, baseline.ConfirmTxHash, cfg.attempts)
	default:
		return TxRef{}, TxRef{}, err
	}
}

// ChannelFromCreation binds both endpoints to the channel ids recorded in a
// handshake found by FindNewChannelCreationTx.
func (c *Channel) ChannelFromCreation(from string, ack, confirm TxRef) (*Channel, error) {
	src, _, err := c.GetOrderedPortsFrom(from)
	if err != nil {
		return nil, err
	}

	srcChannel, err := creationAttribute(ack, chain.EventTypeChannelOpenAck, chain.AttributeKeyChannelID)
	if err != nil {
		return nil, err
	}
	dstChannel, err := creationAttribute(confirm, chain.EventTypeChannelOpenConfirm, chain.AttributeKeyChannelID)
	if err != nil {
		return nil, err
	}

	if src.ChainID == c.portA.ChainID {
		return c.WithChannelIDs(srcChannel, dstChannel)
	}
	return c.WithChannelIDs(dstChannel, srcChannel)
}

func creationAttribute(ref TxRef, eventType, key string) (string, error) {
	if ref.Tx == nil {
		return "", errorsmod.Wrapf(ErrMissingEvent, "%s: empty tx reference", eventType)
	}
	events := ref.Tx.GetEvents(eventType)
	if len(events) == 0 {
		return "", errorsmod.Wrapf(ErrMissingEvent, "%s in tx %s on %s", eventType, ref.Tx.TxHash, ref.ChainID)
	}
	value, ok := events[0].FirstAttributeValue(key)
	if !ok {
		return "", errorsmod.Wrapf(ErrMissingEvent, "%s.%s in tx %s on %s", eventType, key, ref.Tx.TxHash, ref.ChainID)
	}
	return value, nil
}
