package interchain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/srdtrk/ibc-packet-tracker/chain"
)

// OutcomeKind is the classification of a followed packet.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeError   OutcomeKind = "error"
	OutcomeTimeout OutcomeKind = "timeout"
)

// PacketOutcome is one of SuccessOutcome, ErrorOutcome or TimeoutOutcome.
type PacketOutcome interface {
	Kind() OutcomeKind
	Sequence() string
	// Txs returns every transaction of the packet lifecycle, send first.
	Txs() []TxRef
	isPacketOutcome()
}

// SuccessOutcome is a packet acknowledged with a result or a non-standard acknowledgement.
type SuccessOutcome struct {
	Seq    string
	SendTx TxRef
	RecvTx TxRef
	AckTx  TxRef
	Ack    AckDecode
}

// ErrorOutcome is a packet acknowledged with an error acknowledgement.
type ErrorOutcome struct {
	Seq    string
	SendTx TxRef
	RecvTx TxRef
	AckTx  TxRef
	Error  string
}

// TimeoutOutcome is a packet that timed out. No acknowledgement exists.
type TimeoutOutcome struct {
	Seq       string
	SendTx    TxRef
	TimeoutTx TxRef
}

func (o SuccessOutcome) Kind() OutcomeKind { return OutcomeSuccess }
func (o ErrorOutcome) Kind() OutcomeKind   { return OutcomeError }
func (o TimeoutOutcome) Kind() OutcomeKind { return OutcomeTimeout }

func (o SuccessOutcome) Sequence() string { return o.Seq }
func (o ErrorOutcome) Sequence() string   { return o.Seq }
func (o TimeoutOutcome) Sequence() string { return o.Seq }

func (o SuccessOutcome) Txs() []TxRef { return []TxRef{o.SendTx, o.RecvTx, o.AckTx} }
func (o ErrorOutcome) Txs() []TxRef   { return []TxRef{o.SendTx, o.RecvTx, o.AckTx} }
func (o TimeoutOutcome) Txs() []TxRef { return []TxRef{o.SendTx, o.TimeoutTx} }

func (SuccessOutcome) isPacketOutcome() {}
func (ErrorOutcome) isPacketOutcome()   {}
func (TimeoutOutcome) isPacketOutcome() {}

// ResolvePacketOutcome classifies the packet with the given sequence sent from
// chain from. A timeout transaction takes precedence: a timed-out packet is
// never reported as acknowledged.
func (c *Channel) ResolvePacketOutcome(ctx context.Context, from, sequence string) (PacketOutcome, error) {
	if _, _, err := c.boundPortsFrom(from); err != nil {
		return nil, err
	}

	sendTx, err := c.GetPacketSendTx(ctx, from, sequence)
	if err != nil {
		return nil, err
	}

	timeoutTx, err := c.GetPacketTimeoutTx(ctx, from, sequence)
	switch {
	case err == nil:
		return TimeoutOutcome{Seq: sequence, SendTx: sendTx, TimeoutTx: timeoutTx}, nil
	case !errors.Is(err, chain.ErrNoTxFound):
		return nil, err
	}

	recvTx, ackTx, ack, err := c.followPacket(ctx, from, sequence)
	if err != nil {
		return nil, err
	}

	if ack.Kind == AckError {
		return ErrorOutcome{Seq: sequence, SendTx: sendTx, RecvTx: recvTx, AckTx: ackTx, Error: ack.Error}, nil
	}
	return SuccessOutcome{Seq: sequence, SendTx: sendTx, RecvTx: recvTx, AckTx: ackTx, Ack: ack}, nil
}

// WaitOptions bounds how long a caller waits for a packet to complete.
type WaitOptions struct {
	Attempts uint
	Delay    time.Duration
}

// DefaultWaitOptions polls for about a minute.
func DefaultWaitOptions() WaitOptions {
	return WaitOptions{Attempts: 30, Delay: 2 * time.Second}
}

// WaitForPacketOutcome retries ResolvePacketOutcome while a leg of the packet
// is not committed yet. Any other error is returned at once.
func (c *Channel) WaitForPacketOutcome(ctx context.Context, from, sequence string, opts WaitOptions) (PacketOutcome, error) {
	if opts.Attempts == 0 {
		opts = DefaultWaitOptions()
	}

	var outcome PacketOutcome
	err := retry.Do(
		func() error {
			var err error
			outcome, err = c.ResolvePacketOutcome(ctx, from, sequence)
			if err != nil && !errors.Is(err, chain.ErrNoTxFound) {
				return retry.Unrecoverable(err)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(opts.Attempts),
		retry.Delay(opts.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Debug("packet not completed yet", zap.String("sequence", sequence), zap.Uint("attempt", n+1), zap.Error(err))
		}),
	)
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// PacketSequencesFromTx returns the sequences of every packet sent by tx on
// the source endpoint of chain from.
func (c *Channel) PacketSequencesFromTx(from string, tx *chain.TxResponse) ([]string, error) {
	src, _, err := c.boundPortsFrom(from)
	if err != nil {
		return nil, err
	}

	var sequences []string
	for _, ev := range tx.GetEvents(chain.EventTypeSendPacket) {
		port, _ := ev.FirstAttributeValue(chain.AttributeKeySrcPort)
		channel, _ := ev.FirstAttributeValue(chain.AttributeKeySrcChannel)
		if port != src.Port || channel != src.Channel {
			continue
		}
		if seq, ok := ev.FirstAttributeValue(chain.AttributeKeySequence); ok {
			sequences = append(sequences, seq)
		}
	}
	return sequences, nil
}

// FollowPacketsFromTx waits for the outcome of every packet sent by tx, concurrently.
// Outcomes are returned in the order the packets were sent.
func (c *Channel) FollowPacketsFromTx(ctx context.Context, from string, tx *chain.TxResponse, opts WaitOptions) ([]PacketOutcome, error) {
	sequences, err := c.PacketSequencesFromTx(from, tx)
	if err != nil {
		return nil, err
	}
	if len(sequences) == 0 {
		return nil, fmt.Errorf("tx %s sent no packet on %s: %w", tx.TxHash, from, ErrMissingEvent)
	}

	outcomes := make([]PacketOutcome, len(sequences))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, seq := range sequences {
		eg.Go(func() error {
			outcome, err := c.WaitForPacketOutcome(egCtx, from, seq, opts)
			if err != nil {
				return fmt.Errorf("packet %s: %w", seq, err)
			}
			outcomes[i] = outcome
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}
