package interchain

import (
	"context"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	errorsmod "cosmossdk.io/errors"

	channeltypes "github.com/cosmos/ibc-go/v11/modules/core/04-channel/types"

	"github.com/srdtrk/ibc-packet-tracker/chain"
)

// AckKind classifies a decoded acknowledgement.
type AckKind int

const (
	// AckOpaque is an acknowledgement that does not use the standard envelope.
	AckOpaque AckKind = iota
	AckResult
	AckError
)

// AckDecode is the parsed form of a raw acknowledgement. Parsing never fails:
// unknown formats are kept as opaque text.
type AckDecode struct {
	Kind   AckKind
	Raw    string
	Result []byte
	Error  string
}

// ParseAck decodes the {"result": <base64>} | {"error": <string>} envelope.
func ParseAck(raw string) AckDecode {
	var ack channeltypes.Acknowledgement
	if err := channeltypes.SubModuleCdc.UnmarshalJSON([]byte(raw), &ack); err != nil {
		return AckDecode{Kind: AckOpaque, Raw: raw}
	}

	switch resp := ack.Response.(type) {
	case *channeltypes.Acknowledgement_Result:
		return AckDecode{Kind: AckResult, Raw: raw, Result: resp.Result}
	case *channeltypes.Acknowledgement_Error:
		return AckDecode{Kind: AckError, Raw: raw, Error: resp.Error}
	default:
		return AckDecode{Kind: AckOpaque, Raw: raw}
	}
}

func (a AckDecode) String() string {
	switch a.Kind {
	case AckResult:
		if utf8.Valid(a.Result) {
			return fmt.Sprintf("Decoded successful ack : %s", a.Result)
		}
		return fmt.Sprintf("Couldn't decode following successful ack : %X", a.Result)
	case AckError:
		return fmt.Sprintf("Ack error : %s", a.Error)
	default:
		return a.Raw
	}
}

// GetPacketSendTx finds the transaction on the source chain that sent the packet.
func (c *Channel) GetPacketSendTx(ctx context.Context, from, sequence string) (TxRef, error) {
	src, _, err := c.boundPortsFrom(from)
	if err != nil {
		return TxRef{}, err
	}

	tx, err := chain.FindOneTxByEvents(ctx, src.Chain, []string{
		chain.Filter(chain.EventTypeSendPacket, chain.AttributeKeySrcPort, src.Port),
		chain.Filter(chain.EventTypeSendPacket, chain.AttributeKeySrcChannel, src.Channel),
		chain.Filter(chain.EventTypeSendPacket, chain.AttributeKeySequence, sequence),
	})
	if err != nil {
		return TxRef{}, errorsmod.Wrapf(err, "send tx on %s", src.ChainID)
	}
	return newTxRef(src, tx), nil
}

// GetPacketReceiveTx finds the transaction on the destination chain that received the packet.
func (c *Channel) GetPacketReceiveTx(ctx context.Context, from, sequence string) (TxRef, error) {
	_, dst, err := c.boundPortsFrom(from)
	if err != nil {
		return TxRef{}, err
	}

	tx, err := chain.FindOneTxByEvents(ctx, dst.Chain, []string{
		chain.Filter(chain.EventTypeRecvPacket, chain.AttributeKeyDstPort, dst.Port),
		chain.Filter(chain.EventTypeRecvPacket, chain.AttributeKeyDstChannel, dst.Channel),
		chain.Filter(chain.EventTypeRecvPacket, chain.AttributeKeySequence, sequence),
	})
	if err != nil {
		return TxRef{}, errorsmod.Wrapf(err, "receive tx on %s", dst.ChainID)
	}
	return newTxRef(dst, tx), nil
}

// GetPacketAckReceiveTx finds the transaction on the source chain that processed the acknowledgement.
func (c *Channel) GetPacketAckReceiveTx(ctx context.Context, from, sequence string) (TxRef, error) {
	src, _, err := c.boundPortsFrom(from)
	if err != nil {
		return TxRef{}, err
	}

	tx, err := chain.FindOneTxByEvents(ctx, src.Chain, []string{
		chain.Filter(chain.EventTypeAcknowledgePacket, chain.AttributeKeySrcPort, src.Port),
		chain.Filter(chain.EventTypeAcknowledgePacket, chain.AttributeKeySrcChannel, src.Channel),
		chain.Filter(chain.EventTypeAcknowledgePacket, chain.AttributeKeySequence, sequence),
	})
	if err != nil {
		return TxRef{}, errorsmod.Wrapf(err, "acknowledgement tx on %s", src.ChainID)
	}
	return newTxRef(src, tx), nil
}

// GetPacketTimeoutTx finds the transaction on the source chain that timed the packet out.
func (c *Channel) GetPacketTimeoutTx(ctx context.Context, from, sequence string) (TxRef, error) {
	src, _, err := c.boundPortsFrom(from)
	if err != nil {
		return TxRef{}, err
	}

	tx, err := chain.FindOneTxByEvents(ctx, src.Chain, []string{
		chain.Filter(chain.EventTypeTimeoutPacket, chain.AttributeKeySrcPort, src.Port),
		chain.Filter(chain.EventTypeTimeoutPacket, chain.AttributeKeySrcChannel, src.Channel),
		chain.Filter(chain.EventTypeTimeoutPacket, chain.AttributeKeySequence, sequence),
	})
	if err != nil {
		return TxRef{}, errorsmod.Wrapf(err, "timeout tx on %s", src.ChainID)
	}
	return newTxRef(src, tx), nil
}

// FollowPacket returns the receive transaction on the destination chain and the
// acknowledgement transaction on the source chain of the packet sent from chain
// from. It issues each query once; ErrNoTxFound means the leg is not committed
// yet and the call may be retried.
func (c *Channel) FollowPacket(ctx context.Context, from, sequence string) ([]TxRef, error) {
	recv, ack, _, err := c.followPacket(ctx, from, sequence)
	if err != nil {
		return nil, err
	}
	return []TxRef{recv, ack}, nil
}

func (c *Channel) followPacket(ctx context.Context, from, sequence string) (TxRef, TxRef, AckDecode, error) {
	src, dst, err := c.boundPortsFrom(from)
	if err != nil {
		return TxRef{}, TxRef{}, AckDecode{}, err
	}

	recv, err := c.GetPacketReceiveTx(ctx, from, sequence)
	if err != nil {
		return TxRef{}, TxRef{}, AckDecode{}, err
	}
	if !recv.Tx.Succeeded() {
		return TxRef{}, TxRef{}, AckDecode{}, newTxFailedError(dst.ChainID, recv.Tx)
	}

	writeAcks := recv.Tx.GetEvents(chain.EventTypeWriteAck)
	if len(writeAcks) == 0 {
		return TxRef{}, TxRef{}, AckDecode{}, errorsmod.Wrapf(ErrMissingEvent, "%s in tx %s on %s", chain.EventTypeWriteAck, recv.Tx.TxHash, dst.ChainID)
	}
	writeAck := writeAcks[0]
	ackSequence, _ := writeAck.FirstAttributeValue(chain.AttributeKeySequence)
	packetData, _ := writeAck.FirstAttributeValue(chain.AttributeKeyData)
	rawAck, _ := writeAck.FirstAttributeValue(chain.AttributeKeyAck)

	decoded := ParseAck(rawAck)
	c.logger.Info("IBC packet received",
		zap.String("chain_id", dst.ChainID),
		zap.String("port", dst.Port),
		zap.String("channel", dst.Channel),
		zap.String("sequence", ackSequence),
		zap.String("data", packetData),
		zap.Stringer("ack", decoded),
	)

	ack, err := c.GetPacketAckReceiveTx(ctx, from, sequence)
	if err != nil {
		return TxRef{}, TxRef{}, AckDecode{}, err
	}
	if !ack.Tx.Succeeded() {
		return TxRef{}, TxRef{}, AckDecode{}, newTxFailedError(src.ChainID, ack.Tx)
	}

	c.logger.Info("IBC packet acknowledged",
		zap.String("chain_id", src.ChainID),
		zap.String("port", src.Port),
		zap.String("channel", src.Channel),
		zap.String("sequence", sequence),
		zap.String("tx_hash", ack.Tx.TxHash),
	)

	return recv, ack, decoded, nil
}
