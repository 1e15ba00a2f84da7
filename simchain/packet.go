package simchain

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/cometbft/cometbft/crypto/tmhash"

	sdk "github.com/cosmos/cosmos-sdk/types"

	transfertypes "github.com/cosmos/ibc-go/v11/modules/apps/transfer/types"
	clienttypes "github.com/cosmos/ibc-go/v11/modules/core/02-client/types"
	channeltypes "github.com/cosmos/ibc-go/v11/modules/core/04-channel/types"

	"github.com/srdtrk/ibc-packet-tracker/chain"
)

type pendingPacket struct {
	srcChainID string
	dstChainID string
	packet     channeltypes.Packet
}

type pendingAck struct {
	pendingPacket
	ack []byte
}

// TransferOptions mirrors the options of an ICS-20 transfer message.
type TransferOptions struct {
	// TimeoutHeight is a revision height on the destination chain. Zero disables the height timeout.
	TimeoutHeight    uint64
	TimeoutTimestamp uint64
	Memo             string
}

// RelayedPacket records the transactions produced while relaying one packet.
type RelayedPacket struct {
	SrcChainID string
	DstChainID string
	Packet     channeltypes.Packet
	RecvTx     *chain.TxResponse
	AckTx      *chain.TxResponse
	TimeoutTx  *chain.TxResponse
}

// SendPacket commits a packet on an open channel end and queues it for relaying.
func (ic *Interchain) SendPacket(chainID, portID, channelID string, data []byte, timeoutHeight clienttypes.Height, timeoutTimestamp uint64) (*chain.TxResponse, uint64, error) {
	return ic.sendPacket(chainID, portID, channelID, data, timeoutHeight, timeoutTimestamp, nil)
}

// SendTransfer escrows coin from sender and sends an ICS-20 packet over the transfer port.
func (ic *Interchain) SendTransfer(chainID, channelID, sender, receiver string, coin sdk.Coin, opts TransferOptions) (*chain.TxResponse, uint64, error) {
	data := transfertypes.FungibleTokenPacketData{
		Denom:    coin.Denom,
		Amount:   coin.Amount.String(),
		Sender:   sender,
		Receiver: receiver,
		Memo:     opts.Memo,
	}
	if err := data.ValidateBasic(); err != nil {
		return nil, 0, fmt.Errorf("invalid transfer: %w", err)
	}
	bz, err := json.Marshal(&data)
	if err != nil {
		return nil, 0, err
	}

	escrow := func(c *Chain) error {
		return c.debit(sender, coin)
	}

	transferEvent := sdk.NewEvent("ibc_transfer",
		sdk.NewAttribute("sender", sender),
		sdk.NewAttribute("receiver", receiver),
		sdk.NewAttribute("amount", coin.Amount.String()),
		sdk.NewAttribute("denom", coin.Denom),
	)

	timeout := clienttypes.ZeroHeight()
	if opts.TimeoutHeight > 0 {
		timeout = clienttypes.NewHeight(0, opts.TimeoutHeight)
	}
	return ic.sendPacket(chainID, transfertypes.PortID, channelID, bz, timeout, opts.TimeoutTimestamp, escrow, transferEvent)
}

func (ic *Interchain) sendPacket(
	chainID, portID, channelID string,
	data []byte,
	timeoutHeight clienttypes.Height,
	timeoutTimestamp uint64,
	beforeCommit func(*Chain) error,
	extraEvents ...sdk.Event,
) (*chain.TxResponse, uint64, error) {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	src, err := ic.chain(chainID)
	if err != nil {
		return nil, 0, err
	}

	src.mu.Lock()
	defer src.mu.Unlock()

	end, ok := src.channels[portChannel{portID, channelID}]
	if !ok {
		return nil, 0, fmt.Errorf("channel %s/%s not found on %s", portID, channelID, chainID)
	}
	if end.state != channeltypes.OPEN {
		return nil, 0, fmt.Errorf("channel %s/%s on %s is %s", portID, channelID, chainID, end.state)
	}
	conn := src.connections[end.connectionID]

	if beforeCommit != nil {
		if err := beforeCommit(src); err != nil {
			return nil, 0, err
		}
	}

	packet := channeltypes.Packet{
		Sequence:           end.nextSequenceTx,
		SourcePort:         portID,
		SourceChannel:      channelID,
		DestinationPort:    end.cpPortID,
		DestinationChannel: end.cpChannelID,
		Data:               data,
		TimeoutHeight:      timeoutHeight,
		TimeoutTimestamp:   timeoutTimestamp,
	}
	end.nextSequenceTx++

	key := portChannel{portID, channelID}
	if _, ok := src.commitments[key]; !ok {
		src.commitments[key] = make(map[uint64][]byte)
	}
	src.commitments[key][packet.Sequence] = tmhash.Sum(data)

	events := append([]sdk.Event{packetEvent(chain.EventTypeSendPacket, packet, end.connectionID)}, extraEvents...)
	tx := src.deliverTx(0, "", events...)

	ic.pending = append(ic.pending, pendingPacket{srcChainID: chainID, dstChainID: conn.counterpartyChainID, packet: packet})

	ic.logger.Debug("packet sent",
		zap.String("chain_id", chainID),
		zap.String("port", portID),
		zap.String("channel", channelID),
		zap.Uint64("sequence", packet.Sequence),
		zap.String("tx_hash", tx.TxHash))

	return tx, packet.Sequence, nil
}

// RelayPending delivers every queued packet and then every resulting acknowledgement.
func (ic *Interchain) RelayPending(ctx context.Context) ([]RelayedPacket, error) {
	relayed, err := ic.RelayRecv(ctx)
	if err != nil {
		return nil, err
	}

	acked, err := ic.RelayAcks(ctx)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]*RelayedPacket, len(acked))
	for i := range acked {
		byKey[relayKey(acked[i].SrcChainID, acked[i].Packet)] = &acked[i]
	}
	for i := range relayed {
		if ack, ok := byKey[relayKey(relayed[i].SrcChainID, relayed[i].Packet)]; ok {
			relayed[i].AckTx = ack.AckTx
		}
	}
	return relayed, nil
}

// RelayRecv delivers queued packets to their destination, or times them out on
// the source when the destination has reached the timeout height.
func (ic *Interchain) RelayRecv(ctx context.Context) ([]RelayedPacket, error) {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	pending := ic.pending
	ic.pending = nil

	var relayed []RelayedPacket
	for i, p := range pending {
		if err := ctx.Err(); err != nil {
			ic.pending = append(pending[i:], ic.pending...)
			return relayed, err
		}

		src, err := ic.chain(p.srcChainID)
		if err != nil {
			return relayed, err
		}
		dst, err := ic.chain(p.dstChainID)
		if err != nil {
			return relayed, err
		}

		result := RelayedPacket{SrcChainID: p.srcChainID, DstChainID: p.dstChainID, Packet: p.packet}
		if timedOut(dst, p.packet) {
			result.TimeoutTx, err = src.timeoutPacket(p.packet)
			if err != nil {
				return relayed, err
			}
		} else {
			var ack []byte
			result.RecvTx, ack = dst.recvPacket(p.packet)
			ic.acks = append(ic.acks, pendingAck{pendingPacket: p, ack: ack})
		}
		relayed = append(relayed, result)
	}

	return relayed, nil
}

// RelayAcks delivers queued acknowledgements back to the packet source.
func (ic *Interchain) RelayAcks(ctx context.Context) ([]RelayedPacket, error) {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	acks := ic.acks
	ic.acks = nil

	var relayed []RelayedPacket
	for i, a := range acks {
		if err := ctx.Err(); err != nil {
			ic.acks = append(acks[i:], ic.acks...)
			return relayed, err
		}

		src, err := ic.chain(a.srcChainID)
		if err != nil {
			return relayed, err
		}

		ackTx, err := src.acknowledgePacket(a.packet, a.ack)
		if err != nil {
			return relayed, err
		}
		relayed = append(relayed, RelayedPacket{SrcChainID: a.srcChainID, DstChainID: a.dstChainID, Packet: a.packet, AckTx: ackTx})
	}

	return relayed, nil
}

func timedOut(dst *Chain, packet channeltypes.Packet) bool {
	if packet.TimeoutHeight.IsZero() {
		return false
	}
	// the receive would be committed in the next block
	next := clienttypes.NewHeight(0, uint64(dst.Height()+1))
	return next.GTE(packet.TimeoutHeight)
}

func (c *Chain) recvPacket(packet channeltypes.Packet) (*chain.TxResponse, []byte) {
	var ack []byte
	if app := c.app(packet.DestinationPort); app != nil {
		ack = app.OnRecvPacket(c, packet)
	} else {
		ack = channeltypes.NewErrorAcknowledgement(fmt.Errorf("no application bound to port %s", packet.DestinationPort)).Acknowledgement()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := portChannel{packet.DestinationPort, packet.DestinationChannel}
	if _, ok := c.acks[key]; !ok {
		c.acks[key] = make(map[uint64][]byte)
	}
	c.acks[key][packet.Sequence] = ack

	connectionID := ""
	if end, ok := c.channels[key]; ok {
		connectionID = end.connectionID
	}

	writeAck := packetEvent(chain.EventTypeWriteAck, packet, connectionID)
	writeAck.Attributes = append(writeAck.Attributes,
		sdk.NewAttribute(chain.AttributeKeyAck, string(ack)).ToKVPair(),
		sdk.NewAttribute(chain.AttributeKeyAckHex, hex.EncodeToString(ack)).ToKVPair(),
	)

	tx := c.deliverTx(0, "", packetEvent(chain.EventTypeRecvPacket, packet, connectionID), writeAck)
	return tx, ack
}

func (c *Chain) acknowledgePacket(packet channeltypes.Packet, ack []byte) (*chain.TxResponse, error) {
	if app := c.app(packet.SourcePort); app != nil {
		if err := app.OnAcknowledgementPacket(c, packet, ack); err != nil {
			return nil, fmt.Errorf("acknowledgement callback on %s: %w", c.chainID, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := portChannel{packet.SourcePort, packet.SourceChannel}
	delete(c.commitments[key], packet.Sequence)

	connectionID := ""
	if end, ok := c.channels[key]; ok {
		connectionID = end.connectionID
	}
	return c.deliverTx(0, "", packetEvent(chain.EventTypeAcknowledgePacket, packet, connectionID)), nil
}

func (c *Chain) timeoutPacket(packet channeltypes.Packet) (*chain.TxResponse, error) {
	if app := c.app(packet.SourcePort); app != nil {
		if err := app.OnTimeoutPacket(c, packet); err != nil {
			return nil, fmt.Errorf("timeout callback on %s: %w", c.chainID, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := portChannel{packet.SourcePort, packet.SourceChannel}
	delete(c.commitments[key], packet.Sequence)

	connectionID := ""
	if end, ok := c.channels[key]; ok {
		connectionID = end.connectionID
	}
	return c.deliverTx(0, "", packetEvent(chain.EventTypeTimeoutPacket, packet, connectionID)), nil
}

func packetEvent(eventType string, packet channeltypes.Packet, connectionID string) sdk.Event {
	attrs := []sdk.Attribute{
		sdk.NewAttribute(chain.AttributeKeyTimeoutHeight, packet.TimeoutHeight.String()),
		sdk.NewAttribute(chain.AttributeKeyTimeoutTimestamp, strconv.FormatUint(packet.TimeoutTimestamp, 10)),
		sdk.NewAttribute(chain.AttributeKeySequence, seqString(packet.Sequence)),
		sdk.NewAttribute(chain.AttributeKeySrcPort, packet.SourcePort),
		sdk.NewAttribute(chain.AttributeKeySrcChannel, packet.SourceChannel),
		sdk.NewAttribute(chain.AttributeKeyDstPort, packet.DestinationPort),
		sdk.NewAttribute(chain.AttributeKeyDstChannel, packet.DestinationChannel),
		sdk.NewAttribute(chain.AttributeKeyChannelOrdering, channeltypes.UNORDERED.String()),
		sdk.NewAttribute(chain.AttributeKeyConnectionID, connectionID),
	}
	if eventType != chain.EventTypeAcknowledgePacket && eventType != chain.EventTypeTimeoutPacket {
		attrs = append([]sdk.Attribute{
			sdk.NewAttribute(chain.AttributeKeyData, string(packet.Data)),
			sdk.NewAttribute(chain.AttributeKeyDataHex, hex.EncodeToString(packet.Data)),
		}, attrs...)
	}
	return sdk.NewEvent(eventType, attrs...)
}

func relayKey(srcChainID string, packet channeltypes.Packet) string {
	return fmt.Sprintf("%s/%s/%s/%d", srcChainID, packet.SourcePort, packet.SourceChannel, packet.Sequence)
}
