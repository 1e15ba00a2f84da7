package simchain

import (
	"encoding/json"
	"fmt"
	"strings"

	sdkmath "cosmossdk.io/math"

	sdk "github.com/cosmos/cosmos-sdk/types"

	transfertypes "github.com/cosmos/ibc-go/v11/modules/apps/transfer/types"
	channeltypes "github.com/cosmos/ibc-go/v11/modules/core/04-channel/types"
)

// App is the application bound to a port. Acknowledgements are returned as
// raw bytes so that applications may use any envelope.
type App interface {
	OnRecvPacket(c *Chain, packet channeltypes.Packet) []byte
	OnAcknowledgementPacket(c *Chain, packet channeltypes.Packet, ack []byte) error
	OnTimeoutPacket(c *Chain, packet channeltypes.Packet) error
}

var (
	_ App = TransferApp{}
	_ App = StaticApp{}
)

// TransferApp is a minimal ICS-20 application: the source escrows, the
// destination credits a voucher prefixed with the destination port and channel.
type TransferApp struct{}

func (TransferApp) OnRecvPacket(c *Chain, packet channeltypes.Packet) []byte {
	data, amount, err := decodeTransfer(packet.Data)
	if err != nil {
		return channeltypes.NewErrorAcknowledgement(err).Acknowledgement()
	}

	voucher := fmt.Sprintf("%s/%s/%s", packet.DestinationPort, packet.DestinationChannel, data.Denom)
	c.mu.Lock()
	c.credit(data.Receiver, sdk.Coin{Denom: voucher, Amount: amount})
	c.mu.Unlock()

	return channeltypes.NewResultAcknowledgement([]byte{byte(1)}).Acknowledgement()
}

func (TransferApp) OnAcknowledgementPacket(c *Chain, packet channeltypes.Packet, ack []byte) error {
	if IsSuccessAck(ack) {
		return nil
	}
	return refund(c, packet)
}

func (TransferApp) OnTimeoutPacket(c *Chain, packet channeltypes.Packet) error {
	return refund(c, packet)
}

func refund(c *Chain, packet channeltypes.Packet) error {
	data, amount, err := decodeTransfer(packet.Data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.credit(data.Sender, sdk.Coin{Denom: data.Denom, Amount: amount})
	return nil
}

func decodeTransfer(bz []byte) (transfertypes.FungibleTokenPacketData, sdkmath.Int, error) {
	var data transfertypes.FungibleTokenPacketData
	if err := json.Unmarshal(bz, &data); err != nil {
		return data, sdkmath.Int{}, fmt.Errorf("cannot unmarshal transfer packet data: %w", err)
	}
	if err := data.ValidateBasic(); err != nil {
		return data, sdkmath.Int{}, err
	}

	amount, ok := sdkmath.NewIntFromString(data.Amount)
	if !ok {
		return data, sdkmath.Int{}, fmt.Errorf("invalid transfer amount %q", data.Amount)
	}
	return data, amount, nil
}

// StaticApp answers every packet with the same acknowledgement.
type StaticApp struct {
	Ack []byte
}

func (a StaticApp) OnRecvPacket(_ *Chain, _ channeltypes.Packet) []byte {
	return a.Ack
}

func (StaticApp) OnAcknowledgementPacket(_ *Chain, _ channeltypes.Packet, _ []byte) error {
	return nil
}

func (StaticApp) OnTimeoutPacket(_ *Chain, _ channeltypes.Packet) error {
	return nil
}

// IsSuccessAck reports whether ack is the result variant of the standard envelope.
func IsSuccessAck(ack []byte) bool {
	var envelope channeltypes.Acknowledgement
	if err := channeltypes.SubModuleCdc.UnmarshalJSON(ack, &envelope); err != nil {
		return false
	}
	return envelope.Success()
}

// IsVoucher reports whether denom was minted by a transfer received on port/channel.
func IsVoucher(denom, portID, channelID string) bool {
	return strings.HasPrefix(denom, portID+"/"+channelID+"/")
}
