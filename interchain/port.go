package interchain

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"

	"github.com/srdtrk/ibc-packet-tracker/chain"
)

// Port is one endpoint of a channel: a port on a chain, optionally bound to a channel id.
type Port struct {
	ChainID string
	Chain   chain.Querier
	Port    string
	Channel string
}

// NewPort returns an endpoint that is not bound to a channel yet.
func NewPort(chainID string, q chain.Querier, port string) Port {
	return Port{ChainID: chainID, Chain: q, Port: port}
}

// BindChannel assigns the channel id. A bound endpoint only accepts the same id again.
func (p *Port) BindChannel(channelID string) error {
	if channelID == "" {
		return errorsmod.Wrapf(ErrInvalidChannel, "empty channel id for %s", p)
	}
	if p.Channel != "" && p.Channel != channelID {
		return errorsmod.Wrapf(ErrChannelAlreadyBound, "%s, cannot bind %s", p, channelID)
	}
	p.Channel = channelID
	return nil
}

// IsBound reports whether a channel id has been assigned.
func (p Port) IsBound() bool {
	return p.Channel != ""
}

func (p Port) requireBound() error {
	if !p.IsBound() {
		return errorsmod.Wrapf(ErrChannelNotBound, "port %s on %s", p.Port, p.ChainID)
	}
	return nil
}

func (p Port) String() string {
	if p.Channel == "" {
		return fmt.Sprintf("%s:%s", p.ChainID, p.Port)
	}
	return fmt.Sprintf("%s:%s/%s", p.ChainID, p.Port, p.Channel)
}
