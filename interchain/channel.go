package interchain

import (
	"go.uber.org/zap"

	errorsmod "cosmossdk.io/errors"

	"github.com/srdtrk/ibc-packet-tracker/chain"
)

// Channel is a pair of endpoints multiplexed over one connection. The
// connection id is the one on the chain of the first endpoint.
type Channel struct {
	connectionID string
	portA        Port
	portB        Port
	logger       *zap.Logger
}

// TxRef is a transaction found on one endpoint's chain.
type TxRef struct {
	ChainID string
	Chain   chain.Querier
	Tx      *chain.TxResponse
}

func newTxRef(p Port, tx *chain.TxResponse) TxRef {
	return TxRef{ChainID: p.ChainID, Chain: p.Chain, Tx: tx}
}

// NewChannel pairs two endpoints on distinct chains.
func NewChannel(connectionID string, portA, portB Port) (*Channel, error) {
	if portA.ChainID == portB.ChainID {
		return nil, errorsmod.Wrapf(ErrInvalidChannel, "both endpoints are on %s", portA.ChainID)
	}
	if portA.Chain == nil || portB.Chain == nil {
		return nil, errorsmod.Wrap(ErrInvalidChannel, "endpoint without chain handle")
	}
	return &Channel{
		connectionID: connectionID,
		portA:        portA,
		portB:        portB,
		logger:       zap.NewNop(),
	}, nil
}

// WithLogger returns a copy of the channel that logs followed packets to logger.
func (c *Channel) WithLogger(logger *zap.Logger) *Channel {
	cp := *c
	if logger != nil {
		cp.logger = logger
	}
	return &cp
}

func (c *Channel) ConnectionID() string {
	return c.connectionID
}

// Ports returns both endpoints in declaration order.
func (c *Channel) Ports() (Port, Port) {
	return c.portA, c.portB
}

// GetChain returns the endpoint living on chainID.
func (c *Channel) GetChain(chainID string) (Port, error) {
	switch chainID {
	case c.portA.ChainID:
		return c.portA, nil
	case c.portB.ChainID:
		return c.portB, nil
	default:
		return Port{}, errorsmod.Wrapf(ErrUnknownChain, "%s is neither %s nor %s", chainID, c.portA.ChainID, c.portB.ChainID)
	}
}

// GetOrderedPortsFrom returns (source, destination) with the source on chain from.
func (c *Channel) GetOrderedPortsFrom(from string) (Port, Port, error) {
	switch from {
	case c.portA.ChainID:
		return c.portA, c.portB, nil
	case c.portB.ChainID:
		return c.portB, c.portA, nil
	default:
		return Port{}, Port{}, errorsmod.Wrapf(ErrUnknownChain, "%s is neither %s nor %s", from, c.portA.ChainID, c.portB.ChainID)
	}
}

// WithChannelIDs returns a copy of the channel with both endpoints bound.
func (c *Channel) WithChannelIDs(channelA, channelB string) (*Channel, error) {
	bound := *c
	if err := bound.portA.BindChannel(channelA); err != nil {
		return nil, err
	}
	if err := bound.portB.BindChannel(channelB); err != nil {
		return nil, err
	}
	return &bound, nil
}

func (c *Channel) boundPortsFrom(from string) (Port, Port, error) {
	src, dst, err := c.GetOrderedPortsFrom(from)
	if err != nil {
		return Port{}, Port{}, err
	}
	if err := src.requireBound(); err != nil {
		return Port{}, Port{}, err
	}
	if err := dst.requireBound(); err != nil {
		return Port{}, Port{}, err
	}
	return src, dst, nil
}
