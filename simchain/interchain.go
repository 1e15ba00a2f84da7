package simchain

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	sdk "github.com/cosmos/cosmos-sdk/types"

	channeltypes "github.com/cosmos/ibc-go/v11/modules/core/04-channel/types"

	"github.com/srdtrk/ibc-packet-tracker/chain"
)

// Interchain is a set of simulated chains joined by connections, channels
// and an in-process relayer.
type Interchain struct {
	mu      sync.Mutex
	chains  map[string]*Chain
	pending []pendingPacket
	acks    []pendingAck
	logger  *zap.Logger
}

// ChannelOptions describes a channel to open between two chains.
type ChannelOptions struct {
	ChainA  string
	PortA   string
	ChainB  string
	PortB   string
	Version string
	// ConnectionID is the connection on ChainA. A new connection is created when empty.
	ConnectionID string
}

// ChannelResult holds the identifiers and handshake transactions of an opened channel.
type ChannelResult struct {
	ConnectionA string
	ConnectionB string
	ChannelA    string
	ChannelB    string

	InitTx    *chain.TxResponse
	TryTx     *chain.TxResponse
	AckTx     *chain.TxResponse
	ConfirmTx *chain.TxResponse
}

// NewInterchain creates one chain per id.
func NewInterchain(logger *zap.Logger, chainIDs ...string) *Interchain {
	if logger == nil {
		logger = zap.NewNop()
	}
	ic := &Interchain{
		chains: make(map[string]*Chain, len(chainIDs)),
		logger: logger,
	}
	for _, id := range chainIDs {
		ic.chains[id] = NewChain(id, logger)
	}
	return ic
}

// Chain returns the chain with the given id.
func (ic *Interchain) Chain(chainID string) (*Chain, error) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return ic.chain(chainID)
}

func (ic *Interchain) chain(chainID string) (*Chain, error) {
	c, ok := ic.chains[chainID]
	if !ok {
		return nil, fmt.Errorf("unknown chain %s", chainID)
	}
	return c, nil
}

// ChainIDs returns the ids of every chain, sorted.
func (ic *Interchain) ChainIDs() []string {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	ids := make([]string, 0, len(ic.chains))
	for id := range ic.chains {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CreateConnection opens a connection between two chains and returns its id on each side.
func (ic *Interchain) CreateConnection(chainA, chainB string) (string, string, error) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return ic.createConnection(chainA, chainB)
}

func (ic *Interchain) createConnection(chainA, chainB string) (string, string, error) {
	if chainA == chainB {
		return "", "", fmt.Errorf("cannot connect %s to itself", chainA)
	}
	a, err := ic.chain(chainA)
	if err != nil {
		return "", "", err
	}
	b, err := ic.chain(chainB)
	if err != nil {
		return "", "", err
	}

	a.mu.Lock()
	connA := fmt.Sprintf("connection-%d", a.connectionSeq)
	a.connectionSeq++
	a.mu.Unlock()

	b.mu.Lock()
	connB := fmt.Sprintf("connection-%d", b.connectionSeq)
	b.connectionSeq++
	b.connections[connB] = connectionEnd{counterpartyChainID: chainA, counterpartyConnectionID: connA}
	b.mu.Unlock()

	a.mu.Lock()
	a.connections[connA] = connectionEnd{counterpartyChainID: chainB, counterpartyConnectionID: connB}
	a.mu.Unlock()

	ic.logger.Info("connection opened",
		zap.String("chain_a", chainA), zap.String("connection_a", connA),
		zap.String("chain_b", chainB), zap.String("connection_b", connB))

	return connA, connB, nil
}

// CreateChannel runs the four-step channel handshake, one transaction per step:
// init and ack on ChainA, try and confirm on ChainB.
func (ic *Interchain) CreateChannel(opts ChannelOptions) (ChannelResult, error) {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	a, err := ic.chain(opts.ChainA)
	if err != nil {
		return ChannelResult{}, err
	}
	b, err := ic.chain(opts.ChainB)
	if err != nil {
		return ChannelResult{}, err
	}

	var res ChannelResult
	if opts.ConnectionID == "" {
		res.ConnectionA, res.ConnectionB, err = ic.createConnection(opts.ChainA, opts.ChainB)
		if err != nil {
			return ChannelResult{}, err
		}
	} else {
		a.mu.RLock()
		conn, ok := a.connections[opts.ConnectionID]
		a.mu.RUnlock()
		if !ok || conn.counterpartyChainID != opts.ChainB {
			return ChannelResult{}, fmt.Errorf("connection %s on %s does not lead to %s", opts.ConnectionID, opts.ChainA, opts.ChainB)
		}
		res.ConnectionA, res.ConnectionB = opts.ConnectionID, conn.counterpartyConnectionID
	}

	res.ChannelA, res.InitTx = a.openChannelEnd(channeltypes.INIT, opts.PortA, opts.PortB, "", res.ConnectionA, opts.Version, chain.EventTypeChannelOpenInit)
	res.ChannelB, res.TryTx = b.openChannelEnd(channeltypes.TRYOPEN, opts.PortB, opts.PortA, res.ChannelA, res.ConnectionB, opts.Version, chain.EventTypeChannelOpenTry)
	res.AckTx = a.advanceChannelEnd(opts.PortA, res.ChannelA, res.ChannelB, chain.EventTypeChannelOpenAck)
	res.ConfirmTx = b.advanceChannelEnd(opts.PortB, res.ChannelB, res.ChannelA, chain.EventTypeChannelOpenConfirm)

	ic.logger.Info("channel opened",
		zap.String("chain_a", opts.ChainA), zap.String("port_a", opts.PortA), zap.String("channel_a", res.ChannelA),
		zap.String("chain_b", opts.ChainB), zap.String("port_b", opts.PortB), zap.String("channel_b", res.ChannelB))

	return res, nil
}

func (c *Chain) openChannelEnd(state channeltypes.State, portID, cpPortID, cpChannelID, connectionID, version, eventType string) (string, *chain.TxResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()

	channelID := channeltypes.FormatChannelIdentifier(uint64(c.channelSeq))
	c.channelSeq++
	c.channels[portChannel{portID, channelID}] = &channelEnd{
		state:          state,
		ordering:       channeltypes.UNORDERED,
		portID:         portID,
		channelID:      channelID,
		cpPortID:       cpPortID,
		cpChannelID:    cpChannelID,
		connectionID:   connectionID,
		version:        version,
		nextSequenceTx: 1,
	}

	tx := c.deliverTx(0, "", sdk.NewEvent(eventType,
		sdk.NewAttribute(chain.AttributeKeyPortID, portID),
		sdk.NewAttribute(chain.AttributeKeyChannelID, channelID),
		sdk.NewAttribute(chain.AttributeKeyCounterpartyPortID, cpPortID),
		sdk.NewAttribute(chain.AttributeKeyCounterpartyChannelID, cpChannelID),
		sdk.NewAttribute(chain.AttributeKeyConnectionID, connectionID),
		sdk.NewAttribute(chain.AttributeKeyVersion, version),
	))
	return channelID, tx
}

func (c *Chain) advanceChannelEnd(portID, channelID, cpChannelID, eventType string) *chain.TxResponse {
	c.mu.Lock()
	defer c.mu.Unlock()

	end := c.channels[portChannel{portID, channelID}]
	end.state = channeltypes.OPEN
	end.cpChannelID = cpChannelID

	return c.deliverTx(0, "", sdk.NewEvent(eventType,
		sdk.NewAttribute(chain.AttributeKeyPortID, portID),
		sdk.NewAttribute(chain.AttributeKeyChannelID, channelID),
		sdk.NewAttribute(chain.AttributeKeyCounterpartyPortID, end.cpPortID),
		sdk.NewAttribute(chain.AttributeKeyCounterpartyChannelID, cpChannelID),
		sdk.NewAttribute(chain.AttributeKeyConnectionID, end.connectionID),
	))
}

// CloseChannel moves a channel end to the closed state without emitting events.
func (c *Chain) CloseChannel(portID, channelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	end, ok := c.channels[portChannel{portID, channelID}]
	if !ok {
		return fmt.Errorf("channel %s/%s not found on %s", portID, channelID, c.chainID)
	}
	end.state = channeltypes.CLOSED
	return nil
}
