package simchain

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cometbft/cometbft/crypto/tmhash"

	errorsmod "cosmossdk.io/errors"
	sdkmath "cosmossdk.io/math"

	sdk "github.com/cosmos/cosmos-sdk/types"

	clienttypes "github.com/cosmos/ibc-go/v11/modules/core/02-client/types"
	channeltypes "github.com/cosmos/ibc-go/v11/modules/core/04-channel/types"

	"github.com/srdtrk/ibc-packet-tracker/chain"
)

// DefaultBlockTime is the simulated time between two blocks.
const DefaultBlockTime = 5 * time.Second

var _ chain.Client = (*Chain)(nil)

type portChannel struct {
	port    string
	channel string
}

type channelEnd struct {
	state          channeltypes.State
	ordering       channeltypes.Order
	portID         string
	channelID      string
	cpPortID       string
	cpChannelID    string
	connectionID   string
	version        string
	nextSequenceTx uint64
}

type connectionEnd struct {
	counterpartyChainID      string
	counterpartyConnectionID string
}

// Chain is an in-process ledger that indexes transaction events the way a
// node does. Every delivered transaction is committed in its own block.
type Chain struct {
	mu sync.RWMutex

	chainID   string
	height    int64
	time      time.Time
	blockTime time.Duration
	txs       []*chain.TxResponse

	connections   map[string]connectionEnd
	channels      map[portChannel]*channelEnd
	connectionSeq int
	channelSeq    int
	commitments   map[portChannel]map[uint64][]byte
	acks          map[portChannel]map[uint64][]byte

	balances map[string]map[string]sdkmath.Int
	apps     map[string]App

	logger *zap.Logger
}

// NewChain returns a chain at height 1.
func NewChain(chainID string, logger *zap.Logger) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{
		chainID:     chainID,
		height:      1,
		time:        time.Unix(1_700_000_000, 0).UTC(),
		blockTime:   DefaultBlockTime,
		connections: make(map[string]connectionEnd),
		channels:    make(map[portChannel]*channelEnd),
		commitments: make(map[portChannel]map[uint64][]byte),
		acks:        make(map[portChannel]map[uint64][]byte),
		balances:    make(map[string]map[string]sdkmath.Int),
		apps:        make(map[string]App),
		logger:      logger.With(zap.String("chain_id", chainID)),
	}
}

func (c *Chain) ChainID() string {
	return c.chainID
}

// Height returns the latest committed height.
func (c *Chain) Height() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.height
}

// ClientHeight returns the latest height as an IBC client height.
func (c *Chain) ClientHeight() clienttypes.Height {
	return clienttypes.NewHeight(0, uint64(c.Height()))
}

// NextBlock commits an empty block.
func (c *Chain) NextBlock() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.advance()
}

// WaitForBlocks commits n empty blocks.
func (c *Chain) WaitForBlocks(n int) {
	for range n {
		c.NextBlock()
	}
}

func (c *Chain) advance() {
	c.height++
	c.time = c.time.Add(c.blockTime)
}

// RegisterApp binds an application to a port.
func (c *Chain) RegisterApp(portID string, app App) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apps[portID] = app
}

func (c *Chain) app(portID string) App {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apps[portID]
}

// DeliverTx commits a transaction with the given result code and events in a new block.
func (c *Chain) DeliverTx(code uint32, rawLog string, events ...sdk.Event) *chain.TxResponse {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deliverTx(code, rawLog, events...)
}

func (c *Chain) deliverTx(code uint32, rawLog string, events ...sdk.Event) *chain.TxResponse {
	c.advance()

	hash := tmhash.Sum([]byte(fmt.Sprintf("%s/%d/%d", c.chainID, c.height, len(c.txs))))
	tx := &chain.TxResponse{
		Height:    c.height,
		TxHash:    fmt.Sprintf("%X", hash),
		Code:      code,
		RawLog:    rawLog,
		Timestamp: c.time.Format(time.RFC3339),
		Events:    chain.EventsFromABCI(sdk.Events(events).ToABCIEvents()),
	}
	c.txs = append(c.txs, tx)

	c.logger.Debug("delivered tx", zap.String("tx_hash", tx.TxHash), zap.Int64("height", tx.Height), zap.Uint32("code", code))
	return tx
}

// FindTxsByEvents implements chain.TxQuerier. A filter matches a transaction
// when any event of the filter's type carries the attribute.
func (c *Chain) FindTxsByEvents(ctx context.Context, filters []string, order chain.OrderBy, limit uint64) ([]*chain.TxResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, errorsmod.Wrapf(chain.ErrQuery, "%s: %s", c.chainID, err)
	}

	type predicate struct{ eventType, key, value string }
	predicates := make([]predicate, 0, len(filters))
	for _, f := range filters {
		eventType, key, value, err := chain.ParseFilter(f)
		if err != nil {
			return nil, errorsmod.Wrapf(chain.ErrQuery, "%s: %s", c.chainID, err)
		}
		predicates = append(predicates, predicate{eventType, key, value})
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	matches := []*chain.TxResponse{}
	for _, tx := range c.txs {
		matched := true
		for _, p := range predicates {
			if !slices.ContainsFunc(tx.GetEvents(p.eventType), func(ev chain.Event) bool {
				return ev.HasAttribute(p.key, p.value)
			}) {
				matched = false
				break
			}
		}
		if matched {
			matches = append(matches, tx)
		}
	}

	if order == chain.OrderByDesc {
		slices.Reverse(matches)
	}
	if limit > 0 && uint64(len(matches)) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// BlockHeight implements chain.NodeQuerier.
func (c *Chain) BlockHeight(ctx context.Context) (uint64, error) {
	info, err := c.BlockInfo(ctx)
	if err != nil {
		return 0, err
	}
	return info.Height, nil
}

// BlockInfo implements chain.NodeQuerier.
func (c *Chain) BlockInfo(ctx context.Context) (chain.BlockInfo, error) {
	if err := ctx.Err(); err != nil {
		return chain.BlockInfo{}, errorsmod.Wrapf(chain.ErrQuery, "%s: %s", c.chainID, err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return chain.BlockInfo{Height: uint64(c.height), Time: c.time, ChainID: c.chainID}, nil
}

// ConnectionChannels implements chain.IBCQuerier.
func (c *Chain) ConnectionChannels(ctx context.Context, connectionID string) ([]chain.IdentifiedChannel, error) {
	if err := ctx.Err(); err != nil {
		return nil, errorsmod.Wrapf(chain.ErrQuery, "%s: %s", c.chainID, err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	var channels []chain.IdentifiedChannel
	for _, end := range c.channels {
		if end.connectionID != connectionID {
			continue
		}
		channels = append(channels, chain.IdentifiedChannel{
			PortID:                end.portID,
			ChannelID:             end.channelID,
			CounterpartyPortID:    end.cpPortID,
			CounterpartyChannelID: end.cpChannelID,
			ConnectionHops:        []string{end.connectionID},
			State:                 end.state.String(),
			Version:               end.version,
		})
	}
	sort.Slice(channels, func(i, j int) bool {
		if channels[i].PortID != channels[j].PortID {
			return channels[i].PortID < channels[j].PortID
		}
		return channels[i].ChannelID < channels[j].ChannelID
	})
	return channels, nil
}

// PacketCommitments implements chain.IBCQuerier.
func (c *Chain) PacketCommitments(ctx context.Context, portID, channelID string) ([]uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, errorsmod.Wrapf(chain.ErrQuery, "%s: %s", c.chainID, err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedSequences(c.commitments[portChannel{portID, channelID}], nil), nil
}

// PacketAcknowledgements implements chain.IBCQuerier.
func (c *Chain) PacketAcknowledgements(ctx context.Context, portID, channelID string, sequences []uint64) ([]uint64, error) {
	if err := ctx.Err(); err != nil {
		return nil, errorsmod.Wrapf(chain.ErrQuery, "%s: %s", c.chainID, err)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedSequences(c.acks[portChannel{portID, channelID}], sequences), nil
}

// Fund mints coin to addr.
func (c *Chain) Fund(addr string, coin sdk.Coin) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.credit(addr, coin)
}

// Balance returns the balance of addr in denom.
func (c *Chain) Balance(addr, denom string) sdkmath.Int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if amount, ok := c.balances[addr][denom]; ok {
		return amount
	}
	return sdkmath.ZeroInt()
}

func (c *Chain) credit(addr string, coin sdk.Coin) {
	if _, ok := c.balances[addr]; !ok {
		c.balances[addr] = make(map[string]sdkmath.Int)
	}
	current, ok := c.balances[addr][coin.Denom]
	if !ok {
		current = sdkmath.ZeroInt()
	}
	c.balances[addr][coin.Denom] = current.Add(coin.Amount)
}

func (c *Chain) debit(addr string, coin sdk.Coin) error {
	current, ok := c.balances[addr][coin.Denom]
	if !ok {
		current = sdkmath.ZeroInt()
	}
	if current.LT(coin.Amount) {
		return fmt.Errorf("insufficient funds: %s has %s%s, needs %s", addr, current, coin.Denom, coin)
	}
	c.balances[addr][coin.Denom] = current.Sub(coin.Amount)
	return nil
}

func sortedSequences(store map[uint64][]byte, only []uint64) []uint64 {
	sequences := []uint64{}
	if len(only) > 0 {
		for _, seq := range only {
			if _, ok := store[seq]; ok {
				sequences = append(sequences, seq)
			}
		}
	} else {
		for seq := range store {
			sequences = append(sequences, seq)
		}
	}
	slices.Sort(sequences)
	return slices.Compact(sequences)
}

func seqString(seq uint64) string {
	return strconv.FormatUint(seq, 10)
}
