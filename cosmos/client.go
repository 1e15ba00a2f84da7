package cosmos

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	errorsmod "cosmossdk.io/errors"

	"github.com/cosmos/cosmos-sdk/client/grpc/cmtservice"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/query"
	txtypes "github.com/cosmos/cosmos-sdk/types/tx"

	channeltypes "github.com/cosmos/ibc-go/v11/modules/core/04-channel/types"

	"github.com/srdtrk/ibc-packet-tracker/chain"
)

const pageLimit = 100

var _ chain.Client = (*Client)(nil)

// Client queries a Cosmos SDK node over gRPC.
type Client struct {
	chainID string
	conn    *grpc.ClientConn
	logger  *zap.Logger

	txClient      txtypes.ServiceClient
	nodeClient    cmtservice.ServiceClient
	channelClient channeltypes.QueryClient
}

// Dial opens an insecure gRPC connection to addr.
func Dial(addr string) (*grpc.ClientConn, error) {
	if addr == "" {
		return nil, fmt.Errorf("grpc address not set")
	}
	return grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
}

// NewClient wraps an existing gRPC connection. The connection is shared, not owned.
func NewClient(conn *grpc.ClientConn, chainID string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		chainID:       chainID,
		conn:          conn,
		logger:        logger.With(zap.String("chain_id", chainID)),
		txClient:      txtypes.NewServiceClient(conn),
		nodeClient:    cmtservice.NewServiceClient(conn),
		channelClient: channeltypes.NewQueryClient(conn),
	}
}

func (c *Client) ChainID() string {
	return c.chainID
}

// FindTxsByEvents implements chain.TxQuerier.
func (c *Client) FindTxsByEvents(ctx context.Context, filters []string, order chain.OrderBy, limit uint64) ([]*chain.TxResponse, error) {
	req := &txtypes.GetTxsEventRequest{
		Query:   strings.Join(filters, " AND "),
		OrderBy: toOrderBy(order),
		Page:    1,
		Limit:   limit,
	}

	c.logger.Debug("searching txs", zap.String("query", req.Query), zap.Stringer("order", order), zap.Uint64("limit", limit))

	var txs []*chain.TxResponse
	for {
		resp, err := c.txClient.GetTxsEvent(ctx, req)
		if err != nil {
			return nil, errorsmod.Wrapf(chain.ErrQuery, "GetTxsEvent on %s (%s): %s", c.chainID, req.Query, err)
		}

		for _, tx := range resp.TxResponses {
			txs = append(txs, FromSDKTxResponse(tx))
		}

		if limit > 0 || uint64(len(txs)) >= resp.Total || len(resp.TxResponses) == 0 {
			break
		}
		req.Page++
	}

	return txs, nil
}

// BlockHeight implements chain.NodeQuerier.
func (c *Client) BlockHeight(ctx context.Context) (uint64, error) {
	info, err := c.BlockInfo(ctx)
	if err != nil {
		return 0, err
	}
	return info.Height, nil
}

// BlockInfo implements chain.NodeQuerier.
func (c *Client) BlockInfo(ctx context.Context) (chain.BlockInfo, error) {
	resp, err := c.nodeClient.GetLatestBlock(ctx, &cmtservice.GetLatestBlockRequest{})
	if err != nil {
		return chain.BlockInfo{}, errorsmod.Wrapf(chain.ErrQuery, "GetLatestBlock on %s: %s", c.chainID, err)
	}
	if resp.SdkBlock == nil {
		return chain.BlockInfo{}, errorsmod.Wrapf(chain.ErrQuery, "GetLatestBlock on %s: empty block", c.chainID)
	}

	header := resp.SdkBlock.Header
	return chain.BlockInfo{
		Height:  uint64(header.Height),
		Time:    header.Time,
		ChainID: header.ChainID,
	}, nil
}

// ConnectionChannels implements chain.IBCQuerier.
func (c *Client) ConnectionChannels(ctx context.Context, connectionID string) ([]chain.IdentifiedChannel, error) {
	var (
		channels []chain.IdentifiedChannel
		nextKey  []byte
	)
	for {
		resp, err := c.channelClient.ConnectionChannels(ctx, &channeltypes.QueryConnectionChannelsRequest{
			Connection: connectionID,
			Pagination: &query.PageRequest{Key: nextKey, Limit: pageLimit},
		})
		if err != nil {
			return nil, errorsmod.Wrapf(chain.ErrQuery, "ConnectionChannels(%s) on %s: %s", connectionID, c.chainID, err)
		}

		for _, ch := range resp.Channels {
			channels = append(channels, chain.IdentifiedChannel{
				PortID:                ch.PortId,
				ChannelID:             ch.ChannelId,
				CounterpartyPortID:    ch.Counterparty.PortId,
				CounterpartyChannelID: ch.Counterparty.ChannelId,
				ConnectionHops:        ch.ConnectionHops,
				State:                 ch.State.String(),
				Version:               ch.Version,
			})
		}

		if resp.Pagination == nil || len(resp.Pagination.NextKey) == 0 {
			return channels, nil
		}
		nextKey = resp.Pagination.NextKey
	}
}

// PacketCommitments implements chain.IBCQuerier.
func (c *Client) PacketCommitments(ctx context.Context, portID, channelID string) ([]uint64, error) {
	var (
		sequences []uint64
		nextKey   []byte
	)
	for {
		resp, err := c.channelClient.PacketCommitments(ctx, &channeltypes.QueryPacketCommitmentsRequest{
			PortId:     portID,
			ChannelId:  channelID,
			Pagination: &query.PageRequest{Key: nextKey, Limit: pageLimit},
		})
		if err != nil {
			return nil, errorsmod.Wrapf(chain.ErrQuery, "PacketCommitments(%s/%s) on %s: %s", portID, channelID, c.chainID, err)
		}

		for _, commitment := range resp.Commitments {
			sequences = append(sequences, commitment.Sequence)
		}

		if resp.Pagination == nil || len(resp.Pagination.NextKey) == 0 {
			return sequences, nil
		}
		nextKey = resp.Pagination.NextKey
	}
}

// PacketAcknowledgements implements chain.IBCQuerier.
func (c *Client) PacketAcknowledgements(ctx context.Context, portID, channelID string, sequences []uint64) ([]uint64, error) {
	var (
		acked   []uint64
		nextKey []byte
	)
	for {
		resp, err := c.channelClient.PacketAcknowledgements(ctx, &channeltypes.QueryPacketAcknowledgementsRequest{
			PortId:                    portID,
			ChannelId:                 channelID,
			PacketCommitmentSequences: sequences,
			Pagination:                &query.PageRequest{Key: nextKey, Limit: pageLimit},
		})
		if err != nil {
			return nil, errorsmod.Wrapf(chain.ErrQuery, "PacketAcknowledgements(%s/%s) on %s: %s", portID, channelID, c.chainID, err)
		}

		for _, ack := range resp.Acknowledgements {
			acked = append(acked, ack.Sequence)
		}

		if resp.Pagination == nil || len(resp.Pagination.NextKey) == 0 {
			return acked, nil
		}
		nextKey = resp.Pagination.NextKey
	}
}

// FromSDKTxResponse converts a node tx response.
func FromSDKTxResponse(tx *sdk.TxResponse) *chain.TxResponse {
	return &chain.TxResponse{
		Height:    tx.Height,
		TxHash:    tx.TxHash,
		Codespace: tx.Codespace,
		Code:      tx.Code,
		RawLog:    tx.RawLog,
		Timestamp: tx.Timestamp,
		Events:    chain.EventsFromABCI(tx.Events),
	}
}

func toOrderBy(order chain.OrderBy) txtypes.OrderBy {
	switch order {
	case chain.OrderByAsc:
		return txtypes.OrderBy_ORDER_BY_ASC
	case chain.OrderByDesc:
		return txtypes.OrderBy_ORDER_BY_DESC
	default:
		return txtypes.OrderBy_ORDER_BY_UNSPECIFIED
	}
}
