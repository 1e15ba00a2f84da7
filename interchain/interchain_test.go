package interchain_test

import (
	"context"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"

	sdk "github.com/cosmos/cosmos-sdk/types"

	transfertypes "github.com/cosmos/ibc-go/v11/modules/apps/transfer/types"
	channeltypes "github.com/cosmos/ibc-go/v11/modules/core/04-channel/types"

	"github.com/srdtrk/ibc-packet-tracker/chain"
	"github.com/srdtrk/ibc-packet-tracker/interchain"
	"github.com/srdtrk/ibc-packet-tracker/simchain"
)

const (
	chainA   = "juno-1"
	chainB   = "osmosis-1"
	sender   = "juno1sender"
	receiver = "osmo1receiver"
	denom    = "ujuno"
)

// countingQuerier counts the searches issued against a chain and optionally fails them.
type countingQuerier struct {
	chain.Querier
	calls atomic.Int32
	err   error
}

func (q *countingQuerier) FindTxsByEvents(ctx context.Context, filters []string, order chain.OrderBy, limit uint64) ([]*chain.TxResponse, error) {
	q.calls.Add(1)
	if q.err != nil {
		return nil, q.err
	}
	return q.Querier.FindTxsByEvents(ctx, filters, order, limit)
}

type InterchainTestSuite struct {
	suite.Suite

	ic   *simchain.Interchain
	a, b *simchain.Chain

	connectionID string
	unbound      *interchain.Channel
}

func TestWithInterchainTestSuite(t *testing.T) {
	suite.Run(t, new(InterchainTestSuite))
}

func (s *InterchainTestSuite) SetupTest() {
	s.ic = simchain.NewInterchain(zaptest.NewLogger(s.T()), chainA, chainB)

	var err error
	s.a, err = s.ic.Chain(chainA)
	s.Require().NoError(err)
	s.b, err = s.ic.Chain(chainB)
	s.Require().NoError(err)

	s.a.RegisterApp(transfertypes.PortID, simchain.TransferApp{})
	s.b.RegisterApp(transfertypes.PortID, simchain.TransferApp{})
	s.a.Fund(sender, sdk.NewInt64Coin(denom, 1_000_000))

	s.connectionID, _, err = s.ic.CreateConnection(chainA, chainB)
	s.Require().NoError(err)

	s.unbound, err = interchain.NewChannel(
		s.connectionID,
		interchain.NewPort(chainA, s.a, transfertypes.PortID),
		interchain.NewPort(chainB, s.b, transfertypes.PortID),
	)
	s.Require().NoError(err)
	s.unbound = s.unbound.WithLogger(zaptest.NewLogger(s.T()))
}

func (s *InterchainTestSuite) openChannel() (*interchain.Channel, simchain.ChannelResult) {
	res, err := s.ic.CreateChannel(simchain.ChannelOptions{
		ChainA:       chainA,
		PortA:        transfertypes.PortID,
		ChainB:       chainB,
		PortB:        transfertypes.PortID,
		Version:      transfertypes.V1,
		ConnectionID: s.connectionID,
	})
	s.Require().NoError(err)

	bound, err := s.unbound.WithChannelIDs(res.ChannelA, res.ChannelB)
	s.Require().NoError(err)
	return bound, res
}

func (s *InterchainTestSuite) transfer(channelID string, timeoutHeight uint64) (*chain.TxResponse, string) {
	tx, seq, err := s.ic.SendTransfer(chainA, channelID, sender, receiver, sdk.NewInt64Coin(denom, 10), simchain.TransferOptions{
		TimeoutHeight: timeoutHeight,
	})
	s.Require().NoError(err)
	return tx, strconv.FormatUint(seq, 10)
}

func (s *InterchainTestSuite) TestOrderedPortsSymmetry() {
	portA, portB := s.unbound.Ports()

	src, dst, err := s.unbound.GetOrderedPortsFrom(chainA)
	s.Require().NoError(err)
	s.Require().Equal(portA, src)
	s.Require().Equal(portB, dst)

	src, dst, err = s.unbound.GetOrderedPortsFrom(chainB)
	s.Require().NoError(err)
	s.Require().Equal(portB, src)
	s.Require().Equal(portA, dst)

	_, _, err = s.unbound.GetOrderedPortsFrom("stargaze-1")
	s.Require().ErrorIs(err, interchain.ErrUnknownChain)

	got, err := s.unbound.GetChain(chainB)
	s.Require().NoError(err)
	s.Require().Equal(portB, got)

	_, err = s.unbound.GetChain("stargaze-1")
	s.Require().ErrorIs(err, interchain.ErrUnknownChain)
}

func (s *InterchainTestSuite) TestNewChannelRejectsSameChain() {
	_, err := interchain.NewChannel(s.connectionID,
		interchain.NewPort(chainA, s.a, transfertypes.PortID),
		interchain.NewPort(chainA, s.a, "wasm.contract"),
	)
	s.Require().ErrorIs(err, interchain.ErrInvalidChannel)
}

func (s *InterchainTestSuite) TestFollowPacketSuccess() {
	channel, res := s.openChannel()

	_, seq := s.transfer(res.ChannelA, 0)
	_, err := s.ic.RelayPending(context.Background())
	s.Require().NoError(err)

	txs, err := channel.FollowPacket(context.Background(), chainA, seq)
	s.Require().NoError(err)
	s.Require().Len(txs, 2)

	s.Require().Equal(chainB, txs[0].ChainID)
	s.Require().Equal(uint32(0), txs[0].Tx.Code)
	s.Require().Len(txs[0].Tx.GetEvents(chain.EventTypeRecvPacket), 1)

	s.Require().Equal(chainA, txs[1].ChainID)
	s.Require().Equal(uint32(0), txs[1].Tx.Code)
	s.Require().Len(txs[1].Tx.GetEvents(chain.EventTypeAcknowledgePacket), 1)

	outcome, err := channel.ResolvePacketOutcome(context.Background(), chainA, seq)
	s.Require().NoError(err)
	success, ok := outcome.(interchain.SuccessOutcome)
	s.Require().True(ok, "expected success, got %s", outcome.Kind())
	s.Require().Equal(interchain.AckResult, success.Ack.Kind)
	s.Require().Equal([]byte{1}, success.Ack.Result)
	s.Require().Len(success.Txs(), 3)
}

func (s *InterchainTestSuite) TestFollowPacketFromCounterparty() {
	channel, res := s.openChannel()

	s.b.Fund(receiver, sdk.NewInt64Coin("uosmo", 50))

	_, seq, err := s.ic.SendTransfer(chainB, res.ChannelB, receiver, sender, sdk.NewInt64Coin("uosmo", 50), simchain.TransferOptions{})
	s.Require().NoError(err)
	_, err = s.ic.RelayPending(context.Background())
	s.Require().NoError(err)

	txs, err := channel.FollowPacket(context.Background(), chainB, strconv.FormatUint(seq, 10))
	s.Require().NoError(err)
	s.Require().Equal(chainA, txs[0].ChainID)
	s.Require().Equal(chainB, txs[1].ChainID)

	voucher := transfertypes.PortID + "/" + res.ChannelA + "/uosmo"
	s.Require().Equal(int64(50), s.a.Balance(sender, voucher).Int64())
}

func (s *InterchainTestSuite) TestFollowPacketErrorAck() {
	channel, res := s.openChannel()

	errAck := channeltypes.NewErrorAcknowledgement(transfertypes.ErrReceiveDisabled).Acknowledgement()
	s.b.RegisterApp(transfertypes.PortID, simchain.StaticApp{Ack: errAck})

	_, seq := s.transfer(res.ChannelA, 0)
	_, err := s.ic.RelayPending(context.Background())
	s.Require().NoError(err)

	outcome, err := channel.ResolvePacketOutcome(context.Background(), chainA, seq)
	s.Require().NoError(err)
	errOutcome, ok := outcome.(interchain.ErrorOutcome)
	s.Require().True(ok, "expected error outcome, got %s", outcome.Kind())
	s.Require().NotEmpty(errOutcome.Error)
}

func (s *InterchainTestSuite) TestFollowPacketOpaqueAck() {
	channel, res := s.openChannel()
	s.b.RegisterApp(transfertypes.PortID, simchain.StaticApp{Ack: []byte("pong")})

	_, seq := s.transfer(res.ChannelA, 0)
	_, err := s.ic.RelayPending(context.Background())
	s.Require().NoError(err)

	outcome, err := channel.ResolvePacketOutcome(context.Background(), chainA, seq)
	s.Require().NoError(err)
	success, ok := outcome.(interchain.SuccessOutcome)
	s.Require().True(ok)
	s.Require().Equal(interchain.AckOpaque, success.Ack.Kind)
	s.Require().Equal("pong", success.Ack.String())
}

func (s *InterchainTestSuite) TestTimeoutOutcomeIsExclusive() {
	channel, res := s.openChannel()

	// the destination is already at the timeout height
	_, seq := s.transfer(res.ChannelA, uint64(s.b.Height()))
	relayed, err := s.ic.RelayPending(context.Background())
	s.Require().NoError(err)
	s.Require().Len(relayed, 1)
	s.Require().NotNil(relayed[0].TimeoutTx)

	outcome, err := channel.ResolvePacketOutcome(context.Background(), chainA, seq)
	s.Require().NoError(err)
	s.Require().Equal(interchain.OutcomeTimeout, outcome.Kind())
	timeout, ok := outcome.(interchain.TimeoutOutcome)
	s.Require().True(ok)
	s.Require().Equal(relayed[0].TimeoutTx.TxHash, timeout.TimeoutTx.Tx.TxHash)

	_, err = channel.GetPacketAckReceiveTx(context.Background(), chainA, seq)
	s.Require().ErrorIs(err, interchain.ErrNoTxFound)

	_, err = channel.FollowPacket(context.Background(), chainA, seq)
	s.Require().ErrorIs(err, interchain.ErrNoTxFound)
}

func (s *InterchainTestSuite) TestFollowPacketTransientAbsence() {
	channel, res := s.openChannel()
	_, seq := s.transfer(res.ChannelA, 0)

	_, err := channel.FollowPacket(context.Background(), chainA, seq)
	s.Require().ErrorIs(err, interchain.ErrNoTxFound)

	_, err = s.ic.RelayRecv(context.Background())
	s.Require().NoError(err)

	// received but the acknowledgement is not relayed yet
	_, err = channel.FollowPacket(context.Background(), chainA, seq)
	s.Require().ErrorIs(err, interchain.ErrNoTxFound)

	_, err = s.ic.RelayAcks(context.Background())
	s.Require().NoError(err)

	txs, err := channel.FollowPacket(context.Background(), chainA, seq)
	s.Require().NoError(err)
	s.Require().Len(txs, 2)
}

func (s *InterchainTestSuite) TestFollowPacketUnboundChannel() {
	counting := &countingQuerier{Querier: s.a}
	unbound, err := interchain.NewChannel(s.connectionID,
		interchain.NewPort(chainA, counting, transfertypes.PortID),
		interchain.NewPort(chainB, s.b, transfertypes.PortID),
	)
	s.Require().NoError(err)

	_, err = unbound.FollowPacket(context.Background(), chainA, "1")
	s.Require().ErrorIs(err, interchain.ErrChannelNotBound)
	s.Require().Zero(counting.calls.Load())

	_, err = unbound.FollowPacket(context.Background(), "stargaze-1", "1")
	s.Require().ErrorIs(err, interchain.ErrUnknownChain)
}

func (s *InterchainTestSuite) TestFollowPacketFailedReceive() {
	channel, res := s.openChannel()
	_, seq := s.transfer(res.ChannelA, 0)

	s.b.DeliverTx(11, "out of gas in location: ReadFlat",
		sdk.NewEvent(chain.EventTypeRecvPacket,
			sdk.NewAttribute(chain.AttributeKeyDstPort, transfertypes.PortID),
			sdk.NewAttribute(chain.AttributeKeyDstChannel, res.ChannelB),
			sdk.NewAttribute(chain.AttributeKeySequence, seq),
		),
	)

	_, err := channel.FollowPacket(context.Background(), chainA, seq)
	s.Require().ErrorIs(err, interchain.ErrTxFailed)

	var txErr *interchain.TxFailedError
	s.Require().ErrorAs(err, &txErr)
	s.Require().Equal(uint32(11), txErr.Code)
	s.Require().Equal(chainB, txErr.ChainID)
	s.Require().Contains(txErr.Reason, "out of gas")
}

func (s *InterchainTestSuite) TestFollowPacketMultipleReceives() {
	channel, res := s.openChannel()
	_, seq := s.transfer(res.ChannelA, 0)

	_, err := s.ic.RelayPending(context.Background())
	s.Require().NoError(err)

	s.b.DeliverTx(0, "",
		sdk.NewEvent(chain.EventTypeRecvPacket,
			sdk.NewAttribute(chain.AttributeKeyDstPort, transfertypes.PortID),
			sdk.NewAttribute(chain.AttributeKeyDstChannel, res.ChannelB),
			sdk.NewAttribute(chain.AttributeKeySequence, seq),
		),
	)

	_, err = channel.FollowPacket(context.Background(), chainA, seq)
	s.Require().ErrorIs(err, interchain.ErrMultipleTxs)
}

func (s *InterchainTestSuite) TestFindNewChannelCreation() {
	ctx := context.Background()

	baseline, err := s.unbound.GetLastChannelCreationHash(ctx, chainA)
	s.Require().NoError(err)
	s.Require().Equal(interchain.Baseline{}, baseline)

	_, res := s.openChannel()

	ack, confirm, err := s.unbound.FindNewChannelCreationTx(ctx, chainA, baseline, interchain.WithCreationDelay(time.Millisecond))
	s.Require().NoError(err)
	s.Require().Equal(chainA, ack.ChainID)
	s.Require().Equal(chainB, confirm.ChainID)
	s.Require().Equal(res.AckTx.TxHash, ack.Tx.TxHash)
	s.Require().Equal(res.ConfirmTx.TxHash, confirm.Tx.TxHash)

	bound, err := s.unbound.ChannelFromCreation(chainA, ack, confirm)
	s.Require().NoError(err)
	portA, portB := bound.Ports()
	s.Require().Equal(res.ChannelA, portA.Channel)
	s.Require().Equal(res.ChannelB, portB.Channel)

	// no further handshake: retries are exhausted
	next := interchain.Baseline{AckTxHash: ack.Tx.TxHash, ConfirmTxHash: confirm.Tx.TxHash}
	counting := &countingQuerier{Querier: s.a}
	watched, err := interchain.NewChannel(s.connectionID,
		interchain.NewPort(chainA, counting, transfertypes.PortID),
		interchain.NewPort(chainB, s.b, transfertypes.PortID),
	)
	s.Require().NoError(err)

	_, _, err = watched.FindNewChannelCreationTx(ctx, chainA, next, interchain.WithCreationDelay(time.Millisecond))
	s.Require().ErrorIs(err, interchain.ErrNoNewChannelCreation)
	s.Require().ErrorContains(err, ack.Tx.TxHash)
	s.Require().Equal(int32(interchain.DefaultCreationAttempts), counting.calls.Load())
}

func (s *InterchainTestSuite) TestFindNewChannelCreationAbortsOnQueryError() {
	counting := &countingQuerier{Querier: s.b, err: chain.ErrQuery}
	channel, err := interchain.NewChannel(s.connectionID,
		interchain.NewPort(chainA, s.a, transfertypes.PortID),
		interchain.NewPort(chainB, counting, transfertypes.PortID),
	)
	s.Require().NoError(err)

	_, _, err = channel.FindNewChannelCreationTx(context.Background(), chainA, interchain.Baseline{}, interchain.WithCreationDelay(time.Millisecond))
	s.Require().ErrorIs(err, chain.ErrQuery)
	s.Require().NotErrorIs(err, interchain.ErrNoNewChannelCreation)
	s.Require().Equal(int32(1), counting.calls.Load())
}

func (s *InterchainTestSuite) TestFollowPacketsFromTx() {
	channel, res := s.openChannel()

	// the first packet times out, the second succeeds
	first, firstSeq := s.transfer(res.ChannelA, uint64(s.b.Height()))
	_, err := s.ic.RelayPending(context.Background())
	s.Require().NoError(err)

	second, secondSeq := s.transfer(res.ChannelA, 0)
	_, err = s.ic.RelayPending(context.Background())
	s.Require().NoError(err)

	opts := interchain.WaitOptions{Attempts: 2, Delay: time.Millisecond}

	outcomes, err := channel.FollowPacketsFromTx(context.Background(), chainA, first, opts)
	s.Require().NoError(err)
	s.Require().Len(outcomes, 1)
	s.Require().Equal(firstSeq, outcomes[0].Sequence())
	s.Require().Equal(interchain.OutcomeTimeout, outcomes[0].Kind())

	outcomes, err = channel.FollowPacketsFromTx(context.Background(), chainA, second, opts)
	s.Require().NoError(err)
	s.Require().Len(outcomes, 1)
	s.Require().Equal(secondSeq, outcomes[0].Sequence())
	s.Require().Equal(interchain.OutcomeSuccess, outcomes[0].Kind())

	_, err = channel.FollowPacketsFromTx(context.Background(), chainA, res.InitTx, opts)
	s.Require().ErrorIs(err, interchain.ErrMissingEvent)
}

func (s *InterchainTestSuite) TestWaitForPacketOutcomeGivesUp() {
	channel, res := s.openChannel()
	_, seq := s.transfer(res.ChannelA, 0)

	_, err := channel.WaitForPacketOutcome(context.Background(), chainA, seq, interchain.WaitOptions{Attempts: 3, Delay: time.Millisecond})
	s.Require().ErrorIs(err, interchain.ErrNoTxFound)
}

func TestParseAck(t *testing.T) {
	result := interchain.ParseAck(`{"result":"AQ=="}`)
	require.Equal(t, interchain.AckResult, result.Kind)
	require.Equal(t, []byte{1}, result.Result)

	errAck := interchain.ParseAck(`{"error":"insufficient funds"}`)
	require.Equal(t, interchain.AckError, errAck.Kind)
	require.Equal(t, "insufficient funds", errAck.Error)
	require.Equal(t, "Ack error : insufficient funds", errAck.String())

	opaque := interchain.ParseAck("not json")
	require.Equal(t, interchain.AckOpaque, opaque.Kind)
	require.Equal(t, "not json", opaque.String())

	empty := interchain.ParseAck("{}")
	require.Equal(t, interchain.AckOpaque, empty.Kind)
}

func TestBindChannel(t *testing.T) {
	port := interchain.NewPort(chainA, nil, transfertypes.PortID)
	require.False(t, port.IsBound())

	require.NoError(t, port.BindChannel("channel-0"))
	require.NoError(t, port.BindChannel("channel-0"))
	require.ErrorIs(t, port.BindChannel("channel-1"), interchain.ErrChannelAlreadyBound)
	require.ErrorIs(t, port.BindChannel(""), interchain.ErrInvalidChannel)
	require.Equal(t, "channel-0", port.Channel)
}
