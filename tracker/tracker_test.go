package tracker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"

	clienttypes "github.com/cosmos/ibc-go/v11/modules/core/02-client/types"

	"github.com/srdtrk/ibc-packet-tracker/chain"
	"github.com/srdtrk/ibc-packet-tracker/simchain"
)

const (
	chainA       = "juno-1"
	chainB       = "osmosis-1"
	contractPort = "wasm.juno14hj2tavq8fpesdwxxcu44rty3hh90vhujrvcmstl4zr3txmfvw9skjuwg8"
	otherPort    = "wasm.juno1qwlgtx52gsdu7dtp0cekka5zehdl0uj3fhp9acg325fvgs8jdzksjvgq3g"
)

type TrackerTestSuite struct {
	suite.Suite

	ic           *simchain.Interchain
	a            *simchain.Chain
	connectionID string
}

func TestWithTrackerTestSuite(t *testing.T) {
	suite.Run(t, new(TrackerTestSuite))
}

func (s *TrackerTestSuite) SetupTest() {
	s.ic = simchain.NewInterchain(zaptest.NewLogger(s.T()), chainA, chainB)

	var err error
	s.a, err = s.ic.Chain(chainA)
	s.Require().NoError(err)
	b, err := s.ic.Chain(chainB)
	s.Require().NoError(err)

	for _, port := range []string{contractPort, otherPort} {
		s.a.RegisterApp(port, simchain.StaticApp{Ack: []byte(`{"result":"AQ=="}`)})
		b.RegisterApp(port, simchain.StaticApp{Ack: []byte(`{"result":"AQ=="}`)})
	}

	s.connectionID, _, err = s.ic.CreateConnection(chainA, chainB)
	s.Require().NoError(err)
}

func (s *TrackerTestSuite) createChannel(port string) simchain.ChannelResult {
	res, err := s.ic.CreateChannel(simchain.ChannelOptions{
		ChainA:       chainA,
		PortA:        port,
		ChainB:       chainB,
		PortB:        port,
		Version:      "ics20-1",
		ConnectionID: s.connectionID,
	})
	s.Require().NoError(err)
	return res
}

func (s *TrackerTestSuite) sendPacket(channelID string) uint64 {
	timeout := clienttypes.NewHeight(0, s.a.ClientHeight().RevisionHeight+1000)
	_, seq, err := s.ic.SendPacket(chainA, contractPort, channelID, []byte("ping"), timeout, 0)
	s.Require().NoError(err)
	return seq
}

func (s *TrackerTestSuite) newTracker() *Tracker[ContractState, ContractStateDiff] {
	ctx := context.Background()
	t := New[ContractState, ContractStateDiff](s.a, NewContractState(s.connectionID, contractPort), Config{}, zaptest.NewLogger(s.T()))

	info, err := s.a.BlockInfo(ctx)
	s.Require().NoError(err)
	t.lastHeight = info.Height
	t.cfg.Label = info.ChainID
	return t
}

func (s *TrackerTestSuite) TestNewChannelRendersOnlyTheNewID() {
	ctx := context.Background()
	t := s.newTracker()

	first := s.createChannel(contractPort)
	update, changed := t.poll(ctx)
	s.Require().True(changed)
	s.Require().Equal(chainA, update.Label)
	s.Require().Equal([]string{first.ChannelA}, update.Diff.AddedChannels)
	s.Require().Equal("new_channel(s): ["+first.ChannelA+"]", update.Rendered)

	second := s.createChannel(contractPort)
	update, changed = t.poll(ctx)
	s.Require().True(changed)
	s.Require().Equal("new_channel(s): ["+second.ChannelA+"]", update.Rendered)
	s.Require().Len(t.State().ChannelIDs, 2)
}

func (s *TrackerTestSuite) TestOtherPortsAreIgnored() {
	ctx := context.Background()
	t := s.newTracker()

	s.createChannel(otherPort)
	_, changed := t.poll(ctx)
	s.Require().False(changed)
	s.Require().Empty(t.State().ChannelIDs)
}

func (s *TrackerTestSuite) TestNoChangeNoUpdate() {
	ctx := context.Background()
	t := s.newTracker()

	s.createChannel(contractPort)
	_, changed := t.poll(ctx)
	s.Require().True(changed)

	s.a.NextBlock()
	_, changed = t.poll(ctx)
	s.Require().False(changed)
}

func (s *TrackerTestSuite) TestNoRefreshWithoutNewBlock() {
	ctx := context.Background()
	t := s.newTracker()

	s.createChannel(contractPort)
	t.lastHeight = uint64(s.a.Height())

	_, changed := t.poll(ctx)
	s.Require().False(changed)
	s.Require().Empty(t.State().ChannelIDs)

	s.a.NextBlock()
	_, changed = t.poll(ctx)
	s.Require().True(changed)
	s.Require().Equal(uint64(s.a.Height()), t.lastHeight)
}

func (s *TrackerTestSuite) TestPacketLifecycle() {
	ctx := context.Background()
	t := s.newTracker()
	res := s.createChannel(contractPort)
	_, changed := t.poll(ctx)
	s.Require().True(changed)

	seq := s.sendPacket(res.ChannelA)
	update, changed := t.poll(ctx)
	s.Require().True(changed)
	s.Require().Equal(map[string][]uint64{res.ChannelA: {seq}}, update.Diff.AddedCommitments)
	s.Require().Contains(update.Rendered, fmt.Sprintf("received_packet(s): {%s: [%d]}", res.ChannelA, seq))
	s.Require().NotContains(update.Rendered, "new_channel(s)")

	_, err := s.ic.RelayPending(ctx)
	s.Require().NoError(err)

	update, changed = t.poll(ctx)
	s.Require().True(changed)
	s.Require().Equal(map[string][]uint64{res.ChannelA: {seq}}, update.Diff.RemovedCommitments)
	s.Require().Empty(update.Rendered)
	s.Require().Empty(t.State().CommittedPackets)
}

func (s *TrackerTestSuite) TestRunEmitsUpdatesAndStops() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := Spawn[ContractState, ContractStateDiff](ctx, s.a, NewContractState(s.connectionID, contractPort), Config{
		LogInterval: 10 * time.Millisecond,
		Label:       "contract",
	}, zaptest.NewLogger(s.T()))

	res := s.createChannel(contractPort)

	deadline := time.After(5 * time.Second)
	blocks := time.NewTicker(20 * time.Millisecond)
	defer blocks.Stop()
wait:
	for {
		select {
		case update := <-h.Updates():
			s.Require().Equal("contract", update.Label)
			s.Require().Equal("new_channel(s): ["+res.ChannelA+"]", update.Rendered)
			s.Require().Contains(update.String(), "Update diff: new_channel(s)")
			break wait
		case <-blocks.C:
			// the baseline may be taken after the handshake
			s.a.NextBlock()
		case <-deadline:
			s.FailNow("no update emitted")
		}
	}

	h.Stop()
	s.Require().NoError(h.Wait())
	_, open := <-h.Updates()
	s.Require().False(open)
}

type flakyClient struct {
	chain.Client
	failHeight bool
}

func (f *flakyClient) BlockHeight(ctx context.Context) (uint64, error) {
	if f.failHeight {
		return 0, errors.New("node unavailable")
	}
	return f.Client.BlockHeight(ctx)
}

func (s *TrackerTestSuite) TestPollErrorSkipsIteration() {
	ctx := context.Background()
	client := &flakyClient{Client: s.a, failHeight: true}
	t := New[ContractState, ContractStateDiff](client, NewContractState(s.connectionID, contractPort), Config{}, zaptest.NewLogger(s.T()))

	s.createChannel(contractPort)
	_, changed := t.poll(ctx)
	s.Require().False(changed)
	s.Require().Zero(t.lastHeight)

	client.failHeight = false
	_, changed = t.poll(ctx)
	s.Require().True(changed)
}

func TestRunFailsWithoutBaseline(t *testing.T) {
	tr := New[ContractState, ContractStateDiff](badInfoClient{simchain.NewChain(chainA, nil)}, NewContractState("connection-0", contractPort), Config{}, zaptest.NewLogger(t))
	require.Error(t, tr.Run(context.Background(), nil))
}

type badInfoClient struct {
	chain.Client
}

func (badInfoClient) BlockInfo(context.Context) (chain.BlockInfo, error) {
	return chain.BlockInfo{}, errors.New("node unavailable")
}

func TestContractStateDiffApply(t *testing.T) {
	old := NewContractState("connection-0", contractPort)
	old.ChannelIDs["channel-0"] = struct{}{}
	old.CommittedPackets["channel-0"] = toSet([]uint64{1, 2})

	next := NewContractState("connection-0", contractPort)
	next.ChannelIDs["channel-0"] = struct{}{}
	next.ChannelIDs["channel-1"] = struct{}{}
	next.CommittedPackets["channel-0"] = toSet([]uint64{2, 3})
	next.AcknowledgedPackets["channel-0"] = toSet([]uint64{2})

	diff := old.Diff(next)
	require.Equal(t, []string{"channel-1"}, diff.AddedChannels)
	require.Empty(t, diff.RemovedChannels)
	require.Equal(t, map[string][]uint64{"channel-0": {3}}, diff.AddedCommitments)
	require.Equal(t, map[string][]uint64{"channel-0": {1}}, diff.RemovedCommitments)

	require.True(t, old.Apply(diff).Equal(next))
	require.False(t, old.Equal(next))
	require.True(t, old.Diff(old).IsEmpty())

	require.Equal(t,
		"new_channel(s): [channel-1] received_packet(s): {channel-0: [3]} acknowledged_packet(s): {channel-0: [2]}",
		old.Identity().Apply(diff).String())

	// Apply leaves its receiver untouched.
	require.Len(t, old.ChannelIDs, 1)
	require.Empty(t, NewContractState("c", "p").String())
}
