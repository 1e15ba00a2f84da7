package e2esuite

import (
	"context"

	dockerclient "github.com/moby/moby/client"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	interchaintest "github.com/cosmos/interchaintest/v11"
	"github.com/cosmos/interchaintest/v11/chain/cosmos"
	"github.com/cosmos/interchaintest/v11/ibc"
	"github.com/cosmos/interchaintest/v11/testreporter"

	cosmosclient "github.com/srdtrk/ibc-packet-tracker/cosmos"
	"github.com/srdtrk/ibc-packet-tracker/testvalues"
)

// PathName is the relayer path between ChainA and ChainB.
const PathName = "simd-path"

// TestSuite is a suite of tests that require two chains and a relayer
type TestSuite struct {
	suite.Suite

	ChainA  *cosmos.CosmosChain
	ChainB  *cosmos.CosmosChain
	UserA   ibc.Wallet
	UserB   ibc.Wallet
	Relayer ibc.Relayer
	ExecRep *testreporter.RelayerExecReporter

	// ClientA and ClientB query the chains over their host gRPC ports.
	ClientA *cosmosclient.Client
	ClientB *cosmosclient.Client

	dockerClient *dockerclient.Client
	network      string
	logger       *zap.Logger
}

// SetupSuite starts both chains and the relayer, opens a transfer channel
// between them and funds one user per chain.
func (s *TestSuite) SetupSuite(ctx context.Context) {
	cfg := loadSetupConfig()

	s.logger = zaptest.NewLogger(s.T())
	s.dockerClient, s.network = interchaintest.DockerSetup(s.T())

	cf := interchaintest.NewBuiltinChainFactory(s.logger, cfg.chainSpecs())
	chains, err := cf.Chains(s.T().Name())
	s.Require().NoError(err)
	s.Require().Len(chains, 2)

	s.ChainA = chains[0].(*cosmos.CosmosChain)
	s.ChainB = chains[1].(*cosmos.CosmosChain)

	s.Relayer = interchaintest.NewBuiltinRelayerFactory(ibc.CosmosRly, s.logger).Build(s.T(), s.dockerClient, s.network)
	s.ExecRep = testreporter.NewNopReporter().RelayerExecReporter(s.T())

	ic := interchaintest.NewInterchain().
		AddChain(s.ChainA).
		AddChain(s.ChainB).
		AddRelayer(s.Relayer, "rly").
		AddLink(interchaintest.InterchainLink{
			Chain1:  s.ChainA,
			Chain2:  s.ChainB,
			Relayer: s.Relayer,
			Path:    PathName,
		})

	s.Require().NoError(ic.Build(ctx, s.ExecRep, interchaintest.InterchainBuildOptions{
		TestName:         s.T().Name(),
		Client:           s.dockerClient,
		NetworkID:        s.network,
		SkipPathCreation: false,
	}))
	s.T().Cleanup(func() {
		_ = ic.Close()
	})

	s.Require().NoError(s.Relayer.StartRelayer(ctx, s.ExecRep, PathName))
	s.T().Cleanup(func() {
		_ = s.Relayer.StopRelayer(context.Background(), s.ExecRep)
	})

	users := interchaintest.GetAndFundTestUsers(s.T(), ctx, s.T().Name(), testvalues.StartingBalance, s.ChainA, s.ChainB)
	s.UserA, s.UserB = users[0], users[1]

	clients, err := RunParallelTasksWithResults(
		ParallelTaskWithResult[*cosmosclient.Client]{
			Name: s.ChainA.Config().ChainID,
			Run:  func() (*cosmosclient.Client, error) { return s.dial(s.ChainA) },
		},
		ParallelTaskWithResult[*cosmosclient.Client]{
			Name: s.ChainB.Config().ChainID,
			Run:  func() (*cosmosclient.Client, error) { return s.dial(s.ChainB) },
		},
	)
	s.Require().NoError(err)
	s.ClientA = clients[s.ChainA.Config().ChainID]
	s.ClientB = clients[s.ChainB.Config().ChainID]
}

func (s *TestSuite) dial(chain *cosmos.CosmosChain) (*cosmosclient.Client, error) {
	conn, err := cosmosclient.Dial(chain.GetHostGRPCAddress())
	if err != nil {
		return nil, err
	}
	s.T().Cleanup(func() {
		_ = conn.Close()
	})
	return cosmosclient.NewClient(conn, chain.Config().ChainID, s.logger), nil
}

// TransferChannels returns the transfer channel ends of both chains. Both are
// queried concurrently through the relayer.
func (s *TestSuite) TransferChannels(ctx context.Context) (ibc.ChannelOutput, ibc.ChannelOutput) {
	channels, err := RunParallelTasksWithResults(
		ParallelTaskWithResult[[]ibc.ChannelOutput]{
			Name: s.ChainA.Config().ChainID,
			Run: func() ([]ibc.ChannelOutput, error) {
				return s.Relayer.GetChannels(ctx, s.ExecRep, s.ChainA.Config().ChainID)
			},
		},
		ParallelTaskWithResult[[]ibc.ChannelOutput]{
			Name: s.ChainB.Config().ChainID,
			Run: func() ([]ibc.ChannelOutput, error) {
				return s.Relayer.GetChannels(ctx, s.ExecRep, s.ChainB.Config().ChainID)
			},
		},
	)
	s.Require().NoError(err)

	channelA := s.firstTransferChannel(channels[s.ChainA.Config().ChainID])
	channelB := s.firstTransferChannel(channels[s.ChainB.Config().ChainID])
	return channelA, channelB
}

func (s *TestSuite) firstTransferChannel(channels []ibc.ChannelOutput) ibc.ChannelOutput {
	for _, ch := range channels {
		if ch.PortID == "transfer" {
			return ch
		}
	}
	s.FailNow("no transfer channel found")
	return ibc.ChannelOutput{}
}

// Logger returns the suite logger.
func (s *TestSuite) Logger() *zap.Logger {
	return s.logger
}
