package chainconfig

import (
	interchaintest "github.com/cosmos/interchaintest/v11"
	"github.com/cosmos/interchaintest/v11/ibc"

	"github.com/srdtrk/ibc-packet-tracker/testvalues"
)

// DefaultImage is the ibc-go simd image both test chains run.
func DefaultImage() ibc.DockerImage {
	return ibc.DockerImage{
		Repository: testvalues.DefaultSimdImage,
		Version:    testvalues.DefaultSimdVersion,
		UIDGID:     "1025:1025",
	}
}

func IbcGoChainSpec(name, chainId string, image ibc.DockerImage) *interchaintest.ChainSpec {
	return &interchaintest.ChainSpec{
		ChainConfig: ibc.ChainConfig{
			Type:           "cosmos",
			Name:           name,
			ChainID:        chainId,
			Images:         []ibc.DockerImage{image},
			Bin:            "simd",
			Bech32Prefix:   "cosmos",
			Denom:          testvalues.DefaultDenom,
			GasPrices:      "0.00" + testvalues.DefaultDenom,
			GasAdjustment:  1.3,
			TrustingPeriod: "508h",
			NoHostMount:    false,
		},
	}
}
