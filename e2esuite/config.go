package e2esuite

import (
	"os"
	"strconv"
	"strings"

	interchaintest "github.com/cosmos/interchaintest/v11"
	"github.com/cosmos/interchaintest/v11/ibc"

	"github.com/srdtrk/ibc-packet-tracker/chainconfig"
	"github.com/srdtrk/ibc-packet-tracker/testvalues"
)

func envInt(key string, defaultVal int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return defaultVal
}

// envImage parses repository:tag, falling back to the default simd image.
func envImage(key string) ibc.DockerImage {
	image := chainconfig.DefaultImage()
	v := os.Getenv(key)
	if v == "" {
		return image
	}

	repo, tag, ok := strings.Cut(v, ":")
	image.Repository = repo
	if ok {
		image.Version = tag
	}
	return image
}

// setupConfig holds the environment driven settings of the suite.
type setupConfig struct {
	imageA        ibc.DockerImage
	imageB        ibc.DockerImage
	numValidators int
}

func loadSetupConfig() setupConfig {
	return setupConfig{
		imageA:        envImage(testvalues.EnvKeyChainAImage),
		imageB:        envImage(testvalues.EnvKeyChainBImage),
		numValidators: envInt(testvalues.EnvKeyNumValidators, 1),
	}
}

func (c setupConfig) chainSpecs() []*interchaintest.ChainSpec {
	specA := chainconfig.IbcGoChainSpec("ibc-go-simd-1", testvalues.DefaultChainAID, c.imageA)
	specB := chainconfig.IbcGoChainSpec("ibc-go-simd-2", testvalues.DefaultChainBID, c.imageB)

	numFullNodes := 0
	for _, spec := range []*interchaintest.ChainSpec{specA, specB} {
		spec.NumValidators = &c.numValidators
		spec.NumFullNodes = &numFullNodes
	}
	return []*interchaintest.ChainSpec{specA, specB}
}

// Enabled reports whether the docker backed tests should run.
func Enabled() bool {
	return os.Getenv(testvalues.EnvKeyE2EEnabled) == "true"
}
