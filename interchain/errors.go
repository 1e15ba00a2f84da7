package interchain

import (
	"fmt"

	errorsmod "cosmossdk.io/errors"

	"github.com/srdtrk/ibc-packet-tracker/chain"
)

const codespace = "interchain"

var (
	ErrUnknownChain         = errorsmod.Register(codespace, 2, "chain is not an endpoint of the channel")
	ErrChannelNotBound      = errorsmod.Register(codespace, 3, "channel id is not bound on endpoint")
	ErrChannelAlreadyBound  = errorsmod.Register(codespace, 4, "endpoint is already bound to another channel")
	ErrInvalidChannel       = errorsmod.Register(codespace, 5, "invalid channel")
	ErrTxFailed             = errorsmod.Register(codespace, 6, "transaction failed on chain")
	ErrNoNewChannelCreation = errorsmod.Register(codespace, 7, "no new channel creation found")
	ErrMissingEvent         = errorsmod.Register(codespace, 8, "expected event not found in transaction")

	// Re-exported so callers only need this package to classify follower errors.
	ErrNoTxFound   = chain.ErrNoTxFound
	ErrMultipleTxs = chain.ErrMultipleTxs
)

// TxFailedError reports a leg of the packet lifecycle that was executed with a non-zero code.
type TxFailedError struct {
	ChainID string
	TxHash  string
	Code    uint32
	Reason  string
}

func (e *TxFailedError) Error() string {
	return fmt.Sprintf("%s: tx %s with code %d: %s", ErrTxFailed.Error(), e.TxHash, e.Code, e.Reason)
}

func (e *TxFailedError) Unwrap() error {
	return ErrTxFailed
}

func newTxFailedError(chainID string, tx *chain.TxResponse) *TxFailedError {
	return &TxFailedError{
		ChainID: chainID,
		TxHash:  tx.TxHash,
		Code:    tx.Code,
		Reason:  fmt.Sprintf("Raw log on %s : %s", chainID, tx.RawLog),
	}
}
