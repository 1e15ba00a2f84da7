package chain

import (
	errorsmod "cosmossdk.io/errors"
)

const codespace = "chainquery"

var (
	// ErrQuery wraps transport and decoding failures of the node.
	ErrQuery = errorsmod.Register(codespace, 2, "chain query failed")
	// ErrNoTxFound is returned when exactly one transaction was expected and none matched yet.
	ErrNoTxFound = errorsmod.Register(codespace, 3, "no transaction found")
	// ErrMultipleTxs is returned when exactly one transaction was expected and several matched.
	ErrMultipleTxs = errorsmod.Register(codespace, 4, "multiple transactions found")

	ErrInvalidFilter = errorsmod.Register(codespace, 5, "invalid event filter")
)
