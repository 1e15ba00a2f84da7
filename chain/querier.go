package chain

import (
	"context"
	"fmt"
	"strings"

	errorsmod "cosmossdk.io/errors"
)

// TxQuerier searches finalized transactions by indexed events.
type TxQuerier interface {
	// FindTxsByEvents returns the transactions matching every filter. A search
	// without matches returns an empty slice and no error. A zero limit means
	// no bound.
	FindTxsByEvents(ctx context.Context, filters []string, order OrderBy, limit uint64) ([]*TxResponse, error)
}

// NodeQuerier exposes the latest block of a chain.
type NodeQuerier interface {
	BlockHeight(ctx context.Context) (uint64, error)
	BlockInfo(ctx context.Context) (BlockInfo, error)
}

// Querier is the read-only chain handle shared by followers and trackers.
type Querier interface {
	TxQuerier
	NodeQuerier
}

// IBCQuerier reads the ICS-04 channel store of a chain.
type IBCQuerier interface {
	ConnectionChannels(ctx context.Context, connectionID string) ([]IdentifiedChannel, error)
	PacketCommitments(ctx context.Context, portID, channelID string) ([]uint64, error)
	// PacketAcknowledgements returns the sequences with a stored acknowledgement,
	// restricted to sequences when it is not empty.
	PacketAcknowledgements(ctx context.Context, portID, channelID string, sequences []uint64) ([]uint64, error)
}

// Client is a Querier that can also read channel state.
type Client interface {
	Querier
	IBCQuerier
}

// Filter renders a single event predicate of the form type.key='value'.
func Filter(eventType, key, value string) string {
	return fmt.Sprintf("%s.%s='%s'", eventType, key, value)
}

// ParseFilter splits a type.key='value' predicate into its parts.
func ParseFilter(filter string) (eventType, key, value string, err error) {
	lhs, rhs, ok := strings.Cut(filter, "=")
	if !ok {
		return "", "", "", errorsmod.Wrapf(ErrInvalidFilter, "missing '=' in %q", filter)
	}

	dot := strings.LastIndex(lhs, ".")
	if dot <= 0 || dot == len(lhs)-1 {
		return "", "", "", errorsmod.Wrapf(ErrInvalidFilter, "expected type.key in %q", filter)
	}

	rhs = strings.TrimSpace(rhs)
	if len(rhs) < 2 || rhs[0] != '\'' || rhs[len(rhs)-1] != '\'' {
		return "", "", "", errorsmod.Wrapf(ErrInvalidFilter, "value must be single quoted in %q", filter)
	}

	return strings.TrimSpace(lhs[:dot]), strings.TrimSpace(lhs[dot+1:]), rhs[1 : len(rhs)-1], nil
}

// FindOneTxByEvents returns the single transaction matching filters.
func FindOneTxByEvents(ctx context.Context, q TxQuerier, filters []string) (*TxResponse, error) {
	txs, err := q.FindTxsByEvents(ctx, filters, OrderByUnspecified, 0)
	if err != nil {
		return nil, err
	}

	switch len(txs) {
	case 0:
		return nil, errorsmod.Wrapf(ErrNoTxFound, "filters: %s", strings.Join(filters, " AND "))
	case 1:
		return txs[0], nil
	default:
		return nil, errorsmod.Wrapf(ErrMultipleTxs, "%d txs match filters: %s", len(txs), strings.Join(filters, " AND "))
	}
}
