package storage

import (
	"context"
	"time"

	"github.com/srdtrk/ibc-packet-tracker/interchain"
	"github.com/srdtrk/ibc-packet-tracker/tracker"
)

// Sink persists what the tracker and the packet follower observe.
type Sink interface {
	PutUpdates(ctx context.Context, updates []UpdateRecord) error
	PutPacketOutcomes(ctx context.Context, outcomes []OutcomeRecord) error
}

// UpdateRecord is a tracker update.
type UpdateRecord struct {
	Label      string    `json:"label"`
	Height     uint64    `json:"height"`
	Rendered   string    `json:"rendered"`
	Diff       any       `json:"diff"`
	ObservedAt time.Time `json:"observed_at"`
}

// NewUpdateRecord converts a tracker update.
func NewUpdateRecord[D any](u tracker.Update[D], observedAt time.Time) UpdateRecord {
	return UpdateRecord{
		Label:      u.Label,
		Height:     u.Height,
		Rendered:   u.Rendered,
		Diff:       u.Diff,
		ObservedAt: observedAt.UTC(),
	}
}

// TxRecord identifies one transaction of a packet lifecycle.
type TxRecord struct {
	ChainID string `json:"chain_id"`
	TxHash  string `json:"tx_hash"`
	Height  int64  `json:"height"`
}

// OutcomeRecord is the classification of one packet.
type OutcomeRecord struct {
	SrcChainID string     `json:"src_chain_id"`
	SrcPort    string     `json:"src_port"`
	SrcChannel string     `json:"src_channel"`
	Sequence   string     `json:"sequence"`
	Kind       string     `json:"kind"`
	Ack        string     `json:"ack,omitempty"`
	Error      string     `json:"error,omitempty"`
	Txs        []TxRecord `json:"txs"`
	ObservedAt time.Time  `json:"observed_at"`
}

// NewOutcomeRecord converts an outcome of a packet sent from src.
func NewOutcomeRecord(src interchain.Port, outcome interchain.PacketOutcome, observedAt time.Time) OutcomeRecord {
	rec := OutcomeRecord{
		SrcChainID: src.ChainID,
		SrcPort:    src.Port,
		SrcChannel: src.Channel,
		Sequence:   outcome.Sequence(),
		Kind:       string(outcome.Kind()),
		ObservedAt: observedAt.UTC(),
	}

	switch o := outcome.(type) {
	case interchain.SuccessOutcome:
		rec.Ack = o.Ack.String()
	case interchain.ErrorOutcome:
		rec.Error = o.Error
	}

	for _, ref := range outcome.Txs() {
		if ref.Tx == nil {
			continue
		}
		rec.Txs = append(rec.Txs, TxRecord{ChainID: ref.ChainID, TxHash: ref.Tx.TxHash, Height: ref.Tx.Height})
	}
	return rec
}
