package chain

import (
	"time"

	abci "github.com/cometbft/cometbft/abci/types"
)

// OrderBy is the ordering hint passed to transaction searches.
type OrderBy int

const (
	OrderByUnspecified OrderBy = iota
	OrderByAsc
	OrderByDesc
)

func (o OrderBy) String() string {
	switch o {
	case OrderByAsc:
		return "asc"
	case OrderByDesc:
		return "desc"
	default:
		return "unspecified"
	}
}

// EventAttribute is a single key/value pair of an emitted event.
type EventAttribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event is one event emitted by a transaction. Attribute keys may repeat.
type Event struct {
	Type       string           `json:"type"`
	Attributes []EventAttribute `json:"attributes"`
}

// FirstAttributeValue returns the value of the first attribute matching key.
func (e Event) FirstAttributeValue(key string) (string, bool) {
	for _, attr := range e.Attributes {
		if attr.Key == key {
			return attr.Value, true
		}
	}
	return "", false
}

// HasAttribute reports whether any attribute (not only the first) matches key and value.
func (e Event) HasAttribute(key, value string) bool {
	for _, attr := range e.Attributes {
		if attr.Key == key && attr.Value == value {
			return true
		}
	}
	return false
}

// TxResponse is a finalized transaction as returned by a node.
type TxResponse struct {
	Height    int64   `json:"height"`
	TxHash    string  `json:"txhash"`
	Codespace string  `json:"codespace,omitempty"`
	Code      uint32  `json:"code"`
	RawLog    string  `json:"raw_log"`
	Timestamp string  `json:"timestamp"`
	Events    []Event `json:"events"`
}

// GetEvents returns all events of the given type, in emission order.
func (tx *TxResponse) GetEvents(eventType string) []Event {
	var events []Event
	for _, ev := range tx.Events {
		if ev.Type == eventType {
			events = append(events, ev)
		}
	}
	return events
}

// Succeeded reports whether the transaction was executed with code 0.
func (tx *TxResponse) Succeeded() bool {
	return tx.Code == 0
}

// BlockInfo describes the latest block of a chain.
type BlockInfo struct {
	Height  uint64
	Time    time.Time
	ChainID string
}

// ChannelStateOpen is the string form of an open channel end.
const ChannelStateOpen = "STATE_OPEN"

// IdentifiedChannel is a channel end together with its identifiers.
type IdentifiedChannel struct {
	PortID                string
	ChannelID             string
	CounterpartyPortID    string
	CounterpartyChannelID string
	ConnectionHops        []string
	State                 string
	Version               string
}

func (c IdentifiedChannel) IsOpen() bool {
	return c.State == ChannelStateOpen
}

// EventsFromABCI converts cometbft events into the package representation.
func EventsFromABCI(events []abci.Event) []Event {
	converted := make([]Event, 0, len(events))
	for _, ev := range events {
		attrs := make([]EventAttribute, 0, len(ev.Attributes))
		for _, attr := range ev.Attributes {
			attrs = append(attrs, EventAttribute{Key: attr.Key, Value: attr.Value})
		}
		converted = append(converted, Event{Type: ev.Type, Attributes: attrs})
	}
	return converted
}
