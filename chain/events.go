package chain

// ICS-04 event types and attribute keys indexed by the nodes.
const (
	EventTypeSendPacket          = "send_packet"
	EventTypeRecvPacket          = "recv_packet"
	EventTypeWriteAck            = "write_acknowledgement"
	EventTypeAcknowledgePacket   = "acknowledge_packet"
	EventTypeTimeoutPacket       = "timeout_packet"
	EventTypeChannelOpenInit     = "channel_open_init"
	EventTypeChannelOpenTry      = "channel_open_try"
	EventTypeChannelOpenAck      = "channel_open_ack"
	EventTypeChannelOpenConfirm  = "channel_open_confirm"
	EventTypeFungibleTokenPacket = "fungible_token_packet"

	AttributeKeyData             = "packet_data"
	AttributeKeyDataHex          = "packet_data_hex"
	AttributeKeyAck              = "packet_ack"
	AttributeKeyAckHex           = "packet_ack_hex"
	AttributeKeyTimeoutHeight    = "packet_timeout_height"
	AttributeKeyTimeoutTimestamp = "packet_timeout_timestamp"
	AttributeKeySequence         = "packet_sequence"
	AttributeKeySrcPort          = "packet_src_port"
	AttributeKeySrcChannel       = "packet_src_channel"
	AttributeKeyDstPort          = "packet_dst_port"
	AttributeKeyDstChannel       = "packet_dst_channel"
	AttributeKeyChannelOrdering  = "packet_channel_ordering"
	AttributeKeyConnectionID     = "connection_id"

	AttributeKeyPortID                = "port_id"
	AttributeKeyChannelID             = "channel_id"
	AttributeKeyCounterpartyPortID    = "counterparty_port_id"
	AttributeKeyCounterpartyChannelID = "counterparty_channel_id"
	AttributeKeyVersion               = "version"
)
