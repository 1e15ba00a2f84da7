package cosmos

import (
	"testing"

	"github.com/stretchr/testify/require"

	abci "github.com/cometbft/cometbft/abci/types"

	sdk "github.com/cosmos/cosmos-sdk/types"
	txtypes "github.com/cosmos/cosmos-sdk/types/tx"

	"github.com/srdtrk/ibc-packet-tracker/chain"
)

func TestFromSDKTxResponse(t *testing.T) {
	resp := &sdk.TxResponse{
		Height: 12,
		TxHash: "ABCD",
		Code:   5,
		RawLog: "out of gas",
		Events: []abci.Event{
			{
				Type: chain.EventTypeRecvPacket,
				Attributes: []abci.EventAttribute{
					{Key: chain.AttributeKeySequence, Value: "1", Index: true},
					{Key: chain.AttributeKeySequence, Value: "2", Index: true},
				},
			},
		},
	}

	tx := FromSDKTxResponse(resp)
	require.Equal(t, int64(12), tx.Height)
	require.Equal(t, "ABCD", tx.TxHash)
	require.Equal(t, uint32(5), tx.Code)
	require.Equal(t, "out of gas", tx.RawLog)
	require.False(t, tx.Succeeded())

	events := tx.GetEvents(chain.EventTypeRecvPacket)
	require.Len(t, events, 1)
	seq, found := events[0].FirstAttributeValue(chain.AttributeKeySequence)
	require.True(t, found)
	require.Equal(t, "1", seq)
}

func TestToOrderBy(t *testing.T) {
	require.Equal(t, txtypes.OrderBy_ORDER_BY_ASC, toOrderBy(chain.OrderByAsc))
	require.Equal(t, txtypes.OrderBy_ORDER_BY_DESC, toOrderBy(chain.OrderByDesc))
	require.Equal(t, txtypes.OrderBy_ORDER_BY_UNSPECIFIED, toOrderBy(chain.OrderByUnspecified))
}

func TestDialRequiresAddress(t *testing.T) {
	_, err := Dial("")
	require.Error(t, err)
}
