package runtime

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	idspkg "github.com/drblury/magicbus/internal/runtime/ids"
	jsoncodec "github.com/drblury/magicbus/internal/runtime/jsoncodec"
)

func decodeRecord(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var rec map[string]any
	require.NoError(t, jsoncodec.Unmarshal(data, &rec))
	return rec
}

func TestReturnedMessageJSON(t *testing.T) {
	id := idspkg.NewCorrelationID()
	data, err := ReturnedMessage{Message: rock{Weight: 2}, CorrelationID: id}.MarshalJSON()
	require.NoError(t, err)

	rec := decodeRecord(t, data)
	assert.Equal(t, "returned", rec["kind"])
	assert.Equal(t, id, rec["correlation_id"])
	assert.Equal(t, "runtime.rock", rec["message_type"])
	assert.Equal(t, map[string]any{"Weight": float64(2)}, rec["message"])
	assert.NotContains(t, rec, "bus", "a nil bus has no name")

	postedAt, err := time.Parse(time.RFC3339Nano, rec["posted_at"].(string))
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), postedAt, time.Minute)
}

func TestFailedMessageJSON(t *testing.T) {
	data, err := FailedMessage{
		Handler:       newTestHandler("grumpy", nil),
		Message:       dog{Name: "rex"},
		Failure:       errors.New("bitten"),
		CorrelationID: "not-a-ulid",
	}.MarshalJSON()
	require.NoError(t, err)

	rec := decodeRecord(t, data)
	assert.Equal(t, "failed", rec["kind"])
	assert.Equal(t, "grumpy", rec["handler"])
	assert.Equal(t, "bitten", rec["error"])
	assert.NotContains(t, rec, "posted_at", "unparseable correlation ids carry no timestamp")
}

func TestReturnReceiptJSON(t *testing.T) {
	b, _ := newTestBus(t, WithName("receipts"))
	data, err := ReturnReceipt{Bus: b, Message: dog{}, Delivered: 3, CorrelationID: idspkg.NewCorrelationID()}.MarshalJSON()
	require.NoError(t, err)

	rec := decodeRecord(t, data)
	assert.Equal(t, "receipt", rec["kind"])
	assert.Equal(t, "receipts", rec["bus"])
	assert.Equal(t, float64(3), rec["delivered"])
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "<nil>", typeName(nil))
	assert.Equal(t, "runtime.dog", typeName(dog{}))
	assert.Equal(t, "*runtime.dog", typeName(&dog{}))
}
