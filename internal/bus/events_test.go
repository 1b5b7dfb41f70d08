package bus

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionEventRoundTrip(t *testing.T) {
	ev := ConnectionEvent{
		Kind:      EventOpened,
		SessionID: "sess-1",
		Peer:      "127.0.0.1:1234",
		At:        time.Unix(0, 0).UTC(),
	}
	body, err := json.Marshal(ev)
	require.NoError(t, err)

	var decoded ConnectionEvent
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, ev, decoded)
}

func TestSubscriberHandlerDeliversDecodedEvent(t *testing.T) {
	var got ConnectionEvent
	h := &subscriberHandler{handle: func(ev ConnectionEvent) { got = ev }}

	body, err := json.Marshal(ConnectionEvent{Kind: EventClosed, SessionID: "sess-2", Cause: "eof"})
	require.NoError(t, err)

	require.NoError(t, h.HandleMessage(&nsq.Message{Body: body}))
	assert.Equal(t, EventClosed, got.Kind)
	assert.Equal(t, "sess-2", got.SessionID)
	assert.Equal(t, "eof", got.Cause)
}

func TestSubscriberHandlerRejectsMalformedBody(t *testing.T) {
	h := &subscriberHandler{handle: func(ConnectionEvent) {
		t.Fatal("handle must not be called for malformed input")
	}}
	err := h.HandleMessage(&nsq.Message{Body: []byte("not json")})
	assert.Error(t, err)
}
