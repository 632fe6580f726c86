package natspub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"event-aggregator/internal/domain"

	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func startTestNATS(t *testing.T) string {
	t.Helper()
	opts := &natsserver.Options{Host: "127.0.0.1", Port: -1}
	srv, err := natsserver.NewServer(opts)
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}
	return srv.ClientURL()
}

func TestPublisher_EventStored(t *testing.T) {
	url := startTestNATS(t)

	sub, err := nats.Connect(url)
	require.NoError(t, err)
	defer sub.Close()
	msgs := make(chan *nats.Msg, 4)
	s, err := sub.ChanSubscribe("events.stored.>", msgs)
	require.NoError(t, err)
	defer s.Unsubscribe()
	require.NoError(t, sub.Flush())

	pub, err := New(url, "", zaptest.NewLogger(t))
	require.NoError(t, err)
	defer pub.Close()

	ev := domain.Event{
		Topic:      "payment.processed",
		EventID:    "evt-1",
		Source:     "payment-service-01",
		OccurredAt: time.Date(2025, 12, 12, 10, 0, 0, 0, time.UTC),
		StoredAt:   time.Date(2025, 12, 12, 10, 0, 1, 0, time.UTC),
		SequenceID: 7,
		Payload:    json.RawMessage(`{"amount":100}`),
	}
	pub.EventStored(context.Background(), ev)

	select {
	case m := <-msgs:
		require.Equal(t, "events.stored.payment_processed", m.Subject)
		var got Message
		require.NoError(t, json.Unmarshal(m.Data, &got))
		require.Equal(t, "evt-1", got.EventID)
		require.Equal(t, "payment.processed", got.Topic)
		require.EqualValues(t, 7, got.SequenceID)
		require.JSONEq(t, `{"amount":100}`, string(got.Payload))
	case <-time.After(5 * time.Second):
		t.Fatal("no message received")
	}
}

func TestPublisher_StubIsNoop(t *testing.T) {
	pub, err := New("", "", nil)
	require.NoError(t, err)
	pub.EventStored(context.Background(), domain.Event{Topic: "t", EventID: "e"})
	pub.Close()

	var nilPub *Publisher
	nilPub.EventStored(context.Background(), domain.Event{})
}

func TestPublisher_ConnectFails(t *testing.T) {
	_, err := New("nats://127.0.0.1:1", "", nil)
	require.Error(t, err)
}

func TestSubject(t *testing.T) {
	p := &Publisher{prefix: "events.stored"}
	cases := map[string]string{
		"orders":     "events.stored.orders",
		"a.b":        "events.stored.a_b",
		"with space": "events.stored.with_space",
		"wild*card>": "events.stored.wild_card_",
		"":           "events.stored._",
		"payment-v2": "events.stored.payment-v2",
	}
	for in, want := range cases {
		require.Equal(t, want, p.Subject(in), in)
	}
}
