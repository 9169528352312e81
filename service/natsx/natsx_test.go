package natsx

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PRelay/tools/errs"
)

func TestNatsxConfig_Norm(t *testing.T) {
	cfg := NatsxConfig{Servers: []string{"nats://localhost:4222"}}
	cfg.norm()
	assert.Equal(t, 500*time.Millisecond, cfg.ReconnectWait)
	assert.Equal(t, 3*time.Second, cfg.Timeout)
	assert.Equal(t, 4096, cfg.PublishAsyncMax)

	assert.Len(t, cfg.options(), 5)
	cfg.User, cfg.Password = "nats", "secret"
	assert.Len(t, cfg.options(), 6)
}

func TestNewNatsxClient_NoServers(t *testing.T) {
	_, err := NewNatsxClient(NatsxConfig{})
	assert.Error(t, err)
}

func TestRoutes(t *testing.T) {
	c := &NatsxClient{routes: map[string]NatsxRoute{}}
	assert.ErrorIs(t, c.RegisterRoute(NatsxRoute{Biz: "message"}), errs.ErrArgs)

	require.NoError(t, c.RegisterRoute(NatsxRoute{Biz: "message", Subject: "relay.message"}))
	r, ok := c.route("message")
	require.True(t, ok)
	assert.Equal(t, "relay.message", r.Subject)

	err := NewNatsxProducer(c).Publish(context.Background(), "missing", nil, nil)
	assert.ErrorIs(t, err, errs.ErrArgs)
}

func TestNewMsg_Headers(t *testing.T) {
	m := newMsg("relay.message", []byte("x"), map[string]string{"gateway": "relay-1"})
	assert.Equal(t, "relay.message", m.Subject)
	assert.Equal(t, "relay-1", m.Header.Get("gateway"))
}

func TestSyncPublisher_RetriesThenFails(t *testing.T) {
	c := &NatsxClient{routes: map[string]NatsxRoute{}}
	sp := &NatsxSyncPublisher{P: NewNatsxProducer(c), Retries: 2, Backoff: time.Millisecond}

	err := sp.Publish(context.Background(), "missing", []byte("x"), nil)
	assert.ErrorIs(t, err, errs.ErrArgs)
}

func TestParseMode(t *testing.T) {
	cases := map[string]NatsxMode{"": Core, "core": Core, " CORE ": Core, "jetstream": JetStream, "js": JetStream}
	for in, want := range cases {
		got, err := ParseMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseMode("pull")
	assert.ErrorIs(t, err, errs.ErrArgs)
	assert.Equal(t, "jetstream", JetStream.String())
	assert.Equal(t, "core", Core.String())
}

// 需要开启 JetStream 的 nats-server，例如：
//
//	PRELAY_TEST_NATS_URL=nats://localhost:4222 go test ./service/natsx/...
func TestJetStreamPublish(t *testing.T) {
	url := os.Getenv("PRELAY_TEST_NATS_URL")
	if url == "" {
		t.Skip("PRELAY_TEST_NATS_URL not set")
	}
	c, err := NewNatsxClient(NatsxConfig{Servers: []string{url}, Name: "prelay-test"})
	require.NoError(t, err)
	defer c.Close()

	stream := fmt.Sprintf("PRELAY_TEST_%d", time.Now().UnixNano())
	subject := "prelay.test." + stream
	require.NoError(t, c.RegisterRoute(NatsxRoute{Biz: "message", Subject: subject, Mode: JetStream, Stream: stream}))
	defer func() { _ = c.js.DeleteStream(stream) }()

	// 已存在的 stream 不重复创建
	require.NoError(t, c.RegisterRoute(NatsxRoute{Biz: "message", Subject: subject, Mode: JetStream, Stream: stream}))

	p := &NatsxSyncPublisher{P: NewNatsxProducer(c), Retries: 1, Backoff: 10 * time.Millisecond}
	require.NoError(t, p.Publish(context.Background(), "message", []byte(`{"text":"hi"}`), map[string]string{"gateway": "relay-1"}))

	info, err := c.js.StreamInfo(stream)
	require.NoError(t, err)
	assert.EqualValues(t, 1, info.State.Msgs)
}
