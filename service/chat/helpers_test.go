package chat

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"PRelay/service/bus"
	"PRelay/service/storage"
)

// stepClock 每次调用前进 1ms，保证消息时间戳严格递增
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func newTestServer(t *testing.T, hist storage.HistoryStore, pub bus.Publisher, agents ...string) *Server {
	t.Helper()
	if hist == nil {
		hist = storage.NewMemoryHistory()
	}
	srv := NewServer(Options{
		GatewayID:     "test-gw",
		Agents:        agents,
		HistoryLimit:  50,
		SendQueueSize: 128,
		FanoutWorkers: 0, // 同步投递，断言时不用等
		UnauthTTL:     time.Hour,
		SweepEvery:    time.Hour,
		Clock:         newStepClock().Now,
	}, hist, nil, pub)
	t.Cleanup(srv.Close)
	return srv
}

func connect(t *testing.T, srv *Server) *Session {
	t.Helper()
	s := srv.NewSession("127.0.0.1")
	require.NoError(t, srv.Lifecycle().Connect(s))
	return s
}

func registered(t *testing.T, srv *Server, username string) *Session {
	t.Helper()
	s := connect(t, srv)
	require.NoError(t, srv.Lifecycle().Register(context.Background(), s, username))
	return s
}

// drain 取出当前队列里的全部出站帧
func drain(t *testing.T, s *Session) []Frame {
	t.Helper()
	var out []Frame
	for {
		select {
		case raw := <-s.Outbound():
			var f Frame
			require.NoError(t, json.Unmarshal(raw, &f))
			out = append(out, f)
		default:
			return out
		}
	}
}

func ofEvent(frames []Frame, event string) []Frame {
	var out []Frame
	for _, f := range frames {
		if f.Event == event {
			out = append(out, f)
		}
	}
	return out
}

func dataAs[T any](t *testing.T, f Frame) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(f.Data, &v))
	return v
}
