package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PRelay/module/chat/model"
	"PRelay/tools/errs"
)

func msgAt(base time.Time, i int, sender, receiver string) model.Message {
	return model.Message{
		ID:        uuid.NewString(),
		Sender:    sender,
		Receiver:  receiver,
		Text:      fmt.Sprintf("m%02d", i),
		Timestamp: base.Add(time.Duration(i) * time.Second),
	}
}

func TestScheme(t *testing.T) {
	cases := map[string]string{
		"":                          SchemeMemory,
		"  ":                        SchemeMemory,
		"memory://":                 SchemeMemory,
		"mongodb://localhost:27017": SchemeMongo,
		"mongodb+srv://cluster/x":   SchemeMongoSRV,
		"POSTGRES://u@h/db":         SchemePostgres,
		"postgresql://u@h/db":       SchemePostgreSQL,
		"redis://localhost:6379/0":  SchemeRedis,
		"localhost:27017":           "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Scheme(in), in)
	}
}

func TestOpen_MemoryAndUnsupported(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, "", Options{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryHistory{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, "mysql://root@localhost/chat", Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrStoreConfig)

	_, err = Open(ctx, "not a uri", Options{})
	assert.ErrorIs(t, err, errs.ErrStoreConfig)
}

func TestLatestAndReverse(t *testing.T) {
	base := time.Now()
	var msgs []model.Message
	for i := 0; i < 5; i++ {
		msgs = append(msgs, msgAt(base, i, "a", "b"))
	}
	got := latest(msgs, 3)
	require.Len(t, got, 3)
	assert.Equal(t, "m02", got[0].Text)
	assert.Equal(t, "m04", got[2].Text)

	assert.Len(t, latest(msgs, 0), 5)

	rev := reverse(append([]model.Message(nil), msgs...))
	assert.Equal(t, "m04", rev[0].Text)
	assert.Equal(t, "m00", rev[4].Text)
}

func TestParticipants(t *testing.T) {
	assert.Equal(t, []string{"Bob", "Carol"}, participants(&model.Message{Sender: "Bob", Receiver: "Carol"}))
	assert.Equal(t, []string{"Bob"}, participants(&model.Message{Sender: "Bob", Receiver: "Bob"}))
}

func TestRedisKeys(t *testing.T) {
	assert.Equal(t, "im:hist:Bob", historyKey("Bob"))
	assert.Equal(t, "im:presence:Bob", presenceKey("Bob"))
	assert.Equal(t, "im:node:relay-1", nodeIndexKey("relay-1"))
	assert.Equal(t, "relay-1|42", presenceValue("relay-1", "42"))
}

// runHistoryContract 所有后端共享的行为约束
func runHistoryContract(t *testing.T, s HistoryStore) {
	ctx := context.Background()
	user := "u-" + uuid.NewString()[:8]
	base := time.Now().Add(-time.Hour).Truncate(time.Millisecond)

	// Given: 51 messages involving user, appended out of order, plus noise
	for i := 50; i >= 0; i-- {
		if i%2 == 0 {
			require.NoError(t, s.Append(ctx, msgAt(base, i, user, "peer")))
		} else {
			require.NoError(t, s.Append(ctx, msgAt(base, i, "peer", user)))
		}
	}
	require.NoError(t, s.Append(ctx, msgAt(base, 99, "x-"+user, "y-"+user)))

	// When
	got, err := s.Query(ctx, user, 50)

	// Then: latest 50, ascending
	require.NoError(t, err)
	require.Len(t, got, 50)
	assert.Equal(t, "m01", got[0].Text)
	assert.Equal(t, "m50", got[49].Text)
	for i := 1; i < len(got); i++ {
		assert.False(t, got[i].Timestamp.Before(got[i-1].Timestamp), "ascending at %d", i)
	}

	none, err := s.Query(ctx, "nobody-"+user, 50)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryHistory_Contract(t *testing.T) {
	runHistoryContract(t, NewMemoryHistory())
}

func TestMemoryHistory_TiesOrderedByID(t *testing.T) {
	s := NewMemoryHistory()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, s.Append(ctx, model.Message{ID: "b", Sender: "Bob", Receiver: "Carol", Timestamp: now}))
	require.NoError(t, s.Append(ctx, model.Message{ID: "a", Sender: "Carol", Receiver: "Bob", Timestamp: now}))

	got, err := s.Query(ctx, "Bob", 50)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestMemoryHistory_ClosedAndCanceled(t *testing.T) {
	s := NewMemoryHistory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Append(ctx, model.Message{ID: "1"})
	assert.ErrorIs(t, err, errs.ErrStore)

	require.NoError(t, s.Close())
	err = s.Append(context.Background(), model.Message{ID: "2"})
	assert.ErrorIs(t, err, errs.ErrStore)
	assert.Equal(t, 0, s.Len())
	_, err = s.Query(context.Background(), "Bob", 10)
	assert.ErrorIs(t, err, errs.ErrStore)
}

// 外部后端仅在提供连接串时运行，例如：
//   PRELAY_TEST_MONGO_URI=mongodb://localhost:27017 go test ./service/storage/...
func openFromEnv(t *testing.T, env string) HistoryStore {
	uri := os.Getenv(env)
	if uri == "" {
		t.Skipf("%s not set", env)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s, err := Open(ctx, uri, Options{Database: "prelay_test", Timeout: 10 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMongoHistory_Contract(t *testing.T) {
	runHistoryContract(t, openFromEnv(t, "PRELAY_TEST_MONGO_URI"))
}

func TestPgHistory_Contract(t *testing.T) {
	runHistoryContract(t, openFromEnv(t, "PRELAY_TEST_PG_URI"))
}

func TestRedisHistory_Contract(t *testing.T) {
	runHistoryContract(t, openFromEnv(t, "PRELAY_TEST_REDIS_URI"))
}
