package chat

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSession_EmitBounded(t *testing.T) {
	s := NewSession("1", "127.0.0.1", 2, time.Now())

	assert.True(t, s.Emit([]byte("a")))
	assert.True(t, s.Emit([]byte("b")))
	assert.False(t, s.Emit([]byte("c")), "full queue drops")
	assert.EqualValues(t, 1, s.Dropped())

	s.shutdown()
	s.shutdown()
	assert.False(t, s.Emit([]byte("d")))
}

func TestSession_DefaultsAndKick(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	s := NewSession("42", "10.0.0.1", 0, now)

	assert.Equal(t, StateAnonymous, s.State())
	assert.Equal(t, "anonymous", s.State().String())
	_, ok := s.Username()
	assert.False(t, ok)
	assert.Equal(t, now, s.CreatedAt())
	assert.Equal(t, now, s.LastSeen().UTC())

	s.Touch(now.Add(time.Minute))
	assert.Equal(t, now.Add(time.Minute), s.LastSeen().UTC())

	s.Kick() // 未设置时无操作
	var kicked atomic.Int32
	s.SetKick(func() { kicked.Add(1) })
	s.Kick()
	assert.EqualValues(t, 1, kicked.Load())
	assert.Equal(t, "agent", RoleAgent.String())
	assert.Equal(t, "closed", StateClosed.String())
}
