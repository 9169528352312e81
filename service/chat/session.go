package chat

import (
	"sync"
	"sync/atomic"
	"time"
)

// State 连接状态机：Anonymous -> Registered -> Closed（终态）
type State int32

const (
	StateAnonymous State = iota
	StateRegistered
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAnonymous:
		return "anonymous"
	case StateRegistered:
		return "registered"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Role 注册时由坐席白名单决定，之后不再变化
type Role int

const (
	RolePlainUser Role = iota
	RoleAgent
)

func (r Role) String() string {
	if r == RoleAgent {
		return "agent"
	}
	return "user"
}

// Session 每条连接一个。state/username/role 的迁移由 Lifecycle 在 mu 下完成；
// 出站帧走有界队列 send，由写协程消费。
type Session struct {
	id        string
	remote    string
	createdAt time.Time

	mu       sync.Mutex
	state    State
	username string
	role     Role

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	kick      func() // 传输层注入：关闭底层连接

	dropped  atomic.Int64
	lastSeen atomic.Int64 // unix nano
}

func NewSession(id, remote string, queueSize int, now time.Time) *Session {
	if queueSize <= 0 {
		queueSize = 1
	}
	s := &Session{
		id:        id,
		remote:    remote,
		createdAt: now,
		send:      make(chan []byte, queueSize),
		done:      make(chan struct{}),
	}
	s.lastSeen.Store(now.UnixNano())
	return s
}

func (s *Session) ID() string           { return s.id }
func (s *Session) Remote() string       { return s.remote }
func (s *Session) CreatedAt() time.Time { return s.createdAt }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Username 已注册时返回绑定的用户名
func (s *Session) Username() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username, s.state == StateRegistered
}

func (s *Session) Role() Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

// Emit 非阻塞入队；队列满或已关闭时丢弃并返回 false
func (s *Session) Emit(frame []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- frame:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// Outbound 写协程读取的队列
func (s *Session) Outbound() <-chan []byte { return s.send }

// Done 会话关闭后 close
func (s *Session) Done() <-chan struct{} { return s.done }

// Dropped 因队列满被丢弃的帧数
func (s *Session) Dropped() int64 { return s.dropped.Load() }

func (s *Session) Touch(now time.Time) { s.lastSeen.Store(now.UnixNano()) }

func (s *Session) LastSeen() time.Time { return time.Unix(0, s.lastSeen.Load()) }

// SetKick 由传输层设置，Kick 时调用
func (s *Session) SetKick(f func()) {
	s.mu.Lock()
	s.kick = f
	s.mu.Unlock()
}

// Kick 让传输层断开连接；随后读循环退出并走 Disconnect
func (s *Session) Kick() {
	s.mu.Lock()
	f := s.kick
	s.mu.Unlock()
	if f != nil {
		f()
	}
}

// shutdown 停止出站队列；幂等
func (s *Session) shutdown() {
	s.closeOnce.Do(func() { close(s.done) })
}
