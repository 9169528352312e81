package chat

import (
	"sync"
	"time"

	"PRelay/logger"
	"PRelay/tools/errs"
	"PRelay/tools/safe"

	"go.uber.org/zap"
)

// ===== 配置 =====

type ManagerConf struct {
	UnauthTTL  time.Duration    // 未注册连接的存活上限
	SweepEvery time.Duration    // 清理周期
	Clock      func() time.Time // 可注入时钟（单测用）；nil => time.Now
}

func (c *ManagerConf) norm() {
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = 30 * time.Second
	}
	if c.UnauthTTL <= 0 {
		c.UnauthTTL = 300 * time.Second
	}
}

// ConnManager 本节点所有连接（含未注册），负责 presence 广播与未注册超时清理
type ConnManager struct {
	mu     sync.RWMutex
	bySnow map[string]*Session // snowID -> session

	conf     ManagerConf
	fanout   *Fanout
	stopOnce sync.Once
	stopCh   chan struct{}
	gwId     string // 节点ID
}

func NewConnManager(conf ManagerConf, gwId string, fanout *Fanout) *ConnManager {
	conf.norm()
	m := &ConnManager{
		bySnow: make(map[string]*Session),
		conf:   conf,
		fanout: fanout,
		gwId:   gwId,
		stopCh: make(chan struct{}),
	}
	safe.Go("conn-sweeper", m.sweeper)
	return m
}

func (m *ConnManager) GwId() string { return m.gwId }

func (m *ConnManager) Now() time.Time { return m.conf.Clock() }

// Add 新连接登记（未注册）
func (m *ConnManager) Add(s *Session) error {
	if s == nil || s.ID() == "" {
		return errs.ErrArgs.WrapMsg("session/snowID empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.bySnow[s.ID()]; exists {
		return errs.ErrArgs.WrapMsg("snowID exists", "snowID", s.ID())
	}
	m.bySnow[s.ID()] = s
	return nil
}

// Remove 幂等
func (m *ConnManager) Remove(s *Session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.bySnow[s.ID()]; ok && cur == s {
		delete(m.bySnow, s.ID())
		return true
	}
	return false
}

func (m *ConnManager) Get(snowID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.bySnow[snowID]
	return s, ok
}

func (m *ConnManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bySnow)
}

// Except 除 exclude 外的所有连接快照（exclude 可为 nil）
func (m *ConnManager) Except(exclude *Session) []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.bySnow))
	for _, s := range m.bySnow {
		if s != exclude {
			out = append(out, s)
		}
	}
	return out
}

// BroadcastExcept 向除 exclude 外的所有连接投递
func (m *ConnManager) BroadcastExcept(key string, exclude *Session, frame []byte) {
	m.fanout.Broadcast(key, m.Except(exclude), frame)
}

// KickAllUnauth 踢出所有未注册连接
func (m *ConnManager) KickAllUnauth() int {
	return m.kickUnauth(func(*Session) bool { return true })
}

func (m *ConnManager) kickUnauth(match func(*Session) bool) int {
	// 先取快照再读状态：Session.mu 必须在 m.mu 之外获取（Disconnect 持 Session.mu 调 Remove）
	var victims []*Session
	for _, s := range m.Except(nil) {
		if s.State() == StateAnonymous && match(s) {
			victims = append(victims, s)
		}
	}

	// Disconnect 会回调 Remove
	for _, s := range victims {
		s.Kick()
	}
	return len(victims)
}

// ===== 清理协程 =====

func (m *ConnManager) sweeper() {
	t := time.NewTicker(m.conf.SweepEvery)
	defer t.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-t.C:
			m.sweepOnce(m.conf.Clock())
		}
	}
}

func (m *ConnManager) sweepOnce(now time.Time) int {
	n := m.kickUnauth(func(s *Session) bool {
		return now.Sub(s.CreatedAt()) > m.conf.UnauthTTL
	})
	if n > 0 {
		logger.Info("[ConnManager] kicked idle unregistered connections", zap.Int("count", n), zap.String("gw", m.gwId))
	}
	return n
}

// Close 停止清理协程并断开所有连接
func (m *ConnManager) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
	for _, s := range m.Except(nil) {
		s.Kick()
	}
}
