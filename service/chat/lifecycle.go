package chat

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"PRelay/module/chat/model"
	"PRelay/service/storage"
	"PRelay/tools/errs"

	"go.uber.org/zap"
)

// Lifecycle 连接状态机：Connect / Register / Disconnect。
// 同一会话的迁移在 Session.mu 下串行；注册与断开竞争时先拿到锁的一方生效。
// 注册表变更与对应的 presence 入队在 seq 下完成，所有接收方看到的上下线顺序
// 与注册表的变更顺序一致。加锁顺序：Session.mu -> seq -> Registry/Fanout。
type Lifecycle struct {
	seq sync.Mutex

	reg          *Registry
	conns        *ConnManager
	presence     *Presence
	mirror       storage.PresenceStore
	agents       AgentSet
	maxNameLen   int
	storeTimeout time.Duration
	log          *zap.Logger
}

type LifecycleConf struct {
	Agents         AgentSet
	MaxUsernameLen int
	StoreTimeout   time.Duration
}

func NewLifecycle(reg *Registry, conns *ConnManager, presence *Presence, mirror storage.PresenceStore, conf LifecycleConf, log *zap.Logger) *Lifecycle {
	if mirror == nil {
		mirror = storage.NopPresence{}
	}
	if conf.MaxUsernameLen <= 0 {
		conf.MaxUsernameLen = 64
	}
	if conf.StoreTimeout <= 0 {
		conf.StoreTimeout = 3 * time.Second
	}
	return &Lifecycle{
		reg:          reg,
		conns:        conns,
		presence:     presence,
		mirror:       mirror,
		agents:       conf.Agents,
		maxNameLen:   conf.MaxUsernameLen,
		storeTimeout: conf.StoreTimeout,
		log:          log,
	}
}

// Connect 新连接进入 Anonymous
func (l *Lifecycle) Connect(s *Session) error {
	return l.conns.Add(s)
}

func (l *Lifecycle) validate(username string) error {
	switch {
	case username == "":
		return errs.ErrInvalidUsername.WrapMsg("empty username")
	case utf8.RuneCountInString(username) > l.maxNameLen:
		return errs.ErrInvalidUsername.WrapMsg("username too long", "max", l.maxNameLen)
	case username == model.ReceiverAll || username == model.SelfLabel:
		return errs.ErrInvalidUsername.WrapMsg("reserved username", "username", username)
	}
	return nil
}

// Register Anonymous -> Registered。失败时仅向该连接回 register-rejected，注册表不变。
func (l *Lifecycle) Register(ctx context.Context, s *Session, username string) error {
	username = strings.TrimSpace(username)

	s.mu.Lock()
	defer s.mu.Unlock()

	l.seq.Lock()
	err := l.bindLocked(s, username)
	if err != nil {
		l.seq.Unlock()
		s.Emit(mustFrame(EventRegisterRejected, RejectPayload{Username: username, Reason: rejectReason(err)}))
		return err
	}
	s.Emit(mustFrame(EventRegistered, username))
	l.presence.Connected(s, username)
	l.presence.PushUserList()
	l.seq.Unlock()

	mctx, cancel := context.WithTimeout(ctx, l.storeTimeout)
	defer cancel()
	if merr := l.mirror.Online(mctx, username, s.ID()); merr != nil {
		l.log.Warn("presence mirror online failed", zap.String("username", username), zap.Error(merr))
	}
	return nil
}

func (l *Lifecycle) bindLocked(s *Session, username string) error {
	switch s.state {
	case StateClosed:
		return errs.ErrSessionClosed.WrapMsg("register", "snowID", s.id)
	case StateRegistered:
		return errs.ErrAlreadyRegistered.WrapMsg("register", "current", s.username)
	}
	if err := l.validate(username); err != nil {
		return err
	}
	role := l.agents.RoleOf(username)
	if err := l.reg.Register(username, s, role); err != nil {
		return err
	}
	s.state = StateRegistered
	s.username = username
	s.role = role
	return nil
}

func rejectReason(err error) string {
	if code, ok := errs.AsCode(err); ok {
		return code.Msg
	}
	return "rejected"
}

// Disconnect 幂等。Registered 的连接解除绑定并广播下线；Anonymous 的连接不产生任何通知。
// 返回该连接断开前是否已注册。
func (l *Lifecycle) Disconnect(ctx context.Context, s *Session) bool {
	s.mu.Lock()
	prev := s.state
	if prev == StateClosed {
		s.mu.Unlock()
		return false
	}
	s.state = StateClosed
	username := s.username
	l.conns.Remove(s)

	if prev == StateRegistered {
		l.seq.Lock()
		if _, ok := l.reg.RemoveIfBound(username, s); ok {
			l.presence.Disconnected(username)
			l.presence.PushUserList()
		}
		l.seq.Unlock()
		mctx, cancel := context.WithTimeout(ctx, l.storeTimeout)
		if err := l.mirror.Offline(mctx, username, s.ID()); err != nil {
			l.log.Warn("presence mirror offline failed", zap.String("username", username), zap.Error(err))
		}
		cancel()
	}
	s.mu.Unlock()

	s.shutdown()
	return prev == StateRegistered
}
