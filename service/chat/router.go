package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"PRelay/module/chat/model"
	"PRelay/service/bus"
	"PRelay/service/storage"
	"PRelay/tools/errs"
	"PRelay/tools/safe"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Delivery Route 的结果；Live=false 表示接收方离线，只落库
type Delivery struct {
	Message    model.Message
	Live       bool
	Recipients int // 实际投递的连接数（不含回显）
}

type RouterConf struct {
	HistoryLimit int
	StoreTimeout time.Duration
	PublishQueue int
	Clock        func() time.Time
}

// Router 只读注册表；消息先落库（失败只记日志），再投递，最后发布到总线
type Router struct {
	reg     *Registry
	history storage.HistoryStore
	pub     bus.Publisher
	fanout  *Fanout
	conf    RouterConf
	log     *zap.Logger

	pubMu     sync.RWMutex
	pubQ      chan model.Message
	pubClosed bool
	pubDone   chan struct{}
}

func NewRouter(reg *Registry, history storage.HistoryStore, pub bus.Publisher, fanout *Fanout, conf RouterConf, log *zap.Logger) *Router {
	if conf.HistoryLimit <= 0 {
		conf.HistoryLimit = 50
	}
	if conf.StoreTimeout <= 0 {
		conf.StoreTimeout = 3 * time.Second
	}
	if conf.PublishQueue <= 0 {
		conf.PublishQueue = 1024
	}
	if conf.Clock == nil {
		conf.Clock = time.Now
	}
	r := &Router{
		reg:     reg,
		history: history,
		pub:     pub,
		fanout:  fanout,
		conf:    conf,
		log:     log,
		pubDone: make(chan struct{}),
	}
	if _, nop := pub.(bus.Nop); pub == nil || nop {
		r.pub = nil
		close(r.pubDone)
	} else {
		r.pubQ = make(chan model.Message, conf.PublishQueue)
		safe.Go("bus-publish", r.publishLoop)
	}
	return r
}

func newMessageID() string {
	// v7 按时间有序，时间戳相同时 ID 顺序与生成顺序一致
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// Route 发送者必须已注册。receiver 为用户名或 "all"。
func (r *Router) Route(ctx context.Context, s *Session, receiver, text string) (*Delivery, error) {
	sender, ok := s.Username()
	if !ok {
		return nil, errs.ErrNotRegistered.WrapMsg("private-message", "snowID", s.ID())
	}
	receiver = strings.TrimSpace(receiver)
	if receiver == "" {
		return nil, errs.ErrInvalidReceiver.WrapMsg("empty receiver", "sender", sender)
	}

	msg := model.Message{
		ID:        newMessageID(),
		Sender:    sender,
		Receiver:  receiver,
		Text:      text,
		Timestamp: r.conf.Clock().UTC(),
	}

	sctx, cancel := context.WithTimeout(ctx, r.conf.StoreTimeout)
	if err := r.history.Append(sctx, msg); err != nil {
		r.log.Warn("history append failed, delivering anyway",
			zap.String("id", msg.ID), zap.String("sender", sender), zap.String("receiver", receiver), zap.Error(err))
	}
	cancel()

	d := &Delivery{Message: msg}
	raw := mustFrame(EventMessage, msg)

	switch target, online := r.reg.Resolve(receiver); {
	case receiver == model.ReceiverAll:
		// 发送者那一份就是下面的回显
		others := exclude(r.reg.Sessions(), s)
		r.fanout.Broadcast(sender, others, raw)
		d.Live, d.Recipients = true, len(others)
	case online && target != s:
		target.Emit(raw)
		d.Live, d.Recipients = true, 1
	case online:
		// 发给自己：只投递一次（回显）
		d.Live = true
	}

	s.Emit(mustFrame(EventMessage, msg.Echo()))
	r.publish(msg)
	return d, nil
}

func exclude(all []*Session, s *Session) []*Session {
	out := all[:0]
	for _, x := range all {
		if x != s {
			out = append(out, x)
		}
	}
	return out
}

// History 已注册用户最近 HistoryLimit 条相关消息，时间升序
func (r *Router) History(ctx context.Context, s *Session) ([]model.Message, error) {
	username, ok := s.Username()
	if !ok {
		return nil, errs.ErrNotRegistered.WrapMsg("load-messages", "snowID", s.ID())
	}
	qctx, cancel := context.WithTimeout(ctx, r.conf.StoreTimeout)
	defer cancel()
	msgs, err := r.history.Query(qctx, username, r.conf.HistoryLimit)
	if err != nil {
		if _, coded := errs.AsCode(err); !coded {
			err = errs.ErrStore.WrapMsg(err.Error(), "username", username)
		}
		return nil, err
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	return msgs, nil
}

func (r *Router) publish(msg model.Message) {
	if r.pubQ == nil {
		return
	}
	r.pubMu.RLock()
	defer r.pubMu.RUnlock()
	if r.pubClosed {
		return
	}
	select {
	case r.pubQ <- msg:
	default:
		r.log.Warn("publish queue full, drop", zap.String("id", msg.ID))
	}
}

func (r *Router) publishLoop() {
	defer close(r.pubDone)
	for msg := range r.pubQ {
		ctx, cancel := context.WithTimeout(context.Background(), r.conf.StoreTimeout)
		// 单条发布 panic 不影响后续消息
		if err := safe.Call(func() error { return r.pub.Publish(ctx, msg) }); err != nil {
			r.log.Warn("bus publish failed", zap.String("id", msg.ID), zap.Error(err))
		}
		cancel()
	}
}

// Close 等待发布队列清空
func (r *Router) Close() {
	r.pubMu.Lock()
	if r.pubQ != nil && !r.pubClosed {
		close(r.pubQ)
	}
	r.pubClosed = true
	r.pubMu.Unlock()
	<-r.pubDone
}
