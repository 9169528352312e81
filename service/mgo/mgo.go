package mgo

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"PRelay/data/database/mgo/mongoutil"
	"PRelay/logger"
	"PRelay/tools/errs"
	"PRelay/tools/safe"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	baseBackoff = 200 * time.Millisecond
	maxBackoff  = 5 * time.Second
	healthEvery = 10 * time.Second // 健康检查周期
	failThresh  = 3                // 连续失败阈值
)

// MongoManager 后台保持一个 MongoDB 连接：首次连上 close readyCh，掉线自动重连
type MongoManager struct {
	cfg *mongoutil.Config

	mu        sync.RWMutex
	client    *mongoutil.Client
	readyCh   chan struct{} // 首次就绪通知；只会被 close 一次
	readyOnce sync.Once
	// OnConnect 每次（重）连接成功后调用，例如建索引
	OnConnect func(ctx context.Context, db *mongo.Database) error

	errMu   sync.RWMutex
	lastErr error // 连接与 ping 的错误类型不同，不能用 atomic.Value
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewManager(cfg *mongoutil.Config) *MongoManager {
	return &MongoManager{
		cfg:     cfg,
		readyCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// StartAsync 一直运行到 ctx.Done() 或 Close()
func (m *MongoManager) StartAsync(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)

	safe.Go("mgo-keeper", func() {
		defer close(m.done)
		for {
			if !m.connect(ctx) {
				return
			}
			m.health(ctx)
			if ctx.Err() != nil {
				return
			}
		}
	})
}

// connect 带退避重试；ctx 结束返回 false
func (m *MongoManager) connect(ctx context.Context) bool {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return false
		}
		cli, err := mongoutil.NewMongoDB(ctx, m.cfg)
		if err == nil && m.OnConnect != nil {
			if herr := m.OnConnect(ctx, cli.GetDB()); herr != nil {
				logger.Warn("[mgo] on-connect hook failed", zap.Error(herr))
			}
		}
		if err == nil {
			m.mu.Lock()
			m.client = cli
			m.mu.Unlock()
			m.readyOnce.Do(func() { close(m.readyCh) })
			logger.Info("[mgo] connected", zap.String("database", m.cfg.Database))
			return true
		}

		m.setErr(err)
		logger.Warn("[mgo] connect failed", zap.Int("attempt", attempt), zap.Error(err))

		// 退避 + 抖动
		backoff := baseBackoff << attempt
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		jitter := time.Duration(rand.Int63n(int64(backoff / 5))) // 0~20%
		timer := time.NewTimer(backoff - jitter/2)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
		if attempt < 6 {
			attempt++
		}
	}
}

// health 保持连接；连续失败或 ctx 结束时断开并返回
func (m *MongoManager) health(ctx context.Context) {
	fail := 0
	ticker := time.NewTicker(healthEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			m.drop()
			return
		case <-ticker.C:
			c, ok := m.current()
			if !ok {
				return
			}
			pctx, cancel := context.WithTimeout(ctx, healthEvery/2)
			err := c.GetDB().Client().Ping(pctx, nil)
			cancel()
			if err == nil {
				fail = 0
				continue
			}
			fail++
			m.setErr(err)
			if fail >= failThresh {
				logger.Warn("[mgo] connection lost, reconnecting", zap.Error(err))
				m.drop()
				return
			}
		}
	}
}

func (m *MongoManager) current() (*mongoutil.Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.client, m.client != nil
}

func (m *MongoManager) drop() {
	m.mu.Lock()
	c := m.client
	m.client = nil
	m.mu.Unlock()
	if c != nil {
		_ = c.Disconnect(context.Background())
	}
}

// Ready 首次连接成功时会 close；可 select 等待
func (m *MongoManager) Ready() <-chan struct{} {
	return m.readyCh
}

func (m *MongoManager) setErr(err error) {
	m.errMu.Lock()
	m.lastErr = err
	m.errMu.Unlock()
}

// Err 最近一次错误
func (m *MongoManager) Err() error {
	m.errMu.RLock()
	defer m.errMu.RUnlock()
	return m.lastErr
}

func (m *MongoManager) TryGetDB() (*mongo.Database, bool) {
	c, ok := m.current()
	if !ok {
		return nil, false
	}
	return c.GetDB(), true
}

// WaitReady 阻塞到首次连接成功或 ctx 结束
func (m *MongoManager) WaitReady(ctx context.Context) error {
	if _, ok := m.current(); ok {
		return nil
	}
	select {
	case <-m.readyCh:
		return nil
	case <-ctx.Done():
		if last := m.Err(); last != nil {
			return errs.WrapMsg(last, "mongo not ready")
		}
		return errs.Wrap(ctx.Err())
	}
}

// Close 停止后台协程并断开连接
func (m *MongoManager) Close() error {
	if m.cancel == nil {
		m.drop()
		return nil
	}
	m.cancel()
	<-m.done
	m.drop()
	return nil
}
