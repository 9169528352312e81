package redis

import (
	"context"
	"time"

	"PRelay/tools/errs"

	"github.com/redis/go-redis/v9"
)

type RedisManager struct {
	client *redis.Client
}

// Config 用于初始化 Redis
type Config struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
	// URL 优先于 Addr/Password/DB，如 redis://:pass@host:6379/0
	URL string
}

func (c Config) options() (*redis.Options, error) {
	if c.URL != "" {
		opt, err := redis.ParseURL(c.URL)
		if err != nil {
			return nil, errs.WrapMsg(err, "parse redis url")
		}
		if c.PoolSize > 0 {
			opt.PoolSize = c.PoolSize
		}
		return opt, nil
	}
	if c.Addr == "" {
		return nil, errs.New("redis addr is required").Wrap()
	}
	return &redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
		PoolSize: c.PoolSize,
	}, nil
}

// NewRedis 建连并 Ping
func NewRedis(ctx context.Context, c Config) (*RedisManager, error) {
	opt, err := c.options()
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)

	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errs.WrapMsg(err, "redis ping failed", "addr", opt.Addr)
	}
	return &RedisManager{client: rdb}, nil
}

// Client 获取 Redis Client
func (m *RedisManager) Client() *redis.Client {
	return m.client
}

// Close 关闭连接
func (m *RedisManager) Close() error {
	if m != nil && m.client != nil {
		return m.client.Close()
	}
	return nil
}
