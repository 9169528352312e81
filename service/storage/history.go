package storage

import (
	"context"
	"strings"
	"time"

	"PRelay/module/chat/model"
	"PRelay/tools/errs"
)

// HistoryStore 消息持久化：追加写 + 按参与者查询最近 N 条（时间升序）
type HistoryStore interface {
	Append(ctx context.Context, msg model.Message) error
	Query(ctx context.Context, username string, limit int) ([]model.Message, error)
	Close() error
}

// Options 打开历史存储的参数
type Options struct {
	Database string        // mongo 库名
	Timeout  time.Duration // 建连超时
	// MaxPerUser redis 每个参与者保留的消息条数（<=0 使用默认）
	MaxPerUser int64
}

const (
	SchemeMemory     = "memory"
	SchemeMongo      = "mongodb"
	SchemeMongoSRV   = "mongodb+srv"
	SchemePostgres   = "postgres"
	SchemePostgreSQL = "postgresql"
	SchemeRedis      = "redis"
	SchemeRediss     = "rediss"
)

// Scheme 取连接串的 scheme；空串视为 memory
func Scheme(uri string) string {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return SchemeMemory
	}
	scheme, _, ok := strings.Cut(uri, "://")
	if !ok {
		return ""
	}
	return strings.ToLower(scheme)
}

// Open 按连接串 scheme 选择后端
func Open(ctx context.Context, uri string, opt Options) (HistoryStore, error) {
	if opt.Timeout <= 0 {
		opt.Timeout = 10 * time.Second
	}
	switch s := Scheme(uri); s {
	case SchemeMemory:
		return NewMemoryHistory(), nil
	case SchemeMongo, SchemeMongoSRV:
		return NewMongoHistory(ctx, uri, opt)
	case SchemePostgres, SchemePostgreSQL:
		return NewPgHistory(ctx, uri, opt)
	case SchemeRedis, SchemeRediss:
		return NewRedisHistory(ctx, uri, opt)
	default:
		return nil, errs.ErrStoreConfig.WrapMsg("unsupported database scheme", "scheme", s)
	}
}

// latest 取升序序列的最后 limit 条
func latest(msgs []model.Message, limit int) []model.Message {
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs
}

// reverse 原地反转（后端按时间倒序取出后转成升序）
func reverse(msgs []model.Message) []model.Message {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs
}
