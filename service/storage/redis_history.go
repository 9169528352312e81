package storage

import (
	"context"
	"encoding/json"

	"PRelay/module/chat/model"
	redis2 "PRelay/service/storage/redis"
	"PRelay/tools/errs"

	"github.com/redis/go-redis/v9"
)

const defaultRedisMaxPerUser = 10_000

// ===== 历史：每个参与者一个 ZSET，score = 时间(微秒)，member = 消息 JSON =====

func historyKey(user string) string { return "im:hist:" + user }

// RedisHistory 滚动窗口：每个参与者只保留最近 MaxPerUser 条
type RedisHistory struct {
	mgr        *redis2.RedisManager
	maxPerUser int64
}

func NewRedisHistory(ctx context.Context, uri string, opt Options) (*RedisHistory, error) {
	mgr, err := redis2.NewRedis(ctx, redis2.Config{URL: uri})
	if err != nil {
		return nil, errs.ErrStore.WrapMsg(err.Error())
	}
	return newRedisHistory(mgr, opt.MaxPerUser), nil
}

func newRedisHistory(mgr *redis2.RedisManager, maxPerUser int64) *RedisHistory {
	if maxPerUser <= 0 {
		maxPerUser = defaultRedisMaxPerUser
	}
	return &RedisHistory{mgr: mgr, maxPerUser: maxPerUser}
}

func participants(msg *model.Message) []string {
	if msg.Sender == msg.Receiver {
		return []string{msg.Sender}
	}
	return []string{msg.Sender, msg.Receiver}
}

func (s *RedisHistory) Append(ctx context.Context, msg model.Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return errs.ErrStore.WrapMsg(err.Error(), "id", msg.ID)
	}
	score := float64(msg.Timestamp.UnixMicro())

	_, err = s.mgr.Client().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, u := range participants(&msg) {
			key := historyKey(u)
			pipe.ZAdd(ctx, key, redis.Z{Score: score, Member: b})
			// 只保留最近 maxPerUser 条
			pipe.ZRemRangeByRank(ctx, key, 0, -(s.maxPerUser + 1))
		}
		return nil
	})
	if err != nil {
		return errs.ErrStore.WrapMsg(err.Error(), "id", msg.ID)
	}
	return nil
}

func (s *RedisHistory) Query(ctx context.Context, username string, limit int) ([]model.Message, error) {
	// 同分值按 member 字典序，member 以 {"id": 开头，顺序与 ID 一致
	vals, err := s.mgr.Client().ZRevRange(ctx, historyKey(username), 0, int64(limit)-1).Result()
	if err != nil {
		return nil, errs.ErrStore.WrapMsg(err.Error(), "username", username)
	}
	out := make([]model.Message, 0, len(vals))
	for _, v := range vals {
		var m model.Message
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			return nil, errs.ErrStore.WrapMsg("corrupt history entry: "+err.Error(), "username", username)
		}
		out = append(out, m)
	}
	return reverse(out), nil
}

func (s *RedisHistory) Close() error {
	return s.mgr.Close()
}
