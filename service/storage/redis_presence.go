package storage

import (
	"context"
	"strings"
	"time"

	redis2 "PRelay/service/storage/redis"
	"PRelay/tools/errs"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// PresenceStore 在线状态镜像，供外部系统查询谁在线、在哪个节点
type PresenceStore interface {
	Online(ctx context.Context, username, sessionID string) error
	Offline(ctx context.Context, username, sessionID string) error
	Close() error
}

// NopPresence 未配置 Redis 时使用
type NopPresence struct{}

func (NopPresence) Online(context.Context, string, string) error  { return nil }
func (NopPresence) Offline(context.Context, string, string) error { return nil }
func (NopPresence) Close() error                                  { return nil }

// presence key: im:presence:<user>
// Value: <gateway_id>|<session_id>, TTL controls the online validity period
func presenceKey(user string) string { return "im:presence:" + user }

// node index: im:node:<gateway_id> (ZSET, member=user, score=expireAt)
func nodeIndexKey(gatewayID string) string { return "im:node:" + gatewayID }

func presenceValue(gatewayID, sessionID string) string { return gatewayID + "|" + sessionID }

// 上线：写 presence 键 + 节点索引
// KEYS[1] = presence key
// KEYS[2] = node index key
// ARGV[1] = value
// ARGV[2] = ttlSeconds
// ARGV[3] = expireAtUnix
// ARGV[4] = username
const luaPresenceOnline = `
redis.call("SET", KEYS[1], ARGV[1], "EX", tonumber(ARGV[2]))
redis.call("ZADD", KEYS[2], tonumber(ARGV[3]), ARGV[4])
redis.call("EXPIRE", KEYS[2], tonumber(ARGV[2]) * 2)
return 1
`

// 下线：只有 presence 键仍指向本会话时才删除（避免误删同名新连接）
// KEYS[1] = presence key
// KEYS[2] = node index key
// ARGV[1] = value
// ARGV[2] = username
// 返回：1=删除；0=已不是本会话（幂等）
const luaPresenceOffline = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  redis.call("DEL", KEYS[1])
  redis.call("ZREM", KEYS[2], ARGV[2])
  return 1
end
return 0
`

// 节点重启：清理本节点遗留的全部在线记录
// KEYS[1] = node index key
// ARGV[1] = gateway id prefix ("<gw>|")
// 返回：被清理的用户数组
const luaPresenceResetNode = `
local members = redis.call("ZRANGE", KEYS[1], 0, -1)
local prefix = ARGV[1]
for _, u in ipairs(members) do
  local k = "im:presence:" .. u
  local v = redis.call("GET", k)
  if v and string.sub(v, 1, string.len(prefix)) == prefix then
    redis.call("DEL", k)
  end
end
redis.call("DEL", KEYS[1])
return members
`

// RedisPresence presence 镜像（单节点写，多方读）
type RedisPresence struct {
	mgr       *redis2.RedisManager
	gatewayID string
	ttl       time.Duration

	luaOnline  *redis.Script
	luaOffline *redis.Script
	luaReset   *redis.Script
}

func NewRedisPresence(mgr *redis2.RedisManager, gatewayID string, ttl time.Duration) *RedisPresence {
	if ttl < time.Second {
		ttl = 2 * time.Hour
	}
	return &RedisPresence{
		mgr:        mgr,
		gatewayID:  gatewayID,
		ttl:        ttl,
		luaOnline:  redis.NewScript(luaPresenceOnline),
		luaOffline: redis.NewScript(luaPresenceOffline),
		luaReset:   redis.NewScript(luaPresenceResetNode),
	}
}

// Online sets the user as online on this gateway and renews the TTL
func (p *RedisPresence) Online(ctx context.Context, username, sessionID string) error {
	expAt := time.Now().Add(p.ttl).Unix()
	err := p.luaOnline.Run(ctx, p.mgr.Client(),
		[]string{presenceKey(username), nodeIndexKey(p.gatewayID)},
		presenceValue(p.gatewayID, sessionID), int64(p.ttl/time.Second), expAt, username,
	).Err()
	return errs.WrapMsg(err, "presence online", "username", username)
}

// Offline removes the presence key if it still belongs to sessionID
func (p *RedisPresence) Offline(ctx context.Context, username, sessionID string) error {
	err := p.luaOffline.Run(ctx, p.mgr.Client(),
		[]string{presenceKey(username), nodeIndexKey(p.gatewayID)},
		presenceValue(p.gatewayID, sessionID), username,
	).Err()
	return errs.WrapMsg(err, "presence offline", "username", username)
}

// Lookup checks whether the user is online and on which gateway
func (p *RedisPresence) Lookup(ctx context.Context, username string) (gatewayID string, online bool, err error) {
	val, err := p.mgr.Client().Get(ctx, presenceKey(username)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errs.WrapMsg(err, "presence lookup", "username", username)
	}
	gw, _, _ := strings.Cut(val, "|")
	return gw, true, nil
}

// ResetNode 清理本节点上次运行遗留的在线记录，返回被清理的用户
func (p *RedisPresence) ResetNode(ctx context.Context) ([]string, error) {
	users, err := p.luaReset.Run(ctx, p.mgr.Client(),
		[]string{nodeIndexKey(p.gatewayID)}, p.gatewayID+"|",
	).StringSlice()
	if err != nil {
		return nil, errs.WrapMsg(err, "presence reset", "gateway", p.gatewayID)
	}
	return users, nil
}

func (p *RedisPresence) Close() error {
	return p.mgr.Close()
}
