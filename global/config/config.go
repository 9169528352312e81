package config

import (
	"os"
	"strings"

	"PRelay/service/natsx"
	"PRelay/tools/errs"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Load 读取 .env（不存在则忽略）后解析环境变量。
// files 为空时读取当前目录下的 .env。
func Load(files ...string) (*AppConfig, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		// godotenv.Load 不覆盖已存在的环境变量
		if err := godotenv.Load(f); err != nil {
			return nil, errs.WrapMsg(err, "load env file", "file", f)
		}
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errs.WrapMsg(err, "parse env config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验并规整配置
func (c *AppConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errs.ErrArgs.WrapMsg("invalid PORT", "port", c.Port)
	}
	if c.HistoryLimit <= 0 {
		return errs.ErrArgs.WrapMsg("HISTORY_LIMIT must be positive", "limit", c.HistoryLimit)
	}
	if c.SendQueueSize <= 0 {
		return errs.ErrArgs.WrapMsg("SEND_QUEUE_SIZE must be positive", "size", c.SendQueueSize)
	}
	if c.MaxUsernameLen <= 0 {
		return errs.ErrArgs.WrapMsg("MAX_USERNAME_LEN must be positive", "len", c.MaxUsernameLen)
	}
	if c.FanoutWorkers <= 0 {
		c.FanoutWorkers = 1
	}
	c.Agents = cleanList(c.Agents)
	c.AllowedOrigins = cleanList(c.AllowedOrigins)
	if _, err := natsx.ParseMode(c.Nats.Mode); err != nil {
		return errs.ErrArgs.WrapMsg("invalid NATS_MODE", "mode", c.Nats.Mode)
	}
	c.Nats.Servers = cleanList(c.Nats.Servers)
	c.Kafka.Brokers = cleanList(c.Kafka.Brokers)
	return nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
