package config

import "time"

// AppConfig relay 节点配置，全部来自环境变量（可由 .env 提供）
type AppConfig struct {
	GatewayId string `envconfig:"GATEWAY_ID" default:"relay-1"` // 节点ID
	NodeId    int64  `envconfig:"NODE_ID" default:"1"`          // 雪花节点号 0~1023
	Port      int    `envconfig:"PORT" default:"5000"`          // http 启动端口
	GrpcPort  int    `envconfig:"GRPC_PORT" default:"0"`        // grpc 健康检查端口，0 关闭
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`

	// 历史消息存储：mongodb:// postgres:// redis:// memory://（空 = 内存）
	DatabaseURI  string        `envconfig:"MONGODB_URI"`
	DatabaseName string        `envconfig:"DATABASE_NAME" default:"chat"`
	StoreTimeout time.Duration `envconfig:"STORE_TIMEOUT" default:"3s"`
	HistoryLimit int           `envconfig:"HISTORY_LIMIT" default:"50"`

	// 坐席白名单（逗号分隔）
	Agents         []string `envconfig:"AGENTS" default:"Alice"`
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`

	MaxUsernameLen int           `envconfig:"MAX_USERNAME_LEN" default:"64"`
	SendQueueSize  int           `envconfig:"SEND_QUEUE_SIZE" default:"256"`
	FanoutWorkers  int           `envconfig:"FANOUT_WORKERS" default:"4"`
	FanoutQueue    int           `envconfig:"FANOUT_QUEUE" default:"1024"`
	UnauthTTL      time.Duration `envconfig:"UNAUTH_TTL" default:"5m"`
	SweepEvery     time.Duration `envconfig:"SWEEP_EVERY" default:"30s"`
	PingInterval   time.Duration `envconfig:"PING_INTERVAL" default:"25s"`
	WriteWait      time.Duration `envconfig:"WRITE_WAIT" default:"10s"`
	ReadLimit      int64         `envconfig:"READ_LIMIT" default:"65536"`

	Redis RedisConfig
	Nats  NatsConfig
	Kafka KafkaConfig
}

// RedisConfig 在线状态镜像（可选，Addr 为空则关闭）
type RedisConfig struct {
	Addr        string        `envconfig:"REDIS_ADDR"`
	Password    string        `envconfig:"REDIS_PASSWORD"`
	DB          int           `envconfig:"REDIS_DB" default:"0"`
	PresenceTTL time.Duration `envconfig:"REDIS_PRESENCE_TTL" default:"2h"`
}

// NatsConfig 消息总线（可选，Servers 为空则关闭）
type NatsConfig struct {
	Servers []string `envconfig:"NATS_SERVERS"`
	Subject string   `envconfig:"NATS_SUBJECT" default:"relay.message"`
	Name    string   `envconfig:"NATS_NAME" default:"prelay"`
	Mode    string   `envconfig:"NATS_MODE" default:"core"`     // core | jetstream
	Stream  string   `envconfig:"NATS_STREAM" default:"PRELAY"` // jetstream 模式下自动创建
}

// KafkaConfig 消息总线（可选，Brokers 为空则关闭）
type KafkaConfig struct {
	Brokers []string `envconfig:"KAFKA_BROKERS"`
	Topic   string   `envconfig:"KAFKA_TOPIC" default:"relay_message"`
}
