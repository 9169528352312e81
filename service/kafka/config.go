package kafka

import "github.com/Shopify/sarama"

// Config 生产端配置（由 global/config 的 KAFKA_* 填充）
type Config struct {
	Brokers             []string
	Topic               string
	PartitionsPerTopic  int32 // 自动建 topic 时使用
	ReplicationFactor   int16 // 单机=1；生产=3
	ProducerRetries     int
	ProducerCompression string // none/snappy/lz4/zstd
	KafkaVersion        sarama.KafkaVersion
	EnsureTopicOnStart  bool
}

// DefaultConfig 默认配置（单机演示值）
func DefaultConfig(brokers []string, topic string) Config {
	return Config{
		Brokers:             brokers,
		Topic:               topic,
		PartitionsPerTopic:  8,
		ReplicationFactor:   1,
		ProducerRetries:     5,
		ProducerCompression: "snappy",
		KafkaVersion:        sarama.V2_1_0_0,
		EnsureTopicOnStart:  true,
	}
}
