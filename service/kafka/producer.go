package kafka

import (
	"strings"
	"time"

	"PRelay/tools/errs"

	"github.com/Shopify/sarama"
)

func BuildBaseConfig(c Config) *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Version = c.KafkaVersion
	cfg.ClientID = "prelay"

	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	retries := c.ProducerRetries
	if retries <= 0 {
		retries = 1
	}
	cfg.Producer.Retry.Max = retries
	cfg.Producer.Partitioner = sarama.NewHashPartitioner // Key 控制分区
	switch strings.ToLower(c.ProducerCompression) {
	case "snappy":
		cfg.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		cfg.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		cfg.Producer.Compression = sarama.CompressionZSTD
	default:
		cfg.Producer.Compression = sarama.CompressionNone
	}

	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	return cfg
}

// Producer 同步生产者（client + SyncProducer）
type Producer struct {
	client sarama.Client
	prod   sarama.SyncProducer
}

func NewProducer(c Config) (*Producer, error) {
	if len(c.Brokers) == 0 {
		return nil, errs.New("kafka brokers missing").Wrap()
	}
	client, err := sarama.NewClient(c.Brokers, BuildBaseConfig(c))
	if err != nil {
		return nil, errs.WrapMsg(err, "kafka client", "brokers", strings.Join(c.Brokers, ","))
	}
	if c.EnsureTopicOnStart && c.Topic != "" {
		admin, err := sarama.NewClusterAdminFromClient(client)
		if err != nil {
			_ = client.Close()
			return nil, errs.WrapMsg(err, "kafka admin")
		}
		// admin 与 client 共用连接，这里不关闭 admin
		if err := EnsureTopic(admin, c); err != nil {
			_ = client.Close()
			return nil, err
		}
	}
	p, err := sarama.NewSyncProducerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, errs.WrapMsg(err, "kafka sync producer")
	}
	return &Producer{client: client, prod: p}, nil
}

// SendSync 按 key 分区发送
func (p *Producer) SendSync(topic, key string, value []byte, headers map[string]string) (partition int32, offset int64, err error) {
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(key),
		Value: sarama.ByteEncoder(value),
	}
	for k, v := range headers {
		msg.Headers = append(msg.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}
	partition, offset, err = p.prod.SendMessage(msg)
	if err != nil {
		return 0, 0, errs.WrapMsg(err, "kafka send", "topic", topic)
	}
	return partition, offset, nil
}

func (p *Producer) Close() error {
	perr := p.prod.Close()
	cerr := p.client.Close()
	if perr != nil {
		return errs.Wrap(perr)
	}
	return errs.Wrap(cerr)
}
