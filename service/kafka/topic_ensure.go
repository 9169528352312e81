package kafka

import (
	"errors"

	"PRelay/logger"
	"PRelay/tools/errs"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"
)

// EnsureTopic 会：
// 1) 不存在就按 c 创建；
// 2) 已存在且分区数 < 期望值时扩分区（Kafka 仅支持增加分区）。
func EnsureTopic(admin sarama.ClusterAdmin, c Config) error {
	t := c.Topic
	descs, err := admin.DescribeTopics([]string{t})
	if err != nil {
		return errs.WrapMsg(err, "describe topic", "topic", t)
	}
	exists := len(descs) == 1 && descs[0].Err == sarama.ErrNoError

	if !exists {
		td := topicDetail(c)
		if err := admin.CreateTopic(t, td, false); err != nil {
			var te *sarama.TopicError
			if (errors.As(err, &te) && te.Err == sarama.ErrTopicAlreadyExists) || errors.Is(err, sarama.ErrTopicAlreadyExists) {
				logger.Info("[Topic] exists (race)", zap.String("topic", t))
				return nil
			}
			return errs.WrapMsg(err, "create topic", "topic", t)
		}
		logger.Info("[Topic] created", zap.String("topic", t),
			zap.Int32("partitions", td.NumPartitions), zap.Int16("rf", td.ReplicationFactor))
		return nil
	}

	cur := int32(len(descs[0].Partitions))
	if c.PartitionsPerTopic > cur {
		if err := admin.CreatePartitions(t, c.PartitionsPerTopic, nil, false); err != nil {
			return errs.WrapMsg(err, "expand partitions", "topic", t, "from", cur, "to", c.PartitionsPerTopic)
		}
		logger.Info("[Topic] partitions expanded", zap.String("topic", t), zap.Int32("from", cur), zap.Int32("to", c.PartitionsPerTopic))
		return nil
	}
	logger.Info("[Topic] exists", zap.String("topic", t), zap.Int32("partitions", cur))
	return nil
}

func topicDetail(c Config) *sarama.TopicDetail {
	parts := c.PartitionsPerTopic
	if parts <= 0 {
		parts = 1
	}
	rf := c.ReplicationFactor
	if rf <= 0 {
		rf = 1
	}
	// rf>=3 则至少 2 个 ISR
	minISR := "1"
	if rf >= 3 {
		minISR = "2"
	}
	return &sarama.TopicDetail{
		NumPartitions:     parts,
		ReplicationFactor: rf,
		ConfigEntries: map[string]*string{
			"cleanup.policy":                 strPtr("delete"),
			"min.insync.replicas":            strPtr(minISR),
			"unclean.leader.election.enable": strPtr("false"),
			"compression.type":               strPtr("producer"),
		},
	}
}

func strPtr(s string) *string { return &s }
