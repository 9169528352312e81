package bus

import (
	"context"

	"PRelay/module/chat/model"
	"PRelay/service/kafka"
	"PRelay/tools/errs"
)

// KafkaPublisher 发布到 Kafka topic，key = 接收者（同一会话进同一分区）
type KafkaPublisher struct {
	prod    *kafka.Producer
	topic   string
	gateway string
}

func NewKafkaPublisher(cfg kafka.Config, gateway string) (*KafkaPublisher, error) {
	p, err := kafka.NewProducer(cfg)
	if err != nil {
		return nil, err
	}
	return &KafkaPublisher{prod: p, topic: cfg.Topic, gateway: gateway}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, msg model.Message) error {
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err)
	}
	data, hdr, err := encode(p.gateway, msg)
	if err != nil {
		return err
	}
	_, _, err = p.prod.SendSync(p.topic, msg.Receiver, data, hdr)
	return err
}

func (p *KafkaPublisher) Close() error {
	return p.prod.Close()
}
