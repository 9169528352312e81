package bus

import (
	"context"
	"time"

	"PRelay/module/chat/model"
	"PRelay/service/natsx"
)

// NatsPublisher 发布到 NATS subject（Core 或 JetStream）
type NatsPublisher struct {
	client  *natsx.NatsxClient
	pub     *natsx.NatsxSyncPublisher
	gateway string
}

// NewNatsPublisher route.Biz 固定为 BizMessage
func NewNatsPublisher(cfg natsx.NatsxConfig, route natsx.NatsxRoute, gateway string) (*NatsPublisher, error) {
	c, err := natsx.NewNatsxClient(cfg)
	if err != nil {
		return nil, err
	}
	route.Biz = BizMessage
	if err := c.RegisterRoute(route); err != nil {
		_ = c.Close()
		return nil, err
	}
	return &NatsPublisher{
		client:  c,
		pub:     &natsx.NatsxSyncPublisher{P: natsx.NewNatsxProducer(c), Retries: 2, Backoff: 100 * time.Millisecond},
		gateway: gateway,
	}, nil
}

func (p *NatsPublisher) Publish(ctx context.Context, msg model.Message) error {
	data, hdr, err := encode(p.gateway, msg)
	if err != nil {
		return err
	}
	return p.pub.Publish(ctx, BizMessage, data, hdr)
}

func (p *NatsPublisher) Close() error {
	return p.client.Close()
}
