// Package bus 把已持久化的消息发布给下游消费者（NATS / Kafka）。
package bus

import (
	"context"
	"encoding/json"

	"PRelay/module/chat/model"
	"PRelay/tools/errs"
)

const (
	BizMessage    = "message"
	HeaderGateway = "gateway"
	HeaderMsgID   = "msg-id"
)

// Publisher 下游发布
type Publisher interface {
	Publish(ctx context.Context, msg model.Message) error
	Close() error
}

// Envelope 发布的消息体
type Envelope struct {
	Gateway string        `json:"gateway"`
	Message model.Message `json:"message"`
}

func encode(gateway string, msg model.Message) ([]byte, map[string]string, error) {
	b, err := json.Marshal(Envelope{Gateway: gateway, Message: msg})
	if err != nil {
		return nil, nil, errs.WrapMsg(err, "encode envelope", "id", msg.ID)
	}
	return b, map[string]string{HeaderGateway: gateway, HeaderMsgID: msg.ID}, nil
}

// Nop 未配置总线时使用
type Nop struct{}

func (Nop) Publish(context.Context, model.Message) error { return nil }
func (Nop) Close() error                                 { return nil }

// Multi 依次发布到多个总线，返回第一个错误
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, msg model.Message) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ctx, msg); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) Close() error {
	var first error
	for _, p := range m {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Combine 去掉 nil 后合并；为空返回 Nop
func Combine(ps ...Publisher) Publisher {
	var out Multi
	for _, p := range ps {
		if p != nil {
			out = append(out, p)
		}
	}
	switch len(out) {
	case 0:
		return Nop{}
	case 1:
		return out[0]
	default:
		return out
	}
}
