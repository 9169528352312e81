package chat

import "context"

// Handler 处理一种入站事件
type Handler interface {
	Event() string
	Handle(*ChatContext, *Frame, *Session) error
}

type ChatContext struct {
	S   *Server
	Ctx context.Context
}
