package chat

import (
	"PRelay/tools/errs"
	"PRelay/tools/safe"
)

type Dispatcher struct {
	handlers map[string]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

func (d *Dispatcher) Register(h Handler) { d.handlers[h.Event()] = h }

// Dispatch handler 内的 panic 转成错误返回，不影响连接
func (d *Dispatcher) Dispatch(ctx *ChatContext, f *Frame, s *Session) error {
	h, ok := d.handlers[f.Event]
	if !ok {
		return errs.ErrUnknownEvent.WrapMsg("no handler", "event", f.Event)
	}
	return safe.Call(func() error { return h.Handle(ctx, f, s) })
}

func (d *Dispatcher) GetHandler(event string) Handler {
	return d.handlers[event]
}

// Events 已注册事件
func (d *Dispatcher) Events() []string {
	out := make([]string, 0, len(d.handlers))
	for e := range d.handlers {
		out = append(out, e)
	}
	return out
}
