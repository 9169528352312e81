package handlers

import (
	"PRelay/service/chat"
	"PRelay/tools/decode"
	"PRelay/tools/errs"

	"go.uber.org/zap"
)

type PrivateMessageHandler struct{}

func NewPrivateMessageHandler() chat.Handler   { return &PrivateMessageHandler{} }
func (h *PrivateMessageHandler) Event() string { return chat.EventPrivateMessage }

func (h *PrivateMessageHandler) Handle(ctx *chat.ChatContext, f *chat.Frame, s *chat.Session) error {
	// 正文原样保存；receiver 由 Router 去空白
	opts := decode.DefaultOptions()
	opts.KeepSpace = true
	p, err := decode.DecodePayload[chat.PrivateMessagePayload](f.Data, opts)
	if err != nil {
		return errs.ErrArgs.WrapMsg("private-message payload: "+err.Error(), "snowID", s.ID())
	}
	d, err := ctx.S.Router().Route(ctx.Ctx, s, p.Receiver, p.Text)
	if err != nil {
		return err
	}
	if !d.Live {
		ctx.S.Logger().Debug("[private-message] receiver offline, stored only",
			zap.String("id", d.Message.ID), zap.String("receiver", d.Message.Receiver))
	}
	return nil
}
