package handlers

import (
	"PRelay/module/chat/model"
	"PRelay/service/chat"
	"PRelay/tools/errs"

	"go.uber.org/zap"
)

type LoadMessagesHandler struct{}

func NewLoadMessagesHandler() chat.Handler   { return &LoadMessagesHandler{} }
func (h *LoadMessagesHandler) Event() string { return chat.EventLoadMessages }

// Handle 存储不可用时回空列表，客户端不区分
func (h *LoadMessagesHandler) Handle(ctx *chat.ChatContext, _ *chat.Frame, s *chat.Session) error {
	msgs, err := ctx.S.Router().History(ctx.Ctx, s)
	if err != nil {
		if errs.ErrNotRegistered.Is(err) {
			return err
		}
		ctx.S.Logger().Warn("[load-messages] history query failed", zap.String("snowID", s.ID()), zap.Error(err))
		msgs = []model.Message{}
	}
	frame, err := chat.EncodeFrame(chat.EventChatHistory, msgs)
	if err != nil {
		return err
	}
	s.Emit(frame)
	return nil
}
