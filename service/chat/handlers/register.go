package handlers

import (
	"PRelay/service/chat"
	"PRelay/tools/decode"
	"PRelay/tools/errs"

	"go.uber.org/zap"
)

type RegisterHandler struct{}

func NewRegisterHandler() chat.Handler   { return &RegisterHandler{} }
func (h *RegisterHandler) Event() string { return chat.EventRegister }

// Handle 注册失败已由 Lifecycle 回 register-rejected，这里只记日志
func (h *RegisterHandler) Handle(ctx *chat.ChatContext, f *chat.Frame, s *chat.Session) error {
	username, err := decode.DecodeString(f.Data, "username")
	if err != nil {
		return errs.ErrArgs.WrapMsg("register payload: "+err.Error(), "snowID", s.ID())
	}
	if err := ctx.S.Lifecycle().Register(ctx.Ctx, s, username); err != nil {
		ctx.S.Logger().Info("[register] rejected", zap.String("snowID", s.ID()),
			zap.String("username", username), zap.Error(err))
		return nil
	}
	ctx.S.Logger().Info("[register] bound", zap.String("snowID", s.ID()),
		zap.String("username", username), zap.Stringer("role", s.Role()))
	return nil
}
