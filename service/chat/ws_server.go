package chat

import (
	"context"
	"net"
	"time"

	"PRelay/tools/safe"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// HandleWS 升级为 websocket 并一直阻塞到连接断开
func (s *Server) HandleWS(c *gin.Context) {
	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// 常见：非 WebSocket 请求/握手失败/Origin 不允许，Upgrade 已写回错误
		s.log.Info("[HandleWS] upgrade websocket error", zap.Error(err))
		return
	}
	s.Serve(c.Request.Context(), ws, c.ClientIP())
}

// Serve 读循环：只读不写；出错即退出，退出后走 Disconnect 并等待写协程收尾
func (s *Server) Serve(ctx context.Context, ws *websocket.Conn, remote string) {
	sess := s.NewSession(remote)
	sess.SetKick(func() { _ = ws.Close() })
	if err := s.lifecycle.Connect(sess); err != nil {
		s.log.Warn("[WS] connect rejected", zap.Error(err))
		_ = ws.Close()
		return
	}
	s.log.Info("New client connected", zap.String("snowID", sess.ID()), zap.String("remote", remote))

	done := make(chan struct{})
	safe.Go("ws-write-pump", func() { s.writePump(sess, ws, done) })

	pongWait := 2*s.opt.PingInterval + s.opt.WriteWait
	ws.SetReadLimit(s.opt.ReadLimit)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		sess.Touch(s.opt.Clock())
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	cctx := &ChatContext{S: s, Ctx: ctx}
	for {
		mt, data, rerr := ws.ReadMessage()
		if rerr != nil {
			s.logReadErr(sess, rerr)
			break
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		sess.Touch(s.opt.Clock())
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		s.handleFrame(cctx, sess, data)
	}

	// 请求 ctx 可能已取消，收尾用独立 ctx
	wasRegistered := s.lifecycle.Disconnect(context.WithoutCancel(ctx), sess)
	<-done
	s.log.Info("Client disconnected", zap.String("snowID", sess.ID()),
		zap.Bool("registered", wasRegistered), zap.Int64("dropped", sess.Dropped()))
}

func (s *Server) handleFrame(cctx *ChatContext, sess *Session, data []byte) {
	f, err := ParseFrameJSON(data)
	if err != nil {
		sample := data
		if len(sample) > 256 {
			sample = sample[:256]
		}
		s.log.Info("[WS] ParseFrameJSON err", zap.String("snowID", sess.ID()),
			zap.ByteString("sample", sample), zap.Int("len", len(data)), zap.Error(err))
		sess.Emit(BuildErrorFrame(err))
		return
	}

	if err := s.disp.Dispatch(cctx, f, sess); err != nil {
		s.log.Info("[WS] handle event failed", zap.String("snowID", sess.ID()),
			zap.String("event", f.Event), zap.Error(err))
		if Reportable(err) {
			sess.Emit(BuildErrorFrame(err))
		}
	}
}

func (s *Server) logReadErr(sess *Session, err error) {
	var reason string
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived,
	) {
		reason = "peer closed"
	} else if ne, ok := err.(net.Error); ok && ne.Timeout() {
		reason = "read timeout"
	} else {
		reason = "read err"
	}
	s.log.Debug("[WS] "+reason, zap.String("snowID", sess.ID()), zap.Error(err))
}
