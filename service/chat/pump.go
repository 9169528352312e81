package chat

import (
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// writePump 唯一的写协程：业务帧 + 定时 ping；会话关闭或写失败时发 Close 并关闭底层连接
func (s *Server) writePump(sess *Session, ws *websocket.Conn, done chan<- struct{}) {
	ticker := time.NewTicker(s.opt.PingInterval)
	defer func() {
		ticker.Stop()
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(s.opt.WriteWait))
		_ = ws.Close()
		close(done)
	}()

	for {
		select {
		case <-sess.Done():
			return
		case payload := <-sess.Outbound():
			_ = ws.SetWriteDeadline(time.Now().Add(s.opt.WriteWait))
			if err := ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.log.Debug("[WS] write payload err", zap.String("snowID", sess.ID()), zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(s.opt.WriteWait)); err != nil {
				s.log.Debug("[WS] ping err", zap.String("snowID", sess.ID()), zap.Error(err))
				return
			}
		}
	}
}
