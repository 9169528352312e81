package chat

import (
	"encoding/json"
	"strings"

	"PRelay/tools/errs"
)

// 入站事件
const (
	EventRegister       = "register"
	EventLoadMessages   = "load-messages"
	EventPrivateMessage = "private-message"
)

// 出站事件
const (
	EventRegistered       = "registered"
	EventRegisterRejected = "register-rejected"
	EventChatHistory      = "chat-history"
	EventMessage          = "message"
	EventUpdateUserList   = "update-user-list"
	EventUserConnected    = "user-connected"
	EventUserDisconnected = "user-disconnected"
	EventError            = "error"
)

// Frame 线上帧：{"event": "...", "data": ...}
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type PrivateMessagePayload struct {
	Receiver string `json:"receiver"`
	Text     string `json:"text"`
}

type RejectPayload struct {
	Username string `json:"username"`
	Reason   string `json:"reason"`
}

type ErrorPayload struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func ParseFrameJSON(raw []byte) (*Frame, error) {
	f := &Frame{}
	if err := json.Unmarshal(raw, f); err != nil {
		return nil, errs.ErrBadFrame.WrapMsg("unmarshal frame failed: " + err.Error())
	}
	f.Event = strings.TrimSpace(f.Event)
	if f.Event == "" {
		return nil, errs.ErrBadFrame.WrapMsg("event missing")
	}
	return f, nil
}

// EncodeFrame 出站帧编码；data 为 nil 时省略
func EncodeFrame(event string, data any) ([]byte, error) {
	f := Frame{Event: event}
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, errs.WrapMsg(err, "marshal frame data", "event", event)
		}
		f.Data = b
	}
	b, err := json.Marshal(f)
	if err != nil {
		return nil, errs.WrapMsg(err, "marshal frame", "event", event)
	}
	return b, nil
}

// mustFrame 仅用于服务端自己构造、不会编码失败的数据
func mustFrame(event string, data any) []byte {
	b, err := EncodeFrame(event, data)
	if err != nil {
		panic(err)
	}
	return b
}

// BuildErrorFrame 把错误码转成 error 帧；非 CodeError 视为内部错误
func BuildErrorFrame(err error) []byte {
	p := ErrorPayload{Code: errs.ServerInternalError, Msg: "internal error"}
	if code, ok := errs.AsCode(err); ok {
		p.Code, p.Msg = code.Code, code.Msg
	}
	return mustFrame(EventError, p)
}

// Reportable 是否需要以 error 帧告知客户端
func Reportable(err error) bool {
	code, ok := errs.AsCode(err)
	if !ok {
		return false
	}
	switch code.Code {
	case errs.NotRegisteredError, errs.BadFrameError, errs.UnknownEventError,
		errs.InvalidReceiverError, errs.ArgsError:
		return true
	}
	return false
}
