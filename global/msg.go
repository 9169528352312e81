package global

import (
	"net/http"

	"PRelay/tools/errs"

	"github.com/gin-gonic/gin"
)

// Msg 运维 HTTP 接口统一返回体
type Msg struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

func Success(data any) *Msg {
	return &Msg{Code: http.StatusOK, Msg: "ok", Data: data}
}

// Fail CodeError 保留错误码，其它错误按内部错误返回
func Fail(err error) *Msg {
	if code, ok := errs.AsCode(err); ok {
		return &Msg{Code: code.Code, Msg: code.Msg}
	}
	return &Msg{Code: errs.ServerInternalError, Msg: "internal error"}
}

// JSON 写出 Msg；错误码统一放在 body 里，HTTP 状态只区分成功与内部错误
func JSON(c *gin.Context, m *Msg) {
	status := http.StatusOK
	if m.Code == errs.ServerInternalError {
		status = http.StatusInternalServerError
	}
	c.JSON(status, m)
}
