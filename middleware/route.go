package middleware

import (
	"github.com/gin-gonic/gin"
)

// 配置选项
type RouteOpt struct {
	Mids []gin.HandlerFunc // 仅作用于该路由的中间件
}

func chain(handler gin.HandlerFunc, opt RouteOpt) []gin.HandlerFunc {
	return append(append([]gin.HandlerFunc{}, opt.Mids...), handler)
}

// 封装 POST
func POST(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.POST(path, chain(handler, opt)...)
}

// 封装 GET
func GET(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	r.GET(path, chain(handler, opt)...)
}
