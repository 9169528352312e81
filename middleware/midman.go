package middleware

import (
	"sync"

	"github.com/gin-gonic/gin"
)

var (
	globalMgr *MiddlewareManager
	once      sync.Once
)

type namedMid struct {
	name string
	h    gin.HandlerFunc
}

// MiddlewareManager 运行期可增删的前置中间件（按名字），不调用 c.Next 的中间件才适合放这里
type MiddlewareManager struct {
	mu   sync.RWMutex
	mids []namedMid
}

func NewManager() *MiddlewareManager {
	return &MiddlewareManager{}
}

// Manager 全局实例（惰性初始化）
func Manager() *MiddlewareManager {
	once.Do(func() { globalMgr = NewManager() })
	return globalMgr
}

// Add 注册中间件；同名则替换
func (m *MiddlewareManager) Add(name string, h gin.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.mids {
		if m.mids[i].name == name {
			m.mids[i].h = h
			return
		}
	}
	m.mids = append(m.mids, namedMid{name: name, h: h})
}

// Remove 按名字注销
func (m *MiddlewareManager) Remove(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.mids {
		if m.mids[i].name == name {
			m.mids = append(m.mids[:i], m.mids[i+1:]...)
			return true
		}
	}
	return false
}

// Names 当前生效顺序
func (m *MiddlewareManager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.mids))
	for _, x := range m.mids {
		out = append(out, x.name)
	}
	return out
}

// Clear 清空全部中间件
func (m *MiddlewareManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mids = nil
}

// Use 作为总控挂载到 Engine 上；任一中间件 Abort 即停止
func (m *MiddlewareManager) Use() gin.HandlerFunc {
	return func(c *gin.Context) {
		m.mu.RLock()
		handlers := append([]namedMid{}, m.mids...)
		m.mu.RUnlock()

		for _, x := range handlers {
			x.h(c)
			if c.IsAborted() {
				return
			}
		}
		c.Next()
	}
}
