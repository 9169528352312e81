package chat

import (
	"net/http"
	"time"

	"PRelay/logger"
	"PRelay/middleware"
	"PRelay/service/bus"
	"PRelay/service/storage"
	"PRelay/tools/ids"
	"PRelay/tools/safe"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Options struct {
	GatewayID      string
	Agents         []string
	AllowedOrigins []string
	HistoryLimit   int
	MaxUsernameLen int
	SendQueueSize  int
	FanoutWorkers  int // 0 = 在调用方协程内投递
	FanoutQueue    int
	UnauthTTL      time.Duration
	SweepEvery     time.Duration
	PingInterval   time.Duration
	WriteWait      time.Duration
	ReadLimit      int64
	StoreTimeout   time.Duration
	Clock          func() time.Time
}

func (o *Options) norm() {
	if o.GatewayID == "" {
		o.GatewayID = "relay-1"
	}
	if o.SendQueueSize <= 0 {
		o.SendQueueSize = 256
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 25 * time.Second
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 64 << 10
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
}

// Server 组装注册表、状态机、路由与传输层
type Server struct {
	opt       Options
	reg       *Registry
	fanout    *Fanout
	connMgr   *ConnManager
	presence  *Presence
	lifecycle *Lifecycle
	router    *Router
	disp      *Dispatcher
	upgrader  websocket.Upgrader
	log       *zap.Logger
}

func NewServer(opt Options, history storage.HistoryStore, mirror storage.PresenceStore, pub bus.Publisher) *Server {
	safe.MustNotNil(history, "history store")
	opt.norm()

	log := logger.Named("chat").With(zap.String("gw", opt.GatewayID))
	reg := NewRegistry()
	fanout := NewFanout(opt.FanoutWorkers, opt.FanoutQueue)
	conns := NewConnManager(ManagerConf{UnauthTTL: opt.UnauthTTL, SweepEvery: opt.SweepEvery, Clock: opt.Clock}, opt.GatewayID, fanout)
	presence := NewPresence(conns, reg, fanout)

	s := &Server{
		opt:      opt,
		reg:      reg,
		fanout:   fanout,
		connMgr:  conns,
		presence: presence,
		lifecycle: NewLifecycle(reg, conns, presence, mirror, LifecycleConf{
			Agents:         NewAgentSet(opt.Agents...),
			MaxUsernameLen: opt.MaxUsernameLen,
			StoreTimeout:   opt.StoreTimeout,
		}, log),
		router: NewRouter(reg, history, pub, fanout, RouterConf{
			HistoryLimit: opt.HistoryLimit,
			StoreTimeout: opt.StoreTimeout,
			Clock:        opt.Clock,
		}, log),
		disp: NewDispatcher(),
		log:  log,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return middleware.OriginAllowed(opt.AllowedOrigins, r.Header.Get("Origin"))
		},
	}
	return s
}

func (s *Server) ConnMgr() *ConnManager { return s.connMgr }
func (s *Server) Registry() *Registry   { return s.reg }
func (s *Server) Lifecycle() *Lifecycle { return s.lifecycle }
func (s *Server) Router() *Router       { return s.router }
func (s *Server) Presence() *Presence   { return s.presence }
func (s *Server) Disp() *Dispatcher     { return s.disp }
func (s *Server) Options() Options      { return s.opt }
func (s *Server) Logger() *zap.Logger   { return s.log }

// NewSession 新连接的会话记录（snowflake ID）
func (s *Server) NewSession(remote string) *Session {
	return NewSession(ids.GenerateString(), remote, s.opt.SendQueueSize, s.opt.Clock())
}

// Snapshot 在线情况（/users 使用）
type Snapshot struct {
	Users       []string `json:"users"`
	Agents      []string `json:"agents"`
	Connections int      `json:"connections"`
}

func (s *Server) Snapshot() Snapshot {
	return Snapshot{
		Users:       s.reg.Usernames(RolePlainUser),
		Agents:      s.reg.Usernames(RoleAgent),
		Connections: s.connMgr.Count(),
	}
}

// Close 断开所有连接，等待广播与总线发布清空
func (s *Server) Close() {
	s.connMgr.Close()
	s.fanout.Close()
	s.router.Close()
}
