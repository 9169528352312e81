package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PRelay/global"
	"PRelay/global/config"
	"PRelay/logger"
	mid "PRelay/middleware"
	"PRelay/service/bus"
	"PRelay/service/chat"
	"PRelay/service/chat/handlers"
	"PRelay/service/kafka"
	"PRelay/service/natsx"
	"PRelay/service/storage"
	redis2 "PRelay/service/storage/redis"
	"PRelay/tools/ids"
	"PRelay/tools/safe"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func main() {
	if err := run(); err != nil {
		logger.Error("relay exited", zap.Error(err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env")
	if err != nil {
		return err
	}
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		logger.Warn("keep default log level", zap.Error(err))
	}
	ids.SetNodeID(cfg.NodeId)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1) 历史存储
	history, err := storage.Open(ctx, cfg.DatabaseURI, storage.Options{
		Database: cfg.DatabaseName,
		Timeout:  cfg.StoreTimeout,
	})
	if err != nil {
		return err
	}
	defer history.Close()
	logger.Info("history store ready", zap.String("scheme", storage.Scheme(cfg.DatabaseURI)))

	// 2) 在线状态镜像（可选）
	mirror, closeMirror := openPresence(ctx, cfg)
	defer closeMirror()

	// 3) 消息总线（可选）
	pub := openBus(cfg)
	defer pub.Close()

	// 4) relay
	srv := chat.NewServer(chat.Options{
		GatewayID:      cfg.GatewayId,
		Agents:         cfg.Agents,
		AllowedOrigins: cfg.AllowedOrigins,
		HistoryLimit:   cfg.HistoryLimit,
		MaxUsernameLen: cfg.MaxUsernameLen,
		SendQueueSize:  cfg.SendQueueSize,
		FanoutWorkers:  cfg.FanoutWorkers,
		FanoutQueue:    cfg.FanoutQueue,
		UnauthTTL:      cfg.UnauthTTL,
		SweepEvery:     cfg.SweepEvery,
		PingInterval:   cfg.PingInterval,
		WriteWait:      cfg.WriteWait,
		ReadLimit:      cfg.ReadLimit,
		StoreTimeout:   cfg.StoreTimeout,
	}, history, mirror, pub)
	handlers.RegisterAll(srv.Disp())
	defer srv.Close()

	// 5) gRPC 健康检查（可选）
	if cfg.GrpcPort > 0 {
		gs, err := startHealth(cfg.GrpcPort)
		if err != nil {
			return err
		}
		defer gs.GracefulStop()
	}

	// 6) HTTP + WebSocket
	mid.Manager().Add("cors", mid.CORS(cfg.AllowedOrigins))
	r := gin.New()
	r.Use(gin.Recovery(), mid.AccessLog(), mid.Manager().Use())

	r.GET("/socket", srv.HandleWS) // ws://localhost:5000/socket
	r.GET("/chat", srv.HandleWS)
	mid.GET(r, "/healthz", func(c *gin.Context) { global.JSON(c, global.Success(nil)) }, mid.RouteOpt{})
	mid.GET(r, "/users", func(c *gin.Context) { global.JSON(c, global.Success(srv.Snapshot())) }, mid.RouteOpt{})

	hs := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Port), Handler: r}
	errCh := make(chan error, 1)
	safe.Go("http-server", func() {
		logger.Info("[HTTP] Listening", zap.Int("port", cfg.Port), zap.String("gw", cfg.GatewayId))
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	})

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	}

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// 被劫持的 websocket 不受 Shutdown 管理，由 srv.Close 断开
	return hs.Shutdown(sctx)
}

func openPresence(ctx context.Context, cfg *config.AppConfig) (storage.PresenceStore, func()) {
	if cfg.Redis.Addr == "" {
		return storage.NopPresence{}, func() {}
	}
	mgr, err := redis2.NewRedis(ctx, redis2.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		logger.Warn("redis presence disabled", zap.Error(err))
		return storage.NopPresence{}, func() {}
	}
	p := storage.NewRedisPresence(mgr, cfg.GatewayId, cfg.Redis.PresenceTTL)
	// 上次进程留下的在线记录
	if stale, err := p.ResetNode(ctx); err != nil {
		logger.Warn("reset node presence failed", zap.Error(err))
	} else if len(stale) > 0 {
		logger.Info("cleared stale presence", zap.Strings("users", stale))
	}
	return p, func() {
		if err := p.Close(); err != nil {
			logger.Warn("close redis presence", zap.Error(err))
		}
	}
}

func openBus(cfg *config.AppConfig) bus.Publisher {
	var pubs []bus.Publisher
	if len(cfg.Nats.Servers) > 0 {
		mode, _ := natsx.ParseMode(cfg.Nats.Mode) // Validate 已校验
		p, err := bus.NewNatsPublisher(natsx.NatsxConfig{
			Servers: cfg.Nats.Servers,
			Name:    cfg.Nats.Name,
		}, natsx.NatsxRoute{Subject: cfg.Nats.Subject, Mode: mode, Stream: cfg.Nats.Stream}, cfg.GatewayId)
		if err != nil {
			logger.Warn("nats bus disabled", zap.Error(err))
		} else {
			pubs = append(pubs, p)
		}
	}
	if len(cfg.Kafka.Brokers) > 0 {
		p, err := bus.NewKafkaPublisher(kafka.DefaultConfig(cfg.Kafka.Brokers, cfg.Kafka.Topic), cfg.GatewayId)
		if err != nil {
			logger.Warn("kafka bus disabled", zap.Error(err))
		} else {
			pubs = append(pubs, p)
		}
	}
	return bus.Combine(pubs...)
}

func startHealth(port int) (*grpc.Server, error) {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("gRPC listen failed: %w", err)
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus("prelay.Relay", healthpb.HealthCheckResponse_SERVING)

	safe.Go("grpc-health", func() {
		logger.Info("[gRPC] Listening", zap.Int("port", port))
		if err := gs.Serve(lis); err != nil {
			logger.Error("gRPC server failed", zap.Error(err))
		}
	})
	return gs, nil
}
