package http

import (
	"context"
	"fmt"
	"net/http"

	"deliveryhub/internal/tracking/api/http/handle"
	"deliveryhub/internal/tracking/app/core"
	"deliveryhub/internal/tracking/app/services"
	"deliveryhub/internal/xpkg/broker"
	"deliveryhub/internal/xpkg/cache"
	"deliveryhub/internal/xpkg/config"
	"deliveryhub/internal/xpkg/db"
	"deliveryhub/internal/xpkg/geo"
	"deliveryhub/internal/xpkg/httpx"
	"deliveryhub/internal/xpkg/logger"

	database "deliveryhub/internal/tracking/adapter/db"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type Server struct {
	mux            *http.ServeMux
	cfg            *config.Config
	trackingParams *core.TrackingParams
	mylog          logger.Logger
	db             *db.DB
	mb             *broker.RabbitMQ
	rdb            *redis.Client
	auth           *httpx.Authenticator
	limiter        *httpx.RateLimiter
	ctx            context.Context
}

func NewServer(ctx context.Context, cfg *config.Config, trackingParams *core.TrackingParams, mylog logger.Logger) *Server {
	return &Server{
		ctx:            ctx,
		cfg:            cfg,
		trackingParams: trackingParams,
		mylog:          mylog,
		mux:            http.NewServeMux(),
		auth:           httpx.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL),
		limiter:        httpx.NewRateLimiter(trackingParams.Rate, trackingParams.Burst),
	}
}

func (s *Server) Run() error {
	mylog := s.mylog.Action("server_started")

	d, err := db.Start(s.ctx, s.cfg.DB, s.mylog)
	if err != nil {
		mylog.Action("db_connection_failed").Error("Failed to connect to database", err)
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	s.db = d
	mylog.Action("db_connected").Info("Successful database connection")

	mb, err := broker.New(s.ctx, s.cfg.RMQ, s.mylog, 0)
	if err != nil {
		mylog.Action("mb_connection_failed").Error("Failed to connect to message broker", err)
		return fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	s.mb = mb
	mylog.Action("mb_connected").Info("Successful message broker connection")

	// positions live only in redis, so it is required here
	rdb, err := cache.NewRedisClient(s.ctx, s.cfg.Redis.Addr, s.cfg.Redis.Password, s.cfg.Redis.DB)
	if err != nil {
		mylog.Action("redis_connection_failed").Error("Failed to connect to redis", err)
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	s.rdb = rdb

	s.Configure()

	mylog.WithGroup("details").Info("tracking service is running", "port", s.trackingParams.Port)

	g, ctx := errgroup.WithContext(s.ctx)
	g.Go(func() error {
		return httpx.Serve(ctx, s.trackingParams.Port, httpx.Stack(s.mux, s.auth, s.limiter, s.trackingParams.MaxConcurrent), s.mylog)
	})
	g.Go(func() error {
		return s.limiter.RunCleanup(ctx)
	})
	return g.Wait()
}

func (s *Server) Stop() error {
	if s.rdb != nil {
		s.rdb.Close()
	}
	if s.mb != nil {
		if err := s.mb.Close(); err != nil {
			s.mylog.Action("mb_close_failed").Error("Failed to close message broker", err)
			return fmt.Errorf("mb close: %w", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.mylog.Action("db_close_failed").Error("Failed to close database", err)
			return fmt.Errorf("db close: %w", err)
		}
		s.mylog.Action("db_closed").Info("Database closed")
	}
	return nil
}

func (s *Server) Configure() {
	orderRepo := database.NewOrderRepo(s.db)
	driverRepo := database.NewDriverRepo(s.db)
	positions := geo.NewStore(s.rdb, s.trackingParams.PositionTTL)

	orderService := services.NewOrderService(orderRepo, positions, s.mylog)
	driverService := services.NewDriverService(driverRepo, orderRepo, positions, s.mb, s.mylog)

	Routes(s.mux, handle.NewOrderHandler(orderService, s.mylog), handle.NewDriverHandler(driverService, s.mylog))
}

// Routes registers the tracking API on mux.
func Routes(mux *http.ServeMux, orders *handle.OrderHandler, drivers *handle.DriverHandler) {
	mux.Handle("GET /health", httpx.Health())
	mux.Handle("GET /metrics", httpx.MetricsHandler())

	mux.Handle("GET /orders/{number}/status", httpx.RequireRole(orders.GetStatus()))
	mux.Handle("GET /orders/{number}/history", httpx.RequireRole(orders.GetHistory()))
	mux.Handle("GET /orders/{number}/tracking", httpx.RequireRole(orders.GetTracking()))

	mux.Handle("GET /drivers/me", httpx.RequireRole(drivers.Me(), httpx.RoleDriver))
	mux.Handle("POST /drivers/me/location", httpx.RequireRole(drivers.UpdateLocation(), httpx.RoleDriver))
	mux.Handle("POST /drivers/me/status", httpx.RequireRole(drivers.SetStatus(), httpx.RoleDriver))
	mux.Handle("GET /drivers/status", httpx.RequireRole(drivers.GetStatus(), httpx.RoleAdmin))
}
