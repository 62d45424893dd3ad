package http

import (
	"context"
	"fmt"
	"net/http"

	"deliveryhub/internal/order/api/http/handle"
	"deliveryhub/internal/order/app/core"
	"deliveryhub/internal/order/app/services"
	"deliveryhub/internal/referral"
	"deliveryhub/internal/xpkg/broker"
	"deliveryhub/internal/xpkg/cache"
	"deliveryhub/internal/xpkg/config"
	"deliveryhub/internal/xpkg/db"
	"deliveryhub/internal/xpkg/httpx"
	"deliveryhub/internal/xpkg/logger"
	"deliveryhub/internal/xpkg/outbox"

	database "deliveryhub/internal/order/adapter/db"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type Server struct {
	mux         *http.ServeMux
	cfg         *config.Config
	orderParams *core.OrderParams
	mylog       logger.Logger
	db          *db.DB
	mb          *broker.RabbitMQ
	rdb         *redis.Client
	auth        *httpx.Authenticator
	limiter     *httpx.RateLimiter
	ctx         context.Context
}

func NewServer(ctx context.Context, cfg *config.Config, orderParams *core.OrderParams, mylog logger.Logger) *Server {
	return &Server{
		ctx:         ctx,
		cfg:         cfg,
		orderParams: orderParams,
		mylog:       mylog,
		mux:         http.NewServeMux(),
		auth:        httpx.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL),
		limiter:     httpx.NewRateLimiter(orderParams.Rate, orderParams.Burst),
	}
}

// Run connects dependencies, then serves HTTP and relays the outbox until ctx is done.
func (s *Server) Run() error {
	mylog := s.mylog.Action("server_started")

	if err := s.initializeDatabase(); err != nil {
		mylog.Action("db_connection_failed").Error("Failed to connect to database", err)
		return err
	}
	mylog.Action("db_connected").Info("Successful database connection")

	if err := s.initializeRabbitMQ(); err != nil {
		mylog.Action("mb_connection_failed").Error("Failed to connect to message broker", err)
		return err
	}
	mylog.Action("mb_connected").Info("Successful message broker connection")

	rdb, err := cache.NewRedisClient(s.ctx, s.cfg.Redis.Addr, s.cfg.Redis.Password, s.cfg.Redis.DB)
	if err != nil {
		// the catalog works uncached
		mylog.Action("redis_connection_failed").Warn("Redis unavailable, serving without cache", "err", err.Error())
	}
	s.rdb = rdb

	s.Configure()

	mylog.WithGroup("details").Info("order service is running", "port", s.orderParams.Port, "max-concurrent", s.orderParams.MaxConcurrent)

	g, ctx := errgroup.WithContext(s.ctx)
	g.Go(func() error {
		return httpx.Serve(ctx, s.orderParams.Port, httpx.Stack(s.mux, s.auth, s.limiter, s.orderParams.MaxConcurrent), s.mylog)
	})
	g.Go(func() error {
		return outbox.NewRelay(s.db.GetPool(), s.mb, s.mylog).Run(ctx)
	})
	g.Go(func() error {
		return s.limiter.RunCleanup(ctx)
	})
	return g.Wait()
}

// Stop releases connections once Run has returned.
func (s *Server) Stop() error {
	if s.rdb != nil {
		s.rdb.Close()
	}
	if s.mb != nil {
		if err := s.mb.Close(); err != nil {
			s.mylog.Action("mb_close_failed").Error("Failed to close message broker", err)
			return fmt.Errorf("mb close: %w", err)
		}
		s.mylog.Action("mb_closed").Info("Message broker closed")
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

func (s *Server) initializeDatabase() error {
	d, err := db.Start(s.ctx, s.cfg.DB, s.mylog)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	s.db = d
	return nil
}

func (s *Server) initializeRabbitMQ() error {
	mb, err := broker.New(s.ctx, s.cfg.RMQ, s.mylog, 0)
	if err != nil {
		return fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	s.mb = mb
	return nil
}

// Configure wires repositories, services and routes.
func (s *Server) Configure() {
	orderRepo := database.NewOrderRepo(s.db)
	catalogRepo := database.NewCatalogRepo(s.db)

	referrals := referral.NewService(referral.NewRepo(s.db.GetPool()), referral.Rules{
		MinOrders:     s.cfg.Referral.MinOrders,
		MinOrderCents: s.cfg.Referral.MinOrderCents,
		RewardCents:   s.cfg.Referral.RewardCents,
	}, s.mylog)

	var c *cache.Cache
	if s.rdb != nil {
		c = cache.New(s.rdb, s.cfg.Redis.CacheTTL, s.mylog)
	}

	orderService := services.NewOrderService(orderRepo, catalogRepo, referrals, s.mylog)
	catalogService := services.NewCatalogService(catalogRepo, c, s.mylog)

	Routes(s.mux, handle.NewOrderHandler(orderService, s.mylog), handle.NewCatalogHandler(catalogService, s.mylog))
}

// Routes registers the order-service API on mux.
func Routes(mux *http.ServeMux, orders *handle.OrderHandler, catalog *handle.CatalogHandler) {
	mux.Handle("GET /health", httpx.Health())
	mux.Handle("GET /metrics", httpx.MetricsHandler())

	mux.Handle("GET /restaurants", catalog.Restaurants())
	mux.Handle("GET /restaurants/{id}/menu", catalog.Menu())
	mux.Handle("POST /restaurants/{id}/menu", httpx.RequireRole(catalog.CreateMenuItem(), httpx.RoleRestaurant, httpx.RoleAdmin))
	mux.Handle("PUT /restaurants/{id}/menu/{item_id}", httpx.RequireRole(catalog.UpdateMenuItem(), httpx.RoleRestaurant, httpx.RoleAdmin))
	mux.Handle("DELETE /restaurants/{id}/menu/{item_id}", httpx.RequireRole(catalog.DeleteMenuItem(), httpx.RoleRestaurant, httpx.RoleAdmin))

	mux.Handle("POST /orders", httpx.RequireRole(orders.Create(), httpx.RoleCustomer))
	mux.Handle("GET /orders", httpx.RequireRole(orders.List()))
	mux.Handle("GET /orders/{number}", httpx.RequireRole(orders.Get()))
	mux.Handle("POST /orders/{number}/status", httpx.RequireRole(orders.UpdateStatus()))
}
