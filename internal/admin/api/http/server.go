package http

import (
	"context"
	"fmt"
	"net/http"

	"deliveryhub/internal/admin/api/http/handle"
	"deliveryhub/internal/admin/app/core"
	"deliveryhub/internal/admin/app/services"
	"deliveryhub/internal/earnings"
	"deliveryhub/internal/payouts"
	"deliveryhub/internal/referral"
	"deliveryhub/internal/xpkg/broker"
	"deliveryhub/internal/xpkg/cache"
	"deliveryhub/internal/xpkg/config"
	"deliveryhub/internal/xpkg/db"
	"deliveryhub/internal/xpkg/httpx"
	"deliveryhub/internal/xpkg/lock"
	"deliveryhub/internal/xpkg/logger"
	"deliveryhub/internal/xpkg/outbox"

	database "deliveryhub/internal/admin/adapter/db"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type Server struct {
	mux         *http.ServeMux
	cfg         *config.Config
	adminParams *core.AdminParams
	mylog       logger.Logger
	db          *db.DB
	mb          *broker.RabbitMQ
	rdb         *redis.Client
	auth        *httpx.Authenticator
	limiter     *httpx.RateLimiter
	ctx         context.Context
}

func NewServer(ctx context.Context, cfg *config.Config, adminParams *core.AdminParams, mylog logger.Logger) *Server {
	return &Server{
		ctx:         ctx,
		cfg:         cfg,
		adminParams: adminParams,
		mylog:       mylog,
		mux:         http.NewServeMux(),
		auth:        httpx.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL),
		limiter:     httpx.NewRateLimiter(adminParams.Rate, adminParams.Burst),
	}
}

// Run connects dependencies, then serves HTTP and relays the outbox until ctx is done.
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

	// payout creation needs the lock, so Redis is required here
	rdb, err := cache.NewRedisClient(s.ctx, s.cfg.Redis.Addr, s.cfg.Redis.Password, s.cfg.Redis.DB)
	if err != nil {
		mylog.Action("redis_connection_failed").Error("Failed to connect to redis", err)
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	s.rdb = rdb

	s.Configure()

	mylog.WithGroup("details").Info("admin service is running", "port", s.adminParams.Port, "max-concurrent", s.adminParams.MaxConcurrent)

	g, ctx := errgroup.WithContext(s.ctx)
	g.Go(func() error {
		return httpx.Serve(ctx, s.adminParams.Port, httpx.Stack(s.mux, s.auth, s.limiter, s.adminParams.MaxConcurrent), s.mylog)
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

// Configure wires repositories, services and routes.
func (s *Server) Configure() {
	c := cache.New(s.rdb, s.cfg.Redis.CacheTTL, s.mylog)
	locker := payouts.NewRedisLocker(lock.NewLocker(s.rdb))

	payoutService := payouts.FromConfig(payouts.NewRepo(s.db.GetPool()), locker, s.cfg.Payouts, s.mylog)
	referrals := referral.NewService(referral.NewRepo(s.db.GetPool()), referral.Rules{
		MinOrders:     s.cfg.Referral.MinOrders,
		MinOrderCents: s.cfg.Referral.MinOrderCents,
		RewardCents:   s.cfg.Referral.RewardCents,
	}, s.mylog)

	Routes(s.mux, Handlers{
		Directory:  handle.NewDirectoryHandler(services.NewDirectoryService(database.NewDirectoryRepo(s.db), c, s.mylog), s.mylog),
		Payouts:    handle.NewPayoutHandler(payoutService, s.mylog),
		Affiliates: handle.NewAffiliateHandler(referrals, s.mylog),
		Content:    handle.NewContentHandler(services.NewContentService(database.NewContentRepo(s.db), c, s.mylog), s.mylog),
		Tickets:    handle.NewTicketHandler(services.NewTicketService(database.NewTicketRepo(s.db), s.mylog), s.mylog),
		Stats:      handle.NewStatsHandler(services.NewStatsService(database.NewStatsRepo(s.db)), s.mylog),
	})
}

type Handlers struct {
	Directory  *handle.DirectoryHandler
	Payouts    *handle.PayoutHandler
	Affiliates *handle.AffiliateHandler
	Content    *handle.ContentHandler
	Tickets    *handle.TicketHandler
	Stats      *handle.StatsHandler
}

func admin(h http.Handler) http.Handler {
	return httpx.RequireRole(h, httpx.RoleAdmin)
}

// Routes registers the admin-service API on mux.
func Routes(mux *http.ServeMux, h Handlers) {
	mux.Handle("GET /health", httpx.Health())
	mux.Handle("GET /metrics", httpx.MetricsHandler())

	mux.Handle("GET /admin/stats", admin(h.Stats.Dashboard()))

	mux.Handle("GET /admin/restaurants", admin(h.Directory.Restaurants()))
	mux.Handle("POST /admin/restaurants", admin(h.Directory.CreateRestaurant()))
	mux.Handle("PUT /admin/restaurants/{id}", admin(h.Directory.UpdateRestaurant()))
	mux.Handle("POST /admin/restaurants/{id}/status", admin(h.Directory.SetRestaurantStatus()))
	mux.Handle("POST /restaurants/{id}/settings", httpx.RequireRole(h.Directory.UpdateSettings(), httpx.RoleRestaurant, httpx.RoleAdmin))
	mux.Handle("GET /admin/drivers", admin(h.Directory.Drivers()))
	mux.Handle("POST /admin/drivers", admin(h.Directory.CreateDriver()))
	mux.Handle("POST /admin/drivers/{user_id}/payout-frequency", admin(h.Directory.SetDriverFrequency()))

	mux.Handle("GET /payouts/due", admin(h.Payouts.Due()))
	mux.Handle("GET /payouts", admin(h.Payouts.List()))
	mux.Handle("POST /payouts", admin(h.Payouts.Create()))
	mux.Handle("GET /payouts/me/summary", httpx.RequireRole(h.Payouts.MySummary(), httpx.RoleRestaurant, httpx.RoleDriver, httpx.RoleCustomer))
	mux.Handle("GET /payouts/{id}", admin(h.Payouts.Get()))
	mux.Handle("POST /payouts/{id}/approve", admin(h.Payouts.Transition(earnings.PayoutApproved)))
	mux.Handle("POST /payouts/{id}/reject", admin(h.Payouts.Transition(earnings.PayoutRejected)))
	mux.Handle("POST /payouts/{id}/pay", admin(h.Payouts.Transition(earnings.PayoutPaid)))

	mux.Handle("POST /affiliates", httpx.RequireRole(h.Affiliates.Join(), httpx.RoleCustomer))
	mux.Handle("GET /affiliates/me", httpx.RequireRole(h.Affiliates.Me(), httpx.RoleCustomer))
	mux.Handle("POST /referrals", httpx.RequireRole(h.Affiliates.Refer(), httpx.RoleCustomer))
	mux.Handle("GET /admin/affiliates", admin(h.Affiliates.List()))
	mux.Handle("POST /admin/affiliates/{user_id}/status", admin(h.Affiliates.SetStatus()))

	mux.Handle("GET /faq", h.Content.FAQ())
	mux.Handle("POST /admin/faq", admin(h.Content.CreateFAQ()))
	mux.Handle("PUT /admin/faq/{id}", admin(h.Content.UpdateFAQ()))
	mux.Handle("DELETE /admin/faq/{id}", admin(h.Content.DeleteFAQ()))

	mux.Handle("GET /articles", h.Content.Articles())
	mux.Handle("GET /articles/{slug}", h.Content.Article())
	mux.Handle("POST /admin/articles", admin(h.Content.CreateArticle()))
	mux.Handle("PUT /admin/articles/{id}", admin(h.Content.UpdateArticle()))
	mux.Handle("DELETE /admin/articles/{id}", admin(h.Content.DeleteArticle()))
	mux.Handle("POST /admin/articles/{id}/publish", admin(h.Content.SetPublished(true)))
	mux.Handle("POST /admin/articles/{id}/unpublish", admin(h.Content.SetPublished(false)))

	mux.Handle("GET /marketing/banners", h.Content.Banners())
	mux.Handle("GET /marketing/popups", h.Content.Popups())
	mux.Handle("POST /admin/banners", admin(h.Content.SaveBanner()))
	mux.Handle("PUT /admin/banners/{id}", admin(h.Content.SaveBanner()))
	mux.Handle("DELETE /admin/banners/{id}", admin(h.Content.DeleteBanner()))
	mux.Handle("POST /admin/popups", admin(h.Content.SavePopup()))
	mux.Handle("PUT /admin/popups/{id}", admin(h.Content.SavePopup()))
	mux.Handle("DELETE /admin/popups/{id}", admin(h.Content.DeletePopup()))
	mux.Handle("GET /admin/promo-codes", admin(h.Content.Promos()))
	mux.Handle("POST /admin/promo-codes", admin(h.Content.SavePromo()))
	mux.Handle("PUT /admin/promo-codes/{code}", admin(h.Content.SavePromo()))
	mux.Handle("DELETE /admin/promo-codes/{code}", admin(h.Content.DeletePromo()))
	mux.Handle("GET /promo-codes/{code}/check", httpx.RequireRole(h.Content.CheckPromo()))

	mux.Handle("POST /tickets", httpx.RequireRole(h.Tickets.Open()))
	mux.Handle("GET /tickets", httpx.RequireRole(h.Tickets.List()))
	mux.Handle("GET /tickets/{id}", httpx.RequireRole(h.Tickets.Get()))
	mux.Handle("POST /tickets/{id}/messages", httpx.RequireRole(h.Tickets.Reply()))
	mux.Handle("POST /tickets/{id}/status", admin(h.Tickets.SetStatus()))
}
