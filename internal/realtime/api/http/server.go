package http

import (
	"context"
	"fmt"
	"net/http"

	"deliveryhub/internal/realtime/adapter/feed"
	"deliveryhub/internal/realtime/api/http/handle"
	"deliveryhub/internal/realtime/app/core"
	"deliveryhub/internal/realtime/app/services"
	"deliveryhub/internal/xpkg/broker"
	"deliveryhub/internal/xpkg/config"
	"deliveryhub/internal/xpkg/httpx"
	"deliveryhub/internal/xpkg/logger"

	"golang.org/x/sync/errgroup"
)

type Server struct {
	mux           *http.ServeMux
	cfg           *config.Config
	gatewayParams *core.GatewayParams
	mylog         logger.Logger
	mb            *broker.RabbitMQ
	hub           *services.Hub
	auth          *httpx.Authenticator
	ctx           context.Context
}

func NewServer(ctx context.Context, cfg *config.Config, gatewayParams *core.GatewayParams, mylog logger.Logger) *Server {
	return &Server{
		ctx:           ctx,
		cfg:           cfg,
		gatewayParams: gatewayParams,
		mylog:         mylog,
		mux:           http.NewServeMux(),
		hub:           services.NewHub(gatewayParams.MaxClients, mylog),
		auth:          httpx.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL),
	}
}

func (s *Server) Run() error {
	mylog := s.mylog.Action("server_started")

	mb, err := broker.New(s.ctx, s.cfg.RMQ, s.mylog, 100)
	if err != nil {
		mylog.Action("mb_connection_failed").Error("Failed to connect to message broker", err)
		return fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	s.mb = mb
	mylog.Action("mb_connected").Info("Successful message broker connection")

	Routes(s.mux, handle.NewWSHandler(s.hub, s.auth, s.mylog))

	mylog.WithGroup("details").Info("realtime gateway is running", "port", s.gatewayParams.Port)

	g, ctx := errgroup.WithContext(s.ctx)
	g.Go(func() error {
		return httpx.Serve(ctx, s.gatewayParams.Port, httpx.Stack(s.mux, s.auth, nil, s.gatewayParams.MaxClients), s.mylog)
	})
	g.Go(func() error {
		return feed.New(mb, s.hub, s.mylog).Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		s.hub.CloseAll()
		return nil
	})
	return g.Wait()
}

func (s *Server) Stop() error {
	s.hub.CloseAll()
	if s.mb != nil {
		if err := s.mb.Close(); err != nil {
			s.mylog.Action("mb_close_failed").Error("Failed to close message broker", err)
			return fmt.Errorf("mb close: %w", err)
		}
		s.mylog.Action("mb_closed").Info("Message broker closed")
	}
	return nil
}

// Routes registers the gateway endpoints on mux.
func Routes(mux *http.ServeMux, ws *handle.WSHandler) {
	mux.Handle("GET /health", httpx.Health())
	mux.Handle("GET /metrics", httpx.MetricsHandler())
	mux.Handle("GET /ws", ws.Connect())
}
