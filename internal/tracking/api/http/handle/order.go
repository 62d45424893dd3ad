package handle

import (
	"context"
	"net/http"
	"time"

	"deliveryhub/internal/tracking/app/core"
	"deliveryhub/internal/tracking/app/services"
	xerrors "deliveryhub/internal/xpkg/errors"
	"deliveryhub/internal/xpkg/httpx"
	"deliveryhub/internal/xpkg/logger"
)

type OrderHandler struct {
	orderService *services.OrderService
	mylog        logger.Logger
}

func NewOrderHandler(orderService *services.OrderService, mylog logger.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		mylog:        mylog,
	}
}

func (oh *OrderHandler) GetStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity(w, r)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), core.WaitTime*time.Second)
		defer cancel()

		status, err := oh.orderService.GetStatus(ctx, id, r.PathValue("number"))
		if err != nil {
			httpx.WriteError(w, oh.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, status)
	}
}

func (oh *OrderHandler) GetHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity(w, r)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), core.WaitTime*time.Second)
		defer cancel()

		history, err := oh.orderService.GetHistory(ctx, id, r.PathValue("number"))
		if err != nil {
			httpx.WriteError(w, oh.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, history)
	}
}

func (oh *OrderHandler) GetTracking() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity(w, r)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), core.WaitTime*time.Second)
		defer cancel()

		tracking, err := oh.orderService.GetTracking(ctx, id, r.PathValue("number"))
		if err != nil {
			httpx.WriteError(w, oh.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, tracking)
	}
}

func identity(w http.ResponseWriter, r *http.Request) (httpx.Identity, bool) {
	id, ok := httpx.IdentityFrom(r.Context())
	if !ok {
		httpx.JSONError(w, http.StatusUnauthorized, xerrors.ErrUnauthorized)
	}
	return id, ok
}
