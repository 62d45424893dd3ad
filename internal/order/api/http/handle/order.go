package handle

import (
	"context"
	"net/http"
	"time"

	"deliveryhub/internal/order/app/core"
	"deliveryhub/internal/order/app/services"
	"deliveryhub/internal/order/domain/dto"
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

func (oh *OrderHandler) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity(w, r)
		if !ok {
			return
		}

		var req dto.CreateOrderRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			oh.mylog.Action("parse_failed").Error("Failed to parse order", err)
			httpx.JSONError(w, http.StatusBadRequest, err)
			return
		}
		oh.mylog.Action("received").Debug("Received order info", "restaurant_id", req.RestaurantID, "type", req.Type, "number_of_items", len(req.Items))

		ctx, cancel := context.WithTimeout(r.Context(), core.WaitTime*time.Second)
		defer cancel()

		newOrder, err := oh.orderService.Create(ctx, id, req)
		if err != nil {
			writeError(w, oh.mylog, err)
			return
		}

		httpx.JSONResponse(w, http.StatusCreated, dto.OrderResponse{
			Number:        newOrder.Number,
			Status:        newOrder.Status,
			SubtotalCents: newOrder.SubtotalCents,
			DiscountCents: newOrder.DiscountCents,
			TotalCents:    newOrder.TotalCents,
		})
	}
}

func (oh *OrderHandler) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity(w, r)
		if !ok {
			return
		}
		limit, offset := httpx.Page(r)
		filter := dto.OrderFilter{
			Status: r.URL.Query().Get("status"),
			Limit:  limit,
			Offset: offset,
		}

		ctx, cancel := context.WithTimeout(r.Context(), core.WaitTime*time.Second)
		defer cancel()

		orders, err := oh.orderService.List(ctx, id, filter)
		if err != nil {
			writeError(w, oh.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, dto.OrderList{Orders: orders, Limit: limit, Offset: offset})
	}
}

func (oh *OrderHandler) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity(w, r)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), core.WaitTime*time.Second)
		defer cancel()

		order, err := oh.orderService.Get(ctx, id, r.PathValue("number"))
		if err != nil {
			writeError(w, oh.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, map[string]any{
			"order":         order,
			"next_statuses": services.NextStatuses(order, id),
		})
	}
}

func (oh *OrderHandler) UpdateStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity(w, r)
		if !ok {
			return
		}

		var req dto.StatusRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), core.WaitTime*time.Second)
		defer cancel()

		order, err := oh.orderService.UpdateStatus(ctx, id, r.PathValue("number"), req)
		if err != nil {
			writeError(w, oh.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, order)
	}
}
