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

type CatalogHandler struct {
	catalog *services.CatalogService
	mylog   logger.Logger
}

func NewCatalogHandler(catalog *services.CatalogService, mylog logger.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, mylog: mylog}
}

func (ch *CatalogHandler) Restaurants() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), core.WaitTime*time.Second)
		defer cancel()

		restaurants, err := ch.catalog.Restaurants(ctx)
		if err != nil {
			writeError(w, ch.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, restaurants)
	}
}

func (ch *CatalogHandler) Menu() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), core.WaitTime*time.Second)
		defer cancel()

		menu, err := ch.catalog.Menu(ctx, r.PathValue("id"))
		if err != nil {
			writeError(w, ch.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, menu)
	}
}

func (ch *CatalogHandler) CreateMenuItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity(w, r)
		if !ok {
			return
		}
		var req dto.MenuItemRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, err)
			return
		}

		item, err := ch.catalog.CreateMenuItem(r.Context(), id, r.PathValue("id"), req)
		if err != nil {
			writeError(w, ch.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusCreated, item)
	}
}

func (ch *CatalogHandler) UpdateMenuItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity(w, r)
		if !ok {
			return
		}
		var req dto.MenuItemRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, err)
			return
		}

		item, err := ch.catalog.UpdateMenuItem(r.Context(), id, r.PathValue("id"), r.PathValue("item_id"), req)
		if err != nil {
			writeError(w, ch.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, item)
	}
}

func (ch *CatalogHandler) DeleteMenuItem() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity(w, r)
		if !ok {
			return
		}
		if err := ch.catalog.DeleteMenuItem(r.Context(), id, r.PathValue("id"), r.PathValue("item_id")); err != nil {
			writeError(w, ch.mylog, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
