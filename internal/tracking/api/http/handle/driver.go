package handle

import (
	"context"
	"net/http"
	"time"

	"deliveryhub/internal/tracking/app/core"
	"deliveryhub/internal/tracking/app/services"
	"deliveryhub/internal/tracking/domain/dto"
	"deliveryhub/internal/xpkg/httpx"
	"deliveryhub/internal/xpkg/logger"
)

type DriverHandler struct {
	driverService *services.DriverService
	mylog         logger.Logger
}

func NewDriverHandler(driverService *services.DriverService, mylog logger.Logger) *DriverHandler {
	return &DriverHandler{
		driverService: driverService,
		mylog:         mylog,
	}
}

func (dh *DriverHandler) UpdateLocation() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity(w, r)
		if !ok {
			return
		}
		var req dto.LocationRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), core.WaitTime*time.Second)
		defer cancel()

		pos, err := dh.driverService.UpdateLocation(ctx, id.UserID, req)
		if err != nil {
			httpx.WriteError(w, dh.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, pos)
	}
}

func (dh *DriverHandler) SetStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity(w, r)
		if !ok {
			return
		}
		var req dto.DriverStatusRequest
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.JSONError(w, http.StatusBadRequest, err)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), core.WaitTime*time.Second)
		defer cancel()

		driver, err := dh.driverService.SetStatus(ctx, id.UserID, req)
		if err != nil {
			httpx.WriteError(w, dh.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, driver)
	}
}

func (dh *DriverHandler) Me() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity(w, r)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), core.WaitTime*time.Second)
		defer cancel()

		status, err := dh.driverService.Me(ctx, id.UserID)
		if err != nil {
			httpx.WriteError(w, dh.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, status)
	}
}

func (dh *DriverHandler) GetStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), core.WaitTime*time.Second)
		defer cancel()

		drivers, err := dh.driverService.List(ctx)
		if err != nil {
			httpx.WriteError(w, dh.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, drivers)
	}
}
