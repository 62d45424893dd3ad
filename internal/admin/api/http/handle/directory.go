package handle

import (
	"net/http"

	"deliveryhub/internal/admin/app/services"
	"deliveryhub/internal/admin/domain/dto"
	"deliveryhub/internal/xpkg/httpx"
	"deliveryhub/internal/xpkg/logger"
)

type DirectoryHandler struct {
	directory *services.DirectoryService
	mylog     logger.Logger
}

func NewDirectoryHandler(directory *services.DirectoryService, mylog logger.Logger) *DirectoryHandler {
	return &DirectoryHandler{directory: directory, mylog: mylog}
}

func (dh *DirectoryHandler) Restaurants() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := withWait(r)
		defer cancel()

		limit, offset := httpx.Page(r)
		list, err := dh.directory.Restaurants(ctx, r.URL.Query().Get("status"), limit, offset)
		if err != nil {
			writeError(w, dh.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, list)
	}
}

func (dh *DirectoryHandler) CreateRestaurant() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.RestaurantRequest
		if !decode(w, r, &req) {
			return
		}
		created, err := dh.directory.CreateRestaurant(r.Context(), req)
		if err != nil {
			writeError(w, dh.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusCreated, created)
	}
}

func (dh *DirectoryHandler) UpdateRestaurant() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.RestaurantRequest
		if !decode(w, r, &req) {
			return
		}
		updated, err := dh.directory.UpdateRestaurant(r.Context(), r.PathValue("id"), req)
		if err != nil {
			writeError(w, dh.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, updated)
	}
}

func (dh *DirectoryHandler) SetRestaurantStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.StatusRequest
		if !decode(w, r, &req) {
			return
		}
		updated, err := dh.directory.SetRestaurantStatus(r.Context(), r.PathValue("id"), req.Status)
		if err != nil {
			writeError(w, dh.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, updated)
	}
}

func (dh *DirectoryHandler) UpdateSettings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity(w, r)
		if !ok {
			return
		}
		var req dto.RestaurantSettings
		if !decode(w, r, &req) {
			return
		}
		updated, err := dh.directory.UpdateSettings(r.Context(), id, r.PathValue("id"), req)
		if err != nil {
			writeError(w, dh.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, updated)
	}
}

func (dh *DirectoryHandler) Drivers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := withWait(r)
		defer cancel()

		limit, offset := httpx.Page(r)
		list, err := dh.directory.Drivers(ctx, r.URL.Query().Get("status"), limit, offset)
		if err != nil {
			writeError(w, dh.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, list)
	}
}

func (dh *DirectoryHandler) CreateDriver() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.DriverRequest
		if !decode(w, r, &req) {
			return
		}
		created, err := dh.directory.CreateDriver(r.Context(), req)
		if err != nil {
			writeError(w, dh.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusCreated, created)
	}
}

func (dh *DirectoryHandler) SetDriverFrequency() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.FrequencyRequest
		if !decode(w, r, &req) {
			return
		}
		updated, err := dh.directory.SetDriverFrequency(r.Context(), r.PathValue("user_id"), req.PayoutFrequency)
		if err != nil {
			writeError(w, dh.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, updated)
	}
}
