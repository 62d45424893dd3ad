package handle

import (
	"net/http"

	"deliveryhub/internal/admin/app/services"
	"deliveryhub/internal/admin/domain/dto"
	"deliveryhub/internal/xpkg/httpx"
	"deliveryhub/internal/xpkg/logger"
)

type TicketHandler struct {
	tickets *services.TicketService
	mylog   logger.Logger
}

func NewTicketHandler(tickets *services.TicketService, mylog logger.Logger) *TicketHandler {
	return &TicketHandler{tickets: tickets, mylog: mylog}
}

func (th *TicketHandler) Open() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity(w, r)
		if !ok {
			return
		}
		var req dto.TicketRequest
		if !decode(w, r, &req) {
			return
		}
		t, err := th.tickets.Open(r.Context(), id, req)
		if err != nil {
			writeError(w, th.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusCreated, t)
	}
}

func (th *TicketHandler) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity(w, r)
		if !ok {
			return
		}
		ctx, cancel := withWait(r)
		defer cancel()

		limit, offset := httpx.Page(r)
		list, err := th.tickets.List(ctx, id, dto.TicketFilter{
			UserID: r.URL.Query().Get("user_id"),
			Status: r.URL.Query().Get("status"),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			writeError(w, th.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, list)
	}
}

func (th *TicketHandler) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity(w, r)
		if !ok {
			return
		}
		t, err := th.tickets.Get(r.Context(), id, r.PathValue("id"))
		if err != nil {
			writeError(w, th.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, t)
	}
}

func (th *TicketHandler) Reply() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := identity(w, r)
		if !ok {
			return
		}
		var req dto.MessageRequest
		if !decode(w, r, &req) {
			return
		}
		m, err := th.tickets.Reply(r.Context(), id, r.PathValue("id"), req)
		if err != nil {
			writeError(w, th.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusCreated, m)
	}
}

func (th *TicketHandler) SetStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req dto.StatusRequest
		if !decode(w, r, &req) {
			return
		}
		t, err := th.tickets.SetStatus(r.Context(), r.PathValue("id"), req.Status)
		if err != nil {
			writeError(w, th.mylog, err)
			return
		}
		httpx.JSONResponse(w, http.StatusOK, t)
	}
}
